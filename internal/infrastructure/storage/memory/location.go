package memory

import (
	"context"
	"sort"
	"strings"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/location"
)

// LocationRepo implements location.Repository.
type LocationRepo struct {
	s *Store
}

func (r *LocationRepo) Create(ctx context.Context, loc location.Location) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.locations[loc.ID]; ok {
			return apperror.NewDuplicate("location", "id", loc.ID.String())
		}
		for _, existing := range d.locations {
			if existing.TenantID == loc.TenantID && strings.EqualFold(existing.Name, loc.Name) {
				return apperror.NewDuplicate("location", "name", loc.Name)
			}
		}
		d.locations[loc.ID] = loc
		return nil
	})
}

func (r *LocationRepo) GetByID(ctx context.Context, tenantID string, locationID id.ID) (*location.Location, error) {
	var (
		loc location.Location
		ok  bool
	)
	r.s.read(ctx, func(d *state) { loc, ok = d.locations[locationID] })
	if !ok || loc.TenantID != tenantID {
		return nil, apperror.NewNotFound("location", locationID.String())
	}
	return &loc, nil
}

func (r *LocationRepo) List(ctx context.Context, tenantID string) ([]location.Location, error) {
	out := []location.Location{}
	r.s.read(ctx, func(d *state) {
		for _, loc := range d.locations {
			if loc.TenantID == tenantID {
				out = append(out, loc)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
