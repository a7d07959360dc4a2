package location

import (
	"context"
	"strings"
	"time"

	"stockflow/internal/core/id"
	"stockflow/pkg/logger"
)

// Service provides location lookups.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a location for a tenant.
func (s *Service) Create(ctx context.Context, tenantID, name string, typ Type) (*Location, error) {
	loc := Location{
		ID:        id.New(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(name),
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := loc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, err
	}
	logger.Info(ctx, "location created", "location_id", loc.ID, "name", loc.Name)
	return &loc, nil
}

// Get returns one location.
func (s *Service) Get(ctx context.Context, tenantID string, locationID id.ID) (*Location, error) {
	return s.repo.GetByID(ctx, tenantID, locationID)
}

// List returns all tenant locations.
func (s *Service) List(ctx context.Context, tenantID string) ([]Location, error) {
	return s.repo.List(ctx, tenantID)
}

// Names maps location ids to display names.
func (s *Service) Names(ctx context.Context, tenantID string) (map[id.ID]string, error) {
	locs, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	names := make(map[id.ID]string, len(locs))
	for _, l := range locs {
		names[l.ID] = l.Name
	}
	return names, nil
}
