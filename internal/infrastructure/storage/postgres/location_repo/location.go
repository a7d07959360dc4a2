// Package location_repo stores the location registry in PostgreSQL.
package location_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/location"
	"stockflow/internal/infrastructure/storage/postgres"
)

const table = "locations"

// NotifyChannel receives the tenant id whenever a tenant's locations change.
const NotifyChannel = "stockflow_locations_changed"

var _ location.Repository = (*Repo)(nil)

type locationRow struct {
	ID        id.ID     `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Name      string    `db:"name"`
	Type      string    `db:"location_type"`
	CreatedAt time.Time `db:"created_at"`
}

var columns = postgres.Columns[locationRow]()

func (r locationRow) toDomain() location.Location {
	return location.Location{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Type:      location.Type(r.Type),
		CreatedAt: r.CreatedAt,
	}
}

type Repo struct {
	txManager *postgres.TxManager
}

func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func (r *Repo) Create(ctx context.Context, loc location.Location) error {
	row := locationRow{
		ID:        loc.ID,
		TenantID:  loc.TenantID,
		Name:      loc.Name,
		Type:      string(loc.Type),
		CreatedAt: loc.CreatedAt,
	}
	if _, err := r.txManager.Exec(ctx, postgres.Builder().Insert(table).SetMap(postgres.StructToMap(row))); err != nil {
		return err
	}
	// Delivered on commit when ctx carries a transaction.
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, loc.TenantID)
	return postgres.TranslateError(err)
}

func (r *Repo) GetByID(ctx context.Context, tenantID string, locationID id.ID) (*location.Location, error) {
	var row locationRow
	q := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"id": locationID, "tenant_id": tenantID}).
		Limit(1)
	if err := r.txManager.Get(ctx, &row, q, "location", locationID.String()); err != nil {
		return nil, err
	}
	loc := row.toDomain()
	return &loc, nil
}

func (r *Repo) List(ctx context.Context, tenantID string) ([]location.Location, error) {
	var rows []locationRow
	q := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("name")
	if err := r.txManager.Select(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]location.Location, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
