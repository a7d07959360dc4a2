// Package ledger_repo stores inventory movements in PostgreSQL.
package ledger_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/infrastructure/storage/postgres"
)

const table = "inventory_movements"

var _ ledger.Repository = (*Repo)(nil)

type movementRow struct {
	ID             id.ID           `db:"id"`
	TenantID       string          `db:"tenant_id"`
	MaterialID     id.ID           `db:"material_id"`
	MaterialName   string          `db:"material_name"`
	MovementType   string          `db:"movement_type"`
	Quantity       decimal.Decimal `db:"quantity"`
	FromLocationID *id.ID          `db:"from_location_id"`
	ToLocationID   *id.ID          `db:"to_location_id"`
	ReferenceType  *string         `db:"reference_type"`
	ReferenceID    *id.ID          `db:"reference_id"`
	Notes          *string         `db:"notes"`
	CreatedAt      time.Time       `db:"created_at"`
	UserID         string          `db:"user_id"`
}

var columns = postgres.Columns[movementRow]()

func toRow(m ledger.Movement) movementRow {
	return movementRow{
		ID:             m.ID,
		TenantID:       m.TenantID,
		MaterialID:     m.MaterialID,
		MaterialName:   m.MaterialName,
		MovementType:   string(m.Type),
		Quantity:       m.Quantity.Decimal(),
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		ReferenceType:  nullable(m.ReferenceType),
		ReferenceID:    m.ReferenceID,
		Notes:          nullable(m.Notes),
		CreatedAt:      m.CreatedAt,
		UserID:         m.UserID,
	}
}

func (r movementRow) toDomain() (ledger.Movement, error) {
	var qd types.QuantityDecoder
	out := ledger.Movement{
		ID:             r.ID,
		TenantID:       r.TenantID,
		MaterialID:     r.MaterialID,
		MaterialName:   r.MaterialName,
		Type:           ledger.MovementType(r.MovementType),
		Quantity:       qd.Decode(r.Quantity),
		FromLocationID: r.FromLocationID,
		ToLocationID:   r.ToLocationID,
		ReferenceType:  deref(r.ReferenceType),
		ReferenceID:    r.ReferenceID,
		Notes:          deref(r.Notes),
		CreatedAt:      r.CreatedAt,
		UserID:         r.UserID,
	}
	return out, qd.Err()
}

// Repo implements ledger.Repository. Movements are insert-only; the table
// has no UPDATE or DELETE path.
type Repo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchWriter
}

func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager, batch: postgres.NewBatchWriter(txManager)}
}

// Append inserts movements. Outside a transaction it opens one, so a
// multi-movement append is still all-or-nothing.
func (r *Repo) Append(ctx context.Context, movements ...ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, postgres.Values(toRow(m)))
		}
		_, err := r.batch.CopyRows(ctx, table, columns, rows)
		return err
	})
}

// Query returns tenant movements in replay order.
func (r *Repo) Query(ctx context.Context, tenantID string, f ledger.MovementFilter) ([]ledger.Movement, error) {
	q := buildQuery(tenantID, f)

	var rows []movementRow
	if err := r.txManager.Select(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]ledger.Movement, len(rows))
	for i, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func buildQuery(tenantID string, f ledger.MovementFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"tenant_id": tenantID})

	if len(f.MaterialIDs) > 0 {
		q = q.Where(squirrel.Eq{"material_id": f.MaterialIDs})
	}
	if len(f.LocationIDs) > 0 {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_location_id": f.LocationIDs},
			squirrel.Eq{"to_location_id": f.LocationIDs},
		})
	}
	if len(f.Types) > 0 {
		names := make([]string, len(f.Types))
		for i, t := range f.Types {
			names[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"movement_type": names})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.To})
	}

	q = q.OrderBy("created_at", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
