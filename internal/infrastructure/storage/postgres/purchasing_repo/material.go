package purchasing_repo

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/storage/postgres"
)

const materialsTable = "materials"

var _ purchasing.MaterialRepository = (*MaterialRepo)(nil)

type materialRow struct {
	ID              id.ID           `db:"id"`
	TenantID        string          `db:"tenant_id"`
	Name            string          `db:"name"`
	CurrentQuantity decimal.Decimal `db:"current_quantity"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

var materialColumns = postgres.Columns[materialRow]()

// MaterialRepo implements purchasing.MaterialRepository.
type MaterialRepo struct {
	txManager *postgres.TxManager
}

func NewMaterialRepo(txManager *postgres.TxManager) *MaterialRepo {
	return &MaterialRepo{txManager: txManager}
}

func (r *MaterialRepo) GetMaterial(ctx context.Context, tenantID string, materialID id.ID) (*purchasing.Material, error) {
	var row materialRow
	q := postgres.Builder().Select(materialColumns...).From(materialsTable).
		Where(squirrel.Eq{"id": materialID, "tenant_id": tenantID})
	if err := r.txManager.Get(ctx, &row, q, "material", materialID.String()); err != nil {
		return nil, err
	}
	current, err := types.QuantityFromDecimal(row.CurrentQuantity)
	if err != nil {
		return nil, err
	}
	return &purchasing.Material{
		ID:              row.ID,
		TenantID:        row.TenantID,
		Name:            row.Name,
		CurrentQuantity: current,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *MaterialRepo) CreateMaterial(ctx context.Context, m purchasing.Material) error {
	row := materialRow{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Name:            m.Name,
		CurrentQuantity: m.CurrentQuantity.Decimal(),
		UpdatedAt:       m.UpdatedAt,
	}
	_, err := r.txManager.Exec(ctx, postgres.Builder().Insert(materialsTable).SetMap(postgres.StructToMap(row)))
	return err
}

// AdjustQuantity applies delta in a single UPDATE, so concurrent
// adjustments never lose an increment.
func (r *MaterialRepo) AdjustQuantity(
	ctx context.Context,
	tenantID string,
	materialID id.ID,
	delta types.Quantity,
	clampZero bool,
) (types.Quantity, error) {
	var row materialRow
	if err := r.txManager.Get(ctx, &row, adjustQuery(tenantID, materialID, delta, clampZero), "material", materialID.String()); err != nil {
		return 0, err
	}
	return types.QuantityFromDecimal(row.CurrentQuantity)
}

func adjustQuery(tenantID string, materialID id.ID, delta types.Quantity, clampZero bool) squirrel.UpdateBuilder {
	expr := squirrel.Expr("current_quantity + ?", delta.Decimal())
	if clampZero {
		expr = squirrel.Expr("GREATEST(0, current_quantity + ?)", delta.Decimal())
	}
	return postgres.Builder().Update(materialsTable).
		Set("current_quantity", expr).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": materialID, "tenant_id": tenantID}).
		Suffix("RETURNING " + strings.Join(materialColumns, ", "))
}
