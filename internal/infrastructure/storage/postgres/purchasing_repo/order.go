// Package purchasing_repo stores purchase orders, their lines and the
// material quantity cache in PostgreSQL.
package purchasing_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	ordersTable = "purchase_orders"
	linesTable  = "purchase_order_lines"
)

var _ purchasing.OrderRepository = (*OrderRepo)(nil)

type orderRow struct {
	ID                    id.ID           `db:"id"`
	TenantID              string          `db:"tenant_id"`
	PONumber              string          `db:"po_number"`
	Status                string          `db:"status"`
	TotalOrderedQuantity  decimal.Decimal `db:"total_ordered_quantity"`
	TotalReceivedQuantity decimal.Decimal `db:"total_received_quantity"`
	IsFullyReceived       bool            `db:"is_fully_received"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

type lineRow struct {
	ID                id.ID           `db:"id"`
	OrderID           id.ID           `db:"purchase_order_id"`
	MaterialID        id.ID           `db:"material_id"`
	MaterialName      string          `db:"material_name"`
	OrderedQuantity   decimal.Decimal `db:"ordered_quantity"`
	ReceivedQuantity  decimal.Decimal `db:"received_quantity"`
	RemainingQuantity decimal.Decimal `db:"remaining_quantity"`
	Status            string          `db:"status"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

var (
	orderColumns = postgres.Columns[orderRow]()
	lineColumns  = postgres.Columns[lineRow]()
)

func orderToRow(o purchasing.PurchaseOrder) orderRow {
	return orderRow{
		ID:                    o.ID,
		TenantID:              o.TenantID,
		PONumber:              o.PONumber,
		Status:                string(o.Status),
		TotalOrderedQuantity:  o.TotalOrderedQuantity.Decimal(),
		TotalReceivedQuantity: o.TotalReceivedQuantity.Decimal(),
		IsFullyReceived:       o.IsFullyReceived,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func (r orderRow) toDomain() (purchasing.PurchaseOrder, error) {
	var qd types.QuantityDecoder
	out := purchasing.PurchaseOrder{
		ID:                    r.ID,
		TenantID:              r.TenantID,
		PONumber:              r.PONumber,
		Status:                purchasing.OrderStatus(r.Status),
		TotalOrderedQuantity:  qd.Decode(r.TotalOrderedQuantity),
		TotalReceivedQuantity: qd.Decode(r.TotalReceivedQuantity),
		IsFullyReceived:       r.IsFullyReceived,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	return out, qd.Err()
}

func lineToRow(l purchasing.Line) lineRow {
	return lineRow{
		ID:                l.ID,
		OrderID:           l.OrderID,
		MaterialID:        l.MaterialID,
		MaterialName:      l.MaterialName,
		OrderedQuantity:   l.OrderedQuantity.Decimal(),
		ReceivedQuantity:  l.ReceivedQuantity.Decimal(),
		RemainingQuantity: l.RemainingQuantity.Decimal(),
		Status:            string(l.Status),
		UpdatedAt:         l.UpdatedAt,
	}
}

func (r lineRow) toDomain() (purchasing.Line, error) {
	var qd types.QuantityDecoder
	out := purchasing.Line{
		ID:                r.ID,
		OrderID:           r.OrderID,
		MaterialID:        r.MaterialID,
		MaterialName:      r.MaterialName,
		OrderedQuantity:   qd.Decode(r.OrderedQuantity),
		ReceivedQuantity:  qd.Decode(r.ReceivedQuantity),
		RemainingQuantity: qd.Decode(r.RemainingQuantity),
		Status:            purchasing.LineStatus(r.Status),
		UpdatedAt:         r.UpdatedAt,
	}
	return out, qd.Err()
}

// OrderRepo implements purchasing.OrderRepository.
type OrderRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchWriter
}

func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{txManager: txManager, batch: postgres.NewBatchWriter(txManager)}
}

// GetOrder reads the order header. Inside a transaction the row is locked
// FOR UPDATE, which serializes concurrent receipts against one order.
func (r *OrderRepo) GetOrder(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	q := postgres.Builder().Select(orderColumns...).From(ordersTable).
		Where(squirrel.Eq{"id": orderID})
	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE")
	}

	var row orderRow
	if err := r.txManager.Get(ctx, &row, q, "purchase order", orderID.String()); err != nil {
		return nil, err
	}
	o, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]purchasing.Line, error) {
	var rows []lineRow
	q := postgres.Builder().Select(lineColumns...).From(linesTable).
		Where(squirrel.Eq{"purchase_order_id": orderID}).
		OrderBy("id")
	if err := r.txManager.Select(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]purchasing.Line, len(rows))
	for i, row := range rows {
		l, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

func (r *OrderRepo) CreateOrder(ctx context.Context, order purchasing.PurchaseOrder, lines []purchasing.Line) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txManager.Exec(ctx, postgres.Builder().Insert(ordersTable).SetMap(postgres.StructToMap(orderToRow(order)))); err != nil {
			return err
		}
		rows := make([][]any, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, postgres.Values(lineToRow(l)))
		}
		_, err := r.batch.CopyRows(ctx, linesTable, lineColumns, rows)
		return err
	})
}

// UpdateLines writes the receiving fields of each line in one round trip.
func (r *OrderRepo) UpdateLines(ctx context.Context, lines ...purchasing.Line) error {
	if len(lines) == 0 {
		return nil
	}
	queries := make([]postgres.BatchQuery, 0, len(lines))
	for _, l := range lines {
		sql, args, err := updateLineQuery(l).ToSql()
		if err != nil {
			return fmt.Errorf("build line update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		missing, err := r.batch.ExecuteExpectingRows(ctx, queries)
		if err != nil {
			return err
		}
		if missing >= 0 {
			return apperror.NewNotFound("purchase order line", lines[missing].ID.String())
		}
		return nil
	})
}

func updateLineQuery(l purchasing.Line) squirrel.UpdateBuilder {
	return postgres.Builder().Update(linesTable).
		Set("received_quantity", l.ReceivedQuantity.Decimal()).
		Set("remaining_quantity", l.RemainingQuantity.Decimal()).
		Set("status", string(l.Status)).
		Set("updated_at", l.UpdatedAt).
		Where(squirrel.Eq{"id": l.ID})
}

func (r *OrderRepo) UpdateOrder(ctx context.Context, order purchasing.PurchaseOrder) error {
	row := orderToRow(order)
	n, err := r.txManager.Exec(ctx, postgres.Builder().Update(ordersTable).
		Set("status", row.Status).
		Set("total_ordered_quantity", row.TotalOrderedQuantity).
		Set("total_received_quantity", row.TotalReceivedQuantity).
		Set("is_fully_received", row.IsFullyReceived).
		Set("updated_at", row.UpdatedAt).
		Where(squirrel.Eq{"id": order.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("purchase order", order.ID.String())
	}
	return nil
}
