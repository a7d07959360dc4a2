// Package delivery_repo stores deliveries, delivery line items and shipment
// issues in PostgreSQL.
package delivery_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	deliveriesTable = "deliveries"
	itemsTable      = "delivery_line_items"
	issuesTable     = "shipment_issues"
)

var _ delivery.Repository = (*Repo)(nil)

type deliveryRow struct {
	ID              id.ID     `db:"id"`
	TenantID        string    `db:"tenant_id"`
	PurchaseOrderID id.ID     `db:"purchase_order_id"`
	Status          string    `db:"status"`
	ConfirmedBy     string    `db:"confirmed_by"`
	Notes           string    `db:"notes"`
	CreatedAt       time.Time `db:"created_at"`
}

type itemRow struct {
	ID                id.ID           `db:"id"`
	DeliveryID        id.ID           `db:"delivery_id"`
	POLineID          id.ID           `db:"po_line_item_id"`
	MaterialID        id.ID           `db:"material_id"`
	MaterialName      string          `db:"material_name"`
	ExpectedQuantity  decimal.Decimal `db:"expected_quantity"`
	ActualQuantity    decimal.Decimal `db:"actual_quantity"`
	Status            string          `db:"status"`
	DamageDescription string          `db:"damage_description"`
}

type issueRow struct {
	ID                 id.ID           `db:"id"`
	TenantID           string          `db:"tenant_id"`
	DeliveryID         id.ID           `db:"delivery_id"`
	DeliveryLineItemID id.ID           `db:"delivery_line_item_id"`
	PurchaseOrderID    id.ID           `db:"purchase_order_id"`
	MaterialID         id.ID           `db:"material_id"`
	MaterialName       string          `db:"material_name"`
	IssueType          string          `db:"issue_type"`
	ExpectedQuantity   decimal.Decimal `db:"expected_quantity"`
	ActualQuantity     decimal.Decimal `db:"actual_quantity"`
	QuantityDifference decimal.Decimal `db:"quantity_difference"`
	Description        string          `db:"description"`
	Status             string          `db:"status"`
	CreatedBy          string          `db:"created_by"`
	CreatedAt          time.Time       `db:"created_at"`
	ResolvedBy         *string         `db:"resolved_by"`
	ResolutionNotes    *string         `db:"resolution_notes"`
	ResolvedAt         *time.Time      `db:"resolved_at"`
}

var (
	deliveryColumns = postgres.Columns[deliveryRow]()
	itemColumns     = postgres.Columns[itemRow]()
	issueColumns    = postgres.Columns[issueRow]()
)

func itemToRow(it delivery.LineItem) itemRow {
	return itemRow{
		ID:                it.ID,
		DeliveryID:        it.DeliveryID,
		POLineID:          it.POLineID,
		MaterialID:        it.MaterialID,
		MaterialName:      it.MaterialName,
		ExpectedQuantity:  it.ExpectedQuantity.Decimal(),
		ActualQuantity:    it.ActualQuantity.Decimal(),
		Status:            string(it.Status),
		DamageDescription: it.DamageDescription,
	}
}

func issueToRow(is delivery.Issue) issueRow {
	return issueRow{
		ID:                 is.ID,
		TenantID:           is.TenantID,
		DeliveryID:         is.DeliveryID,
		DeliveryLineItemID: is.DeliveryLineItemID,
		PurchaseOrderID:    is.PurchaseOrderID,
		MaterialID:         is.MaterialID,
		MaterialName:       is.MaterialName,
		IssueType:          string(is.IssueType),
		ExpectedQuantity:   is.ExpectedQuantity.Decimal(),
		ActualQuantity:     is.ActualQuantity.Decimal(),
		QuantityDifference: is.QuantityDifference.Decimal(),
		Description:        is.Description,
		Status:             string(is.Status),
		CreatedBy:          is.CreatedBy,
		CreatedAt:          is.CreatedAt,
		ResolvedBy:         nullable(is.ResolvedBy),
		ResolutionNotes:    nullable(is.ResolutionNotes),
		ResolvedAt:         is.ResolvedAt,
	}
}

func (r issueRow) toDomain() (delivery.Issue, error) {
	var qd types.QuantityDecoder
	out := delivery.Issue{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		DeliveryID:         r.DeliveryID,
		DeliveryLineItemID: r.DeliveryLineItemID,
		PurchaseOrderID:    r.PurchaseOrderID,
		MaterialID:         r.MaterialID,
		MaterialName:       r.MaterialName,
		IssueType:          delivery.IssueType(r.IssueType),
		ExpectedQuantity:   qd.Decode(r.ExpectedQuantity),
		ActualQuantity:     qd.Decode(r.ActualQuantity),
		QuantityDifference: qd.Decode(r.QuantityDifference),
		Description:        r.Description,
		Status:             delivery.IssueStatus(r.Status),
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt,
		ResolvedBy:         deref(r.ResolvedBy),
		ResolutionNotes:    deref(r.ResolutionNotes),
		ResolvedAt:         r.ResolvedAt,
	}
	return out, qd.Err()
}

type Repo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchWriter
}

func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager, batch: postgres.NewBatchWriter(txManager)}
}

func (r *Repo) CreateDelivery(ctx context.Context, d delivery.Delivery, items []delivery.LineItem) error {
	header := deliveryRow{
		ID:              d.ID,
		TenantID:        d.TenantID,
		PurchaseOrderID: d.PurchaseOrderID,
		Status:          string(d.Status),
		ConfirmedBy:     d.ConfirmedBy,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
	}
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txManager.Exec(ctx, postgres.Builder().Insert(deliveriesTable).SetMap(postgres.StructToMap(header))); err != nil {
			return err
		}
		rows := make([][]any, 0, len(items))
		for _, it := range items {
			rows = append(rows, postgres.Values(itemToRow(it)))
		}
		_, err := r.batch.CopyRows(ctx, itemsTable, itemColumns, rows)
		return err
	})
}

func (r *Repo) CreateIssues(ctx context.Context, issues ...delivery.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, postgres.Values(issueToRow(is)))
	}
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := r.batch.CopyRows(ctx, issuesTable, issueColumns, rows)
		return err
	})
}

// DeliveredLineIDs reads the PO lines that an earlier delivery already
// marked delivered with a positive quantity.
func (r *Repo) DeliveredLineIDs(ctx context.Context, orderID id.ID) (map[id.ID]bool, error) {
	var lineIDs []id.ID
	if err := r.txManager.Select(ctx, &lineIDs, deliveredLinesQuery(orderID)); err != nil {
		return nil, err
	}
	out := make(map[id.ID]bool, len(lineIDs))
	for _, lid := range lineIDs {
		out[lid] = true
	}
	return out, nil
}

func deliveredLinesQuery(orderID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select("DISTINCT i.po_line_item_id").
		From(itemsTable + " i").
		Join(deliveriesTable + " d ON d.id = i.delivery_id").
		Where(squirrel.Eq{"d.purchase_order_id": orderID}).
		Where(squirrel.NotEq{"i.status": ""}).
		Where(squirrel.Gt{"i.actual_quantity": 0})
}

func (r *Repo) GetIssue(ctx context.Context, issueID id.ID) (*delivery.Issue, error) {
	var row issueRow
	q := postgres.Builder().Select(issueColumns...).From(issuesTable).
		Where(squirrel.Eq{"id": issueID})
	if err := r.txManager.Get(ctx, &row, q, "shipment issue", issueID.String()); err != nil {
		return nil, err
	}
	is, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &is, nil
}

// UpdateIssue persists the resolution fields.
func (r *Repo) UpdateIssue(ctx context.Context, issue delivery.Issue) error {
	row := issueToRow(issue)
	n, err := r.txManager.Exec(ctx, postgres.Builder().Update(issuesTable).
		Set("status", row.Status).
		Set("resolved_by", row.ResolvedBy).
		Set("resolution_notes", row.ResolutionNotes).
		Set("resolved_at", row.ResolvedAt).
		Where(squirrel.Eq{"id": issue.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("shipment issue", issue.ID.String())
	}
	return nil
}

func (r *Repo) ListIssues(ctx context.Context, tenantID string, filter delivery.IssueFilter) ([]delivery.Issue, error) {
	var rows []issueRow
	if err := r.txManager.Select(ctx, &rows, listIssuesQuery(tenantID, filter)); err != nil {
		return nil, err
	}
	out := make([]delivery.Issue, len(rows))
	for i, row := range rows {
		is, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = is
	}
	return out, nil
}

func listIssuesQuery(tenantID string, filter delivery.IssueFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(issueColumns...).From(issuesTable).
		Where(squirrel.Eq{"tenant_id": tenantID})
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.PurchaseOrderID != nil {
		q = q.Where(squirrel.Eq{"purchase_order_id": *filter.PurchaseOrderID})
	}
	return q.OrderBy("created_at DESC", "id DESC")
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
