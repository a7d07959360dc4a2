// Package receiving_repo stores receipts and receipt lines in PostgreSQL.
package receiving_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/receiving"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	receiptsTable = "receipts"
	linesTable    = "receipt_lines"
)

var _ receiving.Repository = (*Repo)(nil)

type receiptRow struct {
	ID              id.ID     `db:"id"`
	TenantID        string    `db:"tenant_id"`
	PurchaseOrderID id.ID     `db:"purchase_order_id"`
	LocationID      id.ID     `db:"location_id"`
	Status          string    `db:"status"`
	ReceivedBy      string    `db:"received_by"`
	Notes           string    `db:"notes"`
	CreatedAt       time.Time `db:"created_at"`
}

type lineRow struct {
	ID               id.ID           `db:"id"`
	ReceiptID        id.ID           `db:"receipt_id"`
	POLineID         id.ID           `db:"po_line_id"`
	MaterialID       id.ID           `db:"material_id"`
	MaterialName     string          `db:"material_name"`
	ReceivedQuantity decimal.Decimal `db:"received_quantity"`
	QualityStatus    string          `db:"quality_status"`
	Notes            string          `db:"notes"`
	CreatedAt        time.Time       `db:"created_at"`
}

var (
	receiptColumns = postgres.Columns[receiptRow]()
	lineColumns    = postgres.Columns[lineRow]()
)

func lineToRow(l receiving.ReceiptLine) lineRow {
	return lineRow{
		ID:               l.ID,
		ReceiptID:        l.ReceiptID,
		POLineID:         l.POLineID,
		MaterialID:       l.MaterialID,
		MaterialName:     l.MaterialName,
		ReceivedQuantity: l.ReceivedQuantity.Decimal(),
		QualityStatus:    string(l.QualityStatus),
		Notes:            l.Notes,
		CreatedAt:        l.CreatedAt,
	}
}

func (r lineRow) toDomain() (receiving.ReceiptLine, error) {
	var qd types.QuantityDecoder
	out := receiving.ReceiptLine{
		ID:               r.ID,
		ReceiptID:        r.ReceiptID,
		POLineID:         r.POLineID,
		MaterialID:       r.MaterialID,
		MaterialName:     r.MaterialName,
		ReceivedQuantity: qd.Decode(r.ReceivedQuantity),
		QualityStatus:    receiving.QualityStatus(r.QualityStatus),
		Notes:            r.Notes,
		CreatedAt:        r.CreatedAt,
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

// CreateReceipt inserts the header and bulk-copies its lines.
func (r *Repo) CreateReceipt(ctx context.Context, receipt receiving.Receipt, lines []receiving.ReceiptLine) error {
	header := receiptRow{
		ID:              receipt.ID,
		TenantID:        receipt.TenantID,
		PurchaseOrderID: receipt.PurchaseOrderID,
		LocationID:      receipt.LocationID,
		Status:          string(receipt.Status),
		ReceivedBy:      receipt.ReceivedBy,
		Notes:           receipt.Notes,
		CreatedAt:       receipt.CreatedAt,
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txManager.Exec(ctx, postgres.Builder().Insert(receiptsTable).SetMap(postgres.StructToMap(header))); err != nil {
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

func (r *Repo) GetReceipt(ctx context.Context, receiptID id.ID) (*receiving.Receipt, []receiving.ReceiptLine, error) {
	var header receiptRow
	q := postgres.Builder().Select(receiptColumns...).From(receiptsTable).
		Where(squirrel.Eq{"id": receiptID})
	if err := r.txManager.Get(ctx, &header, q, "receipt", receiptID.String()); err != nil {
		return nil, nil, err
	}

	var rows []lineRow
	lq := postgres.Builder().Select(lineColumns...).From(linesTable).
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("created_at", "id")
	if err := r.txManager.Select(ctx, &rows, lq); err != nil {
		return nil, nil, err
	}

	receipt := &receiving.Receipt{
		ID:              header.ID,
		TenantID:        header.TenantID,
		PurchaseOrderID: header.PurchaseOrderID,
		LocationID:      header.LocationID,
		Status:          receiving.ReceiptStatus(header.Status),
		ReceivedBy:      header.ReceivedBy,
		Notes:           header.Notes,
		CreatedAt:       header.CreatedAt,
	}
	lines := make([]receiving.ReceiptLine, len(rows))
	for i, row := range rows {
		line, err := row.toDomain()
		if err != nil {
			return nil, nil, err
		}
		lines[i] = line
	}
	return receipt, lines, nil
}
