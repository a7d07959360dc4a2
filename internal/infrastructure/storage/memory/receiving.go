package memory

import (
	"context"
	"slices"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/receiving"
)

// ReceiptRepo implements receiving.Repository.
type ReceiptRepo struct {
	s *Store
}

func (r *ReceiptRepo) CreateReceipt(ctx context.Context, receipt receiving.Receipt, lines []receiving.ReceiptLine) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.receipts[receipt.ID]; ok {
			return apperror.NewDuplicate("receipt", "id", receipt.ID.String())
		}
		d.receipts[receipt.ID] = receipt
		d.receiptLines[receipt.ID] = slices.Clone(lines)
		return nil
	})
}

func (r *ReceiptRepo) GetReceipt(ctx context.Context, receiptID id.ID) (*receiving.Receipt, []receiving.ReceiptLine, error) {
	var (
		rec   receiving.Receipt
		lines []receiving.ReceiptLine
		ok    bool
	)
	r.s.read(ctx, func(d *state) {
		rec, ok = d.receipts[receiptID]
		lines = slices.Clone(d.receiptLines[receiptID])
	})
	if !ok {
		return nil, nil, apperror.NewNotFound("receipt", receiptID.String())
	}
	return &rec, lines, nil
}

// Receipts returns every stored receipt of a tenant.
func (r *ReceiptRepo) Receipts(tenantID string) []receiving.Receipt {
	var out []receiving.Receipt
	r.s.read(context.Background(), func(d *state) {
		for _, rec := range d.receipts {
			if rec.TenantID == tenantID {
				out = append(out, rec)
			}
		}
	})
	return out
}
