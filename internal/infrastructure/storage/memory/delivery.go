package memory

import (
	"bytes"
	"context"
	"slices"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/delivery"
)

func compareIDs(a, b id.ID) int { return bytes.Compare(a[:], b[:]) }

// DeliveryRepo implements delivery.Repository.
type DeliveryRepo struct {
	s *Store
}

func (r *DeliveryRepo) CreateDelivery(ctx context.Context, dl delivery.Delivery, items []delivery.LineItem) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.deliveries[dl.ID]; ok {
			return apperror.NewDuplicate("delivery", "id", dl.ID.String())
		}
		d.deliveries[dl.ID] = dl
		d.lineItems[dl.ID] = slices.Clone(items)
		return nil
	})
}

func (r *DeliveryRepo) CreateIssues(ctx context.Context, issues ...delivery.Issue) error {
	return r.s.write(ctx, func(d *state) error {
		for _, is := range issues {
			if _, ok := d.deliveries[is.DeliveryID]; !ok {
				return apperror.NewNotFound("delivery", is.DeliveryID.String())
			}
		}
		for _, is := range issues {
			d.issues[is.ID] = is
		}
		return nil
	})
}

func (r *DeliveryRepo) DeliveredLineIDs(ctx context.Context, orderID id.ID) (map[id.ID]bool, error) {
	out := make(map[id.ID]bool)
	r.s.read(ctx, func(d *state) {
		for did, dl := range d.deliveries {
			if dl.PurchaseOrderID != orderID {
				continue
			}
			for _, it := range d.lineItems[did] {
				if it.Delivered() {
					out[it.POLineID] = true
				}
			}
		}
	})
	return out, nil
}

func (r *DeliveryRepo) GetIssue(ctx context.Context, issueID id.ID) (*delivery.Issue, error) {
	var (
		is delivery.Issue
		ok bool
	)
	r.s.read(ctx, func(d *state) { is, ok = d.issues[issueID] })
	if !ok {
		return nil, apperror.NewNotFound("shipment issue", issueID.String())
	}
	return &is, nil
}

func (r *DeliveryRepo) UpdateIssue(ctx context.Context, issue delivery.Issue) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.issues[issue.ID]; !ok {
			return apperror.NewNotFound("shipment issue", issue.ID.String())
		}
		d.issues[issue.ID] = issue
		return nil
	})
}

func (r *DeliveryRepo) ListIssues(ctx context.Context, tenantID string, filter delivery.IssueFilter) ([]delivery.Issue, error) {
	out := []delivery.Issue{}
	r.s.read(ctx, func(d *state) {
		for _, is := range d.issues {
			if is.TenantID != tenantID {
				continue
			}
			if filter.Status != "" && is.Status != filter.Status {
				continue
			}
			if filter.PurchaseOrderID != nil && is.PurchaseOrderID != *filter.PurchaseOrderID {
				continue
			}
			out = append(out, is)
		}
	})
	slices.SortFunc(out, func(a, b delivery.Issue) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(b.ID, a.ID)
	})
	return out, nil
}

// Deliveries returns the deliveries recorded for an order with their items.
func (r *DeliveryRepo) Deliveries(orderID id.ID) map[id.ID][]delivery.LineItem {
	out := make(map[id.ID][]delivery.LineItem)
	r.s.read(context.Background(), func(d *state) {
		for did, dl := range d.deliveries {
			if dl.PurchaseOrderID == orderID {
				out[did] = slices.Clone(d.lineItems[did])
			}
		}
	})
	return out
}
