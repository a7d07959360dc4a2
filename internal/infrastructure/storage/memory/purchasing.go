package memory

import (
	"context"
	"slices"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
)

// OrderRepo implements purchasing.OrderRepository.
type OrderRepo struct {
	s *Store
}

func (r *OrderRepo) GetOrder(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	var (
		o  purchasing.PurchaseOrder
		ok bool
	)
	r.s.read(ctx, func(d *state) { o, ok = d.orders[orderID] })
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID.String())
	}
	return &o, nil
}

func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]purchasing.Line, error) {
	var out []purchasing.Line
	r.s.read(ctx, func(d *state) {
		for _, l := range d.lines {
			if l.OrderID == orderID {
				out = append(out, l)
			}
		}
	})
	slices.SortFunc(out, func(a, b purchasing.Line) int { return compareIDs(a.ID, b.ID) })
	return out, nil
}

func (r *OrderRepo) CreateOrder(ctx context.Context, order purchasing.PurchaseOrder, lines []purchasing.Line) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.orders[order.ID]; ok {
			return apperror.NewDuplicate("purchase order", "id", order.ID.String())
		}
		for _, o := range d.orders {
			if o.TenantID == order.TenantID && o.PONumber == order.PONumber {
				return apperror.NewDuplicate("purchase order", "po number", order.PONumber)
			}
		}
		d.orders[order.ID] = order
		for _, l := range lines {
			d.lines[l.ID] = l
		}
		return nil
	})
}

func (r *OrderRepo) UpdateLines(ctx context.Context, lines ...purchasing.Line) error {
	return r.s.write(ctx, func(d *state) error {
		for _, l := range lines {
			if _, ok := d.lines[l.ID]; !ok {
				return apperror.NewNotFound("purchase order line", l.ID.String())
			}
		}
		for _, l := range lines {
			d.lines[l.ID] = l
		}
		return nil
	})
}

func (r *OrderRepo) UpdateOrder(ctx context.Context, order purchasing.PurchaseOrder) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.orders[order.ID]; !ok {
			return apperror.NewNotFound("purchase order", order.ID.String())
		}
		d.orders[order.ID] = order
		return nil
	})
}

// MaterialRepo implements purchasing.MaterialRepository.
type MaterialRepo struct {
	s *Store
}

func (r *MaterialRepo) GetMaterial(ctx context.Context, tenantID string, materialID id.ID) (*purchasing.Material, error) {
	var (
		m  purchasing.Material
		ok bool
	)
	r.s.read(ctx, func(d *state) { m, ok = d.materials[materialID] })
	if !ok || m.TenantID != tenantID {
		return nil, apperror.NewNotFound("material", materialID.String())
	}
	return &m, nil
}

func (r *MaterialRepo) CreateMaterial(ctx context.Context, m purchasing.Material) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.materials[m.ID]; ok {
			return apperror.NewDuplicate("material", "id", m.ID.String())
		}
		d.materials[m.ID] = m
		return nil
	})
}

func (r *MaterialRepo) AdjustQuantity(
	ctx context.Context,
	tenantID string,
	materialID id.ID,
	delta types.Quantity,
	clampZero bool,
) (types.Quantity, error) {
	if hook := r.s.currentHooks().AdjustQuantity; hook != nil {
		if err := hook(materialID); err != nil {
			return 0, err
		}
	}

	var result types.Quantity
	err := r.s.write(ctx, func(d *state) error {
		m, ok := d.materials[materialID]
		if !ok || m.TenantID != tenantID {
			return apperror.NewNotFound("material", materialID.String())
		}
		m.CurrentQuantity += delta
		if clampZero {
			m.CurrentQuantity = m.CurrentQuantity.ClampZero()
		}
		m.UpdatedAt = time.Now().UTC()
		d.materials[materialID] = m
		result = m.CurrentQuantity
		return nil
	})
	return result, err
}
