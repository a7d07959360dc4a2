package receiving

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/purchasing"
)

func fixture(ordered ...int64) (purchasing.PurchaseOrder, []purchasing.Line) {
	order := purchasing.PurchaseOrder{ID: id.New(), TenantID: "t1", PONumber: "PO-7", Status: purchasing.OrderApproved}
	var lines []purchasing.Line
	for i, q := range ordered {
		lines = append(lines, purchasing.Line{
			ID:                id.New(),
			OrderID:           order.ID,
			MaterialID:        id.New(),
			MaterialName:      []string{"Cement", "Sand", "Rebar"}[i%3],
			OrderedQuantity:   types.NewQuantity(q),
			RemainingQuantity: types.NewQuantity(q),
			Status:            purchasing.LineOpen,
		})
	}
	order.TotalOrderedQuantity, _ = purchasing.Totals(lines)
	return order, lines
}

func TestBuildPlan_StagesAcceptedAndRejected(t *testing.T) {
	order, lines := fixture(10, 5)
	now := time.Now().UTC()
	loc := id.New()

	plan, err := BuildPlan(order, lines, Request{
		TenantID:        "t1",
		PurchaseOrderID: order.ID,
		LocationID:      loc,
		Items: []RequestItem{
			{POLineID: lines[0].ID, ReceivedQuantity: types.NewQuantity(4)},
			{POLineID: lines[1].ID, ReceivedQuantity: types.NewQuantity(5), QualityStatus: QualityRejected},
		},
	}, "u1", now)
	require.NoError(t, err)

	assert.Equal(t, ReceiptCompleted, plan.Receipt.Status)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, QualityAccepted, plan.Lines[0].QualityStatus)

	require.Len(t, plan.Movements, 1)
	mv := plan.Movements[0]
	assert.Equal(t, ledger.TypeReceipt, mv.Type)
	assert.Equal(t, types.NewQuantity(4), mv.Quantity)
	assert.Equal(t, loc, *mv.ToLocationID)
	assert.Equal(t, plan.Receipt.ID, *mv.ReferenceID)
	assert.Equal(t, "PO PO-7", mv.Notes)
	assert.Equal(t, []CacheIncrement{{MaterialID: lines[0].MaterialID, Delta: types.NewQuantity(4)}}, plan.CacheIncrements)

	// rejected goods still count as received on the line
	require.Len(t, plan.LineUpdates, 2)
	assert.Equal(t, purchasing.LinePartiallyReceived, plan.LineUpdates[0].Status)
	assert.Equal(t, purchasing.LineFullyReceived, plan.LineUpdates[1].Status)
	assert.Equal(t, purchasing.OrderPartiallyReceived, plan.Order.Status)
	assert.True(t, plan.StatusChanged())
}

func TestBuildPlan_AccumulatesItemsOnSameLine(t *testing.T) {
	order, lines := fixture(10)
	req := Request{
		TenantID:   "t1",
		LocationID: id.New(),
		Items: []RequestItem{
			{POLineID: lines[0].ID, ReceivedQuantity: types.NewQuantity(6)},
			{POLineID: lines[0].ID, ReceivedQuantity: types.NewQuantity(5)},
		},
	}

	_, err := BuildPlan(order, lines, req, "u1", time.Now())
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeOverReceipt, appErr.Code)
	assert.Equal(t, "Cement", appErr.Details["material"])

	req.Items[1].ReceivedQuantity = types.NewQuantity(4)
	plan, err := BuildPlan(order, lines, req, "u1", time.Now())
	require.NoError(t, err)
	require.Len(t, plan.LineUpdates, 1)
	assert.Equal(t, types.NewQuantity(10), plan.LineUpdates[0].ReceivedQuantity)
	assert.Equal(t, purchasing.OrderFullyReceived, plan.Order.Status)
	assert.True(t, plan.Order.IsFullyReceived)
}

func TestBuildPlan_Validation(t *testing.T) {
	order, lines := fixture(10)
	loc := id.New()

	tests := []struct {
		name string
		req  Request
	}{
		{"no items", Request{LocationID: loc}},
		{"zero quantity", Request{LocationID: loc, Items: []RequestItem{{POLineID: lines[0].ID}}}},
		{"negative quantity", Request{LocationID: loc, Items: []RequestItem{{POLineID: lines[0].ID, ReceivedQuantity: types.NewQuantity(-1)}}}},
		{"unknown quality", Request{LocationID: loc, Items: []RequestItem{{POLineID: lines[0].ID, ReceivedQuantity: 1, QualityStatus: "meh"}}}},
		{"accepted without location", Request{Items: []RequestItem{{POLineID: lines[0].ID, ReceivedQuantity: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPlan(order, lines, tt.req, "u1", time.Now())
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}

	// pending inspection needs no put-away location
	_, err := BuildPlan(order, lines, Request{Items: []RequestItem{
		{POLineID: lines[0].ID, ReceivedQuantity: 1, QualityStatus: QualityPendingInspection},
	}}, "u1", time.Now())
	assert.NoError(t, err)

	_, err = BuildPlan(order, lines, Request{LocationID: loc, Items: []RequestItem{
		{POLineID: id.New(), ReceivedQuantity: 1},
	}}, "u1", time.Now())
	assert.True(t, apperror.IsNotFound(err))
}
