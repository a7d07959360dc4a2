package purchasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func TestLine_Receive(t *testing.T) {
	line := Line{
		ID:                id.New(),
		MaterialName:      "Cement",
		OrderedQuantity:   qty(100),
		RemainingQuantity: qty(100),
		Status:            LineOpen,
	}

	line, err := line.Receive(qty(60))
	require.NoError(t, err)
	assert.Equal(t, qty(60), line.ReceivedQuantity)
	assert.Equal(t, qty(40), line.RemainingQuantity)
	assert.Equal(t, LinePartiallyReceived, line.Status)

	line, err = line.Receive(qty(40))
	require.NoError(t, err)
	assert.Equal(t, qty(0), line.RemainingQuantity)
	assert.Equal(t, LineFullyReceived, line.Status)

	unchanged, err := line.Receive(qty(1))
	require.Error(t, err)
	assert.True(t, apperror.IsOverReceipt(err))
	assert.Equal(t, line, unchanged)

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Cement", appErr.Details["material"])
}

func TestDeriveReceivingStatus(t *testing.T) {
	tests := []struct {
		name     string
		ordered  types.Quantity
		received types.Quantity
		want     OrderStatus
	}{
		{"nothing received", qty(100), 0, OrderApproved},
		{"partial", qty(100), qty(60), OrderPartiallyReceived},
		{"exact", qty(100), qty(100), OrderFullyReceived},
		{"over total", qty(100), qty(120), OrderFullyReceived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveReceivingStatus(tt.ordered, tt.received))
		})
	}
}

func TestPurchaseOrder_ApplyReceiving(t *testing.T) {
	lines := []Line{
		{OrderedQuantity: qty(10), ReceivedQuantity: qty(10)},
		{OrderedQuantity: qty(5), ReceivedQuantity: qty(2)},
	}
	var po PurchaseOrder
	po.ApplyReceiving(lines)
	assert.Equal(t, qty(15), po.TotalOrderedQuantity)
	assert.Equal(t, qty(12), po.TotalReceivedQuantity)
	assert.Equal(t, OrderPartiallyReceived, po.Status)
	assert.False(t, po.IsFullyReceived)

	lines[1].ReceivedQuantity = qty(5)
	po.ApplyReceiving(lines)
	assert.Equal(t, OrderFullyReceived, po.Status)
	assert.True(t, po.IsFullyReceived)
}

func TestDeriveDeliveryStatus(t *testing.T) {
	a, b := Line{ID: id.New()}, Line{ID: id.New()}
	lines := []Line{a, b}

	assert.Equal(t, OrderSent, DeriveDeliveryStatus(OrderSent, lines, map[id.ID]bool{}))
	assert.Equal(t, OrderPartial, DeriveDeliveryStatus(OrderSent, lines, map[id.ID]bool{a.ID: true}))
	assert.Equal(t, OrderDelivered, DeriveDeliveryStatus(OrderSent, lines, map[id.ID]bool{a.ID: true, b.ID: true}))
	assert.Equal(t, OrderSent, DeriveDeliveryStatus(OrderSent, nil, nil))
}
