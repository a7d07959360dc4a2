package purchasing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/storage/memory"
)

func TestService_CreateOrderNumbering(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := purchasing.NewService(store.Orders(), store.Materials(), store.TxManager(), memory.NewSequences())

	m, err := svc.CreateMaterial(ctx, purchasing.Material{TenantID: "t1", Name: "Cement"})
	require.NoError(t, err)
	lines := func() []purchasing.Line {
		return []purchasing.Line{{MaterialID: m.ID, MaterialName: m.Name, OrderedQuantity: types.NewQuantity(10)}}
	}

	year := time.Now().UTC().Year()
	first, err := svc.CreateOrder(ctx, purchasing.PurchaseOrder{TenantID: "t1"}, lines())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PO-%d-00001", year), first.Order.PONumber)

	second, err := svc.CreateOrder(ctx, purchasing.PurchaseOrder{TenantID: "t1"}, lines())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PO-%d-00002", year), second.Order.PONumber)

	explicit, err := svc.CreateOrder(ctx, purchasing.PurchaseOrder{TenantID: "t1", PONumber: "PO-MANUAL"}, lines())
	require.NoError(t, err)
	assert.Equal(t, "PO-MANUAL", explicit.Order.PONumber)

	got, err := svc.GetOrder(ctx, "t1", first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Order.PONumber, got.Order.PONumber)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, types.NewQuantity(10), got.Lines[0].RemainingQuantity)
}

func TestService_CreateOrderWithoutNumbers(t *testing.T) {
	store := memory.NewStore()
	svc := purchasing.NewService(store.Orders(), store.Materials(), store.TxManager(), nil)

	_, err := svc.CreateOrder(context.Background(), purchasing.PurchaseOrder{TenantID: "t1"}, []purchasing.Line{
		{MaterialID: id.New(), OrderedQuantity: types.NewQuantity(1)},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "poNumber", appErr.Details["field"])
}
