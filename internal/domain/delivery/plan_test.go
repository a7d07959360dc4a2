package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
)

func orderWith(expected ...int64) (purchasing.PurchaseOrder, []purchasing.Line) {
	order := purchasing.PurchaseOrder{ID: id.New(), TenantID: "t1", PONumber: "PO-9", Status: purchasing.OrderSent}
	var lines []purchasing.Line
	for _, q := range expected {
		lines = append(lines, purchasing.Line{
			ID:              id.New(),
			OrderID:         order.ID,
			MaterialID:      id.New(),
			MaterialName:    "Cement",
			OrderedQuantity: types.NewQuantity(q),
		})
	}
	return order, lines
}

func TestBuildPlan_ClassifiesIssues(t *testing.T) {
	order, lines := orderWith(10, 10, 10)
	form := Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: types.NewQuantity(7), Status: LineShort},
		{POLineID: lines[1].ID, ActualQuantity: types.NewQuantity(14), Status: LineOver},
		{POLineID: lines[2].ID, ActualQuantity: types.NewQuantity(10), Status: LineDamaged, DamageDescription: " crushed pallet "},
	}}

	plan, err := BuildPlan(order, lines, nil, form, "u1", time.Now())
	require.NoError(t, err)

	req := plan.Required
	assert.Equal(t, StatusIssues, req.Delivery.Status)
	require.Len(t, req.Issues, 3)

	short := req.Issues[0]
	assert.Equal(t, IssueShort, short.IssueType)
	assert.Equal(t, types.NewQuantity(-3), short.QuantityDifference)
	assert.Contains(t, short.Description, "Short delivery: Expected 10, received 7")
	assert.Equal(t, IssueOpen, short.Status)

	over := req.Issues[1]
	assert.Equal(t, IssueOver, over.IssueType)
	assert.Equal(t, types.NewQuantity(4), over.QuantityDifference)
	assert.Equal(t, "Over delivery: Expected 10, received 14", over.Description)

	assert.Equal(t, "Damaged goods: crushed pallet", req.Issues[2].Description)
	assert.Equal(t, req.Items[2].ID, req.Issues[2].DeliveryLineItemID)

	assert.Equal(t, purchasing.OrderDelivered, req.Order.Status)
	assert.True(t, plan.StatusChanged())
}

func TestBuildPlan_RejectsBeforeStaging(t *testing.T) {
	order, lines := orderWith(10)

	tests := []struct {
		name string
		item FormItem
	}{
		{"damaged without description", FormItem{ActualQuantity: types.NewQuantity(10), Status: LineDamaged, DamageDescription: "  "}},
		{"short not below expected", FormItem{ActualQuantity: types.NewQuantity(10), Status: LineShort}},
		{"over not above expected", FormItem{ActualQuantity: types.NewQuantity(9), Status: LineOver}},
		{"negative actual", FormItem{ActualQuantity: types.NewQuantity(-1), Status: LineOK}},
		{"unknown status", FormItem{ActualQuantity: types.NewQuantity(1), Status: "lost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.item.POLineID = lines[0].ID
			plan, err := BuildPlan(order, lines, nil, Form{Items: []FormItem{tt.item}}, "u1", time.Now())
			assert.Nil(t, plan)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}

	_, err := BuildPlan(order, lines, nil, Form{}, "u1", time.Now())
	assert.Error(t, err)

	_, err = BuildPlan(order, lines, nil, Form{Items: []FormItem{{POLineID: id.New(), Status: LineOK}}}, "u1", time.Now())
	assert.True(t, apperror.IsNotFound(err))
}

func TestBuildPlan_DerivedStatuses(t *testing.T) {
	order, lines := orderWith(5, 5)

	plan, err := BuildPlan(order, lines, nil, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: types.NewQuantity(5), Status: LineOK},
		{POLineID: lines[1].ID, ActualQuantity: types.NewQuantity(5)},
	}}, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, plan.Required.Delivery.Status)
	assert.Equal(t, purchasing.OrderPartial, plan.Required.Order.Status)
	assert.Empty(t, plan.Required.Issues)

	// an earlier delivery already covered the second line
	plan, err = BuildPlan(order, lines, map[id.ID]bool{lines[1].ID: true}, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: types.NewQuantity(5), Status: LineOK},
	}}, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, plan.Required.Delivery.Status)
	assert.Equal(t, purchasing.OrderDelivered, plan.Required.Order.Status)

	// nothing delivered leaves the order untouched
	plan, err = BuildPlan(order, lines, nil, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: 0, Status: LineOK},
	}}, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, purchasing.OrderSent, plan.Required.Order.Status)
	assert.False(t, plan.StatusChanged())
}

func TestBuildPlan_GroupsCacheAdjustmentsByMaterial(t *testing.T) {
	order, lines := orderWith(10, 10)
	lines[1].MaterialID = lines[0].MaterialID

	plan, err := BuildPlan(order, lines, nil, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: types.NewQuantity(3), Status: LineShort},
		{POLineID: lines[1].ID, ActualQuantity: types.NewQuantity(10), Status: LineOK},
	}}, "u1", time.Now())
	require.NoError(t, err)
	require.Len(t, plan.CacheAdjustments, 1)
	assert.Equal(t, types.NewQuantity(13), plan.CacheAdjustments[0].Delta)
}

func TestLineItem_Delivered(t *testing.T) {
	assert.True(t, LineItem{Status: LineOK, ActualQuantity: types.NewQuantity(1)}.Delivered())
	assert.True(t, LineItem{Status: LineDamaged, ActualQuantity: 1}.Delivered())
	assert.False(t, LineItem{Status: LineShort, ActualQuantity: 0}.Delivered())
	assert.False(t, LineItem{Status: LineOK, ActualQuantity: 0}.Delivered())
	assert.False(t, LineItem{ActualQuantity: types.NewQuantity(5)}.Delivered())
}

func TestBuildPlan_ZeroActualLineDoesNotCountAsDelivered(t *testing.T) {
	order, lines := orderWith(5, 5)

	plan, err := BuildPlan(order, lines, nil, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: types.NewQuantity(5), Status: LineOK},
		{POLineID: lines[1].ID, ActualQuantity: 0, Status: LineShort},
	}}, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, purchasing.OrderPartial, plan.Required.Order.Status)
	require.Len(t, plan.Required.Issues, 1)
	assert.Equal(t, IssueShort, plan.Required.Issues[0].IssueType)

	plan, err = BuildPlan(order, lines, nil, Form{Items: []FormItem{
		{POLineID: lines[0].ID, ActualQuantity: 0, Status: LineShort},
		{POLineID: lines[1].ID, ActualQuantity: 0, Status: LineShort},
	}}, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, purchasing.OrderSent, plan.Required.Order.Status)
	assert.False(t, plan.StatusChanged())
	assert.Len(t, plan.Required.Issues, 2)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusConfirmed, DeriveStatus([]LineItem{{Status: LineOK}}))
	assert.Equal(t, StatusIssues, DeriveStatus([]LineItem{{Status: LineOK}, {Status: LineDamaged}}))
	assert.Equal(t, StatusPending, DeriveStatus([]LineItem{{Status: LineShort}, {}}))
}
