package delivery_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/delivery"
)

func TestDeliveredLinesQuery(t *testing.T) {
	orderID := id.New()
	sql, args, err := deliveredLinesQuery(orderID).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT DISTINCT i.po_line_item_id FROM delivery_line_items i JOIN deliveries d ON d.id = i.delivery_id "+
			"WHERE d.purchase_order_id = $1 AND i.status <> $2 AND i.actual_quantity > $3",
		sql)
	assert.Equal(t, []any{orderID.String(), "", 0}, args)
}

func TestListIssuesQuery(t *testing.T) {
	orderID := id.New()

	sql, args, err := listIssuesQuery("t1", delivery.IssueFilter{}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC")
	assert.Equal(t, []any{"t1"}, args)

	sql, args, err = listIssuesQuery("t1", delivery.IssueFilter{
		Status:          delivery.IssueOpen,
		PurchaseOrderID: &orderID,
	}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 AND status = $2 AND purchase_order_id = $3")
	assert.Equal(t, []any{"t1", "open", orderID.String()}, args)
}

func TestIssueRowRoundTrip(t *testing.T) {
	resolvedAt := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	open := delivery.Issue{
		ID:                 id.New(),
		TenantID:           "t1",
		DeliveryID:         id.New(),
		DeliveryLineItemID: id.New(),
		PurchaseOrderID:    id.New(),
		MaterialID:         id.New(),
		MaterialName:       "Rebar",
		IssueType:          delivery.IssueShort,
		ExpectedQuantity:   types.NewQuantity(10),
		ActualQuantity:     types.NewQuantity(7),
		QuantityDifference: types.NewQuantity(-3),
		Description:        "Short delivery: Expected 10, received 7",
		Status:             delivery.IssueOpen,
		CreatedBy:          "u1",
		CreatedAt:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	row := issueToRow(open)
	assert.Nil(t, row.ResolvedBy)
	assert.Equal(t, "-3", row.QuantityDifference.String())
	got, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, open, got)

	resolved := open
	resolved.Status = delivery.IssueResolved
	resolved.ResolvedBy = "u2"
	resolved.ResolutionNotes = "credit note issued"
	resolved.ResolvedAt = &resolvedAt
	got, err = issueToRow(resolved).toDomain()
	require.NoError(t, err)
	assert.Equal(t, resolved, got)
}
