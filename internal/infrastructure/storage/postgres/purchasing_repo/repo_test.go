package purchasing_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
)

func TestAdjustQuery(t *testing.T) {
	materialID := id.New()

	sql, args, err := adjustQuery("t1", materialID, types.NewQuantity(-4), true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SET current_quantity = GREATEST(0, current_quantity + $1), updated_at = NOW()")
	assert.Contains(t, sql, "WHERE id = $2 AND tenant_id = $3")
	assert.Contains(t, sql, "RETURNING id, tenant_id, name, current_quantity, updated_at")
	require.Len(t, args, 3)
	assert.Equal(t, "-4", args[0].(interface{ String() string }).String())

	sql, _, err = adjustQuery("t1", materialID, types.NewQuantity(4), false).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "SET current_quantity = current_quantity + $1")
	assert.NotContains(t, sql, "GREATEST")
}

func TestUpdateLineQuery(t *testing.T) {
	l := purchasing.Line{
		ID:                id.New(),
		ReceivedQuantity:  types.NewQuantity(60),
		RemainingQuantity: types.NewQuantity(40),
		Status:            purchasing.LinePartiallyReceived,
		UpdatedAt:         time.Now().UTC(),
	}
	sql, args, err := updateLineQuery(l).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE purchase_order_lines SET received_quantity = $1, remaining_quantity = $2, status = $3, updated_at = $4 WHERE id = $5",
		sql)
	assert.Equal(t, "partially_received", args[2])
}

func TestLineRowRoundTrip(t *testing.T) {
	l := purchasing.Line{
		ID:                id.New(),
		OrderID:           id.New(),
		MaterialID:        id.New(),
		MaterialName:      "Sand",
		OrderedQuantity:   types.NewQuantity(100),
		ReceivedQuantity:  types.NewQuantity(25),
		RemainingQuantity: types.NewQuantity(75),
		Status:            purchasing.LinePartiallyReceived,
	}
	got, err := lineToRow(l).toDomain()
	require.NoError(t, err)
	assert.Equal(t, l, got)
}
