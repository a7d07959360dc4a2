package receiving_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/receiving"
)

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "tenant_id", "purchase_order_id", "location_id", "status", "received_by", "notes", "created_at",
	}, receiptColumns)
	assert.Equal(t, "received_quantity", lineColumns[5])
}

func TestLineRowRoundTrip(t *testing.T) {
	l := receiving.ReceiptLine{
		ID:               id.New(),
		ReceiptID:        id.New(),
		POLineID:         id.New(),
		MaterialID:       id.New(),
		MaterialName:     "Cement",
		ReceivedQuantity: types.NewQuantityFromFloat64(2.75),
		QualityStatus:    receiving.QualityPendingInspection,
		Notes:            "torn bag",
		CreatedAt:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	row := lineToRow(l)
	assert.Equal(t, "2.75", row.ReceivedQuantity.String())
	got, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, l, got)
}
