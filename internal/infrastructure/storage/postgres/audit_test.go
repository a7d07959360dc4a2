package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_CompressesLargePayloads(t *testing.T) {
	s, err := NewAuditStore(nil, 64)
	require.NoError(t, err)

	small := AuditEntry{}
	s.encode(&small, []byte(`{"a":1}`))
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.JSONEq(t, `{"a":1}`, string(small.Payload))

	big := []byte(`{"notes":"` + strings.Repeat("x", 1000) + `"}`)
	entry := AuditEntry{}
	s.encode(&entry, big)
	assert.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Payload)
	assert.Less(t, len(entry.PayloadCompressed), len(big))

	require.NoError(t, s.decode(&entry))
	assert.Equal(t, big, []byte(entry.Payload))
}
