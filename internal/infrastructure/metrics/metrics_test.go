package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReceipt(t *testing.T) {
	m := New()

	m.RecordReceipt(ResultSuccess)
	m.RecordReceipt(ResultOverReceipt)
	m.RecordReceipt(ResultOverReceipt)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceiptsTotal.WithLabelValues(ResultOverReceipt)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OverReceiptsTotal))
}

func TestRecordIssueAndCache(t *testing.T) {
	m := New()

	m.RecordIssue("short")
	m.RecordIssue("short")
	m.RecordIssue("damaged")
	m.RecordCacheFailures(0)
	m.RecordCacheFailures(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShipmentIssuesTotal.WithLabelValues("short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShipmentIssuesTotal.WithLabelValues("damaged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheUpdateFailures))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/locations/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/locations/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/locations/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stockflow_http_requests_total")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReceipt(ResultSuccess)
		m.RecordIssue("short")
		m.RecordCacheFailures(2)
		m.RecordRelay(1, 1)
	})
}
