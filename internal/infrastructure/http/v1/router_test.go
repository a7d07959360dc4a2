package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/app"
	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/auth"
	"stockflow/internal/domain/location"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/metrics"
	"stockflow/internal/infrastructure/storage/memory"
)

type apiFixture struct {
	t        *testing.T
	router   *gin.Engine
	token    string
	services *app.Services

	warehouse location.Location
	material  purchasing.Material
	order     purchasing.OrderView
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := app.Options{IdempotencyTTL: time.Hour}
	repos := app.Memory(memory.NewStore(), opts)
	services := app.NewServices(repos, opts)

	jwt := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	token, _, err := jwt.GenerateAccessToken("dock-1", "t1", "", nil)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Verifier:         jwt,
		Metrics:          metrics.New(),
		Driver:           "memory",
		IdempotencyStore: repos.Idempotency,
		Services:         services,
	})

	ctx := context.Background()
	wh, err := services.Locations.Create(ctx, "t1", "Main Yard", location.TypeWarehouse)
	require.NoError(t, err)
	mat, err := services.Purchasing.CreateMaterial(ctx, purchasing.Material{TenantID: "t1", Name: "Cement"})
	require.NoError(t, err)
	view, err := services.Purchasing.CreateOrder(ctx, purchasing.PurchaseOrder{TenantID: "t1", PONumber: "PO-1"}, []purchasing.Line{
		{MaterialID: mat.ID, MaterialName: mat.Name, OrderedQuantity: types.NewQuantity(10)},
	})
	require.NoError(t, err)

	return &apiFixture{
		t:         t,
		router:    router,
		token:     token,
		services:  services,
		warehouse: *wh,
		material:  *mat,
		order:     *view,
	}
}

func (f *apiFixture) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (f *apiFixture) lineID() string { return f.order.Lines[0].ID.String() }

func (f *apiFixture) receive(qty float64) (*httptest.ResponseRecorder, map[string]any) {
	return f.do(http.MethodPost, "/api/v1/purchase-orders/"+f.order.Order.ID.String()+"/receipts", gin.H{
		"locationId": f.warehouse.ID.String(),
		"items":      []gin.H{{"poLineId": f.lineID(), "receivedQuantity": qty}},
	})
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "memory: healthy", body["checks"].(map[string]any)["storage"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockflow_http_requests_total")
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	f.token = ""

	w, body := f.do(http.MethodGet, "/api/v1/locations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, body["code"])
}

func TestRouter_ReceiptFlow(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.receive(4)
	require.Equal(t, http.StatusCreated, w.Code, body)
	receiptID := body["receiptId"].(string)

	w, body = f.do(http.MethodGet, "/api/v1/receipts/"+receiptID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["lines"], 1)

	w, body = f.do(http.MethodGet, "/api/v1/purchase-orders/"+f.order.Order.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := body["order"].(map[string]any)
	assert.Equal(t, string(purchasing.OrderPartiallyReceived), order["status"])
	assert.Equal(t, 4.0, order["totalReceivedQuantity"])

	w, body = f.do(http.MethodGet, "/api/v1/materials/"+f.material.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4.0, body["currentQuantity"])

	w, body = f.do(http.MethodGet, "/api/v1/inventory/balances", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["truncated"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	bal := items[0].(map[string]any)
	assert.Equal(t, "Main Yard", bal["locationName"])
	assert.Equal(t, 4.0, bal["quantity"])
}

func TestRouter_OverReceiptRejected(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.receive(8)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := f.receive(5)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeOverReceipt, body["code"])

	view, err := f.services.Purchasing.GetOrder(context.Background(), "t1", f.order.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), view.Order.TotalReceivedQuantity)
}

func TestRouter_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(http.MethodPost, "/api/v1/purchase-orders/"+f.order.Order.ID.String()+"/receipts", gin.H{
		"locationId": f.warehouse.ID.String(),
		"items":      []gin.H{{"poLineId": f.lineID(), "receivedQuantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])

	w, _ = f.do(http.MethodGet, "/api/v1/purchase-orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodGet, "/api/v1/purchase-orders/"+id.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DeliveryAndIssues(t *testing.T) {
	f := newAPIFixture(t)
	orderPath := "/api/v1/purchase-orders/" + f.order.Order.ID.String()

	w, body := f.do(http.MethodPost, orderPath+"/deliveries", gin.H{
		"items": []gin.H{{"poLineItemId": f.lineID(), "actualQuantity": 6, "status": "short"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, body)
	assert.Equal(t, 1.0, body["issuesCreated"])
	assert.Equal(t, true, body["inventoryUpdated"])

	w, body = f.do(http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(purchasing.OrderDelivered), body["order"].(map[string]any)["status"])

	w, body = f.do(http.MethodGet, "/api/v1/shipment-issues?status=open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1.0, body["count"])
	issue := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "short", issue["issueType"])

	w, body = f.do(http.MethodPost, "/api/v1/shipment-issues/"+issue["id"].(string)+"/resolve", gin.H{
		"resolutionNotes": "supplier credited",
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "resolved", body["status"])
	assert.Equal(t, "dock-1", body["resolvedBy"])

	w, body = f.do(http.MethodGet, "/api/v1/shipment-issues?status=open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, body["count"])
}

func TestRouter_ManualMovement(t *testing.T) {
	f := newAPIFixture(t)
	w, _ := f.receive(10)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := f.do(http.MethodPost, "/api/v1/inventory/movements", gin.H{
		"materialId":     f.material.ID.String(),
		"movementType":   "usage",
		"quantity":       "2.5",
		"fromLocationId": f.warehouse.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, body)

	w, body = f.do(http.MethodGet, "/api/v1/inventory/movements?type=usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Cement", items[0].(map[string]any)["materialName"])

	w, body = f.do(http.MethodGet, "/api/v1/inventory/balances?location_id="+f.warehouse.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.5, body["items"].([]any)[0].(map[string]any)["quantity"])
}
