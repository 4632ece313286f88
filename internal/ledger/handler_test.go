package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *mockStore, *mockQuantityStore, chi.Router) {
	t.Helper()
	store := newMockStore()
	quantities := &mockQuantityStore{}
	svc := NewService(store, quantities, nil, nil, nil)
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return h, store, quantities, r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const moveBody = `{
	"shop": "demo-shop",
	"initiator": {"type": "PURCHASE_ORDER", "name": "PO-1001"},
	"reason": "received",
	"changes": [
		{"locationId": "location/1", "inventoryItemId": "inventory-item/10", "quantity": 12, "from": "incoming", "to": "available"}
	]
}`

func TestHandleMoveApplied(t *testing.T) {
	_, store, _, router := newTestHandler(t)

	rec := postJSON(t, router, "/mutations/move", moveBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "applied", resp["status"])
	assert.Len(t, store.mutations, 1)
}

func TestHandleMoveBadJSON(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	rec := postJSON(t, router, "/mutations/move", `{"shop":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMoveDomainValidation(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	body := strings.Replace(moveBody, `"to": "available"`, `"to": "incoming"`, 1)
	rec := postJSON(t, router, "/mutations/move", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSetStaleCompareConflict(t *testing.T) {
	_, store, quantities, router := newTestHandler(t)
	quantities.setErr = UserErrors{
		{Code: "COMPARE_QUANTITY_STALE", Field: "quantities.0.compareQuantity", Message: "expected 37, found 35"},
	}

	rec := postJSON(t, router, "/mutations/set", `{
		"shop": "demo-shop",
		"initiator": {"type": "CYCLE_COUNT", "name": "CC-7"},
		"reason": "cycle_count_available",
		"name": "available",
		"changes": [
			{"locationId": "location/1", "inventoryItemId": "inventory-item/10", "quantity": 40, "compareQuantity": 37}
		]
	}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	// The rejected attempt is still on record.
	assert.Len(t, store.mutations, 1)
}

func TestHandleAdjustRejectedUnprocessable(t *testing.T) {
	_, _, quantities, router := newTestHandler(t)
	quantities.adjustErr = UserErrors{
		{Code: "INVALID_LOCATION", Field: "changes.0.locationId", Message: "location does not exist"},
	}

	rec := postJSON(t, router, "/mutations/adjust", `{
		"shop": "demo-shop",
		"initiator": {"type": "STOCK_TRANSFER", "name": "ST-55"},
		"reason": "movement_created",
		"name": "available",
		"changes": [
			{"locationId": "location/404", "inventoryItemId": "inventory-item/10", "delta": -5}
		]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleAdjustStoreUnavailableBadGateway(t *testing.T) {
	_, store, quantities, router := newTestHandler(t)
	quantities.adjustErr = ErrStoreUnavailable

	rec := postJSON(t, router, "/mutations/adjust", `{
		"shop": "demo-shop",
		"initiator": {"type": "STOCK_TRANSFER", "name": "ST-55"},
		"reason": "movement_created",
		"name": "incoming",
		"changes": [
			{"locationId": "location/2", "inventoryItemId": "inventory-item/10", "delta": 5}
		]
	}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, store.mutations, 1)
}

func TestHandleGetMutation(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	rec := postJSON(t, router, "/mutations/move", moveBody)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/mutations/1", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	var resp struct {
		Mutation             mutationDTO       `json:"mutation"`
		Items                []mutationItemDTO `json:"items"`
		ReferenceDocumentURI string            `json:"referenceDocumentUri"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, "MOVE", resp.Mutation.Type)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, "workmate://PURCHASE_ORDER/PO-1001?mutationId=1", resp.ReferenceDocumentURI)
}

func TestHandleGetMutationNotFound(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mutations/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListMutationsRequiresFilter(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mutations?shop=demo-shop", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
