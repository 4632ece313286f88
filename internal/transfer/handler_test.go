package transfer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmate-pos/workmate-sub003/internal/ledger"
)

func newTestRouter(mock *mockLedger) chi.Router {
	h := NewHandler(nil, NewService(mock, nil))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func postSync(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const syncBody = `{
	"shop": "demo-shop",
	"initiator": {"type": "STOCK_TRANSFER", "name": "ST-55"},
	"reason": "movement_created",
	"previous": {"fromLocationId": "location/1", "toLocationId": "location/2", "lineItems": []},
	"current": {
		"fromLocationId": "location/1",
		"toLocationId": "location/2",
		"lineItems": [
			{"uuid": "2f1b6f74-9f6e-4c43-9a54-0d2f6f1f9a10", "inventoryItemId": "inventory-item/10", "status": "IN_TRANSIT", "quantity": 5}
		]
	}
}`

func TestHandleSyncApplied(t *testing.T) {
	mock := &mockLedger{}
	router := newTestRouter(mock)

	rec := postSync(t, router, syncBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mock.requests, 2)
}

func TestHandleSyncRejectsBadUUID(t *testing.T) {
	mock := &mockLedger{}
	router := newTestRouter(mock)

	rec := postSync(t, router, strings.Replace(syncBody, "2f1b6f74-9f6e-4c43-9a54-0d2f6f1f9a10", "not-a-uuid", 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.requests)
}

func TestHandleSyncRejectsUnknownStatus(t *testing.T) {
	mock := &mockLedger{}
	router := newTestRouter(mock)

	rec := postSync(t, router, strings.Replace(syncBody, "IN_TRANSIT", "TELEPORTED", 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.requests)
}

func TestHandleSyncPartialFailureBadGateway(t *testing.T) {
	mock := &mockLedger{
		errByBucket: map[ledger.Bucket]error{
			ledger.BucketIncoming: ledger.ErrStoreUnavailable,
		},
	}
	router := newTestRouter(mock)

	rec := postSync(t, router, syncBody)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// Both legs were dispatched; the applied one is not rolled back.
	assert.Len(t, mock.requests, 2)
}
