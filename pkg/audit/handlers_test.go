package audit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
)

func newTestRouter(t *testing.T) (*mux.Router, *KVLogger) {
	t.Helper()
	store, _ := kv.NewTestStore(t)
	logger := NewKVLogger(store, clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))

	router := mux.NewRouter()
	NewHandlers(logger).RegisterRoutes(router)
	return router, logger
}

func TestGetHistory(t *testing.T) {
	router, logger := newTestRouter(t)

	if err := logger.Append(httptest.NewRequest("GET", "/", nil).Context(), &Entry{
		CustomerID: "cust_1",
		Action:     ActionRoleAdded,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/customers/cust_1/audit", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		CustomerID string   `json:"customer_id"`
		Entries    []*Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(body.Entries))
	}
}

func TestGetHistory_EmptyCustomer(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/customers/cust_nobody/audit", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []*Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Entries == nil || len(body.Entries) != 0 {
		t.Errorf("entries = %v, want empty array", body.Entries)
	}
}

func TestGetHistory_InvalidLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/customers/cust_1/audit?limit=zero", nil))

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
