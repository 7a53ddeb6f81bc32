package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, handler http.Handler, p *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("GET", "/check/permission", nil)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareEnforcesLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxRequests: 2, Window: time.Minute})
	handler := NewMiddleware(limiter, nil, nil).Handler(okHandler())
	p := &auth.Principal{CustomerID: "cust_1"}

	for i := 0; i < 2; i++ {
		rec := serve(t, handler, p)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d returned %d, want 200", i+1, rec.Code)
		}
	}

	rec := serve(t, handler, p)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request over limit returned %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddlewareServiceCallBypass(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute})
	handler := NewMiddleware(limiter, nil, nil).Handler(okHandler())
	p := &auth.Principal{IsServiceCall: true}

	for i := 0; i < 10; i++ {
		rec := serve(t, handler, p)
		if rec.Code != http.StatusOK {
			t.Fatalf("service call %d returned %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMiddlewareSuperAdminBypass(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute})
	handler := NewMiddleware(limiter, nil, nil).Handler(okHandler())
	p := &auth.Principal{CustomerID: "admin_1", IsSuperAdmin: true}

	for i := 0; i < 10; i++ {
		rec := serve(t, handler, p)
		if rec.Code != http.StatusOK {
			t.Fatalf("super-admin call %d returned %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMiddlewareIdentifierPrecedence(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute})
	handler := NewMiddleware(limiter, nil, nil).Handler(okHandler())

	// Exhaust cust_1's window; an anonymous request from some IP still
	// gets its own window.
	if rec := serve(t, handler, &auth.Principal{CustomerID: "cust_1"}); rec.Code != http.StatusOK {
		t.Fatalf("first request returned %d", rec.Code)
	}
	if rec := serve(t, handler, &auth.Principal{CustomerID: "cust_1"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request returned %d, want 429", rec.Code)
	}

	req := httptest.NewRequest("GET", "/check/permission", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous request from distinct IP returned %d, want 200", rec.Code)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (failingStore) Put(ctx context.Context, key string, value []byte, opts ...kv.PutOption) error {
	return errors.New("backend down")
}

func (failingStore) Delete(ctx context.Context, key string) error { return errors.New("backend down") }

func (failingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, errors.New("backend down")
}

func (failingStore) Close() error { return nil }

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{}, clock.System{}, "test", Config{MaxRequests: 1, Window: time.Minute})
	handler := NewMiddleware(limiter, nil, nil).Handler(okHandler())

	rec := serve(t, handler, &auth.Principal{CustomerID: "cust_1"})
	if rec.Code != http.StatusOK {
		t.Errorf("storage failure returned %d, want 200 (fail open)", rec.Code)
	}
}
