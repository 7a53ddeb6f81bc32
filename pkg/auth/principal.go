// Package auth models the authenticated caller.
//
// Transport-level authentication (JWT and service-key verification) happens
// upstream of warden; this package only consumes its result. The gateway
// that fronts warden verifies credentials and forwards the outcome as
// trusted headers, which PrincipalMiddleware turns into a Principal on the
// request context. Every decision and mutation endpoint requires a non-nil
// Principal.
package auth

import (
	"context"
	"net/http"
)

// Principal is an authenticated caller: a verified service credential or
// a customer identity.
type Principal struct {
	// CustomerID identifies the customer, empty for pure service calls.
	CustomerID string `json:"customer_id,omitempty"`

	// IsServiceCall is true when the caller presented a verified service
	// credential. Service calls bypass rate limiting.
	IsServiceCall bool `json:"is_service_call"`

	// IsSuperAdmin is true when the upstream resolver marked the caller
	// as a super-admin. Super-admins bypass rate limiting.
	IsSuperAdmin bool `json:"is_super_admin"`
}

// Identifier returns the rate-limit identifier for the principal:
// the customer id when present, empty otherwise.
func (p *Principal) Identifier() string {
	if p == nil {
		return ""
	}
	return p.CustomerID
}

// contextKey is the type for context keys to prevent collisions.
type contextKey string

// PrincipalKey is the context key holding *Principal.
const PrincipalKey contextKey = "principal"

// Headers the upstream gateway sets after verifying credentials.
const (
	HeaderCustomerID  = "X-Warden-Customer-Id"
	HeaderServiceCall = "X-Warden-Service-Call"
	HeaderSuperAdmin  = "X-Warden-Super-Admin"
)

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// FromContext returns the principal on the context, or nil when the
// request was unauthenticated.
func FromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// FromRequest returns the principal on the request context.
func FromRequest(r *http.Request) *Principal {
	return FromContext(r.Context())
}

// PrincipalMiddleware materializes the upstream resolver's verdict into a
// Principal on the request context. Requests without any identity headers
// pass through with no principal; handlers that require one reject those.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.Header.Get(HeaderCustomerID)
		serviceCall := r.Header.Get(HeaderServiceCall) == "true"
		superAdmin := r.Header.Get(HeaderSuperAdmin) == "true"

		if customerID == "" && !serviceCall {
			next.ServeHTTP(w, r)
			return
		}

		p := &Principal{
			CustomerID:    customerID,
			IsServiceCall: serviceCall,
			IsSuperAdmin:  superAdmin,
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequirePrincipal rejects requests that carry no principal with 401.
// Absence of a principal is a caller-level concern; the core never
// evaluates permissions or quotas for anonymous requests.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromRequest(r) == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
