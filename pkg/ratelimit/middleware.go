package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/observability"
)

// unknownIdentifier buckets requests whose client cannot be identified
// at all. They share one window rather than escaping limiting.
const unknownIdentifier = "ip_unknown"

// Middleware enforces one tier's limit on the routes it wraps.
//
// Service calls and super-admins bypass the limiter before any window is
// touched. When the store is unreachable the middleware fails open:
// availability of the decision API wins over strict shaping.
type Middleware struct {
	limiter *Limiter
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewMiddleware creates rate limiting middleware. metrics and logger may
// be nil.
func NewMiddleware(limiter *Limiter, metrics *observability.Metrics, logger *observability.Logger) *Middleware {
	return &Middleware{limiter: limiter, metrics: metrics, logger: logger}
}

// Handler wraps next with the tier's admission check.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromRequest(r)
		if p != nil && (p.IsServiceCall || p.IsSuperAdmin) {
			m.record("bypass")
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.Check(r.Context(), identifier(r, p))
		if err != nil {
			m.record("error")
			if m.logger != nil {
				m.logger.WithError(err).WithField("tier", m.limiter.Tier()).Warn("rate limit check failed, failing open")
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			m.record("deny")
			retryAfter := int(result.RetryAfter.Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
			return
		}

		m.record("allow")
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) record(outcome string) {
	if m.metrics != nil {
		m.metrics.RateLimitChecksTotal.WithLabelValues(m.limiter.Tier(), outcome).Inc()
	}
}

// identifier picks the window key for a request: the customer id when
// the caller is known, the client IP otherwise.
func identifier(r *http.Request, p *auth.Principal) string {
	if id := p.Identifier(); id != "" {
		return "customer:" + id
	}
	if ip := clientIP(r); ip != "" {
		return "ip:" + ip
	}
	return unknownIdentifier
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
