package authz

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/observability"
)

// Handlers exposes the decision engine and quota manager over HTTP.
type Handlers struct {
	checker Checker
	manager *Manager
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewHandlers creates authorization handlers. metrics may be nil.
func NewHandlers(checker Checker, manager *Manager, metrics *observability.Metrics, logger *observability.Logger) *Handlers {
	return &Handlers{checker: checker, manager: manager, metrics: metrics, logger: logger}
}

// RegisterRoutes registers decision and mutation routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/check/permission", h.CheckPermission).Methods("POST")
	router.HandleFunc("/check/quota", h.CheckQuota).Methods("POST")
	router.HandleFunc("/customers/{id}", h.GetCustomer).Methods("GET")
	router.HandleFunc("/customers/{id}/roles", h.AssignRoles).Methods("PUT")
	router.HandleFunc("/customers/{id}/permissions", h.GrantPermissions).Methods("PUT")
	router.HandleFunc("/customers/{id}/quotas", h.SetQuotas).Methods("PUT")
	router.HandleFunc("/customers/{id}/quotas/reset", h.ResetQuotas).Methods("POST")
	router.HandleFunc("/customers/{id}/quotas/{resource}/increment", h.IncrementQuota).Methods("POST")
}

type checkPermissionRequest struct {
	CustomerID string `json:"customer_id"`
	Permission string `json:"permission"`
}

// CheckPermission answers whether a customer holds a permission.
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" || req.Permission == "" {
		http.Error(w, "customer_id and permission are required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	decision, err := h.checker.HasPermission(r.Context(), req.CustomerID, req.Permission)
	if err != nil {
		h.logError(r, "permission check failed", err)
		http.Error(w, "permission check failed", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		// Code, not Reason: the free-text reason embeds role lists and
		// would blow up label cardinality.
		h.metrics.PermissionChecksTotal.WithLabelValues(decisionLabel(decision.Allowed), decision.Code).Inc()
		h.metrics.DecisionDuration.WithLabelValues("permission").Observe(time.Since(start).Seconds())
	}
	writeJSON(w, http.StatusOK, decision)
}

type checkQuotaRequest struct {
	CustomerID string `json:"customer_id"`
	Resource   string `json:"resource"`
	Amount     int    `json:"amount"`
}

// CheckQuota answers whether a customer has quota available. Read-only;
// callers that proceed with the operation must increment separately.
func (h *Handlers) CheckQuota(w http.ResponseWriter, r *http.Request) {
	var req checkQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" || req.Resource == "" {
		http.Error(w, "customer_id and resource are required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	decision, err := h.checker.CheckQuota(r.Context(), req.CustomerID, req.Resource, req.Amount)
	if err != nil {
		h.logError(r, "quota check failed", err)
		http.Error(w, "quota check failed", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.QuotaChecksTotal.WithLabelValues(decisionLabel(decision.Allowed)).Inc()
		h.metrics.DecisionDuration.WithLabelValues("quota").Observe(time.Since(start).Seconds())
	}
	writeJSON(w, http.StatusOK, decision)
}

// GetCustomer returns a customer's full authorization record.
func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	record, err := h.manager.customers.Get(r.Context(), customerID)
	if err != nil {
		h.logError(r, "failed to load customer record", err)
		http.Error(w, "failed to load customer record", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type assignRolesRequest struct {
	Roles  []string `json:"roles"`
	Reason string   `json:"reason,omitempty"`
}

// AssignRoles replaces a customer's role set.
func (h *Handlers) AssignRoles(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	var req assignRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Roles == nil {
		http.Error(w, "roles is required", http.StatusBadRequest)
		return
	}

	record, err := h.manager.AssignRoles(r.Context(), customerID, req.Roles, performedBy(r), req.Reason)
	if err != nil {
		h.recordMutation("assign_roles", "error")
		h.logError(r, "failed to assign roles", err)
		http.Error(w, "failed to assign roles", http.StatusInternalServerError)
		return
	}

	h.recordMutation("assign_roles", "ok")
	writeJSON(w, http.StatusOK, record)
}

type grantPermissionsRequest struct {
	Permissions []string `json:"permissions"`
	Reason      string   `json:"reason,omitempty"`
}

// GrantPermissions replaces a customer's explicit permission set.
func (h *Handlers) GrantPermissions(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	var req grantPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Permissions == nil {
		http.Error(w, "permissions is required", http.StatusBadRequest)
		return
	}

	record, err := h.manager.GrantPermissions(r.Context(), customerID, req.Permissions, performedBy(r), req.Reason)
	if err != nil {
		h.recordMutation("grant_permissions", "error")
		h.logError(r, "failed to grant permissions", err)
		http.Error(w, "failed to grant permissions", http.StatusInternalServerError)
		return
	}

	h.recordMutation("grant_permissions", "ok")
	writeJSON(w, http.StatusOK, record)
}

type setQuotasRequest struct {
	Quotas map[string]QuotaSpec `json:"quotas"`
	Reason string               `json:"reason,omitempty"`
}

// SetQuotas overwrites quota limits and periods for the given resources.
func (h *Handlers) SetQuotas(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	var req setQuotasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Quotas) == 0 {
		http.Error(w, "quotas is required", http.StatusBadRequest)
		return
	}
	for resource, spec := range req.Quotas {
		if _, err := catalog.ParsePeriod(string(spec.Period)); err != nil {
			http.Error(w, "invalid period for resource "+resource, http.StatusBadRequest)
			return
		}
	}

	record, err := h.manager.SetQuotas(r.Context(), customerID, req.Quotas, performedBy(r), req.Reason)
	if err != nil {
		h.recordMutation("set_quotas", "error")
		h.logError(r, "failed to set quotas", err)
		http.Error(w, "failed to set quotas", http.StatusInternalServerError)
		return
	}

	h.recordMutation("set_quotas", "ok")
	writeJSON(w, http.StatusOK, record)
}

type resetQuotasRequest struct {
	Resources []string `json:"resources,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// ResetQuotas zeroes usage counters for the listed resources, or all of
// the customer's resources when none are listed.
func (h *Handlers) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	var req resetQuotasRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	record, err := h.manager.ResetQuotas(r.Context(), customerID, req.Resources, performedBy(r), req.Reason)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.recordMutation("reset_quotas", "error")
		h.logError(r, "failed to reset quotas", err)
		http.Error(w, "failed to reset quotas", http.StatusInternalServerError)
		return
	}

	h.recordMutation("reset_quotas", "ok")
	writeJSON(w, http.StatusOK, record)
}

// IncrementQuota consumes quota for a resource. Amount comes from the
// query string and defaults to 1. Responds 200 with a null state when
// the customer or entry is absent; the increment contract treats that as
// a silent success.
func (h *Handlers) IncrementQuota(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	customerID := vars["id"]
	resource := vars["resource"]

	amount := 1
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "amount must be a positive integer", http.StatusBadRequest)
			return
		}
		amount = parsed
	}

	state, err := h.manager.IncrementQuota(r.Context(), customerID, resource, amount)
	if err != nil {
		h.recordMutation("increment_quota", "error")
		h.logError(r, "failed to increment quota", err)
		http.Error(w, "failed to increment quota", http.StatusInternalServerError)
		return
	}

	h.recordMutation("increment_quota", "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"resource":    resource,
		"quota":       state,
	})
}

func (h *Handlers) recordMutation(operation, status string) {
	if h.metrics != nil {
		h.metrics.QuotaMutationsTotal.WithLabelValues(operation, status).Inc()
	}
}

func (h *Handlers) logError(r *http.Request, msg string, err error) {
	if h.logger != nil {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
	}
}

func performedBy(r *http.Request) string {
	p := auth.FromRequest(r)
	if p == nil {
		return ""
	}
	if p.CustomerID != "" {
		return p.CustomerID
	}
	if p.IsServiceCall {
		return "service"
	}
	return ""
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
