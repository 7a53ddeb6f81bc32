package authz

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/clock"
)

// Checker answers authorization and quota availability questions.
type Checker interface {
	// HasPermission checks whether a customer holds a permission.
	HasPermission(ctx context.Context, customerID, permission string) (*Decision, error)

	// CheckQuota checks whether a customer has quota available for a
	// resource. Read-only; it does not consume.
	CheckQuota(ctx context.Context, customerID, resource string, amount int) (*QuotaDecision, error)
}

// Engine implements Checker against the customer store and catalog.
// All its operations are read-only and safe under concurrent calls.
type Engine struct {
	customers *Store
	catalog   *catalog.Store
	clock     clock.Clock
}

// NewEngine creates a decision engine.
func NewEngine(customers *Store, cat *catalog.Store, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{customers: customers, catalog: cat, clock: clk}
}

// HasPermission checks whether a customer holds a permission.
//
// The ban check precedes everything, including wildcard and explicit
// grants: a banned customer is denied every permission. Role names that
// resolve to no catalog definition are skipped silently; stale references
// must not poison the decision. Storage errors surface as errors, never
// as a cached denial.
func (e *Engine) HasPermission(ctx context.Context, customerID, permission string) (*Decision, error) {
	record, err := e.customers.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("permission check for %s: %w", customerID, err)
	}

	now := e.clock.Now()

	if record == nil {
		return &Decision{Allowed: false, Code: ReasonNoRecord, Reason: "no authorization data found", CheckedAt: now}, nil
	}

	if record.HasRole(catalog.RoleBanned) {
		return &Decision{Allowed: false, Code: ReasonBanned, Reason: "user is banned", CheckedAt: now}, nil
	}

	for _, p := range record.Permissions {
		if p == permission || p == catalog.PermissionWildcard {
			return &Decision{Allowed: true, Code: ReasonExplicit, Reason: "granted by explicit permission", CheckedAt: now}, nil
		}
	}

	var matchedRoles []string
	for _, name := range record.Roles {
		role, err := e.catalog.GetRole(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("permission check for %s: %w", customerID, err)
		}
		if role == nil {
			continue
		}
		for _, p := range role.Permissions {
			if p == permission || p == catalog.PermissionWildcard {
				matchedRoles = append(matchedRoles, name)
				break
			}
		}
	}

	if len(matchedRoles) > 0 {
		return &Decision{
			Allowed:      true,
			Code:         ReasonRole,
			Reason:       fmt.Sprintf("granted by roles: %v", matchedRoles),
			MatchedRoles: matchedRoles,
			CheckedAt:    now,
		}, nil
	}

	return &Decision{Allowed: false, Code: ReasonNotGranted, Reason: "permission not granted", CheckedAt: now}, nil
}

// CheckQuota checks quota availability for a resource.
//
// The two absence cases deliberately default in opposite directions and
// must not be unified: a customer with no record at all gets a
// capped-at-zero denial, while an existing customer with no entry for
// the resource is uncapped and allowed.
func (e *Engine) CheckQuota(ctx context.Context, customerID, resource string, amount int) (*QuotaDecision, error) {
	if amount <= 0 {
		amount = 1
	}

	record, err := e.customers.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("quota check for %s: %w", customerID, err)
	}

	now := e.clock.Now()

	if record == nil {
		return &QuotaDecision{
			Allowed:   false,
			Quota:     QuotaStatus{Limit: 0, Current: 0, Remaining: 0},
			CheckedAt: now,
		}, nil
	}

	state, ok := record.Quotas[resource]
	if !ok {
		return &QuotaDecision{
			Allowed:   true,
			Quota:     QuotaStatus{Limit: QuotaUnlimited, Current: 0, Remaining: QuotaUnlimited},
			CheckedAt: now,
		}, nil
	}

	if state.Limit == QuotaUnlimited {
		return &QuotaDecision{
			Allowed:   true,
			Quota:     QuotaStatus{Limit: QuotaUnlimited, Current: state.Current, Remaining: QuotaUnlimited},
			CheckedAt: now,
		}, nil
	}

	remaining := state.Limit - state.Current
	return &QuotaDecision{
		Allowed:   remaining >= amount,
		Quota:     QuotaStatus{Limit: state.Limit, Current: state.Current, Remaining: remaining},
		CheckedAt: now,
	}, nil
}
