package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/async"
	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/clock"
)

const auditTimeout = 5 * time.Second

// Manager performs authorization mutations: role assignment, permission
// grants, and quota bookkeeping. Every mutation is documented in the
// audit trail; appends run in the background and their failure never
// rolls back the mutation.
type Manager struct {
	customers *Store
	catalog   *catalog.Store
	audit     audit.Logger
	clock     clock.Clock
}

// NewManager creates a quota/role manager.
func NewManager(customers *Store, cat *catalog.Store, auditLogger audit.Logger, clk clock.Clock) *Manager {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{customers: customers, catalog: cat, audit: auditLogger, clock: clk}
}

// NextReset returns the next rollover instant for a period, strictly
// after now: the next UTC midnight, the first of next month at 00:00
// UTC, or January 1 of next year at 00:00 UTC.
func NextReset(period catalog.Period, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case catalog.PeriodMonth:
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	case catalog.PeriodYear:
		return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return midnight.AddDate(0, 0, 1)
	}
}

// loadOrCreate returns the customer's record, creating an empty one when
// none exists. Records are created lazily on the first write.
func (m *Manager) loadOrCreate(ctx context.Context, customerID, source string) (*CustomerAuthorization, error) {
	record, err := m.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		now := m.clock.Now()
		record = &CustomerAuthorization{
			CustomerID:  customerID,
			Roles:       []string{},
			Permissions: []string{},
			Quotas:      map[string]QuotaState{},
			Metadata:    Metadata{CreatedAt: now, UpdatedAt: now, Source: source},
		}
	}
	if record.Quotas == nil {
		record.Quotas = map[string]QuotaState{}
	}
	return record, nil
}

// AssignRoles replaces a customer's role set wholesale. This is
// full-set semantics, not additive; callers wanting to add a single role
// must read-modify-write (the bootstrap runner's super-admin grant does
// exactly that, deliberately).
//
// For each assigned role's default quotas, a quota entry is seeded for
// any resource the customer does not already have. Existing entries are
// never overwritten, preserving admin customization and accumulated
// usage. The derived permission set is recomputed as the union of all
// matched roles' permissions; unknown role names contribute nothing.
func (m *Manager) AssignRoles(ctx context.Context, customerID string, roles []string, by, reason string) (*CustomerAuthorization, error) {
	record, err := m.loadOrCreate(ctx, customerID, "assign_roles")
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	oldRoles := record.Roles
	record.Roles = append([]string{}, roles...)

	permissions := []string{}
	seen := map[string]bool{}
	for _, name := range roles {
		role, err := m.catalog.GetRole(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("assign roles for %s: %w", customerID, err)
		}
		if role == nil {
			continue
		}
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				permissions = append(permissions, p)
			}
		}
		for resource, dq := range role.DefaultQuotas {
			if _, exists := record.Quotas[resource]; exists {
				continue
			}
			record.Quotas[resource] = QuotaState{
				Limit:   dq.Limit,
				Period:  dq.Period,
				Current: 0,
				ResetAt: NextReset(dq.Period, now),
			}
		}
	}
	record.Permissions = permissions
	record.Metadata.UpdatedAt = now
	if reason != "" {
		record.Metadata.Reason = reason
	}

	if err := m.customers.Put(ctx, record); err != nil {
		return nil, err
	}

	m.auditAsync(&audit.Entry{
		CustomerID:  customerID,
		Action:      audit.ActionRoleAdded,
		Details:     map[string]interface{}{"old_roles": oldRoles, "new_roles": roles},
		PerformedBy: by,
		Reason:      reason,
	})
	return record, nil
}

// GrantPermissions replaces the explicit permission set wholesale. The
// role set is untouched; both explicit and role-derived permissions are
// consulted by permission checks.
func (m *Manager) GrantPermissions(ctx context.Context, customerID string, permissions []string, by, reason string) (*CustomerAuthorization, error) {
	record, err := m.loadOrCreate(ctx, customerID, "grant_permissions")
	if err != nil {
		return nil, err
	}

	oldPermissions := record.Permissions
	record.Permissions = append([]string{}, permissions...)
	record.Metadata.UpdatedAt = m.clock.Now()
	if reason != "" {
		record.Metadata.Reason = reason
	}

	if err := m.customers.Put(ctx, record); err != nil {
		return nil, err
	}

	m.auditAsync(&audit.Entry{
		CustomerID:  customerID,
		Action:      audit.ActionPermissionGranted,
		Details:     map[string]interface{}{"old_permissions": oldPermissions, "new_permissions": permissions},
		PerformedBy: by,
		Reason:      reason,
	})
	return record, nil
}

// SetQuotas overwrites limit and period for the given resources,
// preserving any accumulated usage and recomputing each reset instant.
func (m *Manager) SetQuotas(ctx context.Context, customerID string, quotas map[string]QuotaSpec, by, reason string) (*CustomerAuthorization, error) {
	for resource, spec := range quotas {
		if !spec.Period.Valid() {
			return nil, fmt.Errorf("invalid period %q for resource %s", spec.Period, resource)
		}
	}

	record, err := m.loadOrCreate(ctx, customerID, "set_quotas")
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	for resource, spec := range quotas {
		current := 0
		if existing, ok := record.Quotas[resource]; ok {
			current = existing.Current
		}
		record.Quotas[resource] = QuotaState{
			Limit:   spec.Limit,
			Period:  spec.Period,
			Current: current,
			ResetAt: NextReset(spec.Period, now),
		}
	}
	record.Metadata.UpdatedAt = now
	if reason != "" {
		record.Metadata.Reason = reason
	}

	if err := m.customers.Put(ctx, record); err != nil {
		return nil, err
	}

	m.auditAsync(&audit.Entry{
		CustomerID:  customerID,
		Action:      audit.ActionQuotaUpdated,
		Details:     map[string]interface{}{"quotas": quotas},
		PerformedBy: by,
		Reason:      reason,
	})
	return record, nil
}

// ResetQuotas zeroes usage counters and recomputes reset instants. With
// no resources given, every quota entry the customer has is reset.
// Returns ErrNotFound when the customer has no record.
func (m *Manager) ResetQuotas(ctx context.Context, customerID string, resources []string, by, reason string) (*CustomerAuthorization, error) {
	record, err := m.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	if len(resources) == 0 {
		for resource := range record.Quotas {
			resources = append(resources, resource)
		}
	}

	now := m.clock.Now()
	reset := []string{}
	for _, resource := range resources {
		state, ok := record.Quotas[resource]
		if !ok {
			continue
		}
		state.Current = 0
		state.ResetAt = NextReset(state.Period, now)
		record.Quotas[resource] = state
		reset = append(reset, resource)
	}
	record.Metadata.UpdatedAt = now

	if err := m.customers.Put(ctx, record); err != nil {
		return nil, err
	}

	m.auditAsync(&audit.Entry{
		CustomerID:  customerID,
		Action:      audit.ActionQuotaReset,
		Details:     map[string]interface{}{"resources": reset},
		PerformedBy: by,
		Reason:      reason,
	})
	return record, nil
}

// IncrementQuota adds amount to a resource's usage counter with no upper
// clamp: Current may exceed Limit, and enforcement happens at check
// time. When the customer record or the quota entry is absent this is a
// silent no-op that still reports success with a nil state; callers must
// not assume success implies an entry exists.
func (m *Manager) IncrementQuota(ctx context.Context, customerID, resource string, amount int) (*QuotaState, error) {
	if amount <= 0 {
		amount = 1
	}

	record, err := m.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	state, ok := record.Quotas[resource]
	if !ok {
		return nil, nil
	}

	state.Current += amount
	record.Quotas[resource] = state
	record.Metadata.UpdatedAt = m.clock.Now()

	if err := m.customers.Put(ctx, record); err != nil {
		return nil, err
	}
	return &state, nil
}

// auditAsync schedules an audit append decoupled from the mutation that
// produced it. Uses a background context so the append survives the
// triggering request.
func (m *Manager) auditAsync(entry *audit.Entry) {
	m.auditAsyncCtx(context.Background(), entry)
}

func (m *Manager) auditAsyncCtx(ctx context.Context, entry *audit.Entry) {
	logger := m.audit
	async.SafeGo(ctx, auditTimeout, "audit append", func(ctx context.Context) error {
		return logger.Append(ctx, entry)
	})
}
