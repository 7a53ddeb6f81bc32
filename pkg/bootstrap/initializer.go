// Package bootstrap brings a fresh deployment to a usable state: it
// seeds the built-in role and permission catalog and grants the
// super-admin role to the configured operators.
//
// Running it is idempotent. Seeding is guarded by a persisted flag, so
// only the first instance against a fresh backend pays for it; the
// super-admin grant is additive and skips customers that already hold
// the role. Failures are logged and swallowed: a deployment that cannot
// seed still serves decisions against whatever state exists.
package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wardenhq/warden/pkg/async"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/observability"
)

const runTimeout = 30 * time.Second

// Initializer seeds the catalog and grants operator access.
type Initializer struct {
	catalog     *catalog.Store
	customers   *authz.Store
	manager     *authz.Manager
	directory   Directory
	adminEmails []string
	logger      *observability.Logger
	metrics     *observability.Metrics

	attempted atomic.Bool
	group     singleflight.Group
}

// NewInitializer creates a bootstrap initializer. metrics may be nil.
func NewInitializer(cat *catalog.Store, customers *authz.Store, manager *authz.Manager, directory Directory, adminEmails []string, logger *observability.Logger, metrics *observability.Metrics) *Initializer {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Initializer{
		catalog:     cat,
		customers:   customers,
		manager:     manager,
		directory:   directory,
		adminEmails: adminEmails,
		logger:      logger,
		metrics:     metrics,
	}
}

// Schedule runs bootstrap in the background so startup never blocks on
// it. Safe to call more than once; later calls are no-ops.
func (i *Initializer) Schedule() {
	if !i.attempted.CompareAndSwap(false, true) {
		return
	}
	async.SafeGo(context.Background(), runTimeout, "bootstrap", i.Run)
}

// Run executes bootstrap synchronously. Concurrent callers within the
// process collapse into a single execution; across processes the
// persisted seeded flag keeps the work idempotent.
func (i *Initializer) Run(ctx context.Context) error {
	_, err, _ := i.group.Do("bootstrap", func() (interface{}, error) {
		i.seed(ctx)
		i.grantSuperAdmins(ctx)
		return nil, nil
	})
	return err
}

// seed writes the built-in catalog unless a previous run already did.
// Definitions are overwritten by name, so code stays authoritative for
// the builtins on the run that does seed.
func (i *Initializer) seed(ctx context.Context) {
	seeded, err := i.catalog.Seeded(ctx)
	if err != nil {
		i.record("seed", "error")
		i.logger.WithError(err).Error("failed to read seeded flag, skipping seed")
		return
	}
	if seeded {
		i.record("seed", "skipped")
		return
	}

	for _, role := range catalog.BuiltInRoles() {
		r := role
		if err := i.catalog.SaveRole(ctx, &r); err != nil {
			i.record("seed", "error")
			i.logger.WithError(err).WithField("role", role.Name).Error("failed to seed role")
			return
		}
	}
	for _, perm := range catalog.BuiltInPermissions() {
		p := perm
		if err := i.catalog.SavePermission(ctx, &p); err != nil {
			i.record("seed", "error")
			i.logger.WithError(err).WithField("permission", perm.Name).Error("failed to seed permission")
			return
		}
	}

	if err := i.catalog.MarkSeeded(ctx); err != nil {
		i.record("seed", "error")
		i.logger.WithError(err).Error("failed to persist seeded flag")
		return
	}

	i.record("seed", "ok")
	i.logger.Info("seeded built-in roles and permissions")
}

// grantSuperAdmins resolves the configured admin emails and appends the
// super-admin role to each. Additive: existing roles survive, and
// customers already holding the role are left alone. Unresolvable
// addresses are logged and skipped.
func (i *Initializer) grantSuperAdmins(ctx context.Context) {
	for _, email := range i.adminEmails {
		customerID, err := i.directory.LookupByEmail(ctx, email)
		if err != nil {
			i.record("grant", "error")
			i.logger.WithError(err).WithField("email", email).Error("admin lookup failed")
			continue
		}
		if customerID == "" {
			i.record("grant", "skipped")
			i.logger.WithField("email", email).Warn("admin email resolves to no customer, skipping")
			continue
		}

		if err := i.grantSuperAdmin(ctx, customerID); err != nil {
			i.record("grant", "error")
			i.logger.WithError(err).WithField("customer_id", customerID).Error("failed to grant super-admin")
			continue
		}
		i.record("grant", "ok")
	}
}

func (i *Initializer) grantSuperAdmin(ctx context.Context, customerID string) error {
	record, err := i.customers.Get(ctx, customerID)
	if err != nil {
		return err
	}

	roles := []string{}
	if record != nil {
		if record.HasRole(catalog.RoleSuperAdmin) {
			return nil
		}
		roles = append(roles, record.Roles...)
	}
	roles = append(roles, catalog.RoleSuperAdmin)

	if _, err := i.manager.AssignRoles(ctx, customerID, roles, "bootstrap", "configured admin"); err != nil {
		return fmt.Errorf("failed to assign super-admin to %s: %w", customerID, err)
	}
	i.logger.WithField("customer_id", customerID).Info("granted super-admin")
	return nil
}

func (i *Initializer) record(phase, status string) {
	if i.metrics != nil {
		i.metrics.BootstrapRunsTotal.WithLabelValues(phase, status).Inc()
	}
}
