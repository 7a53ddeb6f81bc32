package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wardenhq/warden/pkg/audit"
	"github.com/wardenhq/warden/pkg/authz"
	"github.com/wardenhq/warden/pkg/catalog"
	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
	"github.com/wardenhq/warden/pkg/observability"
)

type testEnv struct {
	store     kv.Store
	catalog   *catalog.Store
	customers *authz.Store
	manager   *authz.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, _ := kv.NewTestStore(t)
	clk := clock.NewFake(time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC))
	cat := catalog.NewStore(store, time.Minute)
	customers := authz.NewStore(store)
	manager := authz.NewManager(customers, cat, audit.NopLogger{}, clk)
	return &testEnv{store: store, catalog: cat, customers: customers, manager: manager}
}

func newInitializer(t *testing.T, env *testEnv, directory Directory, adminEmails []string) *Initializer {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewInitializer(env.catalog, env.customers, env.manager, directory, adminEmails, logger, nil)
}

func TestRunSeedsCatalog(t *testing.T) {
	env := newTestEnv(t)
	init := newInitializer(t, env, NewStaticDirectory(nil), nil)
	ctx := context.Background()

	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seeded, err := env.catalog.Seeded(ctx)
	if err != nil {
		t.Fatalf("Seeded failed: %v", err)
	}
	if !seeded {
		t.Error("seeded flag not persisted")
	}

	for _, builtin := range catalog.BuiltInRoles() {
		role, err := env.catalog.GetRole(ctx, builtin.Name)
		if err != nil {
			t.Fatalf("GetRole(%s) failed: %v", builtin.Name, err)
		}
		if role == nil {
			t.Errorf("built-in role %s not seeded", builtin.Name)
		}
	}

	perms, err := env.catalog.ListPermissions(ctx)
	if err != nil {
		t.Fatalf("ListPermissions failed: %v", err)
	}
	if len(perms) != len(catalog.BuiltInPermissions()) {
		t.Errorf("seeded %d permissions, want %d", len(perms), len(catalog.BuiltInPermissions()))
	}
}

func TestRunIdempotent(t *testing.T) {
	env := newTestEnv(t)
	init := newInitializer(t, env, NewStaticDirectory(nil), nil)
	ctx := context.Background()

	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Simulate an operator customizing a seeded role after first boot.
	custom := &catalog.RoleDefinition{Name: catalog.RoleUploader, DisplayName: "Custom Uploader", Permissions: []string{"upload:mod"}}
	if err := env.catalog.SaveRole(ctx, custom); err != nil {
		t.Fatalf("SaveRole failed: %v", err)
	}

	// A later run sees the persisted flag and must not re-seed.
	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	role, err := env.catalog.GetRole(ctx, catalog.RoleUploader)
	if err != nil {
		t.Fatalf("GetRole failed: %v", err)
	}
	if role.DisplayName != "Custom Uploader" {
		t.Errorf("second run overwrote customized role: %+v", role)
	}
}

func TestRunConcurrent(t *testing.T) {
	env := newTestEnv(t)
	init := newInitializer(t, env, NewStaticDirectory(nil), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := init.Run(ctx); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	seeded, err := env.catalog.Seeded(ctx)
	if err != nil {
		t.Fatalf("Seeded failed: %v", err)
	}
	if !seeded {
		t.Error("seeded flag not persisted")
	}

	roles, err := env.catalog.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != len(catalog.BuiltInRoles()) {
		t.Errorf("concurrent runs left %d roles, want %d", len(roles), len(catalog.BuiltInRoles()))
	}
}

func TestRunGrantsSuperAdmins(t *testing.T) {
	env := newTestEnv(t)
	directory := NewStaticDirectory([]string{"ops@example.com=cust_ops", "ghost@example.com="})
	init := newInitializer(t, env, directory, []string{"ops@example.com", "ghost@example.com", "nobody@example.com"})
	ctx := context.Background()

	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	record, err := env.customers.Get(ctx, "cust_ops")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || !record.HasRole(catalog.RoleSuperAdmin) {
		t.Fatalf("resolved admin not granted super-admin: %+v", record)
	}
}

func TestRunGrantIsAdditive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Seed the catalog first so uploader resolves during assignment.
	firstBoot := newInitializer(t, env, NewStaticDirectory(nil), nil)
	if err := firstBoot.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := env.manager.AssignRoles(ctx, "cust_ops", []string{catalog.RoleUploader}, "admin", ""); err != nil {
		t.Fatalf("AssignRoles failed: %v", err)
	}

	directory := NewStaticDirectory([]string{"ops@example.com=cust_ops"})
	init := newInitializer(t, env, directory, []string{"ops@example.com"})
	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	record, err := env.customers.Get(ctx, "cust_ops")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !record.HasRole(catalog.RoleUploader) || !record.HasRole(catalog.RoleSuperAdmin) {
		t.Errorf("grant replaced roles instead of appending: %v", record.Roles)
	}

	// Running again changes nothing.
	if err := init.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	record, err = env.customers.Get(ctx, "cust_ops")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(record.Roles) != 2 {
		t.Errorf("repeat grant duplicated roles: %v", record.Roles)
	}
}

func TestScheduleRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	init := newInitializer(t, env, NewStaticDirectory(nil), nil)

	init.Schedule()
	init.Schedule()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		seeded, err := env.catalog.Seeded(context.Background())
		if err != nil {
			t.Fatalf("Seeded failed: %v", err)
		}
		if seeded {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduled bootstrap never completed")
}

func TestStaticDirectory(t *testing.T) {
	directory := NewStaticDirectory([]string{"Ops@Example.com=cust_1", "malformed", "=cust_2", "x@y.com="})
	ctx := context.Background()

	id, err := directory.LookupByEmail(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("LookupByEmail failed: %v", err)
	}
	if id != "cust_1" {
		t.Errorf("lookup = %q, want cust_1", id)
	}

	id, err = directory.LookupByEmail(ctx, "x@y.com")
	if err != nil {
		t.Fatalf("LookupByEmail failed: %v", err)
	}
	if id != "" {
		t.Errorf("malformed entry resolved to %q", id)
	}
}
