package audit

import (
	"context"
	"testing"
	"time"

	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
)

func newTestLogger(t *testing.T) (*KVLogger, *clock.Fake) {
	t.Helper()
	store, _ := kv.NewTestStore(t)
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewKVLogger(store, clk), clk
}

func TestKVLogger_AppendAndHistory(t *testing.T) {
	logger, _ := newTestLogger(t)
	ctx := context.Background()

	entry := &Entry{
		CustomerID:  "cust_1",
		Action:      ActionRoleAdded,
		Details:     map[string]interface{}{"old_roles": []string{}, "new_roles": []string{"uploader"}},
		PerformedBy: "admin_1",
	}
	if err := logger.Append(ctx, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("Append did not assign an ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Append did not assign a timestamp")
	}

	entries, err := logger.History(ctx, "cust_1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("History returned %d entries, want 1", len(entries))
	}
	if entries[0].Action != ActionRoleAdded {
		t.Errorf("Action = %s, want %s", entries[0].Action, ActionRoleAdded)
	}
	if entries[0].PerformedBy != "admin_1" {
		t.Errorf("PerformedBy = %s, want admin_1", entries[0].PerformedBy)
	}
}

func TestKVLogger_HistoryNewestFirst(t *testing.T) {
	logger, clk := newTestLogger(t)
	ctx := context.Background()

	actions := []Action{ActionRoleAdded, ActionQuotaUpdated, ActionQuotaReset}
	for _, action := range actions {
		if err := logger.Append(ctx, &Entry{CustomerID: "cust_1", Action: action}); err != nil {
			t.Fatalf("Append %s failed: %v", action, err)
		}
		clk.Advance(time.Minute)
	}

	entries, err := logger.History(ctx, "cust_1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("History returned %d entries, want 3", len(entries))
	}

	// Newest first: the last append comes back first.
	want := []Action{ActionQuotaReset, ActionQuotaUpdated, ActionRoleAdded}
	for i, action := range want {
		if entries[i].Action != action {
			t.Errorf("entries[%d].Action = %s, want %s", i, entries[i].Action, action)
		}
	}
}

func TestKVLogger_HistoryLimit(t *testing.T) {
	logger, clk := newTestLogger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := logger.Append(ctx, &Entry{CustomerID: "cust_1", Action: ActionQuotaUpdated}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		clk.Advance(time.Second)
	}

	entries, err := logger.History(ctx, "cust_1", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("History returned %d entries, want 2", len(entries))
	}
}

func TestKVLogger_HistoryIsolatedPerCustomer(t *testing.T) {
	logger, _ := newTestLogger(t)
	ctx := context.Background()

	if err := logger.Append(ctx, &Entry{CustomerID: "cust_1", Action: ActionRoleAdded}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := logger.History(ctx, "cust_2", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("History for other customer returned %d entries, want 0", len(entries))
	}
}

func TestKVLogger_AppendRequiresCustomer(t *testing.T) {
	logger, _ := newTestLogger(t)

	if err := logger.Append(context.Background(), &Entry{Action: ActionRoleAdded}); err == nil {
		t.Error("Append without customer id should fail")
	}
}
