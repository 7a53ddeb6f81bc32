package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wardenhq/warden/pkg/kv"
	"github.com/wardenhq/warden/pkg/observability"
)

type failingLogger struct{}

func (failingLogger) Append(ctx context.Context, entry *Entry) error {
	return errors.New("backend down")
}

func (failingLogger) History(ctx context.Context, customerID string, limit int) ([]*Entry, error) {
	return nil, errors.New("backend down")
}

func TestInstrumentedLoggerCountsAppends(t *testing.T) {
	store, _ := kv.NewTestStore(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := NewInstrumentedLogger(NewKVLogger(store, nil), metrics)
	ctx := context.Background()

	entry := &Entry{CustomerID: "cust_1", Action: ActionRoleAdded}
	if err := logger.Append(ctx, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if got := testutil.ToFloat64(metrics.AuditAppendsTotal.WithLabelValues(string(ActionRoleAdded), "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}

	entries, err := logger.History(ctx, "cust_1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("History returned %d entries, want 1", len(entries))
	}
}

func TestInstrumentedLoggerCountsFailures(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := NewInstrumentedLogger(failingLogger{}, metrics)

	entry := &Entry{CustomerID: "cust_1", Action: ActionQuotaUpdated}
	if err := logger.Append(context.Background(), entry); err == nil {
		t.Fatal("expected append error to propagate")
	}

	if got := testutil.ToFloat64(metrics.AuditAppendsTotal.WithLabelValues(string(ActionQuotaUpdated), "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}
