package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
)

const keyPrefix = "audit:"

// Logger is the interface for audit trail access.
type Logger interface {
	// Append records an entry. Entries are immutable once appended.
	Append(ctx context.Context, entry *Entry) error

	// History returns a customer's entries, newest first, bounded by limit.
	History(ctx context.Context, customerID string, limit int) ([]*Entry, error)
}

// KVLogger persists entries in the key-value store, one record per entry.
//
// Keys embed an inverted timestamp so a lexicographically ascending prefix
// scan yields newest-first ordering without a secondary index:
//
//	audit:<customerId>:<maxInt64-unixNano, zero-padded>:<uuid>
type KVLogger struct {
	store kv.Store
	clock clock.Clock
}

// NewKVLogger creates a KV-backed audit logger.
func NewKVLogger(store kv.Store, clk clock.Clock) *KVLogger {
	if clk == nil {
		clk = clock.System{}
	}
	return &KVLogger{store: store, clock: clk}
}

func entryKey(entry *Entry) string {
	inverted := uint64(math.MaxInt64 - entry.Timestamp.UnixNano())
	return fmt.Sprintf("%s%s:%020d:%s", keyPrefix, entry.CustomerID, inverted, entry.ID)
}

// Append records an entry, assigning its ID and timestamp when unset.
func (l *KVLogger) Append(ctx context.Context, entry *Entry) error {
	if entry.CustomerID == "" {
		return errors.New("audit entry requires a customer id")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if err := l.store.Put(ctx, entryKey(entry), data); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// History returns a customer's entries, newest first. A non-positive
// limit returns everything.
func (l *KVLogger) History(ctx context.Context, customerID string, limit int) ([]*Entry, error) {
	keys, err := l.store.List(ctx, keyPrefix+customerID+":")
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	entries := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		data, err := l.store.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			// Raced with an expiry or manual cleanup; skip.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audit entry %s: %w", key, err)
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry %s: %w", key, err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// NopLogger discards appends and returns empty history. Used where an
// audit trail is not configured.
type NopLogger struct{}

func (NopLogger) Append(ctx context.Context, entry *Entry) error {
	return nil
}

func (NopLogger) History(ctx context.Context, customerID string, limit int) ([]*Entry, error) {
	return nil, nil
}
