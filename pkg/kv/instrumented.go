package kv

import (
	"context"
	"errors"
	"time"

	"github.com/wardenhq/warden/pkg/observability"
)

// InstrumentedStore decorates a Store with operation counters and
// latency histograms. A key miss counts as ok: the round trip succeeded
// and ErrKeyNotFound is part of the Get contract, not a backend failure.
type InstrumentedStore struct {
	store   Store
	metrics *observability.Metrics
}

// NewInstrumentedStore wraps store with metrics recording.
func NewInstrumentedStore(store Store, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		status = "error"
	}
	s.metrics.KVOperationsTotal.WithLabelValues(operation, status).Inc()
	s.metrics.KVOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.store.Get(ctx, key)
	s.observe("get", start, err)
	return data, err
}

// Put writes value under key, overwriting any existing value.
func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte, opts ...PutOption) error {
	start := time.Now()
	err := s.store.Put(ctx, key, value, opts...)
	s.observe("put", start, err)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

// List returns all keys with the given prefix, sorted ascending.
func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.store.List(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}

// Close closes the underlying store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}
