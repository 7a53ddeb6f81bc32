package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wardenhq/warden/pkg/kv"
)

const customerPrefix = "customer:"

// Store persists customer authorization records in the key-value store.
//
// Reads and writes are independent round trips with no cross-operation
// transaction: concurrent mutations of the same customer can lose
// updates. That weakness is part of the storage contract (see pkg/kv);
// strengthening it means substituting a conditional-write backend behind
// kv.Store, not adding locking here.
type Store struct {
	store kv.Store
}

// NewStore creates a customer record store.
func NewStore(store kv.Store) *Store {
	return &Store{store: store}
}

func customerKey(id string) string { return customerPrefix + id }

// Get returns a customer's record, or (nil, nil) when none exists.
func (s *Store) Get(ctx context.Context, customerID string) (*CustomerAuthorization, error) {
	data, err := s.store.Get(ctx, customerKey(customerID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer record %s: %w", customerID, err)
	}

	var record CustomerAuthorization
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer record %s: %w", customerID, err)
	}
	return &record, nil
}

// Put writes a customer's record, overwriting any existing one.
func (s *Store) Put(ctx context.Context, record *CustomerAuthorization) error {
	if record.CustomerID == "" {
		return errors.New("customer record requires a customer id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal customer record %s: %w", record.CustomerID, err)
	}
	if err := s.store.Put(ctx, customerKey(record.CustomerID), data); err != nil {
		return fmt.Errorf("failed to save customer record %s: %w", record.CustomerID, err)
	}
	return nil
}
