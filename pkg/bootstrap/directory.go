package bootstrap

import (
	"context"
	"strings"
)

// Directory resolves admin email addresses to customer ids. The
// production implementation sits in front of the identity provider;
// deployments without one configure the static mapping.
type Directory interface {
	// LookupByEmail returns the customer id for an email, or "" when the
	// address resolves to nobody.
	LookupByEmail(ctx context.Context, email string) (string, error)
}

// StaticDirectory resolves from a fixed email-to-customer-id map.
type StaticDirectory struct {
	entries map[string]string
}

// NewStaticDirectory builds a directory from "email=customer_id" pairs.
// Malformed pairs are dropped.
func NewStaticDirectory(pairs []string) *StaticDirectory {
	entries := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		email, id, ok := strings.Cut(pair, "=")
		email = strings.TrimSpace(email)
		id = strings.TrimSpace(id)
		if !ok || email == "" || id == "" {
			continue
		}
		entries[strings.ToLower(email)] = id
	}
	return &StaticDirectory{entries: entries}
}

// LookupByEmail resolves against the static map. Lookups are
// case-insensitive on the email.
func (d *StaticDirectory) LookupByEmail(ctx context.Context, email string) (string, error) {
	return d.entries[strings.ToLower(strings.TrimSpace(email))], nil
}
