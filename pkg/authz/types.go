// Package authz holds per-customer authorization state and the decision
// engine and quota manager that operate on it.
//
// A customer's record combines role names, an explicit permission set,
// and per-resource quota counters. The permission set is a derived cache:
// it reflects the union of matched roles' permissions at the last role
// change and is independently overwritable by explicit grants. It is not
// guaranteed current if role definitions change after assignment.
package authz

import (
	"time"

	"github.com/wardenhq/warden/pkg/catalog"
)

// QuotaUnlimited is the sentinel limit for "entry exists but uncapped".
// Distinct from having no entry at all.
const QuotaUnlimited = -1

// QuotaState tracks usage of one resource for one customer.
type QuotaState struct {
	// Limit is the allowed usage per period. QuotaUnlimited means the
	// entry exists but is uncapped.
	Limit  int            `json:"limit"`
	Period catalog.Period `json:"period"`

	// Current is the usage counter. It is never clamped and may exceed
	// Limit.
	Current int `json:"current"`

	// ResetAt is the next rollover instant, computed at write time.
	// Nothing scans for expired counters; Current stays stale past
	// ResetAt until an explicit reset.
	ResetAt time.Time `json:"reset_at"`
}

// Metadata records provenance of a customer record.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// CustomerAuthorization is the durable per-customer record. It is created
// lazily on the first role, permission, or quota write and never deleted
// by warden.
type CustomerAuthorization struct {
	CustomerID  string                `json:"customer_id"`
	Roles       []string              `json:"roles"`
	Permissions []string              `json:"permissions"`
	Quotas      map[string]QuotaState `json:"quotas"`
	Metadata    Metadata              `json:"metadata"`
}

// HasRole reports whether the record carries the named role.
func (c *CustomerAuthorization) HasRole(name string) bool {
	for _, r := range c.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Reason codes for permission decisions. A small fixed set, safe to use
// as a metric label; the free-text Reason is for response bodies only.
const (
	ReasonNoRecord   = "no_record"
	ReasonBanned     = "banned"
	ReasonExplicit   = "explicit"
	ReasonRole       = "role"
	ReasonNotGranted = "not_granted"
)

// Decision is the result of a permission check.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	Code         string    `json:"code"`
	Reason       string    `json:"reason,omitempty"`
	MatchedRoles []string  `json:"matched_roles,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// QuotaStatus summarizes one resource's quota for a decision.
type QuotaStatus struct {
	Limit     int `json:"limit"`
	Current   int `json:"current"`
	Remaining int `json:"remaining"`
}

// QuotaDecision is the result of a quota availability check. It is
// read-only: checking never consumes quota, so a later increment is a
// separate call with a race window between them.
type QuotaDecision struct {
	Allowed   bool        `json:"allowed"`
	Quota     QuotaStatus `json:"quota"`
	CheckedAt time.Time   `json:"checked_at"`
}

// QuotaSpec is an admin-supplied limit and period for one resource.
type QuotaSpec struct {
	Limit  int            `json:"limit"`
	Period catalog.Period `json:"period"`
}
