// Package audit provides the append-only per-customer history of
// authorization mutations.
//
// Appends are fire-and-forget relative to the mutation they document: the
// quota manager schedules them through async.SafeGo and a failed append
// never rolls back or fails the mutation.
package audit

import (
	"time"
)

// Action is the category of mutation an entry documents.
type Action string

const (
	ActionRoleAdded         Action = "role_added"
	ActionPermissionGranted Action = "permission_granted"
	ActionQuotaUpdated      Action = "quota_updated"
	ActionQuotaReset        Action = "quota_reset"
)

// Entry is a single audit record. Entries are immutable once appended.
type Entry struct {
	ID          string                 `json:"id"`
	CustomerID  string                 `json:"customer_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Action      Action                 `json:"action"`
	Details     map[string]interface{} `json:"details,omitempty"`
	PerformedBy string                 `json:"performed_by"`
	Reason      string                 `json:"reason,omitempty"`
}
