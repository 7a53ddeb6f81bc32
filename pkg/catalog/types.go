// Package catalog holds the named role and permission definitions that
// customer authorization records resolve against, plus the persisted
// seeded flag that gates first-boot default seeding.
package catalog

import "fmt"

// Period is the cadence at which a usage counter becomes eligible for reset.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// ParsePeriod parses a period string.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid quota period: %q", s)
	}
	return p, nil
}

// QuotaDefault is the quota a role seeds for a resource on assignment.
type QuotaDefault struct {
	// Limit is the allowed usage per period. -1 means uncapped.
	Limit  int    `json:"limit"`
	Period Period `json:"period"`
}

// RoleDefinition is a named bundle of permissions and default quotas.
// Name is the immutable identity; saves overwrite by name.
type RoleDefinition struct {
	Name          string                  `json:"name"`
	DisplayName   string                  `json:"display_name"`
	Permissions   []string                `json:"permissions"`
	DefaultQuotas map[string]QuotaDefault `json:"default_quotas,omitempty"`

	// Priority is informational ordering for admin UIs; decision logic
	// never consults it.
	Priority int `json:"priority"`
}

// PermissionDefinition is catalog metadata about a permission string.
// The decision algorithm matches permission strings directly and does
// not consult these records.
type PermissionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
