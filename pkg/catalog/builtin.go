package catalog

// Built-in role names
const (
	RoleSuperAdmin = "super-admin"
	RoleModerator  = "moderator"
	RoleUploader   = "uploader"
	RoleBanned     = "banned"
)

// PermissionWildcard satisfies any permission check.
const PermissionWildcard = "*"

// BuiltInRoles returns the code-defined default roles. Seeding overwrites
// stored definitions by name, so these stay authoritative on every deploy.
func BuiltInRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleSuperAdmin,
			DisplayName: "Super Administrator",
			Permissions: []string{PermissionWildcard},
			Priority:    100,
		},
		{
			Name:        RoleModerator,
			DisplayName: "Moderator",
			Permissions: []string{"upload:mod", "review:mod", "delete:mod"},
			DefaultQuotas: map[string]QuotaDefault{
				"upload:mod": {Limit: 100, Period: PeriodDay},
			},
			Priority: 50,
		},
		{
			Name:        RoleUploader,
			DisplayName: "Uploader",
			Permissions: []string{"upload:mod"},
			DefaultQuotas: map[string]QuotaDefault{
				"upload:mod": {Limit: 10, Period: PeriodDay},
			},
			Priority: 10,
		},
		{
			// Membership alone denies everything; the decision engine
			// checks for this role before any permission match.
			Name:        RoleBanned,
			DisplayName: "Banned",
			Permissions: []string{},
			Priority:    0,
		},
	}
}

// BuiltInPermissions returns the code-defined default permission catalog.
func BuiltInPermissions() []PermissionDefinition {
	return []PermissionDefinition{
		{
			Name:        PermissionWildcard,
			Description: "Matches every permission check",
			Category:    "system",
		},
		{
			Name:        "upload:mod",
			Description: "Upload a module package",
			Category:    "upload",
		},
		{
			Name:        "review:mod",
			Description: "Review uploaded module packages",
			Category:    "moderation",
		},
		{
			Name:        "delete:mod",
			Description: "Delete module packages",
			Category:    "moderation",
		},
	}
}
