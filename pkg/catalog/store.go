package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wardenhq/warden/pkg/kv"
)

const (
	rolePrefix       = "role:"
	permissionPrefix = "permission:"
	seededKey        = "system:seeded"
)

// Store persists role and permission definitions in the key-value store.
//
// Role reads sit on the decision engine's hot path, so they go through an
// expirable LRU. Saves invalidate the cached entry, so a save is never
// masked within the same process; other instances see it once their TTL
// lapses.
type Store struct {
	store kv.Store
	roles *lru.LRU[string, *RoleDefinition]
}

// NewStore creates a catalog store with the given role-cache TTL.
// A TTL of zero disables expiry-based invalidation but keeps the LRU.
func NewStore(store kv.Store, cacheTTL time.Duration) *Store {
	return &Store{
		store: store,
		roles: lru.NewLRU[string, *RoleDefinition](256, nil, cacheTTL),
	}
}

func roleKey(name string) string       { return rolePrefix + name }
func permissionKey(name string) string { return permissionPrefix + name }

// SaveRole writes a role definition, overwriting by name.
func (s *Store) SaveRole(ctx context.Context, role *RoleDefinition) error {
	if role.Name == "" {
		return errors.New("role name is required")
	}

	data, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("failed to marshal role %s: %w", role.Name, err)
	}
	if err := s.store.Put(ctx, roleKey(role.Name), data); err != nil {
		return fmt.Errorf("failed to save role %s: %w", role.Name, err)
	}

	s.roles.Remove(role.Name)
	return nil
}

// GetRole returns a role definition by name, or (nil, nil) when the name
// is unknown. Unknown roles are not an error: records may reference roles
// that were deleted or never seeded, and the decision engine skips them.
func (s *Store) GetRole(ctx context.Context, name string) (*RoleDefinition, error) {
	if role, ok := s.roles.Get(name); ok {
		return role, nil
	}

	data, err := s.store.Get(ctx, roleKey(name))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", name, err)
	}

	var role RoleDefinition
	if err := json.Unmarshal(data, &role); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role %s: %w", name, err)
	}

	s.roles.Add(name, &role)
	return &role, nil
}

// ListRoles returns all stored role definitions.
func (s *Store) ListRoles(ctx context.Context) ([]*RoleDefinition, error) {
	keys, err := s.store.List(ctx, rolePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	roles := make([]*RoleDefinition, 0, len(keys))
	for _, key := range keys {
		role, err := s.GetRole(ctx, strings.TrimPrefix(key, rolePrefix))
		if err != nil {
			return nil, err
		}
		if role != nil {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// SavePermission writes a permission definition, overwriting by name.
func (s *Store) SavePermission(ctx context.Context, perm *PermissionDefinition) error {
	if perm.Name == "" {
		return errors.New("permission name is required")
	}

	data, err := json.Marshal(perm)
	if err != nil {
		return fmt.Errorf("failed to marshal permission %s: %w", perm.Name, err)
	}
	if err := s.store.Put(ctx, permissionKey(perm.Name), data); err != nil {
		return fmt.Errorf("failed to save permission %s: %w", perm.Name, err)
	}
	return nil
}

// GetPermission returns a permission definition, or (nil, nil) when unknown.
func (s *Store) GetPermission(ctx context.Context, name string) (*PermissionDefinition, error) {
	data, err := s.store.Get(ctx, permissionKey(name))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission %s: %w", name, err)
	}

	var perm PermissionDefinition
	if err := json.Unmarshal(data, &perm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permission %s: %w", name, err)
	}
	return &perm, nil
}

// ListPermissions returns all stored permission definitions.
func (s *Store) ListPermissions(ctx context.Context) ([]*PermissionDefinition, error) {
	keys, err := s.store.List(ctx, permissionPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	perms := make([]*PermissionDefinition, 0, len(keys))
	for _, key := range keys {
		perm, err := s.GetPermission(ctx, strings.TrimPrefix(key, permissionPrefix))
		if err != nil {
			return nil, err
		}
		if perm != nil {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

// Seeded reports whether the default catalog has been seeded. The
// persisted flag is the cross-instance correctness guarantee; any
// process-local short-circuit is only an optimization.
func (s *Store) Seeded(ctx context.Context) (bool, error) {
	data, err := s.store.Get(ctx, seededKey)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read seeded flag: %w", err)
	}
	return string(data) == "true", nil
}

// MarkSeeded sets the persisted seeded flag.
func (s *Store) MarkSeeded(ctx context.Context) error {
	if err := s.store.Put(ctx, seededKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to set seeded flag: %w", err)
	}
	return nil
}
