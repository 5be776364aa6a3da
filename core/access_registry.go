package core

import (
	"fmt"
	"sync"
)

// AccessRegistry tracks which roles and permissions have been granted to
// which accounts, backing the Grant/Revoke instruction family. Role and
// permission grants are core state here, not an off-chain overlay, so the
// registry itself is the source of truth rather than a cache in front of it.
type AccessRegistry struct {
	mu          sync.Mutex
	rolesByAcc  map[AccountId]map[RoleId]struct{}
	permsByAcc  map[AccountId]map[Name]struct{}
}

func NewAccessRegistry() *AccessRegistry {
	return &AccessRegistry{
		rolesByAcc: make(map[AccountId]map[RoleId]struct{}),
		permsByAcc: make(map[AccountId]map[Name]struct{}),
	}
}

// GrantRole assigns role to account. Returns an error if already granted.
func (ar *AccessRegistry) GrantRole(account AccountId, role RoleId) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	roles, ok := ar.rolesByAcc[account]
	if !ok {
		roles = make(map[RoleId]struct{})
		ar.rolesByAcc[account] = roles
	}
	if _, exists := roles[role]; exists {
		return fmt.Errorf("%w: role %s already granted to %s", ErrInvalid, role, account)
	}
	roles[role] = struct{}{}
	return nil
}

// RevokeRole removes role from account. Returns ErrNotFound if absent.
func (ar *AccessRegistry) RevokeRole(account AccountId, role RoleId) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	roles, ok := ar.rolesByAcc[account]
	if !ok {
		return fmt.Errorf("%w: role %s not granted to %s", ErrNotFound, role, account)
	}
	if _, exists := roles[role]; !exists {
		return fmt.Errorf("%w: role %s not granted to %s", ErrNotFound, role, account)
	}
	delete(roles, role)
	if len(roles) == 0 {
		delete(ar.rolesByAcc, account)
	}
	return nil
}

// HasRole reports whether account currently holds role.
func (ar *AccessRegistry) HasRole(account AccountId, role RoleId) bool {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	roles, ok := ar.rolesByAcc[account]
	if !ok {
		return false
	}
	_, exists := roles[role]
	return exists
}

// ListRoles returns every role currently granted to account.
func (ar *AccessRegistry) ListRoles(account AccountId) []RoleId {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	roles, ok := ar.rolesByAcc[account]
	if !ok {
		return nil
	}
	out := make([]RoleId, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	return out
}

// GrantPermission assigns a bare permission (by name) directly to an
// account, independent of any role.
func (ar *AccessRegistry) GrantPermission(account AccountId, perm Name) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	perms, ok := ar.permsByAcc[account]
	if !ok {
		perms = make(map[Name]struct{})
		ar.permsByAcc[account] = perms
	}
	if _, exists := perms[perm]; exists {
		return fmt.Errorf("%w: permission %s already granted to %s", ErrInvalid, perm, account)
	}
	perms[perm] = struct{}{}
	return nil
}

// RevokePermission removes a directly granted permission from an account.
func (ar *AccessRegistry) RevokePermission(account AccountId, perm Name) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	perms, ok := ar.permsByAcc[account]
	if !ok {
		return fmt.Errorf("%w: permission %s not granted to %s", ErrNotFound, perm, account)
	}
	if _, exists := perms[perm]; !exists {
		return fmt.Errorf("%w: permission %s not granted to %s", ErrNotFound, perm, account)
	}
	delete(perms, perm)
	if len(perms) == 0 {
		delete(ar.permsByAcc, account)
	}
	return nil
}

// HasPermission reports whether account directly holds perm.
func (ar *AccessRegistry) HasPermission(account AccountId, perm Name) bool {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	perms, ok := ar.permsByAcc[account]
	if !ok {
		return false
	}
	_, exists := perms[perm]
	return exists
}
