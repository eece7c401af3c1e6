package governance

import "sync"

// RoleGate is the callable-by-role check abstraction: a set of Principals
// per Role, with Admin able to grant and revoke any role. Grounded in
// original_source/rs/nx-gov-main/src/access.rs's add_role/remove_role/
// has_role/require_caller_has_role family, rendered as an in-memory set
// guarded by a mutex rather than per-role stable vectors, since the Store
// (not the gate) owns durability here.
type RoleGate struct {
	mu      sync.RWMutex
	members map[Role]map[string]Principal
}

// NewRoleGate constructs an empty gate. initialAdmins are granted the Admin
// role immediately, mirroring "Admin is initially the engine's own identity
// plus any principal supplied at init" (spec.md §6).
func NewRoleGate(initialAdmins ...Principal) *RoleGate {
	g := &RoleGate{members: make(map[Role]map[string]Principal)}
	for _, admin := range initialAdmins {
		g.addRoleInternal(RoleAdmin, admin)
	}
	return g
}

// HasRole reports whether principal currently holds role.
func (g *RoleGate) HasRole(role Role, principal Principal) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set, ok := g.members[role]
	if !ok {
		return false
	}
	_, ok = set[principal.String()]
	return ok
}

// RequireRole panics with an Unauthorized value if principal does not hold
// role. This is the Go analogue of require_caller_has_role's ic_cdk::trap:
// the spec requires unauthorized calls to abort rather than return an
// observable error (spec.md §7), so callers must recover this panic at the
// process boundary (RPC/CLI), never inside the coordinator itself.
func (g *RoleGate) RequireRole(role Role, principal Principal, context string) {
	if !g.HasRole(role, principal) {
		panic(Unauthorized{Role: role, Caller: principal, Context: context})
	}
}

// AddRole grants role to principal. Caller must already hold Admin; enforce
// that at the call site via RequireRole(RoleAdmin, caller, ...) before
// calling AddRole, mirroring access.rs's #[update] add_role wrapping
// add_role_internal after its own role check.
func (g *RoleGate) AddRole(role Role, principal Principal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.members[role]; ok {
		if _, exists := set[principal.String()]; exists {
			return ErrInput
		}
	}
	g.addRoleInternal(role, principal)
	return nil
}

func (g *RoleGate) addRoleInternal(role Role, principal Principal) {
	set, ok := g.members[role]
	if !ok {
		set = make(map[string]Principal)
		g.members[role] = set
	}
	set[principal.String()] = principal
}

// RemoveRole revokes role from principal, a no-op if not currently held.
func (g *RoleGate) RemoveRole(role Role, principal Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.members[role]; ok {
		delete(set, principal.String())
	}
}

// UsersOfRole lists the Principals currently holding role.
func (g *RoleGate) UsersOfRole(role Role) []Principal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.members[role]
	out := make([]Principal, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	return out
}

// ClearUsersOfRole removes every principal holding role.
func (g *RoleGate) ClearUsersOfRole(role Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[role] = make(map[string]Principal)
}
