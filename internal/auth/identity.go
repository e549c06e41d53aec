// Package auth implements stateless token issuance and the request guards
// built on top of it.
package auth

import "context"

// Role names one of the three access levels a token can carry. There is no
// hierarchy between roles; every guarded operation lists each role it admits.
type Role string

// Known roles.
const (
	RoleAdmin    Role = "admin"
	RoleMechanic Role = "mechanic"
	RoleCustomer Role = "customer"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMechanic, RoleCustomer:
		return true
	}
	return false
}

// Identity is the per-request projection of a verified claim.
type Identity struct {
	SubjectID int64
	Role      Role
}

// CanAccess implements the ownership carve-out: admins may act on any
// record, everyone else only on their own.
func (id Identity) CanAccess(ownerID int64) bool {
	return id.Role == RoleAdmin || id.SubjectID == ownerID
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the resolved identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
