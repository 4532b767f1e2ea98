package authz

import (
	"context"
	"errors"
)

// BaseRole is the coarse-grained category a fine-grained role code maps to.
type BaseRole string

const (
	BaseAdministrator BaseRole = "administrator"
	BaseStaff         BaseRole = "staff"
	BaseCustomer      BaseRole = "customer"
)

// Elevated role codes. An administrator-category actor satisfies a
// requirement naming either of these even when the literal codes differ.
const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleAdminGeneral = "ADMIN_GENERAL"
)

// Actor describes the authenticated caller as established by upstream
// authentication. Permissions, when non-nil, is the capability snapshot
// attached at session establishment; it accelerates positive decisions but
// the catalog stays authoritative.
type Actor struct {
	ID          int64
	RoleCode    string
	Permissions []string
}

// HasSnapshot reports whether the actor carries a materialized permission set.
// An absent snapshot falls through to the catalog, it never denies on its own.
func (a *Actor) HasSnapshot() bool {
	return a != nil && a.Permissions != nil
}

// DenyReason distinguishes the terminal denial outcomes so callers can pick
// the appropriate caller-visible code (conventionally 401 vs 403).
type DenyReason string

const (
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonForbidden       DenyReason = "forbidden"
)

// Decision is the outcome of an authorization check. Denial is a normal
// value, never an error.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision carrying the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Requirement expresses what a protected operation demands: membership in any
// of a set of role codes, or a single permission code.
type Requirement struct {
	Roles      []string
	Permission string
}

// AnyOfRoles builds a requirement satisfied by any of the given role codes.
func AnyOfRoles(codes ...string) Requirement {
	return Requirement{Roles: codes}
}

// NeedPermission builds a requirement satisfied by holding the permission.
func NeedPermission(code string) Requirement {
	return Requirement{Permission: code}
}

// ErrCatalogUnavailable indicates the permission catalog could not be reached
// while a decision required it. Callers must treat it as deny, never as "no
// requirement".
var ErrCatalogUnavailable = errors.New("authz: permission catalog unavailable")

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. Nil means the request is
// unauthenticated.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
