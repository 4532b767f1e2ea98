package authz

import (
	"context"
	"fmt"
)

// Catalog is the authoritative permission source, consulted when a decision
// cannot be made from the actor descriptor alone.
type Catalog interface {
	UserHasPermission(ctx context.Context, actorID int64, permissionCode string) (bool, error)
}

// Authorizer evaluates requirements against actors. Role-only decisions never
// touch storage; permission decisions may consult the catalog.
type Authorizer struct {
	hierarchy *Hierarchy
	catalog   Catalog
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(hierarchy *Hierarchy, catalog Catalog) *Authorizer {
	return &Authorizer{hierarchy: hierarchy, catalog: catalog}
}

// Authorize decides whether the actor satisfies the requirement. Rules are
// evaluated in order, first match wins:
//
//  1. no actor: deny (unauthenticated)
//  2. role requirement, literal role code match: allow
//  3. permission requirement, code present in the actor's snapshot: allow
//  4. role requirement, base category match via the hierarchy: allow
//  5. otherwise deny (forbidden); permission requirements without a snapshot
//     hit fall back to the catalog before denying
//
// A denial is a normal return value. A non-nil error is returned only when
// the catalog was needed and unreachable; callers must treat that as deny.
func (a *Authorizer) Authorize(ctx context.Context, actor *Actor, req Requirement) (Decision, error) {
	if actor == nil {
		return Deny(ReasonUnauthenticated), nil
	}
	if req.Permission != "" {
		return a.authorizePermission(ctx, actor, req.Permission)
	}

	for _, code := range req.Roles {
		if actor.RoleCode == code {
			return Allow, nil
		}
	}

	base := a.hierarchy.BaseOf(actor.RoleCode)
	for _, code := range req.Roles {
		// Administrators satisfy requirements naming the elevated codes
		// even before the generic category comparison. The category match
		// below would reach the same outcome; the branch stays explicit.
		if base == BaseAdministrator && (code == RoleSuperAdmin || code == RoleAdminGeneral) {
			return Allow, nil
		}
		if a.hierarchy.BaseOf(code) == base {
			return Allow, nil
		}
	}
	return Deny(ReasonForbidden), nil
}

func (a *Authorizer) authorizePermission(ctx context.Context, actor *Actor, code string) (Decision, error) {
	if actor.HasSnapshot() {
		for _, p := range actor.Permissions {
			if p == code {
				return Allow, nil
			}
		}
	}
	granted, err := a.catalog.UserHasPermission(ctx, actor.ID, code)
	if err != nil {
		return Deny(ReasonForbidden), fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if granted {
		return Allow, nil
	}
	return Deny(ReasonForbidden), nil
}

// AuthorizeByPermission is the authoritative, catalog-backed check. It never
// consults the snapshot and is the entry point to prefer for operations that
// mutate authorization state itself.
func (a *Authorizer) AuthorizeByPermission(ctx context.Context, actorID int64, permissionCode string) (bool, error) {
	granted, err := a.catalog.UserHasPermission(ctx, actorID, permissionCode)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return granted, nil
}
