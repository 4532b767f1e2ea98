package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	grants map[int64]map[string]bool
	err    error
	calls  int
}

func (s *stubCatalog) UserHasPermission(ctx context.Context, actorID int64, code string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.grants[actorID][code], nil
}

func newAuthorizer(catalog Catalog) *Authorizer {
	return NewAuthorizer(DefaultHierarchy(), catalog)
}

func TestAuthorizeNilActorDenied(t *testing.T) {
	a := newAuthorizer(&stubCatalog{})

	decision, err := a.Authorize(context.Background(), nil, AnyOfRoles("CLIENT"))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonUnauthenticated, decision.Reason)

	decision, err = a.Authorize(context.Background(), nil, NeedPermission("MANAGE_RESERVATIONS"))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonUnauthenticated, decision.Reason)
}

func TestAuthorizeLiteralRoleMatch(t *testing.T) {
	a := newAuthorizer(&stubCatalog{})
	actor := &Actor{ID: 7, RoleCode: "RECEPTIONNISTE"}

	decision, err := a.Authorize(context.Background(), actor, AnyOfRoles("RECEPTIONNISTE"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeHierarchyFallback(t *testing.T) {
	a := newAuthorizer(&stubCatalog{})

	// SUPER_ADMIN and ADMIN_GENERAL differ literally but share the
	// administrator category.
	admin := &Actor{ID: 1, RoleCode: "SUPER_ADMIN"}
	decision, err := a.Authorize(context.Background(), admin, AnyOfRoles("ADMIN_GENERAL"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// Staff do not satisfy customer-only requirements.
	staff := &Actor{ID: 2, RoleCode: "RECEPTIONNISTE"}
	decision, err = a.Authorize(context.Background(), staff, AnyOfRoles("CLIENT"))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonForbidden, decision.Reason)

	// Two staff roles share a category.
	decision, err = a.Authorize(context.Background(), staff, AnyOfRoles("AGENT_ENTRETIEN"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeUnknownRoleTreatedAsCustomer(t *testing.T) {
	a := newAuthorizer(&stubCatalog{})
	actor := &Actor{ID: 3, RoleCode: "NIGHT_AUDITOR"}

	decision, err := a.Authorize(context.Background(), actor, AnyOfRoles("RECEPTIONNISTE"))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = a.Authorize(context.Background(), actor, AnyOfRoles("CLIENT"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeSnapshotShortCircuitsPermission(t *testing.T) {
	catalog := &stubCatalog{}
	a := newAuthorizer(catalog)
	actor := &Actor{ID: 4, RoleCode: "RECEPTIONNISTE", Permissions: []string{"MANAGE_RESERVATIONS"}}

	decision, err := a.Authorize(context.Background(), actor, NeedPermission("MANAGE_RESERVATIONS"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Zero(t, catalog.calls, "snapshot hit must not query the catalog")
}

func TestAuthorizeAbsentSnapshotFallsThroughToCatalog(t *testing.T) {
	catalog := &stubCatalog{grants: map[int64]map[string]bool{
		5: {"MANAGE_CLEANING": true},
	}}
	a := newAuthorizer(catalog)
	actor := &Actor{ID: 5, RoleCode: "AGENT_ENTRETIEN"}

	decision, err := a.Authorize(context.Background(), actor, NeedPermission("MANAGE_CLEANING"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, catalog.calls)
}

func TestAuthorizeSnapshotMissCanStillPassViaCatalog(t *testing.T) {
	// The snapshot only accelerates positive decisions; a miss re-checks the
	// authoritative catalog instead of denying.
	catalog := &stubCatalog{grants: map[int64]map[string]bool{
		6: {"MANAGE_SUPPLIES": true},
	}}
	a := newAuthorizer(catalog)
	actor := &Actor{ID: 6, RoleCode: "GESTIONNAIRE_STOCK", Permissions: []string{"VIEW_SUPPLIES"}}

	decision, err := a.Authorize(context.Background(), actor, NeedPermission("MANAGE_SUPPLIES"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeCatalogUnavailableFailsClosed(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("connection refused")}
	a := newAuthorizer(catalog)
	actor := &Actor{ID: 8, RoleCode: "RECEPTIONNISTE"}

	decision, err := a.Authorize(context.Background(), actor, NeedPermission("MANAGE_RESERVATIONS"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.False(t, decision.Allowed)
}

func TestAuthorizeByPermission(t *testing.T) {
	catalog := &stubCatalog{grants: map[int64]map[string]bool{
		9: {"MANAGE_X": true},
	}}
	a := newAuthorizer(catalog)

	granted, err := a.AuthorizeByPermission(context.Background(), 9, "MANAGE_X")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = a.AuthorizeByPermission(context.Background(), 9, "MANAGE_Y")
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestAuthorizeByPermissionIgnoresSnapshot(t *testing.T) {
	catalog := &stubCatalog{}
	a := newAuthorizer(catalog)

	// Actor 10 has a (stale) snapshot claiming the grant; the authoritative
	// path must still consult the catalog.
	granted, err := a.AuthorizeByPermission(context.Background(), 10, "MANAGE_ROLES")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 1, catalog.calls)
}

func TestAuthorizeByPermissionUnavailable(t *testing.T) {
	a := newAuthorizer(&stubCatalog{err: errors.New("timeout")})

	granted, err := a.AuthorizeByPermission(context.Background(), 11, "MANAGE_X")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.False(t, granted)
}
