package shared

// Catalog administration permissions. These guard the surface that mutates
// authorization state itself, so routes carrying them are mounted behind the
// authoritative (catalog-backed) check.
const (
	PermRolesView = "ROLES_VIEW"
	PermRolesEdit = "ROLES_EDIT"

	PermPermissionsView = "PERMISSIONS_VIEW"
	PermPermissionsEdit = "PERMISSIONS_EDIT"
)

// AdminScopes lists all permissions related to catalog administration.
func AdminScopes() []string {
	return []string{
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermPermissionsEdit,
	}
}
