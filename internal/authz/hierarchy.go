package authz

// Hierarchy resolves fine-grained role codes to base categories. The table is
// copied at construction and never mutated afterwards, so lookups are safe
// from any goroutine without synchronization.
type Hierarchy struct {
	table map[string]BaseRole
}

// NewHierarchy constructs a resolver over the given table.
func NewHierarchy(table map[string]BaseRole) *Hierarchy {
	copied := make(map[string]BaseRole, len(table))
	for code, base := range table {
		copied[code] = base
	}
	return &Hierarchy{table: copied}
}

// DefaultHierarchy returns the production role table. Review this table
// whenever a new role code is introduced: an omitted code resolves to
// customer, never to a higher category.
func DefaultHierarchy() *Hierarchy {
	return NewHierarchy(map[string]BaseRole{
		RoleSuperAdmin:       BaseAdministrator,
		RoleAdminGeneral:     BaseAdministrator,
		"RECEPTIONNISTE":     BaseStaff,
		"AGENT_ENTRETIEN":    BaseStaff,
		"AGENT_MAINTENANCE":  BaseStaff,
		"GESTIONNAIRE_STOCK": BaseStaff,
		"CLIENT":             BaseCustomer,
	})
}

// BaseOf resolves a role code to its base category. Unknown codes resolve to
// BaseCustomer.
func (h *Hierarchy) BaseOf(code string) BaseRole {
	if base, ok := h.table[code]; ok {
		return base
	}
	return BaseCustomer
}
