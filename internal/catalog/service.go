package catalog

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/riviera-hms/riviera/internal/authz"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRoleByCode(ctx context.Context, code string) (Role, error)
	UserPermissions(ctx context.Context, actorID int64) ([]Permission, error)
	UserHasPermission(ctx context.Context, actorID int64, code string) (bool, error)
	ActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
}

// SnapshotInvalidator is notified after a committed write changes what a
// role grants, so cached actor snapshots can be refreshed or dropped.
type SnapshotInvalidator interface {
	InvalidateRole(ctx context.Context, roleID int64) error
}

// Service is the permission catalog surface: read paths for authorization
// decisions, write paths for role and permission administration.
type Service struct {
	repo        RepositoryPort
	hierarchy   *authz.Hierarchy
	invalidator SnapshotInvalidator
	logger      *slog.Logger
}

// NewService constructs a Service. The invalidator may be nil when no
// snapshot cache is in play (tests, one-shot tools).
func NewService(repo RepositoryPort, hierarchy *authz.Hierarchy, invalidator SnapshotInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, hierarchy: hierarchy, invalidator: invalidator, logger: logger}
}

// PermissionInput carries the fields of a permission write.
type PermissionInput struct {
	Code        string
	Name        string
	Description string
}

// RoleInput carries the fields of a role write. PermissionCodes, when
// non-nil, fully replaces the role's permission set.
type RoleInput struct {
	Code            string
	Name            string
	Description     string
	PermissionCodes *[]string
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListRoles returns all roles with their permission sets resolved.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by code.
func (s *Service) GetRole(ctx context.Context, code string) (Role, error) {
	return s.repo.GetRoleByCode(ctx, strings.TrimSpace(code))
}

// UserPermissions returns the actor's permission set, empty when the actor
// has no role assigned.
func (s *Service) UserPermissions(ctx context.Context, actorID int64) ([]Permission, error) {
	return s.repo.UserPermissions(ctx, actorID)
}

// UserPermissionCodes returns the actor's permission codes, used to build
// session snapshots.
func (s *Service) UserPermissionCodes(ctx context.Context, actorID int64) ([]string, error) {
	perms, err := s.repo.UserPermissions(ctx, actorID)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code)
	}
	return codes, nil
}

// UserHasPermission reports whether the actor's role grants the permission.
// Actors without a role hold nothing; this is a false, not an error.
func (s *Service) UserHasPermission(ctx context.Context, actorID int64, code string) (bool, error) {
	return s.repo.UserHasPermission(ctx, actorID, code)
}

// CreatePermission inserts a new permission. Duplicate codes fail with
// ErrConflict.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	perm, err := normalizePermissionInput(in)
	if err != nil {
		return Permission{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPermission(ctx, perm)
		if err != nil {
			return err
		}
		perm.ID = id
		return nil
	})
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// UpdatePermission updates an existing permission. Renaming to a code owned
// by another permission fails with ErrConflict.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	perm, err := normalizePermissionInput(in)
	if err != nil {
		return Permission{}, err
	}
	perm.ID = id
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.PermissionByID(ctx, id); err != nil {
			return err
		}
		return tx.UpdatePermission(ctx, perm)
	})
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// DeletePermission removes a permission. It fails with ErrInUse while any
// role still references it; the catalog is left untouched in that case.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.PermissionByID(ctx, id); err != nil {
			return err
		}
		count, err := tx.PermissionRoleCount(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: permission referenced by %d role(s)", ErrInUse, count)
		}
		return tx.DeletePermission(ctx, id)
	})
}

// CreateRole creates a role and, when permission codes are supplied, attaches
// each inside the same transaction: either the role and all attachments
// exist, or none do.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	role, err := normalizeRoleInput(in)
	if err != nil {
		return Role{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRole(ctx, role)
		if err != nil {
			return err
		}
		role.ID = id
		if in.PermissionCodes == nil {
			return nil
		}
		return attachByCodes(ctx, tx, id, *in.PermissionCodes)
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, role.ID)
	return role, nil
}

// UpdateRole updates role metadata and, when permission codes are supplied,
// replaces the role's whole permission set atomically with the update.
// Concurrent replacements of the same role serialize on the role row lock.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	role, err := normalizeRoleInput(in)
	if err != nil {
		return Role{}, err
	}
	role.ID = id
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockRole(ctx, id); err != nil {
			return err
		}
		if err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		if in.PermissionCodes == nil {
			return nil
		}
		if err := tx.DetachAllPermissions(ctx, id); err != nil {
			return err
		}
		return attachByCodes(ctx, tx, id, *in.PermissionCodes)
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, id)
	return role, nil
}

// DeleteRole detaches the role's permissions and removes it, atomically. It
// fails with ErrInUse while any actor still holds the role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockRole(ctx, id); err != nil {
			return err
		}
		count, err := tx.RoleActorCount(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: role held by %d actor(s)", ErrInUse, count)
		}
		if err := tx.DetachAllPermissions(ctx, id); err != nil {
			return err
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// AssignRole sets the actor's role and recomputes the stored base category
// for downstream checks. Fails with ErrNotFound when the role is absent.
func (s *Service) AssignRole(ctx context.Context, actorID, roleID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.RoleByID(ctx, roleID)
		if err != nil {
			return err
		}
		base := s.hierarchy.BaseOf(role.Code)
		return tx.SetActorRole(ctx, actorID, roleID, string(base))
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, roleID)
	return nil
}

// ActorIDsWithRole returns the actors currently holding the role, used by
// the snapshot refresh worker.
func (s *Service) ActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return s.repo.ActorIDsWithRole(ctx, roleID)
}

func (s *Service) invalidate(ctx context.Context, roleID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateRole(ctx, roleID); err != nil && s.logger != nil {
		s.logger.Warn("enqueue snapshot invalidation",
			slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}

func attachByCodes(ctx context.Context, tx TxRepository, roleID int64, codes []string) error {
	for _, code := range codes {
		permID, err := tx.PermissionIDByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return fmt.Errorf("permission %q: %w", code, err)
		}
		if err := tx.AttachPermission(ctx, roleID, permID); err != nil {
			return err
		}
	}
	return nil
}

func normalizePermissionInput(in PermissionInput) (Permission, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return Permission{}, fmt.Errorf("%w: permission code and name required", ErrValidation)
	}
	return Permission{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	}, nil
}

func normalizeRoleInput(in RoleInput) (Role, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return Role{}, fmt.Errorf("%w: role code and name required", ErrValidation)
	}
	return Role{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	}, nil
}
