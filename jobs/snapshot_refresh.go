package jobs

import (
	"context"
	"encoding/json"

	"log/slog"

	"github.com/hibiken/asynq"
)

// CatalogPort exposes the catalog read needed by the refresher.
type CatalogPort interface {
	ActorIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)
}

// SessionPort exposes the snapshot store operation needed by the refresher.
type SessionPort interface {
	DropActor(ctx context.Context, actorID int64) error
}

// SnapshotRefresher drops the cached snapshots of every actor holding a role
// whose grants changed. The next request of each rebuilds against the
// authoritative catalog.
type SnapshotRefresher struct {
	Catalog  CatalogPort
	Sessions SessionPort
	Logger   *slog.Logger
}

// HandleSnapshotRefresh processes TaskTypeSnapshotRefresh tasks.
func (s SnapshotRefresher) HandleSnapshotRefresh(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	actorIDs, err := s.Catalog.ActorIDsWithRole(ctx, payload.RoleID)
	if err != nil {
		return err
	}
	for _, actorID := range actorIDs {
		if err := s.Sessions.DropActor(ctx, actorID); err != nil {
			return err
		}
	}
	if s.Logger != nil {
		s.Logger.Info("snapshots refreshed",
			slog.Int64("role_id", payload.RoleID),
			slog.Int("actors", len(actorIDs)))
	}
	return nil
}
