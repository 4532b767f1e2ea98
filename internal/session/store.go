// Package session persists actor capability snapshots for the lifetime of a
// session token. A snapshot is an accelerant for authorization decisions, not
// a source of truth: the permission catalog stays authoritative, and the
// worker drops snapshots whenever a catalog write changes what a role grants.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/riviera-hms/riviera/internal/authz"
)

const keyPrefix = "riviera:session:"
const actorIndexPrefix = "riviera:session_actor:"

// Snapshot is the materialized actor descriptor attached at session
// establishment.
type Snapshot struct {
	ActorID     int64     `json:"actor_id"`
	RoleCode    string    `json:"role_code"`
	BaseRole    string    `json:"base_role"`
	Permissions []string  `json:"permissions"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Actor converts the snapshot into the descriptor the authorizer consumes.
func (s *Snapshot) Actor() *authz.Actor {
	if s == nil {
		return nil
	}
	return &authz.Actor{
		ID:          s.ActorID,
		RoleCode:    s.RoleCode,
		Permissions: s.Permissions,
	}
}

// Store keeps snapshots in Redis keyed by an opaque session token, plus a
// per-actor token index so a single actor's snapshots can be dropped when
// their grants change.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. The ttl bounds snapshot staleness: a snapshot
// is never served past it.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Issue stores the snapshot under a fresh token and returns the token.
func (s *Store) Issue(ctx context.Context, snap Snapshot) (string, error) {
	token := uuid.NewString()
	if err := s.write(ctx, token, snap); err != nil {
		return "", err
	}
	if err := s.client.SAdd(ctx, actorKey(snap.ActorID), token).Err(); err != nil {
		return "", fmt.Errorf("session: index token: %w", err)
	}
	if err := s.client.Expire(ctx, actorKey(snap.ActorID), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: index expire: %w", err)
	}
	return token, nil
}

// Get returns the snapshot for a token, or nil when the token is unknown or
// expired. An unknown token is not an error: the caller proceeds
// unauthenticated.
func (s *Store) Get(ctx context.Context, token string) (*Snapshot, error) {
	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &snap, nil
}

// Refresh overwrites the snapshot stored under an existing token.
func (s *Store) Refresh(ctx context.Context, token string, snap Snapshot) error {
	return s.write(ctx, token, snap)
}

// Drop removes a single token.
func (s *Store) Drop(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: drop: %w", err)
	}
	return nil
}

// DropActor removes every snapshot held by the actor. Their next request
// falls back to the authoritative catalog.
func (s *Store) DropActor(ctx context.Context, actorID int64) error {
	tokens, err := s.client.SMembers(ctx, actorKey(actorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("session: list actor tokens: %w", err)
	}
	for _, token := range tokens {
		if err := s.Drop(ctx, token); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, actorKey(actorID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: drop actor index: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, token string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}

func actorKey(actorID int64) string {
	return actorIndexPrefix + strconv.FormatInt(actorID, 10)
}
