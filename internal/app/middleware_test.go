package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riviera-hms/riviera/internal/authz"
	"github.com/riviera-hms/riviera/internal/session"
	_ "github.com/riviera-hms/riviera/testing"
)

func newSessionStore(t *testing.T) *session.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewStore(client, time.Hour)
}

func loadedActor(t *testing.T, store *session.Store, header string) *authz.Actor {
	t.Helper()
	var got *authz.Actor
	mw := actorLoader(MiddlewareConfig{Sessions: store})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authz.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	res := httptest.NewRecorder()
	mw(next).ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	return got
}

func TestActorLoaderResolvesBearerToken(t *testing.T) {
	store := newSessionStore(t)
	token, err := store.Issue(context.Background(), session.Snapshot{
		ActorID:     7,
		RoleCode:    "RECEPTIONNISTE",
		Permissions: []string{"MANAGE_RESERVATIONS"},
		IssuedAt:    time.Now(),
	})
	require.NoError(t, err)

	actor := loadedActor(t, store, "Bearer "+token)
	require.NotNil(t, actor)
	assert.Equal(t, int64(7), actor.ID)
	assert.Equal(t, "RECEPTIONNISTE", actor.RoleCode)
	assert.Equal(t, []string{"MANAGE_RESERVATIONS"}, actor.Permissions)
}

func TestActorLoaderUnknownTokenProceedsAnonymous(t *testing.T) {
	store := newSessionStore(t)

	assert.Nil(t, loadedActor(t, store, "Bearer not-a-session"))
	assert.Nil(t, loadedActor(t, store, ""))
	assert.Nil(t, loadedActor(t, store, "Basic dXNlcjpwdw=="))
}

func TestMiddlewareStackOrder(t *testing.T) {
	stack := MiddlewareStack(MiddlewareConfig{})
	// Request id, real ip, recoverer, secure headers, rate limiter, actor
	// loader. Metrics is absent when no collector is configured.
	assert.Len(t, stack, 6)
}
