package authz

import (
	"net/http"

	"log/slog"

	"github.com/riviera-hms/riviera/internal/observability"
)

// Middleware wires authorization enforcement for HTTP handlers. Denials
// short-circuit before any downstream handler runs: 401 when no actor is
// present, 403 otherwise. Catalog outages also answer 403 (fail closed) and
// are logged and counted separately so operators can tell them apart.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// RequireRoles ensures the current actor holds one of the given role codes,
// either literally or through the role hierarchy. An empty code list lets the
// request through.
func (m Middleware) RequireRoles(codes ...string) func(http.Handler) http.Handler {
	requirement := AnyOfRoles(codes...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(requirement.Roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := ActorFromContext(r.Context())
			decision, err := m.Authorizer.Authorize(r.Context(), actor, requirement)
			if err != nil {
				m.unavailable(w, err)
				return
			}
			m.finish(w, r, next, decision)
		})
	}
}

// RequirePermission ensures the current actor holds the permission according
// to the catalog. This is the authoritative path: the actor's snapshot is
// never consulted, which makes it the right guard for operations that mutate
// authorization state themselves.
func (m Middleware) RequirePermission(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				m.finish(w, r, next, Deny(ReasonUnauthenticated))
				return
			}
			granted, err := m.Authorizer.AuthorizeByPermission(r.Context(), actor.ID, code)
			if err != nil {
				m.unavailable(w, err)
				return
			}
			if granted {
				m.finish(w, r, next, Allow)
				return
			}
			m.finish(w, r, next, Deny(ReasonForbidden))
		})
	}
}

func (m Middleware) finish(w http.ResponseWriter, r *http.Request, next http.Handler, decision Decision) {
	if decision.Allowed {
		m.Metrics.RecordDecision("allow", "")
		next.ServeHTTP(w, r)
		return
	}
	m.Metrics.RecordDecision("deny", string(decision.Reason))
	if decision.Reason == ReasonUnauthenticated {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func (m Middleware) unavailable(w http.ResponseWriter, err error) {
	if m.Logger != nil {
		m.Logger.Error("authz catalog lookup", slog.Any("error", err))
	}
	m.Metrics.RecordDecision("deny", "unavailable")
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
