package app

import (
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/riviera-hms/riviera/internal/authz"
	"github.com/riviera-hms/riviera/internal/observability"
	"github.com/riviera-hms/riviera/internal/session"
)

const sessionHeader = "Authorization"
const sessionScheme = "Bearer "
const defaultRateWindow = time.Minute

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions *session.Store
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the Riviera middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	limit := 120
	window := defaultRateWindow
	if cfg.Config != nil && cfg.Config.RateLimit > 0 {
		limit = cfg.Config.RateLimit
		window = cfg.Config.RateLimitWindow
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		secureMiddleware.Handler,
		httprate.LimitByIP(limit, window),
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	stack = append(stack, actorLoader(cfg))
	return stack
}

// actorLoader resolves the session token into an actor descriptor and stores
// it in the request context. Requests without a token (or with an expired
// one) proceed unauthenticated; the enforcement middleware decides what that
// means per route.
func actorLoader(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || cfg.Sessions == nil {
				next.ServeHTTP(w, r)
				return
			}
			snap, err := cfg.Sessions.Get(r.Context(), token)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Error("load session snapshot", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			if snap == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := authz.ContextWithActor(r.Context(), snap.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(sessionHeader)
	if strings.HasPrefix(header, sessionScheme) {
		return strings.TrimSpace(strings.TrimPrefix(header, sessionScheme))
	}
	return ""
}
