package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/observer/internal/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Products *ProductHandler
	Likes    *LikeHandler
	Users    *UserHandler
}

// RouterDeps are the cross-cutting dependencies of the router.
type RouterDeps struct {
	// Authenticator resolves Session-ID tokens for protected routes.
	Authenticator middleware.Authenticator
	// Logger receives one entry per request.
	Logger *zap.Logger
	// LoginLimiter, when set, limits the public sign-in endpoints.
	LoginLimiter *middleware.RateLimiter
	// Metrics, when set, records every request.
	Metrics middleware.RequestObserver
	// MetricsHandler, when set, is served at /metrics.
	MetricsHandler http.Handler
}

// NewRouter constructs and returns an HTTP handler that serves
// the Observer API.
//
// Routes:
//
//	POST   /api/auth/register               → Auth.Register
//	POST   /api/auth/login                  → Auth.Login        (rate limited)
//	POST   /api/auth/apple/login            → Auth.SignIn       (rate limited)
//	POST   /api/auth/validate               → Auth.Validate
//	POST   /api/auth/refresh                → Auth.Refresh
//	POST   /api/auth/logout                 → Auth.Logout       (session)
//	GET    /api/auth/me                     → Auth.Me           (session)
//	GET    /api/product/search              → Products.Search
//	GET    /api/product/search/{id}         → Products.Get
//	GET    /api/likes/                      → Likes.List        (session)
//	POST   /api/likes/{userId}/product/{id} → Likes.Like        (session)
//	DELETE /api/likes/{userId}/product/{id} → Likes.Unlike      (session)
//	DELETE /api/users/{userId}              → Users.Delete      (session)
func NewRouter(h Handlers, deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(middleware.WithMetrics(deps.Metrics))
	}
	r.Use(middleware.WithRequestLogging(deps.Logger))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	sessionAuth := middleware.SessionAuth(deps.Authenticator)
	limited := func(r chi.Router) chi.Router {
		if deps.LoginLimiter == nil {
			return r
		}
		return r.With(deps.LoginLimiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		// Only allow JSON bodies
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			limited(r).Post("/login", h.Auth.Login)
			limited(r).Post("/apple/login", h.Auth.SignIn)
			r.Post("/validate", h.Auth.Validate)
			r.Post("/refresh", h.Auth.Refresh)

			r.With(sessionAuth).Post("/logout", h.Auth.Logout)
			r.With(sessionAuth).Get("/me", h.Auth.Me)
		})

		r.Get("/product/search", h.Products.Search)
		r.Get("/product/search/{id}", h.Products.Get)

		// Protected group: requires a valid session
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Get("/likes/", h.Likes.List)
			r.Post("/likes/{userId}/product/{id}", h.Likes.Like)
			r.Delete("/likes/{userId}/product/{id}", h.Likes.Unlike)
			r.Delete("/users/{userId}", h.Users.Delete)
		})
	})

	return r
}
