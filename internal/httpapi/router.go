// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package httpapi exposes the identity operations as a JSON API under /api/v1.
// Every response uses the {success, message, data} envelope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

const requestTimeout = 30 * time.Second

// FederatedProvider runs an external authorization code flow.
// oauth.GoogleProvider implements it.
type FederatedProvider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (auth.FederatedIdentity, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
	// SecureCookies sets the Secure flag on the OAuth state cookie.
	SecureCookies bool
}

// Deps are the services the handlers call.
type Deps struct {
	Authenticator *auth.Authenticator
	Identity      *auth.IdentityService
	Roles         *auth.RoleService
	// Google is nil when federated login is not configured.
	Google   FederatedProvider
	Recorder RequestRecorder
	Logger   *slog.Logger
}

// API wires the identity services to HTTP handlers.
type API struct {
	authenticator *auth.Authenticator
	identity      *auth.IdentityService
	roles         *auth.RoleService
	google        FederatedProvider
	recorder      RequestRecorder
	logger        *slog.Logger
	config        Config
}

// New creates an API.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Authenticator == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("authenticator is required")
	}
	if deps.Identity == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("identity service is required")
	}
	if deps.Roles == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("role service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		authenticator: deps.Authenticator,
		identity:      deps.Identity,
		roles:         deps.Roles,
		google:        deps.Google,
		recorder:      deps.Recorder,
		logger:        logger,
		config:        cfg,
	}, nil
}

func (a *API) corsOptions() cors.Options {
	origins := a.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: len(a.config.AllowedOrigins) > 0,
		MaxAge:           600,
	}
}

// Routes constructs the chi router containing every endpoint.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(a.recorder))
	r.Use(cors.Handler(a.corsOptions()))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondOK(w, http.StatusOK, "ok", nil)
	})

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Get("/google", a.handleGoogleStart)
			r.Get("/google/callback", a.handleGoogleCallback)
			r.With(a.requireBearer).Get("/confirm-email", a.handleResendVerification)
			r.Post("/confirm-email", a.handleConfirmEmail)
			r.Get("/change-password", a.handleRequestPasswordReset)
			r.Post("/change-password", a.handleCompletePasswordReset)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(a.requireBearer)
			r.Get("/me", a.handleMe)
			r.Group(func(r chi.Router) {
				r.Use(a.requireRole(auth.NewRoleGuard(auth.RoleSuperAdmin, auth.RoleAdmin)))
				r.Get("/", a.handleListUsers)
				r.Get("/{id}", a.handleGetUser)
				r.Patch("/{id}", a.handleUpdateUser)
				r.Delete("/{id}", a.handleDeleteUser)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(a.requireBearer)
			r.Use(a.requireRole(auth.NewRoleGuard(auth.RoleSuperAdmin)))
			r.Get("/", a.handleListRoles)
			r.Post("/", a.handleCreateRole)
			r.Get("/{id}", a.handleGetRole)
			r.Patch("/{id}", a.handleUpdateRole)
			r.Delete("/{id}", a.handleDeleteRole)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusNotFound, Envelope{Message: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "method not allowed"})
	})

	return r
}
