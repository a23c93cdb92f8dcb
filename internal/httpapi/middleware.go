// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/guideli/guideli/internal/auth"
)

const tracerName = "github.com/guideli/guideli/internal/httpapi"

// unmatchedRoute labels requests that matched no route, keeping metric
// cardinality bounded.
const unmatchedRoute = "unmatched"

// RequestRecorder records per-route request metrics. observability.Metrics
// implements it.
type RequestRecorder interface {
	RecordHTTPRequest(route string, status int, elapsed time.Duration)
}

type userKey struct{}

// UserFromContext returns the user authenticated by the bearer middleware.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey{}).(*auth.User)
	return user, ok && user != nil
}

func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// instrument starts a server span per request and records route metrics once
// the handler returns. Spans and metrics are labelled with the chi route
// pattern, never the raw path.
func instrument(recorder RequestRecorder) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("http.request.method", r.Method)))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			if recorder != nil {
				recorder.RecordHTTPRequest(route, status, time.Since(start))
			}
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireBearer rejects requests without a valid bearer token and stores the
// resolved user in the request context.
func (a *API) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, r, a.logger, oops.Code("AUTH_BEARER_MISSING").Wrap(auth.ErrUnauthorized))
			return
		}
		user, err := a.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, r, a.logger, err)
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("enduser.id", user.ID.String()))
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// requireRole admits only users whose role the guard allows. It must run after
// requireBearer.
func (a *API) requireRole(guard auth.RoleGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFromContext(r.Context())
			if err := guard.Check(user); err != nil {
				respondError(w, r, a.logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
