// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/auth/authtest"
	"github.com/guideli/guideli/internal/httpapi"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []auth.Notification
}

func (n *capturingNotifier) Send(_ context.Context, msg auth.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *capturingNotifier) last(t *testing.T, purpose auth.TokenPurpose) auth.Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Purpose == purpose {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", purpose)
	return auth.Notification{}
}

type requestRecord struct {
	route  string
	status int
}

type capturingRecorder struct {
	mu      sync.Mutex
	records []requestRecord
}

func (r *capturingRecorder) RecordHTTPRequest(route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, requestRecord{route: route, status: status})
}

func (r *capturingRecorder) all() []requestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]requestRecord(nil), r.records...)
}

type fakeProvider struct {
	identity     auth.FederatedIdentity
	err          error
	gotCode      string
	gotVerifier  string
	authCodeBase string
}

func (p *fakeProvider) AuthCodeURL(state, _ string) string {
	return p.authCodeBase + "?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (auth.FederatedIdentity, error) {
	p.gotCode, p.gotVerifier = code, verifier
	return p.identity, p.err
}

type testEnv struct {
	db            *authtest.DB
	handler       http.Handler
	authenticator *auth.Authenticator
	identity      *auth.IdentityService
	roles         *auth.RoleService
	notifier      *capturingNotifier
	recorder      *capturingRecorder
}

type envOption func(*httpapi.Deps, *httpapi.Config)

func withGoogle(p httpapi.FederatedProvider) envOption {
	return func(d *httpapi.Deps, _ *httpapi.Config) { d.Google = p }
}

func withOrigins(origins ...string) envOption {
	return func(_ *httpapi.Deps, c *httpapi.Config) { c.AllowedOrigins = origins }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	store, db := authtest.NewStore(t)
	db.SeedRoles()

	e := &testEnv{db: db, notifier: &capturingNotifier{}, recorder: &capturingRecorder{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authOpts := []auth.Option{auth.WithLogger(logger), auth.WithNotifier(e.notifier)}

	var err error
	e.identity, err = auth.NewIdentityService(store, authOpts...)
	require.NoError(t, err)
	e.roles, err = auth.NewRoleService(store, authOpts...)
	require.NoError(t, err)
	signer, err := auth.NewJWTSigner(testSigningKey, time.Hour, "guideli", time.Now)
	require.NoError(t, err)
	e.authenticator, err = auth.NewAuthenticator(e.identity, signer, authOpts...)
	require.NoError(t, err)

	deps := httpapi.Deps{
		Authenticator: e.authenticator,
		Identity:      e.identity,
		Roles:         e.roles,
		Recorder:      e.recorder,
		Logger:        logger,
	}
	var cfg httpapi.Config
	for _, opt := range opts {
		opt(&deps, &cfg)
	}
	api, err := httpapi.New(deps, cfg)
	require.NoError(t, err)
	e.handler = api.Routes()
	return e
}

// session registers an account with the given role and returns its bearer token.
func (e *testEnv) session(t *testing.T, email, role string) *auth.Session {
	t.Helper()
	s, err := e.authenticator.Register(context.Background(), auth.RegisterParams{
		Email:     email,
		Password:  "Abc12345",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return s
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	}
	return rec, resp
}

func decodeData(t *testing.T, resp response, dest any) {
	t.Helper()
	require.NotEmpty(t, resp.Data, "response has no data")
	require.NoError(t, json.Unmarshal(resp.Data, dest))
}
