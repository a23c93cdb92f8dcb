// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/auth/authtest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []auth.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg auth.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last(t *testing.T) auth.Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no notification sent")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *recordingRecorder) RecordAuthEvent(event, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[event+"/"+result]++
}

func (r *recordingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

// env wires the services over an in-memory database with the default roles present.
type env struct {
	db       *authtest.DB
	store    *auth.CredentialStore
	identity *auth.IdentityService
	roles    *auth.RoleService
	notifier *recordingNotifier
	recorder *recordingRecorder
	clock    *fakeClock
	logs     *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, db := authtest.NewStore(t)
	db.SeedRoles()

	e := &env{
		db:       db,
		store:    store,
		notifier: &recordingNotifier{},
		recorder: &recordingRecorder{},
		clock:    newFakeClock(),
		logs:     &bytes.Buffer{},
	}
	opts := e.options()

	var err error
	e.identity, err = auth.NewIdentityService(store, opts...)
	require.NoError(t, err)
	e.roles, err = auth.NewRoleService(store, opts...)
	require.NoError(t, err)
	return e
}

func (e *env) options() []auth.Option {
	return []auth.Option{
		auth.WithLogger(slog.New(slog.NewJSONHandler(e.logs, &slog.HandlerOptions{ReplaceAttr: dropTime}))),
		auth.WithClock(e.clock.Now),
		auth.WithNotifier(e.notifier),
		auth.WithClientURL("https://app.example.com/"),
		auth.WithEventRecorder(e.recorder),
	}
}

// dropTime removes timestamps so token assertions on log output cannot match digits in them.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func (e *env) register(t *testing.T, email, password string) *auth.User {
	t.Helper()
	user, err := e.identity.Register(context.Background(), auth.RegisterParams{
		Email:     email,
		Password:  password,
		FirstName: "A",
		LastName:  "B",
	})
	require.NoError(t, err)
	return user
}
