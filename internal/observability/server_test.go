// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testClient = &http.Client{
	Timeout:   5 * time.Second,
	Transport: &http.Transport{DisableKeepAlives: true},
}

func quietServer(isReady ReadinessChecker) *Server {
	return NewServer("127.0.0.1:0", isReady, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func startServer(t *testing.T, isReady ReadinessChecker) *Server {
	t.Helper()
	server := quietServer(isReady)
	_, err := server.Start()
	require.NoError(t, err, "failed to start server")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := testClient.Get("http://" + server.Addr() + path)
	require.NoError(t, err, "GET %s", path)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")

	metrics := server.Metrics()
	metrics.RecordAuthEvent("login", "success")
	metrics.RecordHTTPRequest("/api/v1/auth/login", http.StatusOK, 20*time.Millisecond)

	_, body = get(t, server, "/metrics")
	assert.Contains(t, body, "guideli_auth_events_total")
	assert.Contains(t, body, "guideli_http_requests_total")
	assert.Contains(t, body, "guideli_http_request_duration_seconds")
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		isReady    ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{name: "ready", isReady: func() bool { return true }, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "not ready", isReady: func() bool { return false }, wantStatus: http.StatusServiceUnavailable, wantBody: "not ready"},
		{name: "nil checker", isReady: nil, wantStatus: http.StatusOK, wantBody: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.isReady)

			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	assert.Error(t, err, "expected error on double start")
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := quietServer(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil)
	second := NewServer(first.Addr(), nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := second.Start()
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, second.Stop(ctx))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := quietServer(nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr, "expected serve error after closing listener")
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := quietServer(nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
