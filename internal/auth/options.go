// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"log/slog"
	"time"
)

// EventRecorder receives one observation per authentication event.
// observability.Metrics implements it.
type EventRecorder interface {
	RecordAuthEvent(event, result string)
}

// Event results passed to EventRecorder.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, string) {}

// options holds the optional collaborators shared by the services.
type options struct {
	logger    *slog.Logger
	now       func() time.Time
	notifier  Notifier
	clientURL string
	recorder  EventRecorder
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifier sets the notification sender for recovery tokens.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClientURL sets the base URL used to build password reset links.
func WithClientURL(url string) Option {
	return func(o *options) {
		o.clientURL = url
	}
}

// WithEventRecorder sets the metrics sink for authentication events.
func WithEventRecorder(r EventRecorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		now:      time.Now,
		notifier: NopNotifier{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
