// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

// StreamName is the JetStream stream that stores notifications.
const StreamName = "GUIDELI_NOTIFICATIONS"

// publisher is the part of nats.JetStreamContext NATSSender uses.
type publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// streamManager is the part of nats.JetStreamContext EnsureStream uses.
type streamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Message is the JSON payload published for each notification.
type Message struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Purpose   auth.TokenPurpose `json:"purpose"`
	Token     string            `json:"token"`
	Link      string            `json:"link,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NATSSender publishes notifications to <subject>.<purpose> on JetStream.
type NATSSender struct {
	conn    *nats.Conn
	js      publisher
	subject string
	now     func() time.Time
}

// ConnectNATS connects to url, makes sure the notification stream exists and
// returns a sender publishing under subject.
func ConnectNATS(url, subject string, opts ...nats.Option) (*NATSSender, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, oops.Code("NATS_CONNECT_FAILED").With("url", url).Wrap(err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, oops.Code("NATS_JETSTREAM_FAILED").Wrap(err)
	}

	if err := EnsureStream(js, subject); err != nil {
		nc.Close()
		return nil, err
	}

	s := newNATSSender(js, subject)
	s.conn = nc
	return s, nil
}

func newNATSSender(js publisher, subject string) *NATSSender {
	return &NATSSender{
		js:      js,
		subject: strings.TrimSuffix(subject, "."),
		now:     time.Now,
	}
}

// EnsureStream creates the notification stream covering subject.> when it
// does not exist yet.
func EnsureStream(js streamManager, subject string) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return oops.Code("NATS_STREAM_LOOKUP_FAILED").With("stream", StreamName).Wrap(err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{strings.TrimSuffix(subject, ".") + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		return oops.Code("NATS_STREAM_CREATE_FAILED").With("stream", StreamName).Wrap(err)
	}
	return nil
}

// Send implements auth.Notifier. The message id doubles as the JetStream
// deduplication id.
func (s *NATSSender) Send(ctx context.Context, n auth.Notification) error {
	msg := Message{
		ID:        ulid.Make().String(),
		Recipient: n.Recipient,
		Purpose:   n.Purpose,
		Token:     n.Token,
		Link:      n.Link,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	subject := s.subject + "." + string(n.Purpose)
	if _, err := s.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(msg.ID)); err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("subject", subject).
			With("purpose", string(n.Purpose)).
			Wrap(err)
	}
	return nil
}

// Close drains the connection, falling back to a hard close.
func (s *NATSSender) Close() {
	if s == nil || s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
}

var _ auth.Notifier = (*NATSSender)(nil)
