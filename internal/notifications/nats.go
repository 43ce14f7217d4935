package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"scriptorium/internal/textutil"
)

// natsConn is the subset of *nats.Conn used for publishing.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// natsEnvelope is the JSON body published for every event.
type natsEnvelope struct {
	Event     Event   `json:"event"`
	Payload   Payload `json:"payload,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

type natsService struct {
	conn    natsConn
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

func newNATSService(url, subject string, timeout time.Duration) (*natsService, error) {
	conn, err := nats.Connect(url,
		nats.Name("scriptorium"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return newNATSServiceWithConn(conn, subject, timeout), nil
}

func newNATSServiceWithConn(conn natsConn, subject string, timeout time.Duration) *natsService {
	prefix := strings.Trim(strings.TrimSpace(subject), ".")
	if prefix == "" {
		prefix = "scriptorium.events"
	}
	return &natsService{conn: conn, prefix: prefix, timeout: timeout, now: time.Now}
}

// subject returns the NATS subject an event is published under.
func (n *natsService) subject(event Event) string {
	return n.prefix + "." + textutil.SanitizeToken(string(event))
}

func (n *natsService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(natsEnvelope{Event: event, Payload: payload, Timestamp: n.now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	subject := n.subject(event)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (n *natsService) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	// Best effort: buffered events are flushed before the connection closes.
	err := n.conn.FlushTimeout(n.timeout)
	n.conn.Close()
	n.conn = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
