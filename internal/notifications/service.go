package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"scriptorium/internal/config"
)

const userAgent = "Scriptorium-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventWorkImported    Event = "work_imported"
	EventActionSucceeded Event = "action_succeeded"
	EventActionFailed    Event = "action_failed"
	EventAnnouncement    Event = "announcement"
	EventTest            Event = "test"
)

// Payload carries event-specific fields. Values are rendered with fmt when a
// transport needs text.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds a notification service from configuration. When neither
// an ntfy topic nor a NATS URL is configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) (Service, error) {
	if cfg == nil {
		return noopService{}, nil
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var services []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		services = append(services, newNtfyService(topic, timeout))
	}
	if url := strings.TrimSpace(cfg.Notifications.NATSURL); url != "" {
		svc, err := newNATSService(url, cfg.Notifications.NATSSubject, timeout)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	switch len(services) {
	case 0:
		return noopService{}, nil
	case 1:
		return services[0], nil
	default:
		return multiService(services), nil
	}
}

// NewNoop returns a service that discards every event.
func NewNoop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }

// multiService fans an event out to every backend. All backends are attempted
// even when one fails.
type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, svc := range m {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
