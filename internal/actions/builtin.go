package actions

import (
	"context"
	"fmt"
	"strings"

	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
)

// Built-in action names.
const (
	NoopAction             = "noop"
	ValidateMetadataAction = "validate-metadata"
	AnnounceAction         = "announce"
)

// NoOpResult is the result text recorded by NoOpExecutor.
const NoOpResult = "no-op"

// RegisterBuiltins registers the executors shipped with scriptorium.
func RegisterBuiltins(registry *Registry, notifier notifications.Service) error {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	builtins := []struct {
		name     string
		executor Executor
	}{
		{NoopAction, NoOpExecutor{}},
		{ValidateMetadataAction, ValidateMetadataExecutor{}},
		{AnnounceAction, &AnnounceExecutor{Notifier: notifier}},
	}
	for _, builtin := range builtins {
		if err := registry.Register(builtin.name, builtin.executor); err != nil {
			return err
		}
	}
	return nil
}

// NoOpExecutor succeeds without doing anything.
type NoOpExecutor struct{}

// Perform implements Executor.
func (NoOpExecutor) Perform(ctx context.Context, _ *queue.Work, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return NoOpResult, nil
}

// Parameters implements ParameterDescriber.
func (NoOpExecutor) Parameters() []string { return nil }

// ValidateMetadataExecutor fails unless every key listed in the require
// parameter is present and non-empty on the work. The key "title" is checked
// against the work title.
type ValidateMetadataExecutor struct{}

// Parameters implements ParameterDescriber.
func (ValidateMetadataExecutor) Parameters() []string { return []string{"require"} }

// Perform implements Executor.
func (ValidateMetadataExecutor) Perform(ctx context.Context, work *queue.Work, params map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if work == nil {
		return "", services.Wrap(services.ErrExecutionFailed, ValidateMetadataAction, "perform", "work is nil", nil)
	}
	required := splitList(params["require"])
	if len(required) == 0 {
		return "no metadata required", nil
	}

	var missing []string
	for _, key := range required {
		value := work.Metadata[key]
		if key == "title" {
			value = work.Title
		}
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", services.Wrap(services.ErrExecutionFailed, ValidateMetadataAction, "perform",
			"missing metadata: "+strings.Join(missing, ", "), nil)
	}
	return "metadata complete: " + strings.Join(required, ", "), nil
}

// AnnounceExecutor publishes an announcement about the work.
type AnnounceExecutor struct {
	Notifier notifications.Service
}

// Parameters implements ParameterDescriber.
func (*AnnounceExecutor) Parameters() []string { return []string{"message"} }

// Perform implements Executor.
func (a *AnnounceExecutor) Perform(ctx context.Context, work *queue.Work, params map[string]string) (string, error) {
	if work == nil {
		return "", services.Wrap(services.ErrExecutionFailed, AnnounceAction, "perform", "work is nil", nil)
	}
	message := strings.TrimSpace(params["message"])
	if message == "" {
		message = "ready"
	}
	notifier := a.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	payload := notifications.Payload{
		"work_id": work.ID,
		"title":   work.Title,
		"message": message,
	}
	if err := notifier.Publish(ctx, notifications.EventAnnouncement, payload); err != nil {
		return "", services.Wrap(services.ErrExecutionFailed, AnnounceAction, "publish", "", err)
	}
	return fmt.Sprintf("announced %q", message), nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
