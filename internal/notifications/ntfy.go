package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ntfyPayload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	data, ok := formatNtfy(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Close() error { return nil }

func formatNtfy(event Event, payload Payload) (ntfyPayload, bool) {
	switch event {
	case EventWorkImported:
		message := fmt.Sprintf("📚 Imported: %s", describeWork(payload))
		if action := payloadString(payload, "action"); action != "" {
			message = fmt.Sprintf("%s\nScheduled: %s", message, action)
		}
		return ntfyPayload{
			title:   "Scriptorium - Work Imported",
			message: message,
			tags:    []string{"scriptorium", "import"},
		}, true
	case EventActionSucceeded:
		message := fmt.Sprintf("✅ %s succeeded for %s", payloadString(payload, "action"), describeWork(payload))
		if result := payloadString(payload, "result"); result != "" {
			message = fmt.Sprintf("%s\n%s", message, result)
		}
		return ntfyPayload{
			title:   "Scriptorium - Action Complete",
			message: message,
			tags:    []string{"scriptorium", "action", "completed"},
		}, true
	case EventActionFailed:
		message := fmt.Sprintf("❌ %s failed for %s", payloadString(payload, "action"), describeWork(payload))
		if result := payloadString(payload, "result"); result != "" {
			message = fmt.Sprintf("%s: %s", message, result)
		}
		return ntfyPayload{
			title:    "Scriptorium - Action Failed",
			message:  message,
			tags:     []string{"scriptorium", "action", "failed"},
			priority: "high",
		}, true
	case EventAnnouncement:
		return ntfyPayload{
			title:   "Scriptorium - " + describeWork(payload),
			message: payloadString(payload, "message"),
			tags:    []string{"scriptorium", "announce"},
		}, true
	case EventTest:
		return ntfyPayload{
			title:    "Scriptorium - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"scriptorium", "test"},
			priority: "low",
		}, true
	default:
		return ntfyPayload{}, false
	}
}

func describeWork(payload Payload) string {
	id := payloadString(payload, "work_id")
	title := payloadString(payload, "title")
	switch {
	case id == "" && title == "":
		return "unknown work"
	case title == "":
		return id
	case id == "":
		return title
	default:
		return fmt.Sprintf("%s (%s)", title, id)
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data ntfyPayload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
