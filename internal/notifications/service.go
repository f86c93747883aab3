package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"musicforge/internal/config"
)

const userAgent = "MusicForge/0.1.0"

// Event names a notification type.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventBatchCompleted Event = "batch_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys per event:
//
//	batch_started:   count (int), batch (string)
//	batch_completed: completed, skipped, failed (int), duration (time.Duration)
//	error:           error (error or string), context (string)
type Payload map[string]any

// Service defines the notification surface exposed to the dispatcher and CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		batch:    cfg.Notifications.Batch,
		errors:   cfg.Notifications.Errors,
	}
}

// NewNoop returns a service that drops every event.
func NewNoop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	batch    bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	var msg payload
	switch event {
	case EventBatchStarted:
		if !n.batch {
			return nil
		}
		msg = payload{
			title:   "MusicForge - Batch Started",
			message: fmt.Sprintf("Started processing %d files", intValue(data, "count")),
			tags:    []string{"musicforge", "batch", "started"},
		}
	case EventBatchCompleted:
		if !n.batch {
			return nil
		}
		msg = batchCompleted(data)
	case EventError:
		if !n.errors {
			return nil
		}
		msg = errorMessage(data)
	case EventTest:
		msg = payload{
			title:    "MusicForge - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"musicforge", "test"},
			priority: "low",
		}
	default:
		return nil
	}
	return n.send(ctx, msg)
}

func batchCompleted(data Payload) payload {
	completed := intValue(data, "completed")
	skipped := intValue(data, "skipped")
	failed := intValue(data, "failed")
	duration, _ := data["duration"].(time.Duration)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "MusicForge - Batch Complete"
	message := fmt.Sprintf("✅ %d converted, %d skipped in %s", completed, skipped, duration)
	if failed > 0 {
		title = "MusicForge - Batch Complete (with errors)"
		message = fmt.Sprintf("⚠️ %d converted, %d skipped, %d failed in %s", completed, skipped, failed, duration)
	}
	return payload{
		title:   title,
		message: message,
		tags:    []string{"musicforge", "batch", "completed"},
	}
}

func errorMessage(data Payload) payload {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if label, _ := data["context"].(string); strings.TrimSpace(label) != "" {
		builder.WriteString(" with ")
		builder.WriteString(strings.TrimSpace(label))
	}
	builder.WriteString(": ")
	switch v := data["error"].(type) {
	case error:
		builder.WriteString(strings.TrimSpace(v.Error()))
	case string:
		builder.WriteString(strings.TrimSpace(v))
	default:
		builder.WriteString("unknown")
	}
	return payload{
		title:    "MusicForge - Error",
		message:  builder.String(),
		tags:     []string{"musicforge", "error", "alert"},
		priority: "high",
	}
}

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
