// Package notify posts run status and errors to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"bbbpartner/internal/config"
)

type Notifier interface {
	Status(ctx context.Context, status string) error
	Error(ctx context.Context, message string) error
}

type statusPayload struct {
	ToolName string `json:"tool_name"`
	Status   string `json:"status"`
}

type errorPayload struct {
	ToolName string `json:"tool_name"`
	Error    string `json:"error"`
}

// Webhook sends JSON payloads to the status and error hooks. An empty URL
// turns the matching message off.
type Webhook struct {
	httpClient *http.Client
	toolName   string
	statusURL  string
	errorURL   string
}

func NewWebhook(toolName, statusURL, errorURL string) *Webhook {
	return &Webhook{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		toolName:  toolName,
		statusURL: statusURL,
		errorURL:  errorURL,
	}
}

// New returns a Webhook, or a no-op notifier when notifications are disabled
// or no hook is configured.
func New(cfg config.NotifyConfig) Notifier {
	if cfg.Disabled || (cfg.StatusURL == "" && cfg.ErrorURL == "") {
		return Nop{}
	}
	return NewWebhook(cfg.ToolName, cfg.StatusURL, cfg.ErrorURL)
}

func (w *Webhook) Status(ctx context.Context, status string) error {
	if w.statusURL == "" {
		return nil
	}
	return w.post(ctx, w.statusURL, statusPayload{ToolName: w.toolName, Status: status})
}

func (w *Webhook) Error(ctx context.Context, message string) error {
	if w.errorURL == "" {
		return nil
	}
	return w.post(ctx, w.errorURL, errorPayload{ToolName: w.toolName, Error: message})
}

func (w *Webhook) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

type Nop struct{}

func (Nop) Status(context.Context, string) error { return nil }
func (Nop) Error(context.Context, string) error  { return nil }

// Logged wraps n so that delivery failures are logged instead of returned.
// Notifications never fail a run.
func Logged(n Notifier) Notifier {
	return logged{n}
}

type logged struct {
	next Notifier
}

func (l logged) Status(ctx context.Context, status string) error {
	if err := l.next.Status(ctx, status); err != nil {
		log.Printf("notify status failed: %v", err)
	}
	return nil
}

func (l logged) Error(ctx context.Context, message string) error {
	if err := l.next.Error(ctx, message); err != nil {
		log.Printf("notify error failed: %v", err)
	}
	return nil
}
