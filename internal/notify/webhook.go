package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Guliveer/feedsync-go/internal/model"
)

// Webhook sends notifications via a generic HTTP webhook.
type Webhook struct {
	baseNotifier
	url        string
	method     string
	httpClient *http.Client
	now        func() time.Time
}

type webhookPayload struct {
	Event     string `json:"event"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Send delivers a notification via the configured webhook endpoint.
// POST sends the payload as a JSON body; GET sends the same fields as
// query parameters.
func (w *Webhook) Send(ctx context.Context, event model.Event, title, message string) error {
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	payload := webhookPayload{
		Event:     string(event),
		Title:     title,
		Message:   message,
		Timestamp: now().UTC().Format(time.RFC3339),
	}

	req, err := w.buildRequest(ctx, payload)
	if err != nil {
		return err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (w *Webhook) buildRequest(ctx context.Context, p webhookPayload) (*http.Request, error) {
	switch method := strings.ToUpper(w.method); method {
	case http.MethodGet:
		u, err := url.Parse(w.url)
		if err != nil {
			return nil, fmt.Errorf("webhook: parse url: %w", err)
		}
		q := u.Query()
		q.Set("event", p.Event)
		q.Set("title", p.Title)
		q.Set("message", p.Message)
		q.Set("timestamp", p.Timestamp)
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("webhook: create request: %w", err)
		}
		return req, nil

	case http.MethodPost:
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("webhook: marshal payload: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("webhook: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil

	default:
		return nil, fmt.Errorf("webhook: unsupported method %q (use GET or POST)", method)
	}
}
