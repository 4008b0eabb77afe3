package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/utils"
)

// Discord sends notifications via a Discord webhook.
type Discord struct {
	baseNotifier
	webhookURL string
	httpClient *http.Client
}

// discordDescriptionLimit is the longest embed description Discord accepts.
const discordDescriptionLimit = 4096

// Send posts an embed message to the configured Discord webhook.
func (d *Discord) Send(ctx context.Context, event model.Event, title, message string) error {
	payload := map[string]any{
		"username": "feedsync",
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": utils.Truncate(message, discordDescriptionLimit),
				"color":       embedColor(event),
				"footer":      map[string]string{"text": string(event)},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}

	return nil
}

func embedColor(event model.Event) int {
	switch event {
	case model.EventPostDeleted, model.EventCommentDeleted, model.EventRealtimeLost:
		return 0xE74C3C
	case model.EventRealtimeConnected:
		return 0x2ECC71
	default:
		return 0x5865F2
	}
}
