package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

const webhookTimeout = 5 * time.Second

// Dispatcher delivers actions that require external notification to the
// bot's webhook. Delivery is fire-and-forget: the chat response has already
// been decided, so every failure here is observed only in logs.
type Dispatcher struct {
	client *http.Client
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{client: &http.Client{Timeout: webhookTimeout}}
}

type webhookPayload struct {
	BotID     string  `json:"botId"`
	BotName   string  `json:"botName"`
	RequestID string  `json:"requestId"`
	Action    *Action `json:"action"`
	Timestamp string  `json:"timestamp"`
}

// MaybeDispatch fires the webhook for action kinds that need it. It returns
// immediately; the POST runs on its own goroutine with a bounded timeout.
// open_contact is handled client-side by the returned contact URL and never
// dispatched.
func (d *Dispatcher) MaybeDispatch(cfg *bot.Config, action *Action, requestID string) {
	if action == nil {
		return
	}
	switch action.Type {
	case bot.ActionCreateLead, bot.ActionWebhook:
	default:
		return
	}
	if cfg.Actions.WebhookURL == "" {
		logx.Debug().Str("bot_id", cfg.ID).Str("kind", string(action.Type)).Msg("action needs webhook but none configured")
		return
	}

	go d.deliver(cfg, action, requestID)
}

func (d *Dispatcher) deliver(cfg *bot.Config, action *Action, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	body, err := json.Marshal(webhookPayload{
		BotID:     cfg.ID,
		BotName:   cfg.Name,
		RequestID: requestID,
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logx.Warn().Err(err).Str("request_id", requestID).Msg("webhook payload encode failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Actions.WebhookURL, bytes.NewReader(body))
	if err != nil {
		logx.Warn().Err(err).Str("request_id", requestID).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Actions.WebhookAuthHeader != "" {
		req.Header.Set("Authorization", cfg.Actions.WebhookAuthHeader)
	}
	if cfg.Actions.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", cfg.Actions.WebhookSecret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		logx.Warn().Err(err).Str("request_id", requestID).Str("bot_id", cfg.ID).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logx.Warn().Int("status", resp.StatusCode).Str("request_id", requestID).Str("bot_id", cfg.ID).Msg("webhook rejected")
		return
	}
	logx.Debug().Str("request_id", requestID).Str("bot_id", cfg.ID).Str("kind", string(action.Type)).Msg("webhook delivered")
}
