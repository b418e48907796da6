package chat

import (
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/prompt"
)

// Request is one inbound chat call. Messages is the full client-side
// history; no conversation state is kept server-side.
type Request struct {
	BotID    string        `json:"botId"`
	Messages []prompt.Turn `json:"messages"`
	BotKey   string        `json:"botKey,omitempty"`

	// Transport attributes, filled by the HTTP layer.
	ClientIP  string `json:"-"`
	Origin    string `json:"-"`
	HeaderKey string `json:"-"`
	RequestID string `json:"-"`
}

// Key returns the bot key from header or body, header winning.
func (r Request) Key() string {
	if r.HeaderKey != "" {
		return r.HeaderKey
	}
	return r.BotKey
}

// Action is the transient structured outcome of one model call. It is never
// persisted: it is echoed to the caller and, for kinds needing external
// notification, forwarded to the bot's webhook.
type Action struct {
	Type       bot.ActionKind `json:"type"`
	ContactURL string         `json:"contactUrl,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Response is the success payload for one chat call.
type Response struct {
	Message   string  `json:"message"`
	Action    *Action `json:"action,omitempty"`
	RequestID string  `json:"requestId"`
}
