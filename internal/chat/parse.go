package chat

import (
	"encoding/json"
	"strings"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// FallbackReply is returned when the model produced nothing usable; the
// caller must never receive an empty reply.
const FallbackReply = "Sorry, I couldn't put together a reply just now. Please try again."

// envelope is the structured shape the model is instructed to emit when an
// action is warranted.
type envelope struct {
	Message string `json:"message"`
	Action  *struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	} `json:"action"`
}

// ParseReply extracts the user-facing message and an optional action from
// the raw model text, enforcing the bot's action policy server-side. The
// policy check happens here regardless of what the prompt asked for: a
// prompt-injected instruction to emit actions dies on this line, not in the
// model.
func ParseReply(text string, cfg *bot.Config) (string, *Action) {
	trimmed := stripFence(strings.TrimSpace(text))

	message := trimmed
	var action *Action

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil && strings.TrimSpace(env.Message) != "" {
			message = strings.TrimSpace(env.Message)
			action = actionFrom(env, cfg)
		}
		// malformed or shape-invalid JSON: the whole text stays the message
	}

	if !cfg.Actions.Enabled {
		// defense in depth: discard anything the model emitted
		action = nil
	}

	if strings.TrimSpace(message) == "" {
		message = FallbackReply
	}
	return message, action
}

func actionFrom(env envelope, cfg *bot.Config) *Action {
	if env.Action == nil {
		return nil
	}

	kind := bot.ActionKind(strings.ToLower(strings.TrimSpace(env.Action.Type)))
	if !bot.KnownActionKind(kind) {
		kind = bot.ActionNone
	}
	if kind != bot.ActionNone && !cfg.Actions.Allows(kind) {
		logx.Debug().Str("bot_id", cfg.ID).Str("kind", string(kind)).Msg("model action outside allowlist, downgrading")
		kind = bot.ActionNone
	}
	if kind == bot.ActionNone {
		return nil
	}

	a := &Action{Type: kind, Payload: env.Action.Payload}
	if kind == bot.ActionOpenContact {
		a.ContactURL = cfg.ContactURL
	}
	return a
}

// stripFence unwraps a ```json ... ``` fenced block, which models love to
// add around the envelope despite instructions.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the info string line, e.g. "json"
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
