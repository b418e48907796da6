// Package prompt builds the size-capped message sequence sent to the
// inference service: one system message (persona, rules, knowledge block)
// plus a bounded window of the caller-supplied conversation history.
package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
)

//go:embed template/system_prompt.txt
var systemTemplate string

// Hard ceilings applied regardless of per-bot settings. Together they bound
// the worst-case payload to the inference service under adversarial input.
const (
	MaxSystemChars = 24000
	MaxTotalChars  = 48000
)

// Turn is one caller-supplied conversation entry. History lives client-side;
// nothing here is persisted.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var leadStyles = map[bot.LeadMode]string{
	bot.LeadSoft:     "help first; only mention leaving contact details if the visitor shows clear interest.",
	bot.LeadBalanced: "be helpful and, when interest shows, suggest leaving contact details or booking a chat.",
	bot.LeadDirect:   "actively steer the conversation toward capturing the visitor's contact details.",
}

// Assemble renders the system message and windows the history into an
// ordered message list. The system message is always first and never
// dropped; turns are dropped oldest-first to satisfy the total ceiling.
func Assemble(ctx context.Context, cfg *bot.Config, knowledgeBlock string, turns []Turn) ([]*schema.Message, error) {
	system, err := renderSystem(ctx, cfg, turns)
	if err != nil {
		return nil, err
	}

	if knowledgeBlock != "" {
		system += "\n\n--- Website content ---\n" + knowledgeBlock
	}
	system = truncateRunes(system, MaxSystemChars)

	window := windowTurns(cfg, turns)

	// Enforce the global total-input ceiling by dropping oldest turns.
	budget := MaxTotalChars - runeLen(system)
	total := 0
	for _, t := range window {
		total += runeLen(t.Content)
	}
	for len(window) > 0 && total > budget {
		total -= runeLen(window[0].Content)
		window = window[1:]
	}

	msgs := make([]*schema.Message, 0, len(window)+1)
	msgs = append(msgs, schema.SystemMessage(system))
	for _, t := range window {
		if t.Role == "assistant" {
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		} else {
			msgs = append(msgs, schema.UserMessage(t.Content))
		}
	}
	return msgs, nil
}

func renderSystem(ctx context.Context, cfg *bot.Config, turns []Turn) (string, error) {
	allowed := make([]string, 0, len(cfg.Actions.Allowed))
	for _, k := range cfg.Actions.Allowed {
		allowed = append(allowed, string(k))
	}
	if len(allowed) == 0 {
		allowed = []string{string(bot.ActionOpenContact), string(bot.ActionCreateLead), string(bot.ActionWebhook)}
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemTemplate),
	)
	vars := map[string]any{
		"BotName":             cfg.Name,
		"Tone":                cfg.Tone,
		"LeadStyle":           leadStyles[cfg.LeadMode],
		"QualifyingQuestions": cfg.QualifyingQuestions,
		"ContactURL":          cfg.ContactURL,
		"Language":            detectLanguage(turns),
		"ActionsEnabled":      cfg.Actions.Enabled,
		"AllowedKinds":        strings.Join(allowed, ", "),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// windowTurns keeps the most recent turns within the bot's window, each
// individually truncated. Non-user/assistant roles and empty-after-trim
// entries are dropped before windowing.
func windowTurns(cfg *bot.Config, turns []Turn) []Turn {
	cleaned := make([]Turn, 0, len(turns))
	for _, t := range turns {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(truncateRunes(t.Content, cfg.Conversation.MaxMessageChars))
		if content == "" {
			continue
		}
		cleaned = append(cleaned, Turn{Role: role, Content: content})
	}

	maxTurns := cfg.Conversation.MaxTurns
	if maxTurns > bot.MaxMaxTurns {
		maxTurns = bot.MaxMaxTurns
	}
	if len(cleaned) > maxTurns {
		cleaned = cleaned[len(cleaned)-maxTurns:]
	}
	return cleaned
}

// detectLanguage returns an ISO 639-3 code for the latest user turn, empty
// when detection is unreliable (short or mixed-language input).
func detectLanguage(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(turns[i].Role), "user") {
			info := whatlanggo.Detect(turns[i].Content)
			if info.IsReliable() {
				return whatlanggo.LangToString(info.Lang)
			}
			return ""
		}
	}
	return ""
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
