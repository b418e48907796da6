package bot

import "time"

// LeadMode controls how pushy the assistant is about capturing a lead.
type LeadMode string

const (
	LeadSoft     LeadMode = "soft"
	LeadBalanced LeadMode = "balanced"
	LeadDirect   LeadMode = "direct"
)

// RAGMode selects how knowledge URLs are turned into context.
type RAGMode string

const (
	// RAGSimple picks URLs by a term-overlap heuristic and includes raw
	// page excerpts.
	RAGSimple RAGMode = "simple"
	// RAGEmbed ranks page chunks by embedding similarity to the question.
	RAGEmbed RAGMode = "embed"
)

// OriginPolicy is derived from the allowlist at write time so the security
// posture of a bot is visible in its stored record rather than implied.
type OriginPolicy string

const (
	// OriginPermissive accepts any Origin. The default when no allowlist is
	// configured; operators are expected to override it for production bots.
	OriginPermissive OriginPolicy = "permissive"
	OriginStrict     OriginPolicy = "strict"
)

// ActionKind is the closed set of structured actions a model reply may carry.
type ActionKind string

const (
	ActionNone        ActionKind = "none"
	ActionOpenContact ActionKind = "open_contact"
	ActionCreateLead  ActionKind = "create_lead"
	ActionWebhook     ActionKind = "webhook"
)

// KnownActionKind reports whether k is part of the closed enum. "none" is
// always known but never needs to be allowlisted.
func KnownActionKind(k ActionKind) bool {
	switch k {
	case ActionNone, ActionOpenContact, ActionCreateLead, ActionWebhook:
		return true
	}
	return false
}

// Config is one tenant's bot. It is mutated only through the admin path and
// is read-only at request time. Every numeric and list field is clamped at
// write time (see Normalize), so request-time code may trust the ranges.
type Config struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ContactURL string `json:"contactUrl,omitempty"`
	Tone       string `json:"tone,omitempty"`

	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`

	AllowedOrigins []string     `json:"allowedOrigins"`
	OriginPolicy   OriginPolicy `json:"originPolicy"`
	BotKey         string       `json:"botKey,omitempty"`

	LeadMode            LeadMode `json:"leadMode"`
	QualifyingQuestions []string `json:"qualifyingQuestions"`

	KnowledgeText string   `json:"knowledgeText,omitempty"`
	KnowledgeURLs []string `json:"knowledgeUrls"`

	RAG          RAGConfig          `json:"rag"`
	Conversation ConversationLimits `json:"conversation"`
	RateLimit    RateLimit          `json:"rateLimit"`
	Budget       Budget             `json:"budget"`
	Actions      ActionPolicy       `json:"actions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RAGConfig struct {
	Enabled           bool    `json:"enabled"`
	Mode              RAGMode `json:"mode"`
	MaxURLsPerRequest int     `json:"maxUrlsPerRequest"`
	TopK              int     `json:"topK"`
	ChunkChars        int     `json:"chunkChars"`
	CacheTTLSeconds   int     `json:"cacheTtlSeconds"`
	EmbedModel        string  `json:"embedModel"`
}

type ConversationLimits struct {
	MaxTurns        int `json:"maxTurns"`
	MaxMessageChars int `json:"maxMessageChars"`
}

// RateLimit is the per-(bot, client IP) fixed-window ceiling.
type RateLimit struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"windowSeconds"`
}

// Budget is the per-bot daily hard stop. A zero ceiling disables that
// dimension's check.
type Budget struct {
	MaxRequestsPerDay int `json:"maxRequestsPerDay"`
	MaxTokensPerDay   int `json:"maxTokensPerDay"`
}

type ActionPolicy struct {
	Enabled           bool         `json:"enabled"`
	Allowed           []ActionKind `json:"allowed"`
	WebhookURL        string       `json:"webhookUrl,omitempty"`
	WebhookAuthHeader string       `json:"webhookAuthHeader,omitempty"`
	WebhookSecret     string       `json:"webhookSecret,omitempty"`
}

// Allows reports whether the policy permits kind. An empty allowlist with
// actions enabled permits every known kind.
func (p ActionPolicy) Allows(kind ActionKind) bool {
	if !p.Enabled {
		return false
	}
	if kind == ActionNone {
		return true
	}
	if len(p.Allowed) == 0 {
		return KnownActionKind(kind)
	}
	for _, k := range p.Allowed {
		if k == kind {
			return true
		}
	}
	return false
}
