package bot

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var idPattern = regexp.MustCompile(`[^a-z0-9_-]+`)

// Normalize turns an untrusted admin payload into a valid Config. The only
// fatal condition is a missing identifier: every other field independently
// falls back to the existing record, then to a hardcoded default, and is
// clamped to its global ceiling. Malformed values are coerced or dropped,
// never rejected, so a partial or sloppy admin write cannot brick a bot.
func Normalize(input map[string]any, existing *Config) (*Config, error) {
	if input == nil {
		input = map[string]any{}
	}

	id := cleanID(asString(input, "id"))
	if existing != nil {
		id = existing.ID // immutable after creation
	}
	if id == "" {
		return nil, fmt.Errorf("bot id is required")
	}

	now := time.Now().UTC()
	cfg := &Config{ID: id, CreatedAt: now, UpdatedAt: now}
	if existing != nil {
		prior := *existing
		cfg = &prior
		cfg.UpdatedAt = now
	}

	if v, ok := stringField(input, "name"); ok {
		cfg.Name = truncate(v, MaxNameChars)
	}
	if cfg.Name == "" {
		cfg.Name = id
	}
	if v, ok := stringField(input, "contactUrl"); ok {
		cfg.ContactURL = cleanHTTPURL(v)
	}
	if v, ok := stringField(input, "tone"); ok {
		cfg.Tone = truncate(v, MaxToneChars)
	}
	if v, ok := stringField(input, "model"); ok && v != "" {
		cfg.Model = v
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cfg.MaxTokens = intField(input, "maxTokens", pick(cfg.MaxTokens, DefaultMaxTokens))
	cfg.MaxTokens = clampInt(cfg.MaxTokens, MinMaxTokens, MaxMaxTokens)

	if raw, ok := input["allowedOrigins"]; ok {
		cfg.AllowedOrigins = normalizeOrigins(asStringSlice(raw))
	}
	if len(cfg.AllowedOrigins) > MaxAllowedOrigins {
		cfg.AllowedOrigins = cfg.AllowedOrigins[:MaxAllowedOrigins]
	}
	cfg.OriginPolicy = OriginPermissive
	if len(cfg.AllowedOrigins) > 0 {
		cfg.OriginPolicy = OriginStrict
	}

	if v, ok := stringField(input, "botKey"); ok {
		cfg.BotKey = v
	}

	if v, ok := stringField(input, "leadMode"); ok {
		cfg.LeadMode = LeadMode(strings.ToLower(strings.TrimSpace(v)))
	}
	switch cfg.LeadMode {
	case LeadSoft, LeadBalanced, LeadDirect:
	default:
		cfg.LeadMode = LeadBalanced
	}

	if raw, ok := input["qualifyingQuestions"]; ok {
		qs := asStringSlice(raw)
		if len(qs) > MaxQualifyingQuestions {
			qs = qs[:MaxQualifyingQuestions]
		}
		out := make([]string, 0, len(qs))
		for _, q := range qs {
			if q = strings.TrimSpace(truncate(q, MaxQualifyingQuestionLen)); q != "" {
				out = append(out, q)
			}
		}
		cfg.QualifyingQuestions = out
	}

	if v, ok := stringField(input, "knowledgeText"); ok {
		cfg.KnowledgeText = truncate(v, MaxKnowledgeTextChars)
	}
	if raw, ok := input["knowledgeUrls"]; ok {
		cfg.KnowledgeURLs = normalizeURLList(asStringSlice(raw))
	}
	if len(cfg.KnowledgeURLs) > MaxKnowledgeURLs {
		cfg.KnowledgeURLs = cfg.KnowledgeURLs[:MaxKnowledgeURLs]
	}

	normalizeRAG(section(input, "rag"), &cfg.RAG)
	normalizeConversation(section(input, "conversation"), &cfg.Conversation)
	normalizeRateLimit(section(input, "rateLimit"), &cfg.RateLimit)
	normalizeBudget(section(input, "budget"), &cfg.Budget)
	normalizeActions(section(input, "actions"), &cfg.Actions)

	return cfg, nil
}

func normalizeRAG(m map[string]any, r *RAGConfig) {
	if b, ok := boolField(m, "enabled"); ok {
		r.Enabled = b
	}
	if v, ok := stringField(m, "mode"); ok {
		r.Mode = RAGMode(strings.ToLower(strings.TrimSpace(v)))
	}
	switch r.Mode {
	case RAGSimple, RAGEmbed:
	default:
		r.Mode = RAGSimple
	}
	r.MaxURLsPerRequest = clampInt(intField(m, "maxUrlsPerRequest", pick(r.MaxURLsPerRequest, DefaultURLsPerRequest)), MinURLsPerRequest, MaxURLsPerRequest)
	r.TopK = clampInt(intField(m, "topK", pick(r.TopK, DefaultTopK)), MinTopK, MaxTopK)
	r.ChunkChars = clampInt(intField(m, "chunkChars", pick(r.ChunkChars, DefaultChunkChars)), MinChunkChars, MaxChunkChars)
	r.CacheTTLSeconds = clampInt(intField(m, "cacheTtlSeconds", pick(r.CacheTTLSeconds, DefaultCacheTTLSeconds)), MinCacheTTLSeconds, MaxCacheTTLSeconds)
	if v, ok := stringField(m, "embedModel"); ok && v != "" {
		r.EmbedModel = v
	}
	if r.EmbedModel == "" {
		r.EmbedModel = DefaultEmbedModel
	}
}

func normalizeConversation(m map[string]any, c *ConversationLimits) {
	c.MaxTurns = clampInt(intField(m, "maxTurns", pick(c.MaxTurns, DefaultMaxTurns)), MinMaxTurns, MaxMaxTurns)
	c.MaxMessageChars = clampInt(intField(m, "maxMessageChars", pick(c.MaxMessageChars, DefaultMessageChars)), MinMessageChars, MaxMessageChars)
}

func normalizeRateLimit(m map[string]any, r *RateLimit) {
	r.Requests = clampInt(intField(m, "requests", pick(r.Requests, DefaultRateRequests)), MinRateRequests, MaxRateRequests)
	r.WindowSeconds = clampInt(intField(m, "windowSeconds", pick(r.WindowSeconds, DefaultRateWindowSeconds)), MinRateWindowSeconds, MaxRateWindowSeconds)
}

func normalizeBudget(m map[string]any, b *Budget) {
	b.MaxRequestsPerDay = clampInt(intField(m, "maxRequestsPerDay", b.MaxRequestsPerDay), 0, MaxBudgetRequestsPerDay)
	b.MaxTokensPerDay = clampInt(intField(m, "maxTokensPerDay", b.MaxTokensPerDay), 0, MaxBudgetTokensPerDay)
}

func normalizeActions(m map[string]any, a *ActionPolicy) {
	if b, ok := boolField(m, "enabled"); ok {
		a.Enabled = b
	}
	if raw, ok := m["allowed"]; ok {
		kinds := make([]ActionKind, 0)
		for _, s := range asStringSlice(raw) {
			k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
			if k != ActionNone && KnownActionKind(k) && !containsKind(kinds, k) {
				kinds = append(kinds, k)
			}
		}
		a.Allowed = kinds
	}
	if v, ok := stringField(m, "webhookUrl"); ok {
		a.WebhookURL = cleanHTTPURL(v)
	}
	if v, ok := stringField(m, "webhookAuthHeader"); ok {
		a.WebhookAuthHeader = strings.TrimSpace(v)
	}
	if v, ok := stringField(m, "webhookSecret"); ok {
		a.WebhookSecret = v
	}
}

// ---- coercion helpers ----
// Admin payloads arrive as loosely typed JSON; each helper coerces the
// common wrong shapes (numbers as strings, scalars where lists belong)
// instead of failing the write.

func section(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return nil
}

func asString(m map[string]any, key string) string {
	v, _ := stringField(m, key)
	return v
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch vv := v.(type) {
	case string:
		return vv, true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(vv), true
	default:
		return "", false
	}
}

func intField(m map[string]any, key string, fallback int) int {
	if m == nil {
		return fallback
	}
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	switch vv := v.(type) {
	case float64:
		return int(vv)
	case int:
		return vv
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
			return n
		}
	}
	return fallback
}

func boolField(m map[string]any, key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	v, ok := m[key]
	if !ok {
		return false, false
	}
	switch vv := v.(type) {
	case bool:
		return vv, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(vv)); err == nil {
			return b, true
		}
	case float64:
		return vv != 0, true
	}
	return false, false
}

func asStringSlice(raw any) []string {
	switch vv := raw.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		if strings.TrimSpace(vv) == "" {
			return nil
		}
		return []string{vv}
	default:
		return nil
	}
}

func pick(current, fallback int) int {
	if current != 0 {
		return current
	}
	return fallback
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func cleanID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = idPattern.ReplaceAllString(s, "")
	return truncate(s, 64)
}

// cleanHTTPURL keeps only absolute http(s) URLs; anything else is dropped.
func cleanHTTPURL(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// normalizeOrigins reduces entries to scheme://host[:port] and drops
// anything unparseable.
func normalizeOrigins(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		origin := strings.ToLower(u.Scheme + "://" + u.Host)
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	return out
}

func normalizeURLList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		u := cleanHTTPURL(s)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func containsKind(kinds []ActionKind, k ActionKind) bool {
	for _, existing := range kinds {
		if existing == k {
			return true
		}
	}
	return false
}
