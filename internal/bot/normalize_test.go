package bot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRequiresID(t *testing.T) {
	_, err := Normalize(map[string]any{}, nil)
	require.Error(t, err)

	_, err = Normalize(map[string]any{"id": "   "}, nil)
	require.Error(t, err)

	cfg, err := Normalize(map[string]any{"id": "  Acme-Store  "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme-store", cfg.ID)
}

func TestNormalizeClampsNumericFields(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		check func(t *testing.T, cfg *Config)
	}{
		{
			name:  "negative max tokens",
			input: map[string]any{"id": "a", "maxTokens": -50},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MinMaxTokens, cfg.MaxTokens)
			},
		},
		{
			name:  "huge max tokens",
			input: map[string]any{"id": "a", "maxTokens": 9999999},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MaxMaxTokens, cfg.MaxTokens)
			},
		},
		{
			name:  "numeric string coerced",
			input: map[string]any{"id": "a", "maxTokens": "256"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 256, cfg.MaxTokens)
			},
		},
		{
			name:  "garbage string falls back to default",
			input: map[string]any{"id": "a", "maxTokens": "lots"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
			},
		},
		{
			name:  "missing fields get defaults",
			input: map[string]any{"id": "a"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
				assert.Equal(t, DefaultMaxTurns, cfg.Conversation.MaxTurns)
				assert.Equal(t, DefaultRateRequests, cfg.RateLimit.Requests)
				assert.Equal(t, DefaultRateWindowSeconds, cfg.RateLimit.WindowSeconds)
			},
		},
		{
			name: "rag tuning clamped independently",
			input: map[string]any{"id": "a", "rag": map[string]any{
				"enabled":           true,
				"maxUrlsPerRequest": 100,
				"topK":              -3,
				"chunkChars":        "5",
				"cacheTtlSeconds":   1,
			}},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MaxURLsPerRequest, cfg.RAG.MaxURLsPerRequest)
				assert.Equal(t, MinTopK, cfg.RAG.TopK)
				assert.Equal(t, MinChunkChars, cfg.RAG.ChunkChars)
				assert.Equal(t, MinCacheTTLSeconds, cfg.RAG.CacheTTLSeconds)
			},
		},
		{
			name:  "budget zero stays zero (dimension disabled)",
			input: map[string]any{"id": "a", "budget": map[string]any{"maxRequestsPerDay": 0}},
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Budget.MaxRequestsPerDay)
			},
		},
		{
			name:  "negative budget clamped to zero",
			input: map[string]any{"id": "a", "budget": map[string]any{"maxTokensPerDay": -1}},
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Budget.MaxTokensPerDay)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Normalize(tt.input, nil)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNormalizeOrigins(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"id": "a",
		"allowedOrigins": []any{
			"https://Example.com/some/path",
			"https://example.com",      // duplicate after reduction
			"ftp://files.example.com",  // wrong scheme, dropped
			"not a url",                // dropped
			"http://localhost:3000",
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, OriginStrict, cfg.OriginPolicy)
}

func TestNormalizeOriginPolicyPermissiveWhenEmpty(t *testing.T) {
	cfg, err := Normalize(map[string]any{"id": "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, OriginPermissive, cfg.OriginPolicy)
}

func TestNormalizeKnowledgeURLsTruncatedNotRejected(t *testing.T) {
	urls := make([]any, 0, MaxKnowledgeURLs+10)
	for i := 0; i < MaxKnowledgeURLs+10; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/page/%d", i))
	}
	cfg, err := Normalize(map[string]any{"id": "a", "knowledgeUrls": urls}, nil)
	require.NoError(t, err)
	assert.Len(t, cfg.KnowledgeURLs, MaxKnowledgeURLs)
}

func TestNormalizeCoercesEnums(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"id":       "a",
		"leadMode": "AGGRESSIVE",
		"rag":      map[string]any{"mode": "quantum"},
		"actions": map[string]any{
			"enabled": true,
			"allowed": []any{"create_lead", "rm_rf", "create_lead", "webhook"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, LeadBalanced, cfg.LeadMode)
	assert.Equal(t, RAGSimple, cfg.RAG.Mode)
	assert.Equal(t, []ActionKind{ActionCreateLead, ActionWebhook}, cfg.Actions.Allowed)
}

func TestNormalizeKeepsExistingFieldsOnPartialWrite(t *testing.T) {
	first, err := Normalize(map[string]any{
		"id":        "a",
		"name":      "Acme",
		"maxTokens": 512,
		"botKey":    "secret",
	}, nil)
	require.NoError(t, err)

	second, err := Normalize(map[string]any{"id": "a", "name": "Acme v2"}, first)
	require.NoError(t, err)

	assert.Equal(t, "Acme v2", second.Name)
	assert.Equal(t, 512, second.MaxTokens)
	assert.Equal(t, "secret", second.BotKey)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestNormalizeIdempotent(t *testing.T) {
	input := map[string]any{
		"id":        "a",
		"name":      "Acme",
		"maxTokens": 512,
		"allowedOrigins": []any{"https://example.com"},
		"rag": map[string]any{"enabled": true, "mode": "embed", "topK": 4},
	}

	first, err := Normalize(input, nil)
	require.NoError(t, err)
	second, err := Normalize(input, first)
	require.NoError(t, err)

	// Identical input must normalize to an identical record; only the
	// write timestamp moves.
	second.CreatedAt = first.CreatedAt
	second.UpdatedAt = first.UpdatedAt
	assert.Equal(t, first, second)
}

func TestActionPolicyAllows(t *testing.T) {
	disabled := ActionPolicy{Enabled: false}
	assert.False(t, disabled.Allows(ActionCreateLead))

	open := ActionPolicy{Enabled: true}
	assert.True(t, open.Allows(ActionCreateLead))
	assert.True(t, open.Allows(ActionOpenContact))
	assert.False(t, open.Allows(ActionKind("exfiltrate")))

	restricted := ActionPolicy{Enabled: true, Allowed: []ActionKind{ActionOpenContact}}
	assert.True(t, restricted.Allows(ActionOpenContact))
	assert.False(t, restricted.Allows(ActionCreateLead))
}
