package bot

// Global ceilings. Configuration is admin-supplied and otherwise untrusted,
// so every numeric and list field is forced into these ranges at write time.
// Request-time code relies on that guarantee and never re-validates.
const (
	MinMaxTokens     = 32
	MaxMaxTokens     = 4096
	DefaultMaxTokens = 1024

	MinMaxTurns     = 1
	MaxMaxTurns     = 30
	DefaultMaxTurns = 12

	MinMessageChars     = 64
	MaxMessageChars     = 8000
	DefaultMessageChars = 2000

	MaxQualifyingQuestions    = 10
	MaxQualifyingQuestionLen  = 300
	MaxKnowledgeTextChars     = 20000
	MaxKnowledgeURLs          = 20
	MaxNameChars              = 120
	MaxToneChars              = 1000
	MaxAllowedOrigins         = 30

	MinURLsPerRequest     = 1
	MaxURLsPerRequest     = 5
	DefaultURLsPerRequest = 2

	MinTopK     = 1
	MaxTopK     = 12
	DefaultTopK = 6

	MinChunkChars     = 200
	MaxChunkChars     = 2000
	DefaultChunkChars = 800

	MinCacheTTLSeconds     = 60
	MaxCacheTTLSeconds     = 7 * 24 * 3600
	DefaultCacheTTLSeconds = 6 * 3600

	MinRateRequests     = 1
	MaxRateRequests     = 600
	DefaultRateRequests = 20

	MinRateWindowSeconds     = 10
	MaxRateWindowSeconds     = 3600
	DefaultRateWindowSeconds = 60

	// Zero disables a budget dimension, so there is no minimum.
	MaxBudgetRequestsPerDay = 100000
	MaxBudgetTokensPerDay   = 10_000_000
)

const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultEmbedModel = "models/text-embedding-004"
)

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
