// Package llm wraps the opaque inference and embedding services. One call
// per request, no internal retries: upstream failures surface immediately
// and the caller decides whether to resubmit.
package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Usage is the token accounting reported by the inference service, when it
// reports any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is one raw model invocation outcome. Text is the extracted reply
// when the provider surfaces one directly; Raw keeps the provider payload
// for shape-based extraction.
type Result struct {
	Text  string
	Raw   any
	Usage *Usage
}

// Client is the inference contract.
type Client interface {
	Generate(ctx context.Context, model string, msgs []*schema.Message, maxTokens int) (*Result, error)
}

// Embedder is the embedding contract.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// ExtractText pulls the reply text out of the known provider response
// shapes: a direct string, {"response": ...}, {"result": {"response": ...}}
// or {"output_text": ...}. Unknown shapes yield an empty string.
func ExtractText(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if s, ok := v["response"].(string); ok {
			return strings.TrimSpace(s)
		}
		if inner, ok := v["result"].(map[string]any); ok {
			if s, ok := inner["response"].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		if s, ok := v["output_text"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// ReplyText resolves the final text of a Result, preferring the direct text
// and falling back to raw-shape extraction.
func (r *Result) ReplyText() string {
	if r == nil {
		return ""
	}
	if t := strings.TrimSpace(r.Text); t != "" {
		return t
	}
	return ExtractText(r.Raw)
}

// EstimateTokens approximates token usage from character count (~4 chars
// per token), used for budget charging when the provider reports no usage.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}
