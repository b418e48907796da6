package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"direct string", "  hello  ", "hello"},
		{"response field", map[string]any{"response": "hi"}, "hi"},
		{"nested result", map[string]any{"result": map[string]any{"response": "nested"}}, "nested"},
		{"output_text field", map[string]any{"output_text": "out"}, "out"},
		{"unknown shape", map[string]any{"choices": []any{}}, ""},
		{"nil", nil, ""},
		{"number", 42, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.raw))
		})
	}
}

func TestReplyTextPrefersDirectText(t *testing.T) {
	r := &Result{Text: "direct", Raw: map[string]any{"response": "raw"}}
	assert.Equal(t, "direct", r.ReplyText())

	r = &Result{Raw: map[string]any{"response": "raw"}}
	assert.Equal(t, "raw", r.ReplyText())

	var nilResult *Result
	assert.Equal(t, "", nilResult.ReplyText())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(0))
	assert.Equal(t, 0, EstimateTokens(-5))
	assert.Equal(t, 1, EstimateTokens(1))
	assert.Equal(t, 1, EstimateTokens(4))
	assert.Equal(t, 2, EstimateTokens(5))
	assert.Equal(t, 250, EstimateTokens(1000))
}

func TestResolvePricing(t *testing.T) {
	p := ResolvePricing("gemini-2.5-flash")
	assert.Equal(t, 0.30, p.InputPerM)
	assert.Equal(t, 2.50, p.OutputPerM)

	assert.Zero(t, ResolvePricing("unknown-model"))
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, Pricing{InputPerM: 0.30, OutputPerM: 2.50})
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 1.25, out, 1e-9)
	assert.InDelta(t, 1.55, total, 1e-9)

	_, _, total = ComputeCost(nil, Pricing{InputPerM: 1, OutputPerM: 1})
	assert.Zero(t, total)
}
