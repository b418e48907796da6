package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// GeminiConfig configures the Gemini-backed client.
type GeminiConfig struct {
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	GenerateTimeout int `envconfig:"LLM_GENERATE_TIMEOUT" default:"60"`
	EmbedTimeout    int `envconfig:"LLM_EMBED_TIMEOUT" default:"10"`
}

// Gemini implements Client and Embedder on a shared genai client. Chat
// calls go through the eino gemini component; embeddings use the genai
// EmbedContent API directly.
type Gemini struct {
	client          *genai.Client
	generateTimeout time.Duration
	embedTimeout    time.Duration
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{
		client:          client,
		generateTimeout: time.Duration(cfg.GenerateTimeout) * time.Second,
		embedTimeout:    time.Duration(cfg.EmbedTimeout) * time.Second,
	}, nil
}

// Generate performs a single chat completion. The ChatModel wrapper is
// cheap to construct, so one is built per call with the bot's model id and
// token ceiling.
func (g *Gemini) Generate(ctx context.Context, model string, msgs []*schema.Message, maxTokens int) (*Result, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:    g.client,
		Model:     model,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model %q: %w", model, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.generateTimeout)
	defer cancel()

	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("generate with %q: %w", model, err)
	}
	if out == nil {
		return nil, fmt.Errorf("generate with %q: empty response", model)
	}

	res := &Result{Text: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		res.Usage = &Usage{
			PromptTokens:     out.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: out.ResponseMeta.Usage.CompletionTokens,
			TotalTokens:      out.ResponseMeta.Usage.TotalTokens,
		}
	}
	return res, nil
}

// Embed returns the embedding vector for text under the given model.
func (g *Gemini) Embed(ctx context.Context, model, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.embedTimeout)
	defer cancel()

	resp, err := g.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed with %q: %w", model, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed with %q: no embedding returned", model)
	}

	values := resp.Embeddings[0].Values
	out := make([]float32, len(values))
	copy(out, values)
	return out, nil
}

// LogCost records the estimated USD cost of a completed call at debug level.
func LogCost(requestID, model string, usage *Usage) {
	if usage == nil {
		return
	}
	in, out, total := ComputeCost(usage, ResolvePricing(model))
	logx.Debug().
		Str("request_id", requestID).
		Str("model", model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Float64("input_cost_usd", in).
		Float64("output_cost_usd", out).
		Float64("total_cost_usd", total).
		Msg("model call cost")
}

var _ Client = (*Gemini)(nil)
var _ Embedder = (*Gemini)(nil)
