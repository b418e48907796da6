// Package chat runs the request-time decision pipeline: admission, knowledge
// retrieval, prompt assembly, one model invocation, response parsing and
// best-effort action dispatch. Each request's steps are strictly sequential;
// requests share nothing in-process.
package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/admission"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core/errx"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/knowledge"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/llm"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/prompt"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

type Service struct {
	registry   *bot.Registry
	gate       *admission.Gate
	engine     *knowledge.Engine
	model      llm.Client
	dispatcher *Dispatcher
}

func NewService(registry *bot.Registry, gate *admission.Gate, engine *knowledge.Engine, model llm.Client, dispatcher *Dispatcher) *Service {
	return &Service{
		registry:   registry,
		gate:       gate,
		engine:     engine,
		model:      model,
		dispatcher: dispatcher,
	}
}

// Chat handles one request end to end. The budget is charged only after a
// successful model call, with actual usage when the provider reports it.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	question, err := validate(req)
	if err != nil {
		return nil, err
	}

	cfg, err := s.registry.Get(ctx, req.BotID)
	if errors.Is(err, bot.ErrNotFound) {
		return nil, errx.New(err, http.StatusNotFound, errx.CodeBotNotFound, "unknown bot")
	}
	if err != nil {
		return nil, err
	}

	if err := s.gate.Admit(ctx, cfg, admission.Request{
		BotID:    cfg.ID,
		ClientIP: req.ClientIP,
		Origin:   req.Origin,
		Key:      req.Key(),
	}); err != nil {
		return nil, err
	}

	block := s.engine.Retrieve(ctx, cfg, question, req.RequestID)

	msgs, err := prompt.Assemble(ctx, cfg, block, req.Messages)
	if err != nil {
		return nil, err
	}

	result, err := s.model.Generate(ctx, cfg.Model, msgs, cfg.MaxTokens)
	if err != nil {
		return nil, errx.New(err, http.StatusBadGateway, errx.CodeUpstream, errx.UpstreamErrorMessage)
	}

	message, action := ParseReply(result.ReplyText(), cfg)

	s.gate.ChargeBudget(ctx, cfg, usedTokens(result, msgs, message))
	llm.LogCost(req.RequestID, cfg.Model, result.Usage)

	s.dispatcher.MaybeDispatch(cfg, action, req.RequestID)

	logx.Info().
		Str("request_id", req.RequestID).
		Str("bot_id", cfg.ID).
		Int("history_turns", len(req.Messages)).
		Bool("has_action", action != nil).
		Msg("chat completed")

	return &Response{
		Message:   message,
		Action:    action,
		RequestID: req.RequestID,
	}, nil
}

// RefreshKnowledge force-refetches a bot's knowledge URLs (admin path).
func (s *Service) RefreshKnowledge(ctx context.Context, botID string) (int, []string, error) {
	cfg, err := s.registry.Get(ctx, botID)
	if errors.Is(err, bot.ErrNotFound) {
		return 0, nil, errx.New(err, http.StatusNotFound, errx.CodeBotNotFound, "unknown bot")
	}
	if err != nil {
		return 0, nil, err
	}
	refreshed, failed := s.engine.RefreshCache(ctx, cfg)
	return refreshed, failed, nil
}

func validate(req Request) (string, error) {
	if strings.TrimSpace(req.BotID) == "" {
		return "", errx.New(nil, http.StatusBadRequest, errx.CodeBadRequest, "botId is required")
	}
	if len(req.Messages) == 0 {
		return "", errx.New(nil, http.StatusBadRequest, errx.CodeBadRequest, "messages must not be empty")
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		t := req.Messages[i]
		if strings.EqualFold(strings.TrimSpace(t.Role), "user") && strings.TrimSpace(t.Content) != "" {
			return t.Content, nil
		}
	}
	return "", errx.New(nil, http.StatusBadRequest, errx.CodeBadRequest, "at least one user message is required")
}

// usedTokens prefers provider-reported usage and falls back to a character
// estimate over the assembled prompt plus the reply (~4 chars per token).
func usedTokens(result *llm.Result, msgs []*schema.Message, reply string) int {
	if result.Usage != nil && result.Usage.TotalTokens > 0 {
		return result.Usage.TotalTokens
	}
	chars := len(reply)
	for _, m := range msgs {
		if m != nil {
			chars += len(m.Content)
		}
	}
	return llm.EstimateTokens(chars)
}
