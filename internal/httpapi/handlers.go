package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/chat"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core/errx"
)

// Handler wires the chat service and bot registry to HTTP.
type Handler struct {
	service    *chat.Service
	registry   *bot.Registry
	adminToken string
}

func NewHandler(service *chat.Service, registry *bot.Registry, adminToken string) *Handler {
	return &Handler{
		service:    service,
		registry:   registry,
		adminToken: adminToken,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type chatEnvelope struct {
	OK        bool         `json:"ok"`
	Message   string       `json:"message"`
	Action    *chat.Action `json:"action,omitempty"`
	RequestID string       `json:"requestId"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errx.New(err, http.StatusBadRequest, errx.CodeBadRequest, "invalid json body"))
		return
	}

	req.ClientIP = clientIP(r)
	req.Origin = r.Header.Get("Origin")
	req.HeaderKey = r.Header.Get("X-Bot-Key")
	req.RequestID = requestIDFrom(r.Context())

	resp, err := h.service.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatEnvelope{
		OK:        true,
		Message:   resp.Message,
		Action:    resp.Action,
		RequestID: resp.RequestID,
	})
}

func (h *Handler) AdminUpsert(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, errx.New(err, http.StatusBadRequest, errx.CodeBadRequest, "invalid json body"))
		return
	}

	cfg, err := h.registry.Upsert(r.Context(), input)
	if err != nil {
		writeError(w, r, errx.New(err, http.StatusBadRequest, errx.CodeBadRequest, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bot": cfg})
}

type botIDRequest struct {
	BotID string `json:"botId"`
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	var req botIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errx.New(err, http.StatusBadRequest, errx.CodeBadRequest, "invalid json body"))
		return
	}

	cfg, err := h.registry.Get(r.Context(), req.BotID)
	if errors.Is(err, bot.ErrNotFound) {
		writeError(w, r, errx.New(err, http.StatusNotFound, errx.CodeBotNotFound, "unknown bot"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bot": cfg})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bots": ids})
}

func (h *Handler) AdminRefreshKnowledge(w http.ResponseWriter, r *http.Request) {
	var req botIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errx.New(err, http.StatusBadRequest, errx.CodeBadRequest, "invalid json body"))
		return
	}

	refreshed, failed, err := h.service.RefreshKnowledge(r.Context(), req.BotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := map[string]any{"ok": true, "refreshed": refreshed}
	if len(failed) > 0 {
		out["failed"] = failed
	}
	writeJSON(w, http.StatusOK, out)
}
