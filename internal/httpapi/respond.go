package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core/errx"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// errorEnvelope is the uniform error shape. The widget relies on `error`
// being one of the documented reason codes to pick a canned message, and on
// the body always being JSON — never an empty body, never HTML.
type errorEnvelope struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := errx.From(err)
	requestID := requestIDFrom(r.Context())

	if ae.Status >= http.StatusInternalServerError {
		logx.Error().Err(ae).Str("request_id", requestID).Int("status", ae.Status).Msg("request failed")
	} else {
		logx.Debug().Err(ae).Str("request_id", requestID).Int("status", ae.Status).Msg("request rejected")
	}

	if ae.Code == errx.CodeOriginDenied {
		// The browser must not be able to read this body cross-origin.
		w.Header().Del("Access-Control-Allow-Origin")
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfter))
	}

	writeJSON(w, ae.Status, errorEnvelope{
		OK:        false,
		Error:     ae.Code,
		Detail:    ae.Message,
		RequestID: requestID,
	})
}
