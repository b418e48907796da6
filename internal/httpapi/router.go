package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter assembles the full HTTP surface. Preflight OPTIONS is answered
// by the CORS middleware before routing, so it never touches the store.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(h.adminAuth))
	admin.HandleFunc("/upsert", h.AdminUpsert).Methods(http.MethodPost)
	admin.HandleFunc("/get", h.AdminGet).Methods(http.MethodPost)
	admin.HandleFunc("/list", h.AdminList).Methods(http.MethodPost)
	admin.HandleFunc("/kb/refresh", h.AdminRefreshKnowledge).Methods(http.MethodPost)

	return requestIDMiddleware(recoveryMiddleware(corsMiddleware(r)))
}
