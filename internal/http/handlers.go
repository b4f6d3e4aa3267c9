package http

import (
	"context"
	"net/http"
	"time"
)

// Health responde imediatamente; indica apenas que o processo está de pé.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready confirma conectividade com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "banco de dados indisponível")
		return
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "redis indisponível")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
