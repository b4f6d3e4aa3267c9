package usuario

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registra rotas do módulo de usuários; middlewares extras valem só
// para login e refresh, que recebem throttling mais rígido.
func Mount(r chi.Router, handler *Handler, authMiddlewares ...func(http.Handler) http.Handler) {
	r.Group(func(sub chi.Router) {
		sub.Use(authMiddlewares...)
		handler.RegisterAuthRoutes(sub)
	})
	handler.RegisterRoutes(r)
}
