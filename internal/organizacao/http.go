package organizacao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/versusesportes/api/internal/apperr"
)

// ServiceProvider descreve as operações expostas pelos handlers.
type ServiceProvider interface {
	Create(ctx context.Context, input CreateInput) (*Organizacao, error)
	List(ctx context.Context, filters ListFilters) ([]Organizacao, error)
	GetByID(ctx context.Context, id int64) (*Organizacao, error)
	Update(ctx context.Context, id int64, input UpdateInput, requesterRole string) (*Organizacao, error)
	Delete(ctx context.Context, id int64) (*Organizacao, error)
}

// Handler expõe endpoints REST de organizações.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.getByID)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome        string  `json:"nome"`
		CNPJ        string  `json:"cnpj"`
		Responsavel string  `json:"responsavel"`
		Telefone    string  `json:"telefone"`
		Email       string  `json:"email"`
		Endereco    *string `json:"endereco"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	org, err := h.service.Create(r.Context(), CreateInput{
		Nome:        payload.Nome,
		CNPJ:        payload.CNPJ,
		Responsavel: payload.Responsavel,
		Telefone:    payload.Telefone,
		Email:       payload.Email,
		Endereco:    payload.Endereco,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, org)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orgs, err := h.service.List(r.Context(), ListFilters{
		Nome:        q.Get("nome"),
		Responsavel: q.Get("responsavel"),
		Status:      q.Get("status"),
		Order:       q.Get("order"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	if orgs == nil {
		orgs = []Organizacao{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromRequest(w, r)
	if !ok {
		return
	}

	org, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, org)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromRequest(w, r)
	if !ok {
		return
	}

	var payload struct {
		Nome          *string `json:"nome"`
		Responsavel   *string `json:"responsavel"`
		Telefone      *string `json:"telefone"`
		Email         *string `json:"email"`
		Endereco      *string `json:"endereco"`
		Status        *string `json:"status"`
		RequesterRole string  `json:"requesterRole"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	// Identidade do solicitante chega pelo header x-role ou pelo corpo;
	// simplificação herdada do contrato consumido pelo SPA.
	role := strings.ToUpper(strings.TrimSpace(r.Header.Get("x-role")))
	if role == "" {
		role = strings.ToUpper(strings.TrimSpace(payload.RequesterRole))
	}

	org, err := h.service.Update(r.Context(), id, UpdateInput{
		Nome:        payload.Nome,
		Responsavel: payload.Responsavel,
		Telefone:    payload.Telefone,
		Email:       payload.Email,
		Endereco:    payload.Endereco,
		Status:      payload.Status,
	}, role)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, org)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromRequest(w, r)
	if !ok {
		return
	}

	org, err := h.service.Delete(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, org)
}

func idFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "ID inválido.")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeError(w, appErr.Status(), appErr.Message)
		return
	}
	log.Error().Err(err).Msg("organizacao: falha inesperada")
	writeError(w, http.StatusBadRequest, "não foi possível processar a requisição")
}
