package usuario

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
	Create(ctx context.Context, input CreateInput, requester Requester) (*CreateResult, error)
	Authenticate(ctx context.Context, input LoginInput) (*LoginResult, error)
	List(ctx context.Context, filters ListFilters, requester Requester) ([]UsuarioResumo, error)
	Update(ctx context.Context, id int64, input UpdateInput, requester Requester) (*UpdateResult, error)
	Refresh(ctx context.Context, rawToken string) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
}

// Handler expõe endpoints REST de usuários.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/createUser", h.create)
	r.Post("/logout", h.logout)
	r.Get("/", h.list)
	r.Put("/{id}", h.update)
}

// RegisterAuthRoutes separa login e refresh para receber throttling próprio.
func (h *Handler) RegisterAuthRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
}

// requesterBody aceita tanto o objeto aninhado `requester` quanto os campos
// achatados requesterRole/requesterId/..., como o SPA envia.
type requesterBody struct {
	Requester *struct {
		ID            *int64 `json:"id"`
		Role          string `json:"role"`
		OrganizacaoID *int64 `json:"organizacaoId"`
		EquipeID      *int64 `json:"equipeId"`
	} `json:"requester"`
	RequesterID            *int64 `json:"requesterId"`
	RequesterRole          string `json:"requesterRole"`
	RequesterOrganizacaoID *int64 `json:"requesterOrganizacaoId"`
	RequesterEquipeID      *int64 `json:"requesterEquipeId"`
}

func (b requesterBody) toRequester() Requester {
	if b.Requester != nil {
		return Requester{
			ID:            b.Requester.ID,
			Role:          b.Requester.Role,
			OrganizacaoID: b.Requester.OrganizacaoID,
			EquipeID:      b.Requester.EquipeID,
		}
	}
	return Requester{
		ID:            b.RequesterID,
		Role:          b.RequesterRole,
		OrganizacaoID: b.RequesterOrganizacaoID,
		EquipeID:      b.RequesterEquipeID,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome          string `json:"nome"`
		Email         string `json:"email"`
		Senha         string `json:"senha"`
		Papel         string `json:"papel"`
		OrganizacaoID *int64 `json:"organizacaoId"`
		EquipeID      *int64 `json:"equipeId"`
		requesterBody
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	result, err := h.service.Create(r.Context(), CreateInput{
		Nome:          payload.Nome,
		Email:         payload.Email,
		Senha:         payload.Senha,
		Papel:         payload.Papel,
		OrganizacaoID: payload.OrganizacaoID,
		EquipeID:      payload.EquipeID,
	}, payload.toRequester())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Senha    string `json:"senha"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	result, err := h.service.Authenticate(r.Context(), LoginInput{
		Email:    payload.Email,
		Senha:    payload.Senha,
		Password: payload.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	usuarios, err := h.service.List(r.Context(), ListFilters{
		Nome:   q.Get("nome"),
		Status: q.Get("status"),
	}, Requester{Role: q.Get("requesterRole")})
	if err != nil {
		respondError(w, err)
		return
	}

	if usuarios == nil {
		usuarios = []UsuarioResumo{}
	}
	writeJSON(w, http.StatusOK, usuarios)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "ID inválido.")
		return
	}

	var payload struct {
		Nome          *string `json:"nome"`
		Email         *string `json:"email"`
		Senha         *string `json:"senha"`
		Status        *string `json:"status"`
		Papel         *string `json:"papel"`
		OrganizacaoID *int64  `json:"organizacaoId"`
		EquipeID      *int64  `json:"equipeId"`
		requesterBody
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	result, err := h.service.Update(r.Context(), id, UpdateInput{
		Nome:          payload.Nome,
		Email:         payload.Email,
		Senha:         payload.Senha,
		Status:        payload.Status,
		Papel:         payload.Papel,
		OrganizacaoID: payload.OrganizacaoID,
		EquipeID:      payload.EquipeID,
	}, payload.toRequester())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFromBody(w, r)
	if !ok {
		return
	}

	result, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFromBody(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func refreshTokenFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return "", false
	}
	return strings.TrimSpace(payload.RefreshToken), true
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
	log.Error().Err(err).Msg("usuario: falha inesperada")
	writeError(w, http.StatusBadRequest, "não foi possível processar a requisição")
}
