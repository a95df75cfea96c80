package handlers

import (
	"net/http"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/services"
	"github.com/ferreirogomes/artshare/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler lida com requisições HTTP relacionadas a usuários.
type UserHandler struct {
	Service *services.MarketplaceService
	Logger  *zap.Logger
}

// NewUserHandler cria uma nova instância do handler de usuários.
func NewUserHandler(service *services.MarketplaceService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Service: service, Logger: logger}
}

// CreateUser cria o perfil do usuário da sessão.
// POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var requestBody struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decodeJSON(r, &requestBody); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	user, err := h.Service.CreateUserProfile(r.Context(), session.FromContext(r.Context()), key,
		requestBody.Username, requestBody.Email)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusCreated, user)
}

// GetMe obtém o perfil do usuário da sessão.
// GET /users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, "")
}

// GetUser obtém um perfil pelo principal.
// GET /users/{principal}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, chi.URLParam(r, "principal"))
}

func (h *UserHandler) writeProfile(w http.ResponseWriter, r *http.Request, principal string) {
	user, found, err := h.Service.GetUserProfile(r.Context(), session.FromContext(r.Context()), principal)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !found {
		writeError(w, r, h.Logger, ledger.Errorf(ledger.KindUserNotFound, "usuário não encontrado"))
		return
	}
	writeOK(w, http.StatusOK, user)
}

// GetHoldings lista as posições de um usuário.
// GET /users/{principal}/holdings
func (h *UserHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.Service.UserHoldings(r.Context(), chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, holdings)
}

// GetPortfolio avalia as posições de um usuário.
// GET /users/{principal}/portfolio
func (h *UserHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.Service.Portfolio(r.Context(), chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, portfolio)
}

// Verify marca o perfil como verificado.
// POST /users/{principal}/verify
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.VerifyUser(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, user)
}
