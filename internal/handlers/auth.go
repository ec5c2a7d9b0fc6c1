package handlers

import (
	"net/http"

	"cashless/internal/auth"
	"cashless/internal/middleware"
	"cashless/internal/models"
	"cashless/internal/money"
	"cashless/internal/services"
)

type registerRequest struct {
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Email string      `json:"email"`
	PIN   string      `json:"pin"`
	Role  models.Role `json:"role"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	PIN        string `json:"pin"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.accounts.Register(r.Context(), services.RegisterRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		PIN:   req.PIN,
		Role:  req.Role,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, accountView(account))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.accounts.Authenticate(r.Context(), req.Identifier, req.PIN)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, auth.Principal{AccountID: account.ID, Role: account.Role}, h.cfg.TokenTTL)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"account": accountView(account),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.Get(r.Context(), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountView(account))
}

func accountView(account models.Account) map[string]any {
	return map[string]any{
		"id":            account.ID,
		"name":          account.Name,
		"phone":         account.Phone,
		"email":         account.Email,
		"role":          account.Role,
		"status":        account.Status,
		"balance":       money.FormatMinor(account.Balance),
		"balance_minor": account.Balance,
		"created_at":    account.CreatedAt,
	}
}
