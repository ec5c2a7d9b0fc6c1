package handlers

import (
	"net/http"

	"cashless/internal/auth"
	"cashless/internal/middleware"
	"cashless/internal/money"
	"cashless/internal/websocket"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.accounts.GetBalance(r.Context(), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":    principal.AccountID,
		"balance":       money.FormatMinor(balance),
		"balance_minor": balance,
	})
}

// SelfCheck compares the caller's balance with the sum of their ledger entries.
func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.accounts.GetBalance(r.Context(), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	sum, err := h.ledger.SumByAccount(r.Context(), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":      principal.AccountID,
		"account_balance": money.FormatMinor(balance),
		"ledger_sum":      money.FormatMinor(sum),
		"difference":      money.FormatMinor(balance - sum),
		"balanced":        balance == sum,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	principal, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, principal.AccountID)
}
