package handlers

import (
	"net/http"

	"cashless/internal/middleware"
	"cashless/internal/models"
	"cashless/internal/money"
	"cashless/internal/services"
)

type transferRequest struct {
	RecipientPhone string `json:"recipient_phone"`
	Amount         string `json:"amount"`
	PIN            string `json:"pin"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		SenderID:       principal.AccountID,
		RecipientPhone: req.RecipientPhone,
		AmountMinor:    amount,
		PIN:            req.PIN,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transfer_id":       result.TransferID,
		"amount":            money.FormatMinor(result.Amount),
		"fee":               money.FormatMinor(result.Fee),
		"sender_balance":    money.FormatMinor(result.SenderBalance),
		"recipient_balance": money.FormatMinor(result.RecipientBalance),
		"created_at":        result.CreatedAt,
	})
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := paging(r)
	rows, err := h.transfers.History(r.Context(), principal.AccountID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, transferView(row, principal.AccountID))
	}
	respondJSON(w, http.StatusOK, out)
}

func transferView(t models.Transfer, viewer string) map[string]any {
	direction := "received"
	if t.SenderID == viewer {
		direction = "sent"
	}
	return map[string]any{
		"id":           t.ID,
		"sender_id":    t.SenderID,
		"recipient_id": t.RecipientID,
		"amount":       money.FormatMinor(t.Amount),
		"fee":          money.FormatMinor(t.Fee),
		"direction":    direction,
		"created_at":   t.CreatedAt,
	}
}
