package handlers

import (
	"net/http"

	"cashless/internal/middleware"
	"cashless/internal/models"
	"cashless/internal/money"
	"cashless/internal/services"

	"github.com/go-chi/chi/v5"
)

type cashRequestBody struct {
	AgentPhone string `json:"agent_phone"`
	Amount     string `json:"amount"`
}

// directionParam accepts the URL spelling (cash-in) and the stored one (cash_in).
func directionParam(r *http.Request) (models.Direction, bool) {
	switch chi.URLParam(r, "direction") {
	case "cash-in", string(models.DirectionCashIn):
		return models.DirectionCashIn, true
	case "cash-out", string(models.DirectionCashOut):
		return models.DirectionCashOut, true
	}
	return "", false
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	direction, ok := directionParam(r)
	if !ok {
		h.respondServiceError(w, r, services.ErrInvalidDirection)
		return
	}
	var body cashRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(body.Amount)
	if err != nil {
		h.respondServiceError(w, r, services.ErrInvalidAmount)
		return
	}
	req, err := h.requests.Create(r.Context(), services.CreateRequest{
		Direction:   direction,
		RequesterID: principal.AccountID,
		AgentPhone:  body.AgentPhone,
		AmountMinor: amount,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, requestView(req))
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	direction, ok := directionParam(r)
	if !ok {
		h.respondServiceError(w, r, services.ErrInvalidDirection)
		return
	}
	limit, offset := paging(r)
	rows, err := h.requests.List(r.Context(), principal, direction, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, requestView(row))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.requests.Approve(r.Context(), chi.URLParam(r, "requestID"), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request":           requestView(result.Request),
		"charged":           money.FormatMinor(result.Charged),
		"requester_balance": money.FormatMinor(result.RequesterBalance),
		"agent_balance":     money.FormatMinor(result.AgentBalance),
	})
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	req, err := h.requests.Reject(r.Context(), chi.URLParam(r, "requestID"), principal.AccountID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requestView(req))
}

func requestView(req models.CashRequest) map[string]any {
	return map[string]any{
		"id":           req.ID,
		"direction":    req.Direction,
		"requester_id": req.RequesterID,
		"agent_phone":  req.AgentPhone,
		"amount":       money.FormatMinor(req.Amount),
		"status":       req.Status,
		"created_at":   req.CreatedAt,
		"approved_at":  req.ApprovedAt,
		"rejected_at":  req.RejectedAt,
		"approved_by":  req.ApprovedBy,
	}
}
