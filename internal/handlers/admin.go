package handlers

import (
	"net/http"

	"cashless/internal/metrics"
	"cashless/internal/middleware"
	"cashless/internal/models"
	"cashless/internal/money"

	"github.com/go-chi/chi/v5"
)

type statusRequest struct {
	Status models.Status `json:"status"`
}

func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	accounts, err := h.accounts.List(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, accountView(account))
	}
	respondJSON(w, http.StatusOK, out)
}

// AdminSetStatus moves an account between pending, active and blocked. The
// activation bonus is paid only the first time an account becomes active;
// reactivating a blocked account pays nothing.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.accounts.SetStatus(r.Context(), principal.AccountID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account":  accountView(result.Account),
		"previous": result.Previous,
		"bonus":    money.FormatMinor(result.Bonus),
	})
}

// Reconcile reports accounts whose balance differs from their ledger sum.
// all=true includes balanced accounts.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	onlyMismatched := r.URL.Query().Get("all") != "true"
	rows, err := h.reconciler.Reconcile(r.Context(), onlyMismatched)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	mismatched := 0
	for _, row := range rows {
		if row.Difference != 0 {
			mismatched++
		}
	}
	metrics.SetReconciliationMismatches(mismatched)
	respondJSON(w, http.StatusOK, map[string]any{
		"mismatched": mismatched,
		"accounts":   rows,
	})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) TotalFees(w http.ResponseWriter, r *http.Request) {
	total, err := h.fees.TotalFees(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_fees":       money.FormatMinor(total),
		"total_fees_minor": total,
	})
}
