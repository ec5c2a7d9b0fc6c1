package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cashless/internal/money"
	"cashless/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps an engine error onto a status code. Infrastructure
// errors are logged and hidden from the caller.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case services.KindValidation, services.KindInsufficientFunds:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindAuth:
		switch {
		case errors.Is(err, services.ErrTooManyAttempts):
			status = http.StatusTooManyRequests
		case errors.Is(err, services.ErrNotRequestAgent), errors.Is(err, services.ErrAccountBlocked):
			status = http.StatusForbidden
		default:
			status = http.StatusUnauthorized
		}
	case services.KindInvalidState, services.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondJSON(w, status, map[string]string{"error": "internal error", "kind": string(services.KindInfrastructure)})
		return
	}
	respondJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

var errInvalidAmount = errors.New("invalid amount")

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// paging reads page and limit query parameters. limit is capped at 100.
func paging(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit = parseInt(query.Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit
}
