package services

import (
	"errors"

	"cashless/internal/db"
	"cashless/internal/money"
	"cashless/internal/policy"
	"cashless/internal/store"
	"cashless/internal/validator"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBelowMinimum        = policy.ErrBelowMinimum
	ErrAboveMaximum        = policy.ErrAboveMaximum
	ErrAmountOverflow      = money.ErrOverflow
	ErrInvalidPINFormat    = validator.ErrInvalidPINFormat
	ErrInvalidCredential   = errors.New("invalid credentials")
	ErrTooManyAttempts     = errors.New("too many failed pin attempts")
	ErrAccountBlocked      = errors.New("account is blocked")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrSameAccountTransfer = errors.New("cannot transfer to same account")
	ErrInsufficientFunds   = store.ErrInsufficientFunds
	ErrInvalidRequestState = errors.New("request is not pending")
	ErrNotRequestAgent     = errors.New("request is not addressed to this agent")
	ErrInvalidDirection    = errors.New("invalid request direction")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrDuplicateContact    = errors.New("phone or email already registered")
	ErrStatusChanged       = errors.New("account status changed concurrently")
)

// Kind classifies an error for callers that map it onto a transport status.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindAuth              Kind = "auth"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidState      Kind = "invalid_state"
	KindConflict          Kind = "conflict"
	KindInfrastructure    Kind = "infrastructure"
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		ErrInvalidAmount, ErrBelowMinimum, ErrAboveMaximum, ErrAmountOverflow, store.ErrNonPositiveAmount, ErrInvalidPINFormat, ErrSameAccountTransfer,
		ErrInvalidDirection, ErrInvalidRole, ErrInvalidStatus,
		validator.ErrInvalidEmail, validator.ErrInvalidPhone, validator.ErrInvalidName,
	}},
	{KindAuth, []error{ErrInvalidCredential, ErrTooManyAttempts, ErrAccountBlocked, ErrNotRequestAgent}},
	{KindNotFound, []error{ErrAccountNotFound, ErrRecipientNotFound, ErrAgentNotFound, ErrRequestNotFound, store.ErrNotFound}},
	{KindInsufficientFunds, []error{ErrInsufficientFunds}},
	{KindInvalidState, []error{ErrInvalidRequestState}},
	{KindConflict, []error{ErrDuplicateContact, ErrStatusChanged, store.ErrDuplicate, db.ErrRetryLimitExceeded}},
}

// KindOf returns the kind of err. Anything unrecognised is infrastructure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindInfrastructure
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}
