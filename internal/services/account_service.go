package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashless/internal/auth"
	"cashless/internal/db"
	"cashless/internal/events"
	"cashless/internal/metrics"
	"cashless/internal/models"
	"cashless/internal/policy"
	"cashless/internal/store"
	"cashless/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type AccountService struct {
	txRunner db.TxRunner
	accounts AccountStore
	ledger   LedgerStore
	audit    AuditStore
	policy   policy.Policy
	pins     pinGuard
	notify   Notifier
	log      zerolog.Logger
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, audit AuditStore, pol policy.Policy, limiter PINLimiter, notify Notifier, log zerolog.Logger) *AccountService {
	return &AccountService{
		txRunner: txRunner,
		accounts: accounts,
		ledger:   ledger,
		audit:    audit,
		policy:   pol,
		pins:     pinGuard{limiter: limiter, log: log},
		notify:   notify,
		log:      log.With().Str("component", "accounts").Logger(),
	}
}

type RegisterRequest struct {
	Name  string
	Phone string
	Email string
	PIN   string
	Role  models.Role
}

type StatusResult struct {
	Account  models.Account `json:"account"`
	Previous models.Status  `json:"previous"`
	Bonus    int64          `json:"bonus"`
}

// Register opens a pending account with a zero balance. Only users and
// agents can register themselves. While no admin exists the registrant is
// made an active admin instead, so a fresh deployment can be administered.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (models.Account, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.ValidateName(name); err != nil {
		return models.Account{}, err
	}
	if err := validator.ValidatePhone(phone); err != nil {
		return models.Account{}, err
	}
	if err := validator.ValidateEmail(email); err != nil {
		return models.Account{}, err
	}
	if err := validator.ValidatePIN(req.PIN); err != nil {
		return models.Account{}, ErrInvalidPINFormat
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAgent {
		return models.Account{}, ErrInvalidRole
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash pin: %w", err)
	}
	account := models.Account{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		PINHash:   hash,
		Role:      role,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		hasAdmin, err := s.accounts.HasAdmin(ctx, tx)
		if err != nil {
			return err
		}
		account.Role, account.Status = role, models.StatusPending
		if !hasAdmin {
			account.Role, account.Status = models.RoleAdmin, models.StatusActive
		}
		if err := s.accounts.Create(ctx, tx, account); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"role":      string(account.Role),
			"requested": string(role),
		})
		return s.audit.Log(ctx, tx, account.ID, "register", "account", account.ID, string(data))
	})
	if errors.Is(err, store.ErrDuplicate) {
		return models.Account{}, ErrDuplicateContact
	}
	if err != nil {
		return models.Account{}, err
	}
	if account.Role == models.RoleAdmin {
		s.log.Warn().Str("account_id", account.ID).Msg("first registrant promoted to admin")
	}
	s.log.Info().Str("account_id", account.ID).Str("role", string(account.Role)).Msg("account registered")
	return account, nil
}

// Authenticate resolves identifier as a phone or email and checks the PIN.
func (s *AccountService) Authenticate(ctx context.Context, identifier, pin string) (models.Account, error) {
	if err := validator.ValidatePIN(pin); err != nil {
		return models.Account{}, ErrInvalidPINFormat
	}
	account, err := s.accounts.GetByContact(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if errors.Is(err, store.ErrNotFound) {
		s.pins.fail(ctx, identifier)
		return models.Account{}, ErrInvalidCredential
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("load account: %w", err)
	}
	if err := s.pins.check(ctx, account.ID, account.PINHash, pin); err != nil {
		return models.Account{}, err
	}
	if account.Status == models.StatusBlocked {
		return models.Account{}, ErrAccountBlocked
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.audit.Log(ctx, tx, account.ID, "login", "account", account.ID, "{}")
	})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("login audit failed")
	}
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	return account, err
}

func (s *AccountService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// SetStatus changes an account's status. Moving into active credits the
// role's activation bonus the first time only.
func (s *AccountService) SetStatus(ctx context.Context, actorID, accountID string, next models.Status) (result StatusResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation("set_status", started, outcome(err)) }()

	if !next.Valid() {
		return StatusResult{}, ErrInvalidStatus
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		result = StatusResult{Account: account, Previous: account.Status}
		if account.Status == next {
			return nil
		}
		ok, err := s.accounts.UpdateStatus(ctx, tx, account.ID, account.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStatusChanged
		}
		result.Account.Status = next

		bonus := s.policy.ActivationBonus(result.Previous, next, account.Role)
		if bonus > 0 && account.BonusGrantedAt == nil {
			granted, err := s.accounts.MarkBonusGranted(ctx, tx, account.ID)
			if err != nil {
				return err
			}
			if granted {
				balance, err := s.accounts.AdjustBalance(ctx, tx, account.ID, bonus)
				if err != nil {
					return err
				}
				if err := s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{
					entry(account.ID, account.ID, bonus, models.EntryActivationBonus, "Activation bonus"),
				}); err != nil {
					return err
				}
				now := time.Now().UTC()
				result.Account.Balance = balance
				result.Account.BonusGrantedAt = &now
				result.Bonus = bonus
			}
		}
		data, _ := json.Marshal(map[string]any{
			"previous": result.Previous,
			"status":   next,
			"bonus":    result.Bonus,
		})
		return s.audit.Log(ctx, tx, actorID, "set_status", "account", account.ID, string(data))
	})
	if err != nil {
		return StatusResult{}, err
	}
	if result.Previous == next {
		return result, nil
	}
	s.log.Info().
		Str("account_id", accountID).
		Str("previous", string(result.Previous)).
		Str("status", string(next)).
		Int64("bonus", result.Bonus).
		Msg("account status changed")
	if result.Bonus > 0 {
		s.notify.balance(accountID, result.Account.Balance, "activation_bonus", accountID)
	}
	s.notify.publish(ctx, events.AccountStatusChange, events.StatusEvent{
		AccountID:  accountID,
		ActorID:    actorID,
		Previous:   string(result.Previous),
		Status:     string(next),
		Bonus:      result.Bonus,
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// List returns accounts for the admin view, optionally filtered by name.
func (s *AccountService) List(ctx context.Context, search string, limit, offset int) ([]models.Account, error) {
	return s.accounts.ListAll(ctx, search, limit, offset)
}
