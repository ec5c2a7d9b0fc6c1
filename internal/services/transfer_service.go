package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

type TransferService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	transfers TransferStore
	ledger    LedgerStore
	audit     AuditStore
	policy    policy.Policy
	pins      pinGuard
	notify    Notifier
	log       zerolog.Logger
}

func NewTransferService(txRunner db.TxRunner, accounts AccountStore, transfers TransferStore, ledger LedgerStore, audit AuditStore, pol policy.Policy, limiter PINLimiter, notify Notifier, log zerolog.Logger) *TransferService {
	return &TransferService{
		txRunner:  txRunner,
		accounts:  accounts,
		transfers: transfers,
		ledger:    ledger,
		audit:     audit,
		policy:    pol,
		pins:      pinGuard{limiter: limiter, log: log},
		notify:    notify,
		log:       log.With().Str("component", "transfer").Logger(),
	}
}

type TransferRequest struct {
	SenderID       string
	RecipientPhone string
	AmountMinor    int64
	PIN            string
}

type TransferResult struct {
	TransferID       string    `json:"transfer_id"`
	Amount           int64     `json:"amount"`
	Fee              int64     `json:"fee"`
	SenderBalance    int64     `json:"sender_balance"`
	RecipientBalance int64     `json:"recipient_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// Transfer moves AmountMinor from the sender to the account registered under
// RecipientPhone. The sender pays amount plus fee; the recipient gets amount.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (result TransferResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation("transfer", started, outcome(err)) }()

	fee, total, err := s.policy.TransferTotal(req.AmountMinor)
	if err != nil {
		return TransferResult{}, err
	}
	if err := validator.ValidatePIN(req.PIN); err != nil {
		return TransferResult{}, ErrInvalidPINFormat
	}
	sender, err := s.accounts.GetByID(ctx, req.SenderID)
	if errors.Is(err, store.ErrNotFound) {
		return TransferResult{}, ErrInvalidCredential
	}
	if err != nil {
		return TransferResult{}, fmt.Errorf("load sender: %w", err)
	}
	if err := s.pins.check(ctx, sender.ID, sender.PINHash, req.PIN); err != nil {
		return TransferResult{}, err
	}
	if sender.Status == models.StatusBlocked {
		return TransferResult{}, ErrAccountBlocked
	}
	recipient, err := s.accounts.GetByContact(ctx, req.RecipientPhone)
	if errors.Is(err, store.ErrNotFound) {
		return TransferResult{}, ErrRecipientNotFound
	}
	if err != nil {
		return TransferResult{}, fmt.Errorf("load recipient: %w", err)
	}
	if recipient.ID == sender.ID {
		return TransferResult{}, ErrSameAccountTransfer
	}

	transfer := models.Transfer{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Amount:      req.AmountMinor,
		Fee:         fee,
	}
	var senderBalance, recipientBalance int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		transfer.ID = uuid.NewString()
		transfer.CreatedAt = time.Now().UTC()
		lockedSender, _, err := lockTwoAccounts(ctx, tx, s.accounts, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if lockedSender.Status == models.StatusBlocked {
			return ErrAccountBlocked
		}
		if lockedSender.Balance < total {
			return ErrInsufficientFunds
		}
		senderBalance, recipientBalance, err = s.accounts.CreditDebitPair(ctx, tx, sender.ID, recipient.ID, total, req.AmountMinor)
		if err != nil {
			return err
		}
		if err := s.transfers.Create(ctx, tx, transfer); err != nil {
			return err
		}
		if err := s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{
			{
				ID:          uuid.NewString(),
				Reference:   transfer.ID,
				AccountID:   sender.ID,
				Amount:      -total,
				Kind:        models.EntryTransferDebit,
				Description: "Transfer debit",
			},
			{
				ID:          uuid.NewString(),
				Reference:   transfer.ID,
				AccountID:   recipient.ID,
				Amount:      req.AmountMinor,
				Kind:        models.EntryTransferCredit,
				Description: "Transfer credit",
			},
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"recipient_id": recipient.ID,
			"amount":       req.AmountMinor,
			"fee":          fee,
		})
		return s.audit.Log(ctx, tx, sender.ID, "transfer", "transfer", transfer.ID, string(data))
	})
	if err != nil {
		return TransferResult{}, err
	}

	metrics.AddFees(fee)
	s.log.Info().
		Str("transfer_id", transfer.ID).
		Str("sender_id", sender.ID).
		Str("recipient_id", recipient.ID).
		Int64("amount", transfer.Amount).
		Int64("fee", fee).
		Msg("transfer completed")
	s.notify.balance(sender.ID, senderBalance, "transfer_sent", transfer.ID)
	s.notify.balance(recipient.ID, recipientBalance, "transfer_received", transfer.ID)
	s.notify.publish(ctx, events.TransferCompleted, events.TransferEvent{
		TransferID:  transfer.ID,
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Amount:      transfer.Amount,
		Fee:         fee,
		OccurredAt:  transfer.CreatedAt,
	})
	return TransferResult{
		TransferID:       transfer.ID,
		Amount:           transfer.Amount,
		Fee:              fee,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
		CreatedAt:        transfer.CreatedAt,
	}, nil
}

// History lists transfers the account sent or received, newest first.
func (s *TransferService) History(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error) {
	return s.transfers.ListByAccount(ctx, accountID, limit, offset)
}

func lockTwoAccounts(ctx context.Context, tx store.Getter, accounts AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := accounts.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	right, err := accounts.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}
