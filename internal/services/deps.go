package services

import (
	"context"
	"time"

	"cashless/internal/models"
	"cashless/internal/store"
	"cashless/internal/websocket"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByContact(ctx context.Context, contact string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	HasAdmin(ctx context.Context, tx store.Getter) (bool, error)
	UpdateStatus(ctx context.Context, tx store.Execer, accountID string, expected, next models.Status) (bool, error)
	MarkBonusGranted(ctx context.Context, tx store.Execer, accountID string) (bool, error)
	AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error)
	CreditDebitPair(ctx context.Context, tx store.Getter, fromID, toID string, debit, credit int64) (int64, int64, error)
	ListAll(ctx context.Context, search string, limit, offset int) ([]models.Account, error)
}

type RequestStore interface {
	Create(ctx context.Context, tx store.Execer, req models.CashRequest) error
	GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (models.CashRequest, error)
	Resolve(ctx context.Context, tx store.Execer, requestID string, next models.RequestStatus, agentID string, at time.Time) (bool, error)
	List(ctx context.Context, filter store.RequestFilter) ([]models.CashRequest, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Execer, transfer models.Transfer) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

// PINLimiter counts PIN attempts per subject. Reserve must be atomic.
type PINLimiter interface {
	Reserve(ctx context.Context, subject string) (bool, error)
	Reset(ctx context.Context, subject string) error
}
