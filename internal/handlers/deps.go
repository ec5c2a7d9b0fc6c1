package handlers

import (
	"context"

	"cashless/internal/auth"
	"cashless/internal/models"
	"cashless/internal/services"
)

type AccountService interface {
	Register(ctx context.Context, req services.RegisterRequest) (models.Account, error)
	Authenticate(ctx context.Context, identifier, pin string) (models.Account, error)
	Get(ctx context.Context, accountID string) (models.Account, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	SetStatus(ctx context.Context, actorID, accountID string, next models.Status) (services.StatusResult, error)
	List(ctx context.Context, search string, limit, offset int) ([]models.Account, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	History(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error)
}

type RequestService interface {
	Create(ctx context.Context, in services.CreateRequest) (models.CashRequest, error)
	Approve(ctx context.Context, requestID, agentID string) (services.ApprovalResult, error)
	Reject(ctx context.Context, requestID, agentID string) (models.CashRequest, error)
	List(ctx context.Context, principal auth.Principal, direction models.Direction, limit, offset int) ([]models.CashRequest, error)
}

type LedgerStore interface {
	SumByAccount(ctx context.Context, accountID string) (int64, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, onlyMismatched bool) ([]models.Reconciliation, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type FeeStore interface {
	TotalFees(ctx context.Context) (int64, error)
}
