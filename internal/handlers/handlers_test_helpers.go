package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"cashless/internal/auth"
	"cashless/internal/config"
	"cashless/internal/models"
	"cashless/internal/services"
	"cashless/internal/websocket"

	"github.com/rs/zerolog"
)

type stubAccountService struct {
	registerFn     func(ctx context.Context, req services.RegisterRequest) (models.Account, error)
	authenticateFn func(ctx context.Context, identifier, pin string) (models.Account, error)
	getFn          func(ctx context.Context, accountID string) (models.Account, error)
	getBalanceFn   func(ctx context.Context, accountID string) (int64, error)
	setStatusFn    func(ctx context.Context, actorID, accountID string, next models.Status) (services.StatusResult, error)
	listFn         func(ctx context.Context, search string, limit, offset int) ([]models.Account, error)
}

func (s stubAccountService) Register(ctx context.Context, req services.RegisterRequest) (models.Account, error) {
	if s.registerFn == nil {
		return models.Account{}, nil
	}
	return s.registerFn(ctx, req)
}

func (s stubAccountService) Authenticate(ctx context.Context, identifier, pin string) (models.Account, error) {
	if s.authenticateFn == nil {
		return models.Account{}, services.ErrInvalidCredential
	}
	return s.authenticateFn(ctx, identifier, pin)
}

func (s stubAccountService) Get(ctx context.Context, accountID string) (models.Account, error) {
	if s.getFn == nil {
		return models.Account{}, services.ErrAccountNotFound
	}
	return s.getFn(ctx, accountID)
}

func (s stubAccountService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if s.getBalanceFn == nil {
		return 0, nil
	}
	return s.getBalanceFn(ctx, accountID)
}

func (s stubAccountService) SetStatus(ctx context.Context, actorID, accountID string, next models.Status) (services.StatusResult, error) {
	if s.setStatusFn == nil {
		return services.StatusResult{}, nil
	}
	return s.setStatusFn(ctx, actorID, accountID, next)
}

func (s stubAccountService) List(ctx context.Context, search string, limit, offset int) ([]models.Account, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, search, limit, offset)
}

type stubTransferService struct {
	transferFn func(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	historyFn  func(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error)
}

func (s stubTransferService) Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error) {
	if s.transferFn == nil {
		return services.TransferResult{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubTransferService) History(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, accountID, limit, offset)
}

type stubRequestService struct {
	createFn  func(ctx context.Context, in services.CreateRequest) (models.CashRequest, error)
	approveFn func(ctx context.Context, requestID, agentID string) (services.ApprovalResult, error)
	rejectFn  func(ctx context.Context, requestID, agentID string) (models.CashRequest, error)
	listFn    func(ctx context.Context, principal auth.Principal, direction models.Direction, limit, offset int) ([]models.CashRequest, error)
}

func (s stubRequestService) Create(ctx context.Context, in services.CreateRequest) (models.CashRequest, error) {
	if s.createFn == nil {
		return models.CashRequest{}, nil
	}
	return s.createFn(ctx, in)
}

func (s stubRequestService) Approve(ctx context.Context, requestID, agentID string) (services.ApprovalResult, error) {
	if s.approveFn == nil {
		return services.ApprovalResult{}, nil
	}
	return s.approveFn(ctx, requestID, agentID)
}

func (s stubRequestService) Reject(ctx context.Context, requestID, agentID string) (models.CashRequest, error) {
	if s.rejectFn == nil {
		return models.CashRequest{}, nil
	}
	return s.rejectFn(ctx, requestID, agentID)
}

func (s stubRequestService) List(ctx context.Context, principal auth.Principal, direction models.Direction, limit, offset int) ([]models.CashRequest, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, principal, direction, limit, offset)
}

type stubLedgerStore struct {
	sumFn func(ctx context.Context, accountID string) (int64, error)
}

func (s stubLedgerStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	if s.sumFn == nil {
		return 0, nil
	}
	return s.sumFn(ctx, accountID)
}

type stubReconciler struct {
	reconcileFn func(ctx context.Context, onlyMismatched bool) ([]models.Reconciliation, error)
}

func (s stubReconciler) Reconcile(ctx context.Context, onlyMismatched bool) ([]models.Reconciliation, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, onlyMismatched)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubFeeStore struct {
	totalFn func(ctx context.Context) (int64, error)
}

func (s stubFeeStore) TotalFees(ctx context.Context) (int64, error) {
	if s.totalFn == nil {
		return 0, nil
	}
	return s.totalFn(ctx)
}

// testDeps collects the collaborators of a Handler; zero fields fall back to stubs.
type testDeps struct {
	accounts   AccountService
	transfers  TransferService
	requests   RequestService
	ledger     LedgerStore
	reconciler Reconciler
	audit      AuditStore
	fees       FeeStore
}

const testSecret = "secret"

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	if deps.accounts == nil {
		deps.accounts = stubAccountService{}
	}
	if deps.transfers == nil {
		deps.transfers = stubTransferService{}
	}
	if deps.requests == nil {
		deps.requests = stubRequestService{}
	}
	if deps.ledger == nil {
		deps.ledger = stubLedgerStore{}
	}
	if deps.reconciler == nil {
		deps.reconciler = stubReconciler{}
	}
	if deps.audit == nil {
		deps.audit = stubAuditStore{}
	}
	if deps.fees == nil {
		deps.fees = stubFeeStore{}
	}
	return New(cfg, zerolog.Nop(), deps.accounts, deps.transfers, deps.requests, deps.ledger, deps.reconciler, deps.audit, deps.fees, websocket.NewHub())
}

// serve sends a request through the full router. A zero principal sends no token.
func serve(t *testing.T, h *Handler, method, path string, body any, principal auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal.AccountID != "" {
		token, err := auth.GenerateToken(testSecret, principal, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
}

var (
	userPrincipal  = auth.Principal{AccountID: "acc-user", Role: models.RoleUser}
	agentPrincipal = auth.Principal{AccountID: "acc-agent", Role: models.RoleAgent}
	adminPrincipal = auth.Principal{AccountID: "acc-admin", Role: models.RoleAdmin}
)
