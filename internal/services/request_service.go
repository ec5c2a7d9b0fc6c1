package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashless/internal/auth"
	"cashless/internal/db"
	"cashless/internal/events"
	"cashless/internal/metrics"
	"cashless/internal/models"
	"cashless/internal/policy"
	"cashless/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// RequestService runs the cash-in/cash-out workflow. A request starts
// pending and is resolved exactly once by the agent it names.
type RequestService struct {
	txRunner db.TxRunner
	accounts AccountStore
	requests RequestStore
	ledger   LedgerStore
	audit    AuditStore
	policy   policy.Policy
	notify   Notifier
	log      zerolog.Logger
}

func NewRequestService(txRunner db.TxRunner, accounts AccountStore, requests RequestStore, ledger LedgerStore, audit AuditStore, pol policy.Policy, notify Notifier, log zerolog.Logger) *RequestService {
	return &RequestService{
		txRunner: txRunner,
		accounts: accounts,
		requests: requests,
		ledger:   ledger,
		audit:    audit,
		policy:   pol,
		notify:   notify,
		log:      log.With().Str("component", "requests").Logger(),
	}
}

type CreateRequest struct {
	Direction   models.Direction
	RequesterID string
	AgentPhone  string
	AmountMinor int64
}

type ApprovalResult struct {
	Request          models.CashRequest `json:"request"`
	Charged          int64              `json:"charged"`
	RequesterBalance int64              `json:"requester_balance"`
	AgentBalance     int64              `json:"agent_balance"`
}

func (s *RequestService) Create(ctx context.Context, in CreateRequest) (req models.CashRequest, err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation("request_create", started, outcome(err)) }()

	if in.AmountMinor <= 0 {
		return models.CashRequest{}, ErrInvalidAmount
	}
	if err := s.policy.CheckRequestAmount(in.AmountMinor); err != nil {
		return models.CashRequest{}, err
	}
	if !in.Direction.Valid() {
		return models.CashRequest{}, ErrInvalidDirection
	}
	requester, err := s.accounts.GetByID(ctx, in.RequesterID)
	if errors.Is(err, store.ErrNotFound) {
		return models.CashRequest{}, ErrAccountNotFound
	}
	if err != nil {
		return models.CashRequest{}, fmt.Errorf("load requester: %w", err)
	}
	if requester.Status == models.StatusBlocked {
		return models.CashRequest{}, ErrAccountBlocked
	}
	agent, err := s.accounts.GetByContact(ctx, in.AgentPhone)
	if errors.Is(err, store.ErrNotFound) || (err == nil && agent.Role != models.RoleAgent) {
		return models.CashRequest{}, ErrAgentNotFound
	}
	if err != nil {
		return models.CashRequest{}, fmt.Errorf("load agent: %w", err)
	}
	if agent.ID == requester.ID {
		return models.CashRequest{}, ErrSameAccountTransfer
	}
	// Approval re-checks under lock; this only rejects obviously unfunded requests early.
	if in.Direction == models.DirectionCashOut && requester.Balance < in.AmountMinor {
		return models.CashRequest{}, ErrInsufficientFunds
	}

	req = models.CashRequest{
		ID:          uuid.NewString(),
		Direction:   in.Direction,
		RequesterID: requester.ID,
		AgentPhone:  agent.Phone,
		Amount:      in.AmountMinor,
		Status:      models.RequestPending,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requests.Create(ctx, tx, req); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"agent_id": agent.ID, "amount": req.Amount})
		return s.audit.Log(ctx, tx, requester.ID, "request_"+string(req.Direction), "cash_request", req.ID, string(data))
	})
	if err != nil {
		return models.CashRequest{}, err
	}
	s.log.Info().Str("request_id", req.ID).Str("direction", string(req.Direction)).Int64("amount", req.Amount).Msg("request created")
	return req, nil
}

// Approve settles a pending request. Cash-in credits the requester; cash-out
// moves amount plus fee from the requester to the agent. A failed debit
// leaves the request pending.
func (s *RequestService) Approve(ctx context.Context, requestID, agentID string) (result ApprovalResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation("request_approve", started, outcome(err)) }()

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return ApprovalResult{}, err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = ApprovalResult{}
		req, err := s.lockPending(ctx, tx, requestID, agent)
		if err != nil {
			return err
		}
		requester, _, err := lockTwoAccounts(ctx, tx, s.accounts, req.RequesterID, agent.ID)
		if err != nil {
			return err
		}
		if requester.Status == models.StatusBlocked {
			return ErrAccountBlocked
		}

		var entries []store.LedgerEntryInput
		switch req.Direction {
		case models.DirectionCashIn:
			result.Charged = req.Amount
			if s.policy.AgentReimbursementOnCashIn {
				result.AgentBalance, result.RequesterBalance, err = s.accounts.CreditDebitPair(ctx, tx, agent.ID, requester.ID, req.Amount, req.Amount)
				entries = append(entries, entry(req.ID, agent.ID, -req.Amount, models.EntryCashInFloat, "Cash-in float"))
			} else {
				result.RequesterBalance, err = s.accounts.AdjustBalance(ctx, tx, requester.ID, req.Amount)
				result.AgentBalance = agent.Balance
			}
			entries = append(entries, entry(req.ID, requester.ID, req.Amount, models.EntryCashIn, "Cash-in"))
		case models.DirectionCashOut:
			var total int64
			if total, err = s.policy.CashOutTotal(req.Amount); err != nil {
				return err
			}
			result.Charged = total
			result.RequesterBalance, result.AgentBalance, err = s.accounts.CreditDebitPair(ctx, tx, requester.ID, agent.ID, total, total)
			entries = append(entries,
				entry(req.ID, requester.ID, -total, models.EntryCashOut, "Cash-out"),
				entry(req.ID, agent.ID, total, models.EntryCashOutSettle, "Cash-out settlement"),
			)
		default:
			return ErrInvalidDirection
		}
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ok, err := s.requests.Resolve(ctx, tx, req.ID, models.RequestApproved, agent.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidRequestState
		}
		if err := s.ledger.InsertEntries(ctx, tx, entries); err != nil {
			return err
		}
		req.Status = models.RequestApproved
		req.ApprovedAt = &now
		req.ApprovedBy = &agent.ID
		result.Request = req
		data, _ := json.Marshal(map[string]any{"charged": result.Charged, "direction": req.Direction})
		return s.audit.Log(ctx, tx, agent.ID, "approve_request", "cash_request", req.ID, string(data))
	})
	if err != nil {
		return ApprovalResult{}, err
	}

	req := result.Request
	s.log.Info().Str("request_id", req.ID).Str("agent_id", agent.ID).Int64("charged", result.Charged).Msg("request approved")
	s.notify.balance(req.RequesterID, result.RequesterBalance, "request_approved", req.ID)
	if req.Direction == models.DirectionCashOut || s.policy.AgentReimbursementOnCashIn {
		s.notify.balance(agent.ID, result.AgentBalance, "request_approved", req.ID)
	}
	s.notify.publish(ctx, events.RequestApproved, events.RequestEvent{
		RequestID:   req.ID,
		Direction:   string(req.Direction),
		RequesterID: req.RequesterID,
		AgentID:     agent.ID,
		Amount:      req.Amount,
		Charged:     result.Charged,
		Status:      string(req.Status),
		OccurredAt:  *req.ApprovedAt,
	})
	return result, nil
}

// Reject closes a pending request without touching any balance.
func (s *RequestService) Reject(ctx context.Context, requestID, agentID string) (req models.CashRequest, err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation("request_reject", started, outcome(err)) }()

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return models.CashRequest{}, err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.lockPending(ctx, tx, requestID, agent)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ok, err := s.requests.Resolve(ctx, tx, locked.ID, models.RequestRejected, agent.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidRequestState
		}
		locked.Status = models.RequestRejected
		locked.RejectedAt = &now
		locked.ApprovedBy = &agent.ID
		req = locked
		return s.audit.Log(ctx, tx, agent.ID, "reject_request", "cash_request", locked.ID, "{}")
	})
	if err != nil {
		return models.CashRequest{}, err
	}
	s.log.Info().Str("request_id", req.ID).Str("agent_id", agent.ID).Msg("request rejected")
	s.notify.publish(ctx, events.RequestRejected, events.RequestEvent{
		RequestID:   req.ID,
		Direction:   string(req.Direction),
		RequesterID: req.RequesterID,
		AgentID:     agent.ID,
		Amount:      req.Amount,
		Status:      string(req.Status),
		OccurredAt:  *req.RejectedAt,
	})
	return req, nil
}

// List scopes requests to the caller: users see their own, agents the ones
// addressed to them, admins everything.
func (s *RequestService) List(ctx context.Context, principal auth.Principal, direction models.Direction, limit, offset int) ([]models.CashRequest, error) {
	if direction != "" && !direction.Valid() {
		return nil, ErrInvalidDirection
	}
	filter := store.RequestFilter{Direction: direction, Limit: limit, Offset: offset}
	switch principal.Role {
	case models.RoleAdmin:
	case models.RoleAgent:
		agent, err := s.accounts.GetByID(ctx, principal.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		if err != nil {
			return nil, err
		}
		filter.AgentPhone = agent.Phone
	default:
		filter.RequesterID = principal.AccountID
	}
	return s.requests.List(ctx, filter)
}

func (s *RequestService) loadAgent(ctx context.Context, agentID string) (models.Account, error) {
	agent, err := s.accounts.GetByID(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("load agent: %w", err)
	}
	if agent.Role != models.RoleAgent {
		return models.Account{}, ErrNotRequestAgent
	}
	if agent.Status == models.StatusBlocked {
		return models.Account{}, ErrAccountBlocked
	}
	return agent, nil
}

func (s *RequestService) lockPending(ctx context.Context, tx store.Getter, requestID string, agent models.Account) (models.CashRequest, error) {
	req, err := s.requests.GetForUpdate(ctx, tx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return models.CashRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.CashRequest{}, err
	}
	if req.AgentPhone != agent.Phone {
		return models.CashRequest{}, ErrNotRequestAgent
	}
	if req.Status != models.RequestPending {
		return models.CashRequest{}, ErrInvalidRequestState
	}
	return req, nil
}

func entry(reference, accountID string, amount int64, kind, description string) store.LedgerEntryInput {
	return store.LedgerEntryInput{
		ID:          uuid.NewString(),
		Reference:   reference,
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
	}
}
