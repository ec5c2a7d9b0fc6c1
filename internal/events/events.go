package events

import (
	"context"
	"time"
)

const (
	TransferCompleted   = "ledger.transfer.completed"
	RequestApproved     = "ledger.request.approved"
	RequestRejected     = "ledger.request.rejected"
	AccountStatusChange = "account.status.changed"
)

// Publisher emits committed ledger facts. Publishing happens after commit and
// a failure never undoes the money movement.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

type TransferEvent struct {
	TransferID  string    `json:"transfer_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	Fee         int64     `json:"fee"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type RequestEvent struct {
	RequestID   string    `json:"request_id"`
	Direction   string    `json:"direction"`
	RequesterID string    `json:"requester_id"`
	AgentID     string    `json:"agent_id"`
	Amount      int64     `json:"amount"`
	Charged     int64     `json:"charged,omitempty"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type StatusEvent struct {
	AccountID  string    `json:"account_id"`
	ActorID    string    `json:"actor_id"`
	Previous   string    `json:"previous"`
	Status     string    `json:"status"`
	Bonus      int64     `json:"bonus"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Noop drops every event. It stands in when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
