package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusBlocked:
		return true
	}
	return false
}

type Direction string

const (
	DirectionCashIn  Direction = "cash_in"
	DirectionCashOut Direction = "cash_out"
)

func (d Direction) Valid() bool {
	return d == DirectionCashIn || d == DirectionCashOut
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Account is a ledger holder. Balance is in minor units and never negative.
type Account struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Phone          string     `db:"phone" json:"phone"`
	Email          string     `db:"email" json:"email"`
	PINHash        string     `db:"pin_hash" json:"-"`
	Role           Role       `db:"role" json:"role"`
	Status         Status     `db:"status" json:"status"`
	Balance        int64      `db:"balance" json:"balance"`
	BonusGrantedAt *time.Time `db:"bonus_granted_at" json:"bonus_granted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// CashRequest is a cash-in or cash-out request settled by an agent.
type CashRequest struct {
	ID          string        `db:"id" json:"id"`
	Direction   Direction     `db:"direction" json:"direction"`
	RequesterID string        `db:"requester_id" json:"requester_id"`
	AgentPhone  string        `db:"agent_phone" json:"agent_phone"`
	Amount      int64         `db:"amount" json:"amount"`
	Status      RequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	ApprovedAt  *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt  *time.Time    `db:"rejected_at" json:"rejected_at,omitempty"`
	ApprovedBy  *string       `db:"approved_by" json:"approved_by,omitempty"`
}

// Transfer is the immutable record of a completed peer-to-peer transfer.
type Transfer struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Fee         int64     `db:"fee" json:"fee"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LedgerEntry is one signed balance movement on one account. The sum of an
// account's entries equals its balance.
type LedgerEntry struct {
	ID          string    `db:"id" json:"id"`
	Reference   string    `db:"reference" json:"reference"`
	AccountID   string    `db:"account_id" json:"account_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Kind        string    `db:"kind" json:"kind"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	EntryTransferDebit   = "transfer_debit"
	EntryTransferCredit  = "transfer_credit"
	EntryCashIn          = "cash_in"
	EntryCashInFloat     = "cash_in_float"
	EntryCashOut         = "cash_out"
	EntryCashOutSettle   = "cash_out_settlement"
	EntryActivationBonus = "activation_bonus"
)

// Reconciliation compares an account's stored balance with its ledger sum.
type Reconciliation struct {
	AccountID      string `db:"account_id" json:"account_id"`
	AccountBalance int64  `db:"account_balance" json:"account_balance"`
	LedgerSum      int64  `db:"ledger_sum" json:"ledger_sum"`
	Difference     int64  `db:"difference" json:"difference"`
}
