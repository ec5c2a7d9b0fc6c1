package store

import (
	"context"
	"fmt"
	"time"

	"cashless/internal/models"
)

type RequestStore struct {
	db DB
}

// RequestFilter narrows List. Empty fields match everything.
type RequestFilter struct {
	Direction   models.Direction
	RequesterID string
	AgentPhone  string
	Limit       int
	Offset      int
}

func NewRequestStore(db DB) *RequestStore {
	return &RequestStore{db: db}
}

const requestColumns = `id, direction, requester_id, agent_phone, amount, status, created_at, approved_at, rejected_at, approved_by`

func (s *RequestStore) Create(ctx context.Context, tx Execer, req models.CashRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cash_requests (id, direction, requester_id, agent_phone, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.Direction, req.RequesterID, req.AgentPhone, req.Amount, req.Status, req.CreatedAt)
	return mapErr(err)
}

func (s *RequestStore) GetForUpdate(ctx context.Context, tx Getter, requestID string) (models.CashRequest, error) {
	var row models.CashRequest
	err := tx.GetContext(ctx, &row, `SELECT `+requestColumns+` FROM cash_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		return models.CashRequest{}, mapErr(err)
	}
	return row, nil
}

// Resolve moves a pending request to next and stamps who resolved it. It
// reports false when the request was no longer pending.
func (s *RequestStore) Resolve(ctx context.Context, tx Execer, requestID string, next models.RequestStatus, agentID string, at time.Time) (bool, error) {
	column := "approved_at"
	if next == models.RequestRejected {
		column = "rejected_at"
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE cash_requests
		SET status = $1, `+column+` = $2, approved_by = $3
		WHERE id = $4 AND status = 'pending'
	`, next, at, agentID, requestID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RequestStore) List(ctx context.Context, filter RequestFilter) ([]models.CashRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM cash_requests WHERE 1 = 1`
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if filter.Direction != "" {
		add("direction", filter.Direction)
	}
	if filter.RequesterID != "" {
		add("requester_id", filter.RequesterID)
	}
	if filter.AgentPhone != "" {
		add("agent_phone", filter.AgentPhone)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []models.CashRequest
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
