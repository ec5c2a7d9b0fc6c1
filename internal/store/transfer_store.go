package store

import (
	"context"

	"cashless/internal/models"
)

// TransferStore is append-only: completed transfers are never updated or
// deleted.
type TransferStore struct {
	db DB
}

func NewTransferStore(db DB) *TransferStore {
	return &TransferStore{db: db}
}

func (s *TransferStore) Create(ctx context.Context, tx Execer, transfer models.Transfer) error {
	query := `
		INSERT INTO transfers (id, sender_id, recipient_id, amount, fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		transfer.ID, transfer.SenderID, transfer.RecipientID, transfer.Amount, transfer.Fee, transfer.CreatedAt,
	)
	return mapErr(err)
}

// ListByAccount returns transfers sent or received by the account, newest first.
func (s *TransferStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transfer, error) {
	var rows []models.Transfer
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, sender_id, recipient_id, amount, fee, created_at
		FROM transfers
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransferStore) TotalFees(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(fee), 0) FROM transfers`)
	return total, err
}
