package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrZeroEntry rejects a ledger entry that moves nothing.
var ErrZeroEntry = errors.New("ledger entry amount must be non-zero")

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// InsertEntries writes all entries in one statement.
func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []LedgerEntryInput) error {
	if len(entries) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO ledger_entries (id, reference, account_id, amount, kind, description) VALUES `)
	args := make([]any, 0, len(entries)*6)
	for i, entry := range entries {
		if entry.Amount == 0 {
			return fmt.Errorf("%w: %s on %s", ErrZeroEntry, entry.Kind, entry.AccountID)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, entry.ID, entry.Reference, entry.AccountID, entry.Amount, entry.Kind, entry.Description)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// SumByAccount is what the account balance must equal.
func (s *LedgerStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID)
	return sum, err
}

// LedgerEntryInput is one signed movement. Reference ties the entry to the
// transfer, request or account that caused it.
type LedgerEntryInput struct {
	ID          string
	Reference   string
	AccountID   string
	Amount      int64
	Kind        string
	Description string
}
