package store

import (
	"context"
	"strings"

	"cashless/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, name, phone, email, pin_hash, role, status, balance, bonus_granted_at, created_at`

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	query := `
		INSERT INTO accounts (id, name, phone, email, pin_hash, role, status, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		account.ID, account.Name, account.Phone, account.Email, account.PINHash,
		account.Role, account.Status, account.Balance,
	)
	return mapErr(err)
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, mapErr(err)
	}
	return row, nil
}

// GetByContact resolves an account by phone or email.
func (s *AccountStore) GetByContact(ctx context.Context, contact string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE phone = $1 OR email = $1
		LIMIT 1
	`, strings.TrimSpace(contact))
	if err != nil {
		return models.Account{}, mapErr(err)
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, mapErr(err)
	}
	return row, nil
}

// UpdateStatus moves the account to next only if its current status is
// expected. It reports whether a row changed.
func (s *AccountStore) UpdateStatus(ctx context.Context, tx Execer, accountID string, expected, next models.Status) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, next, accountID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkBonusGranted stamps the account once. It reports false when the bonus
// was already granted.
func (s *AccountStore) MarkBonusGranted(ctx context.Context, tx Execer, accountID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET bonus_granted_at = NOW()
		WHERE id = $1 AND bonus_granted_at IS NULL
	`, accountID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AdjustBalance applies delta and returns the new balance. The update is
// guarded so a balance never goes below zero.
func (s *AccountStore) AdjustBalance(ctx context.Context, tx Getter, accountID string, delta int64) (int64, error) {
	if delta == 0 {
		return 0, ErrNonPositiveAmount
	}
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance
	`, delta, accountID)
	if err == nil {
		return balance, nil
	}
	if mapErr(err) != ErrNotFound {
		return 0, err
	}
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrInsufficientFunds
}

// HasAdmin reports whether any admin account exists.
func (s *AccountStore) HasAdmin(ctx context.Context, tx Getter) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM accounts WHERE role = 'admin')`)
	return exists, err
}

// CreditDebitPair debits fromID and credits toID inside the caller's
// transaction. Rows are locked in id order.
func (s *AccountStore) CreditDebitPair(ctx context.Context, tx Getter, fromID, toID string, debit, credit int64) (fromBalance, toBalance int64, err error) {
	if debit <= 0 || credit <= 0 {
		return 0, 0, ErrNonPositiveAmount
	}
	first, second := orderedIDs(fromID, toID)
	if _, err := s.GetForUpdate(ctx, tx, first); err != nil {
		return 0, 0, err
	}
	if second != first {
		if _, err := s.GetForUpdate(ctx, tx, second); err != nil {
			return 0, 0, err
		}
	}
	fromBalance, err = s.AdjustBalance(ctx, tx, fromID, -debit)
	if err != nil {
		return 0, 0, err
	}
	toBalance, err = s.AdjustBalance(ctx, tx, toID, credit)
	if err != nil {
		return 0, 0, err
	}
	return fromBalance, toBalance, nil
}

// ListAll returns accounts newest first, optionally filtered by a
// case-insensitive name match.
func (s *AccountStore) ListAll(ctx context.Context, search string, limit, offset int) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile compares stored balances with the ledger. With onlyMismatched
// set, accounts that agree are left out.
func (s *AccountStore) Reconcile(ctx context.Context, onlyMismatched bool) ([]models.Reconciliation, error) {
	var rows []models.Reconciliation
	query := `
		SELECT a.id AS account_id,
		       a.balance AS account_balance,
		       COALESCE(SUM(l.amount), 0) AS ledger_sum,
		       (a.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.balance
	`
	if onlyMismatched {
		query += " HAVING a.balance <> COALESCE(SUM(l.amount), 0)"
	}
	query += " ORDER BY a.id"
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func orderedIDs(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
