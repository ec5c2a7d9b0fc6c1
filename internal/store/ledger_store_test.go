package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"cashless/internal/models"
)

func TestLedgerStoreInsertEntriesSingleStatement(t *testing.T) {
	calls := 0
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			calls++
			if !strings.Contains(query, "INSERT INTO ledger_entries") || !strings.Contains(query, "($7, $8, $9, $10, $11, $12)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 12 || args[3] != int64(-20500) || args[9] != int64(20000) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return affected(2), nil
		},
	}
	entries := []LedgerEntryInput{
		{ID: "1", Reference: "tr-1", AccountID: "sender", Amount: -20500, Kind: models.EntryTransferDebit},
		{ID: "2", Reference: "tr-1", AccountID: "recipient", Amount: 20000, Kind: models.EntryTransferCredit},
	}
	if err := NewLedgerStore(stubDB{}).InsertEntries(context.Background(), execer, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 insert, got %d", calls)
	}
}

func TestLedgerStoreRejectsZeroEntry(t *testing.T) {
	execer := stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			t.Fatalf("nothing should be written")
			return nil, nil
		},
	}
	err := NewLedgerStore(stubDB{}).InsertEntries(context.Background(), execer, []LedgerEntryInput{
		{ID: "1", Reference: "tr-1", AccountID: "a", Amount: 100, Kind: models.EntryCashIn},
		{ID: "2", Reference: "tr-1", AccountID: "b", Amount: 0, Kind: models.EntryCashIn},
	})
	if !errors.Is(err, ErrZeroEntry) {
		t.Fatalf("expected ErrZeroEntry, got %v", err)
	}
}

func TestLedgerStoreInsertNothing(t *testing.T) {
	if err := NewLedgerStore(stubDB{}).InsertEntries(context.Background(), stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			t.Fatalf("empty batch should not hit the database")
			return nil, nil
		},
	}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLedgerStoreSumByAccount(t *testing.T) {
	store := NewLedgerStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "COALESCE(SUM(amount), 0)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "acc1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 79500
			return nil
		},
	})
	sum, err := store.SumByAccount(context.Background(), "acc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 79500 {
		t.Fatalf("unexpected sum: %d", sum)
	}
}
