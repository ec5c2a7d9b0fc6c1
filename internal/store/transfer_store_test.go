package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"cashless/internal/models"
)

func TestTransferStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transfers") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 6 || args[0] != "tr-1" || args[3] != int64(20000) || args[4] != int64(500) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return affected(1), nil
		},
	}
	store := NewTransferStore(stubDB{})
	err := store.Create(ctx, execer, models.Transfer{
		ID: "tr-1", SenderID: "a", RecipientID: "b", Amount: 20000, Fee: 500, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransferStoreListByAccount(t *testing.T) {
	ctx := context.Background()
	store := NewTransferStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(normalizeSQL(query), "WHERE sender_id = $1 OR recipient_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "a" || args[1] != 10 || args[2] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Transfer) = []models.Transfer{{ID: "tr-1"}}
			return nil
		},
	})
	rows, err := store.ListByAccount(ctx, "a", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "tr-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestTransferStoreTotalFees(t *testing.T) {
	store := NewTransferStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, _ ...any) error {
			if !strings.Contains(query, "SUM(fee)") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int64) = 1500
			return nil
		},
	})
	total, err := store.TotalFees(context.Background())
	if err != nil || total != 1500 {
		t.Fatalf("unexpected total %d err %v", total, err)
	}
}
