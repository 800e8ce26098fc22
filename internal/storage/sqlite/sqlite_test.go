package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "splitledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, m := range []models.RosterMember{
		{UserID: "u-alice", Nickname: "Alice"},
		{UserID: "u-bob", Nickname: "Bob"},
	} {
		if err := store.AddGroupMember(ctx, "g1", m); err != nil {
			t.Fatalf("AddGroupMember failed: %v", err)
		}
	}

	t.Run("GetRoster returns members in join order", func(t *testing.T) {
		roster, err := store.GetRoster(ctx, "g1")
		if err != nil {
			t.Fatalf("GetRoster failed: %v", err)
		}
		if len(roster) != 2 {
			t.Fatalf("Expected 2 members, got %d", len(roster))
		}
		if roster[0].Nickname != "Alice" || roster[1].Nickname != "Bob" {
			t.Errorf("Unexpected roster order: %+v", roster)
		}
	})

	t.Run("GetRoster of unknown group is empty", func(t *testing.T) {
		roster, err := store.GetRoster(ctx, "missing")
		if err != nil {
			t.Fatalf("GetRoster failed: %v", err)
		}
		if len(roster) != 0 {
			t.Errorf("Expected empty roster, got %d members", len(roster))
		}
	})

	t.Run("RunInTx commits expense and participants", func(t *testing.T) {
		var expenseID string
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
			expense := &models.Expense{GroupID: "g1", Amount: 85, Description: "Dinner", CreatedBy: "u-alice"}
			id, err := tx.InsertExpense(ctx, expense)
			if err != nil {
				return err
			}
			expenseID = id

			rows := []models.ParticipantRecord{
				{ExpenseID: id, UserID: "u-alice", Role: models.RolePayer, Split: models.Fraction{Numerator: 1, Denominator: 2}},
				{ExpenseID: id, UserID: "u-bob", Role: models.RoleParticipant, Split: models.Fraction{Numerator: 1, Denominator: 2}},
			}
			inserted, err := tx.InsertParticipants(ctx, rows)
			if err != nil {
				return err
			}
			if len(inserted) != len(rows) {
				t.Errorf("Expected %d inserted rows, got %d", len(rows), len(inserted))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("RunInTx failed: %v", err)
		}

		expense, participants, err := store.GetExpense(ctx, expenseID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if expense.Amount != 85 || expense.Description != "Dinner" {
			t.Errorf("Unexpected expense: %+v", expense)
		}
		if expense.CreatedAt == 0 || expense.Date == 0 {
			t.Error("Expected CreatedAt and Date to be set")
		}
		if len(participants) != 2 {
			t.Fatalf("Expected 2 participants, got %d", len(participants))
		}
		if participants[0].Role != models.RolePayer || participants[0].Split.Denominator != 2 {
			t.Errorf("Unexpected payer row: %+v", participants[0])
		}
	})

	t.Run("RunInTx rolls back when fn fails", func(t *testing.T) {
		before, err := store.CountExpenses(ctx, "g1")
		if err != nil {
			t.Fatalf("CountExpenses failed: %v", err)
		}

		boom := errors.New("boom")
		err = store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
			if _, err := tx.InsertExpense(ctx, &models.Expense{GroupID: "g1", Amount: 10, Description: "Taxi", CreatedBy: "u-bob"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected fn error to be returned, got %v", err)
		}

		after, err := store.CountExpenses(ctx, "g1")
		if err != nil {
			t.Fatalf("CountExpenses failed: %v", err)
		}
		if after != before {
			t.Errorf("Expected %d expenses after rollback, got %d", before, after)
		}
	})

	t.Run("InsertParticipants rejects invalid split", func(t *testing.T) {
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
			id, err := tx.InsertExpense(ctx, &models.Expense{GroupID: "g1", Amount: 10, Description: "Taxi", CreatedBy: "u-bob"})
			if err != nil {
				return err
			}
			_, err = tx.InsertParticipants(ctx, []models.ParticipantRecord{
				{ExpenseID: id, UserID: "u-bob", Role: models.RolePayer, Split: models.Fraction{Numerator: 1, Denominator: 0}},
			})
			return err
		})
		if err == nil {
			t.Error("Expected error for zero denominator, got nil")
		}
	})

	t.Run("GetExpense returns ErrNotFound for nonexistent expense", func(t *testing.T) {
		_, _, err := store.GetExpense(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestInsertParticipantsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
		inserted, err := tx.InsertParticipants(ctx, nil)
		if err != nil {
			return err
		}
		if len(inserted) != 0 {
			t.Errorf("Expected no rows, got %d", len(inserted))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
}
