package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// newTestStore connects to SPLITLEDGER_TEST_POSTGRES_DSN and skips when it is
// not set.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("SPLITLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPLITLEDGER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, client.RunMigrations(ctx))
	// Running twice is a no-op.
	require.NoError(t, client.RunMigrations(ctx))

	store := NewStore(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Roster(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	groupID := "g-" + uuid.NewString()

	require.NoError(t, store.AddGroupMember(ctx, groupID, models.RosterMember{UserID: "u-alice", Nickname: "Alice"}))
	require.NoError(t, store.AddGroupMember(ctx, groupID, models.RosterMember{UserID: "u-bob", Nickname: "Bob"}))

	roster, err := store.GetRoster(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []models.RosterMember{
		{UserID: "u-alice", Nickname: "Alice"},
		{UserID: "u-bob", Nickname: "Bob"},
	}, roster)

	empty, err := store.GetRoster(ctx, "g-"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_RunInTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	groupID := "g-" + uuid.NewString()
	require.NoError(t, store.AddGroupMember(ctx, groupID, models.RosterMember{UserID: "u-alice", Nickname: "Alice"}))

	t.Run("commit", func(t *testing.T) {
		var expenseID string
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
			id, err := tx.InsertExpense(ctx, &models.Expense{GroupID: groupID, Amount: 85, Description: "Dinner", CreatedBy: "u-alice"})
			if err != nil {
				return err
			}
			expenseID = id

			rows := []models.ParticipantRecord{
				{ExpenseID: id, UserID: "u-alice", Role: models.RolePayer, Split: models.Fraction{Numerator: 1, Denominator: 2}},
				{ExpenseID: id, UserID: "u-bob", Role: models.RoleParticipant, Split: models.Fraction{Numerator: 1, Denominator: 2}},
			}
			got, err := tx.InsertParticipants(ctx, rows)
			if err != nil {
				return err
			}
			assert.Len(t, got, 2)
			return nil
		})
		require.NoError(t, err)

		expense, participants, err := store.GetExpense(ctx, expenseID)
		require.NoError(t, err)
		assert.Equal(t, int64(85), expense.Amount)
		assert.Equal(t, "Dinner", expense.Description)
		require.Len(t, participants, 2)
		assert.Equal(t, "u-alice", participants[0].UserID)
		assert.Equal(t, models.RolePayer, participants[0].Role)
	})

	t.Run("rollback", func(t *testing.T) {
		var expenseID string
		boom := errors.New("boom")
		err := store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
			id, err := tx.InsertExpense(ctx, &models.Expense{GroupID: groupID, Amount: 10, Description: "Coffee", CreatedBy: "u-alice"})
			if err != nil {
				return err
			}
			expenseID = id
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, _, err = store.GetExpense(ctx, expenseID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
