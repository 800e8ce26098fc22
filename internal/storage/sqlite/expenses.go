package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// GetExpense retrieves an expense by ID together with its participants.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.ParticipantRecord, error) {
	expense := &models.Expense{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, amount, description, date, created_by, created_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Amount, &expense.Description,
		&expense.Date, &expense.CreatedBy, &expense.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id, role, split_numerator, split_denominator
		 FROM expense_participants WHERE expense_id = ? ORDER BY rowid`,
		expenseID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	participants, err := scanParticipants(rows)
	if err != nil {
		return nil, nil, err
	}

	return expense, participants, nil
}

// CountExpenses returns the number of expense rows in a group.
func (s *SQLiteStore) CountExpenses(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses WHERE group_id = ?", groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return n, nil
}
