package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

var participantColumns = []string{"expense_id", "user_id", "role", "split_numerator", "split_denominator"}

// Store implements storage.Store using PostgreSQL.
type Store struct {
	client *Client
	pool   *pgxpool.Pool
}

// NewStore creates a Store backed by the client's connection pool.
func NewStore(client *Client) *Store {
	return &Store{client: client, pool: client.Pool()}
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// GetRoster returns the members of a group in join order.
func (s *Store) GetRoster(ctx context.Context, groupID string) ([]models.RosterMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, nickname FROM group_members WHERE group_id = $1 ORDER BY joined_at, seq`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get roster %s: %w", groupID, err)
	}

	roster, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.RosterMember])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan roster %s: %w", groupID, err)
	}
	return roster, nil
}

// AddGroupMember inserts a member, creating the group row on first use.
func (s *Store) AddGroupMember(ctx context.Context, groupID string, member models.RosterMember) error {
	now := time.Now().Unix()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO groups (id, name, created_at) VALUES ($1, $1, $2) ON CONFLICT (id) DO NOTHING`,
		groupID, now,
	); err != nil {
		return fmt.Errorf("postgres: create group %s: %w", groupID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id, nickname, joined_at) VALUES ($1, $2, $3, $4)`,
		groupID, member.UserID, member.Nickname, now,
	); err != nil {
		return fmt.Errorf("postgres: add member %s: %w", member.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// RunInTx executes fn inside a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.LedgerTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense and its participants.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.ParticipantRecord, error) {
	expense := &models.Expense{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, amount, description, date, created_by, created_at
		 FROM expenses WHERE id = $1`,
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Amount, &expense.Description,
		&expense.Date, &expense.CreatedBy, &expense.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: get expense %s: %w", expenseID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT expense_id, user_id, role, split_numerator, split_denominator
		 FROM expense_participants WHERE expense_id = $1 ORDER BY seq`,
		expenseID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: get participants %s: %w", expenseID, err)
	}

	participants, err := pgx.CollectRows(rows, scanParticipant)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: scan participants %s: %w", expenseID, err)
	}
	return expense, participants, nil
}

func scanParticipant(row pgx.CollectableRow) (models.ParticipantRecord, error) {
	var p models.ParticipantRecord
	var role string
	err := row.Scan(&p.ExpenseID, &p.UserID, &role, &p.Split.Numerator, &p.Split.Denominator)
	p.Role = models.Role(role)
	return p, err
}

// ledgerTx implements storage.LedgerTx on a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

// InsertExpense writes the expense row.
func (t *ledgerTx) InsertExpense(ctx context.Context, expense *models.Expense) (string, error) {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	const query = `
		INSERT INTO expenses (id, group_id, amount, description, date, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := t.tx.Exec(ctx, query,
		expense.ID, expense.GroupID, expense.Amount, expense.Description,
		expense.Date, expense.CreatedBy, expense.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("postgres: insert expense %s: %w", expense.ID, err)
	}
	return expense.ID, nil
}

// InsertParticipants bulk-loads the rows with COPY and returns the rows the
// server acknowledged.
func (t *ledgerTx) InsertParticipants(ctx context.Context, rows []models.ParticipantRecord) ([]models.ParticipantRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"expense_participants"},
		participantColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.ExpenseID, r.UserID, string(r.Role), r.Split.Numerator, r.Split.Denominator}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert participants: %w", err)
	}
	if n > int64(len(rows)) {
		n = int64(len(rows))
	}
	return rows[:n], nil
}
