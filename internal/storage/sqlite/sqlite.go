// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are a per-connection pragma, so they go in the DSN.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RunInTx executes fn inside a database transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ledgerTx implements storage.LedgerTx on top of a *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

// InsertExpense persists a new expense row.
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

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, amount, description, date, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Amount, expense.Description,
		expense.Date, expense.CreatedBy, expense.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert expense: %w", err)
	}
	return expense.ID, nil
}

// InsertParticipants writes every row with a single multi-row INSERT and
// returns what the database reports back.
func (t *ledgerTx) InsertParticipants(ctx context.Context, rows []models.ParticipantRecord) ([]models.ParticipantRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	query := `INSERT INTO expense_participants (expense_id, user_id, role, split_numerator, split_denominator)
		VALUES (?, ?, ?, ?, ?)` + strings.Repeat(", (?, ?, ?, ?, ?)", len(rows)-1) + `
		RETURNING expense_id, user_id, role, split_numerator, split_denominator`

	args := make([]any, 0, len(rows)*5)
	for _, r := range rows {
		args = append(args, r.ExpenseID, r.UserID, string(r.Role), r.Split.Numerator, r.Split.Denominator)
	}

	result, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participants: %w", err)
	}
	defer result.Close()

	inserted, err := scanParticipants(result)
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// scanParticipants reads participant rows in the column order used by
// InsertParticipants and GetExpense.
func scanParticipants(rows *sql.Rows) ([]models.ParticipantRecord, error) {
	var participants []models.ParticipantRecord
	for rows.Next() {
		var p models.ParticipantRecord
		var role string
		if err := rows.Scan(&p.ExpenseID, &p.UserID, &role, &p.Split.Numerator, &p.Split.Denominator); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Role = models.Role(role)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}
