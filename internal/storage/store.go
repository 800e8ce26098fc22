// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RosterReader reads a group's membership list.
type RosterReader interface {
	// GetRoster returns the members of a group in a stable order.
	// A group without members returns an empty slice and no error.
	GetRoster(ctx context.Context, groupID string) ([]models.RosterMember, error)
}

// LedgerTx is the set of writes available inside a ledger transaction.
type LedgerTx interface {
	// InsertExpense writes the expense row. ID and CreatedAt are populated
	// by the store when empty; the assigned ID is returned.
	InsertExpense(ctx context.Context, expense *models.Expense) (string, error)

	// InsertParticipants writes all rows in one statement and returns the
	// rows the database reports as inserted. Callers compare the count with
	// the input length.
	InsertParticipants(ctx context.Context, rows []models.ParticipantRecord) ([]models.ParticipantRecord, error)
}

// Ledger runs writes atomically.
type Ledger interface {
	// RunInTx calls fn inside one transaction. The transaction commits when
	// fn returns nil and rolls back otherwise; fn's error is returned as is.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// Store defines the interface for expense storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	RosterReader
	Ledger

	// AddGroupMember inserts a member into a group's roster, creating the
	// group row when it does not exist yet.
	AddGroupMember(ctx context.Context, groupID string, member models.RosterMember) error

	// GetExpense retrieves an expense and its participants.
	// Returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.ParticipantRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
