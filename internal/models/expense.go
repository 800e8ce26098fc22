package models

import "fmt"

// Role describes what a participant did in an expense.
type Role string

const (
	// RolePayer is the member who paid the full amount up front.
	RolePayer Role = "payer"
	// RoleParticipant is a member who owes part of the amount.
	RoleParticipant Role = "participant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RolePayer || r == RoleParticipant
}

// Fraction is a participant's share of an expense as an exact ratio.
type Fraction struct {
	Numerator   int64
	Denominator int64
}

// Float64 returns the fraction as a float. A zero denominator yields 0.
func (f Fraction) Float64() float64 {
	if f.Denominator == 0 {
		return 0
	}
	return float64(f.Numerator) / float64(f.Denominator)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// Expense is a persisted ledger entry belonging to a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group whose ledger holds this expense.
	GroupID string

	// Amount is the total in whole US dollars.
	Amount int64

	// Description is a short label such as "Dinner" (~64 chars by convention).
	Description string

	// Date is the Unix timestamp the expense happened on.
	Date int64

	// CreatedBy is the user ID that submitted the description.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense row was written.
	CreatedAt int64
}

// ParticipantRecord is a resolved participant of an expense, ready to persist.
type ParticipantRecord struct {
	ExpenseID string
	UserID    string
	Role      Role
	Split     Fraction
}
