// Package api holds the request and response messages of the
// splitledger.v1 RPC services. Messages travel as JSON.
package api

// ParseExpenseRequest asks for a description to be parsed without saving it.
type ParseExpenseRequest struct {
	Description string   `json:"description"`
	Images      []string `json:"images,omitempty"`
	ParserTier  string   `json:"parser_tier,omitempty"`
}

// ParseExpenseResponse carries the validated draft.
type ParseExpenseResponse struct {
	Expense ExpenseDraft  `json:"expense"`
	Members []MemberDraft `json:"members"`
}

// ExpenseDraft is a parsed expense before it is saved.
type ExpenseDraft struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// MemberDraft is a parsed member before its name is resolved. Split is
// [numerator, denominator].
type MemberDraft struct {
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Split [2]int64 `json:"split"`
}

// CreateExpenseFromDescriptionRequest creates an expense in a group from
// free-form text. The caller is the USER of the description.
type CreateExpenseFromDescriptionRequest struct {
	GroupID     string   `json:"group_id"`
	Description string   `json:"description"`
	Date        int64    `json:"date,omitempty"`
	Images      []string `json:"images,omitempty"`
	ParserTier  string   `json:"parser_tier,omitempty"`
}

// CreateExpenseFromDescriptionResponse is the saved expense.
type CreateExpenseFromDescriptionResponse struct {
	Expense      Expense       `json:"expense"`
	Participants []Participant `json:"participants"`
	Debts        []Debt        `json:"debts"`
}

// GetExpenseRequest reads back one expense.
type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

// GetExpenseResponse is a saved expense.
type GetExpenseResponse struct {
	Expense      Expense       `json:"expense"`
	Participants []Participant `json:"participants"`
	Debts        []Debt        `json:"debts"`
}

// Expense is a saved ledger entry.
type Expense struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Date        int64  `json:"date"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
}

// Participant is one member's part in a saved expense. Share is a decimal
// string in dollars, rounded to cents.
type Participant struct {
	UserID string   `json:"user_id"`
	Role   string   `json:"role"`
	Split  [2]int64 `json:"split"`
	Share  string   `json:"share"`
}

// Debt is what one member owes the payer. Amount is a decimal string.
type Debt struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// AddMemberRequest adds a member to a group's roster.
type AddMemberRequest struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// AddMemberResponse is empty.
type AddMemberResponse struct{}

// ListMembersRequest reads a group's roster.
type ListMembersRequest struct {
	GroupID string `json:"group_id"`
}

// ListMembersResponse lists members in join order.
type ListMembersResponse struct {
	Members []Member `json:"members"`
}

// Member is one roster entry. Nickname is what descriptions refer to.
type Member struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}
