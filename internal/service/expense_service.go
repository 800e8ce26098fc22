package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/parser"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

var errUnauthenticated = errors.New("authentication required")

// ExpenseService implements the Connect ExpenseService
type ExpenseService struct {
	reconciler *ledger.Reconciler
	store      storage.Store
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(reconciler *ledger.Reconciler, store storage.Store) *ExpenseService {
	return &ExpenseService{reconciler: reconciler, store: store}
}

// ParseExpense parses a description without saving anything.
func (s *ExpenseService) ParseExpense(ctx context.Context, req *connect.Request[api.ParseExpenseRequest]) (*connect.Response[api.ParseExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	slog.Info("ParseExpense request received",
		"user_id", userID,
		"images_count", len(req.Msg.Images),
		"parser_tier", req.Msg.ParserTier,
	)

	draft, err := s.reconciler.Preview(ctx, ledger.Request{
		UserID:      userID,
		Description: req.Msg.Description,
		Images:      req.Msg.Images,
		ParserTier:  req.Msg.ParserTier,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(draftToAPI(draft)), nil
}

// CreateExpenseFromDescription parses a description and saves the expense
// in the caller's group.
func (s *ExpenseService) CreateExpenseFromDescription(ctx context.Context, req *connect.Request[api.CreateExpenseFromDescriptionRequest]) (*connect.Response[api.CreateExpenseFromDescriptionResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	slog.Info("CreateExpenseFromDescription request received",
		"user_id", userID,
		"group_id", req.Msg.GroupID,
		"images_count", len(req.Msg.Images),
		"parser_tier", req.Msg.ParserTier,
	)

	result, err := s.reconciler.CreateFromDescription(ctx, ledger.Request{
		GroupID:     req.Msg.GroupID,
		UserID:      userID,
		Description: req.Msg.Description,
		Date:        req.Msg.Date,
		Images:      req.Msg.Images,
		ParserTier:  req.Msg.ParserTier,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	expense, participants, debts, err := expenseToAPI(result.Expense, result.Participants)
	if err != nil {
		slog.Error("Failed to compute shares", "expense_id", result.Expense.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.CreateExpenseFromDescriptionResponse{
		Expense:      expense,
		Participants: participants,
		Debts:        debts,
	}), nil
}

// GetExpense reads back an expense. Only members of the expense's group may
// read it.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	if req.Msg.ExpenseID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense_id is required"))
	}

	expense, records, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		slog.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	if err := s.requireMember(ctx, expense.GroupID, userID); err != nil {
		return nil, err
	}

	apiExpense, participants, debts, err := expenseToAPI(expense, records)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.GetExpenseResponse{
		Expense:      apiExpense,
		Participants: participants,
		Debts:        debts,
	}), nil
}

func (s *ExpenseService) requireMember(ctx context.Context, groupID, userID string) error {
	roster, err := s.store.GetRoster(ctx, groupID)
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if hasMember(roster, userID) {
		return nil
	}
	return connect.NewError(connect.CodePermissionDenied, errors.New("not a member of this group"))
}

// toConnectError maps reconciler errors to Connect codes. Consolidated
// errors expose only their class; the cause stays in the logs.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, ledger.ErrInvalidRequest), errors.Is(err, parser.ErrEmptyDescription):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrCallerNotMember):
		return connect.NewError(connect.CodePermissionDenied, errors.New("not a member of this group"))
	case errors.Is(err, ledger.ErrParsingFailed):
		return connect.NewError(connect.CodeInvalidArgument, ledger.ErrParsingFailed)
	case errors.Is(err, ledger.ErrCreationFailed):
		return connect.NewError(connect.CodeInternal, ledger.ErrCreationFailed)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func draftToAPI(d *parser.Draft) *api.ParseExpenseResponse {
	members := make([]api.MemberDraft, len(d.Members))
	for i, m := range d.Members {
		members[i] = api.MemberDraft{
			Name:  m.Name,
			Role:  string(m.Role),
			Split: [2]int64{m.Split.Numerator, m.Split.Denominator},
		}
	}
	return &api.ParseExpenseResponse{
		Expense: api.ExpenseDraft{Amount: d.Expense.Amount, Description: d.Expense.Description},
		Members: members,
	}
}

func expenseToAPI(e *models.Expense, records []models.ParticipantRecord) (api.Expense, []api.Participant, []api.Debt, error) {
	shares, err := calculator.ShareAmounts(e.Amount, records)
	if err != nil {
		return api.Expense{}, nil, nil, err
	}
	edges, err := calculator.Debts(shares)
	if err != nil {
		return api.Expense{}, nil, nil, err
	}

	participants := make([]api.Participant, len(shares))
	for i, s := range shares {
		participants[i] = api.Participant{
			UserID: s.UserID,
			Role:   string(s.Role),
			Split:  [2]int64{s.Split.Numerator, s.Split.Denominator},
			Share:  s.Amount.StringFixed(2),
		}
	}
	debts := make([]api.Debt, len(edges))
	for i, d := range edges {
		debts[i] = api.Debt{From: d.From, To: d.To, Amount: d.Amount.StringFixed(2)}
	}

	return api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}, participants, debts, nil
}
