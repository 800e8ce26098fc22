package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitledger/internal/generation"
	"github.com/mmynk/splitledger/internal/models"
)

// splitTolerance is how far the sum of all splits may drift from 1.
const splitTolerance = 1e-4

var (
	// ErrEmptyDescription is returned when there is nothing to parse.
	ErrEmptyDescription = errors.New("description is empty")

	// ErrSchemaValidation is returned when the merged model output does not
	// have the expected shape.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrAmountInvalid is returned when the amount is not positive.
	ErrAmountInvalid = errors.New("amount must be positive")

	// ErrMissingPayer is returned unless exactly one member pays.
	ErrMissingPayer = errors.New("exactly one payer is required")

	// ErrEmptyMembers is returned when the draft lists nobody.
	ErrEmptyMembers = errors.New("at least one member is required")

	// ErrInvalidSplitBounds is returned when a split exceeds the whole.
	ErrInvalidSplitBounds = errors.New("split numerator exceeds denominator")

	// ErrSplitSumMismatch is returned when the splits do not add up to one
	// within splitTolerance.
	ErrSplitSumMismatch = errors.New("splits do not sum to one")
)

// wireDraft is the strict shape of the merged model output.
type wireDraft struct {
	Expense *wireExpense `json:"expense" validate:"required"`
	Members []wireMember `json:"members" validate:"required,dive"`
}

type wireExpense struct {
	Amount      *int64  `json:"amount" validate:"required"`
	Description *string `json:"description" validate:"required"`
}

type wireMember struct {
	Name  string  `json:"name" validate:"required"`
	Role  string  `json:"role" validate:"required,oneof=payer participant"`
	Split []int64 `json:"split" validate:"fraction"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// A fraction is [numerator, denominator] with numerator >= 0 and denominator > 0.
	_ = v.RegisterValidation("fraction", func(fl validator.FieldLevel) bool {
		split, ok := fl.Field().Interface().([]int64)
		return ok && len(split) == 2 && split[0] >= 0 && split[1] > 0
	})
	return v
}

// decodeDraft re-parses the merged document against the strict shape.
func decodeDraft(doc json.RawMessage) (*Draft, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()

	var wire wireDraft
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if err := validate.Struct(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}

	draft := &Draft{
		Expense: ExpenseDraft{
			Amount:      *wire.Expense.Amount,
			Description: *wire.Expense.Description,
		},
		Members: make([]ParticipantDraft, len(wire.Members)),
	}
	for i, m := range wire.Members {
		draft.Members[i] = ParticipantDraft{
			Name:  m.Name,
			Role:  models.Role(m.Role),
			Split: models.Fraction{Numerator: m.Split[0], Denominator: m.Split[1]},
		}
	}
	return draft, nil
}

// validateDraft applies the business rules in order and stops at the first
// violation.
func validateDraft(d *Draft) error {
	if d.Expense.Amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrAmountInvalid, d.Expense.Amount)
	}

	payers := 0
	for _, m := range d.Members {
		if m.Role == models.RolePayer {
			payers++
		}
	}
	if payers != 1 {
		return fmt.Errorf("%w: got %d", ErrMissingPayer, payers)
	}

	if len(d.Members) == 0 {
		return ErrEmptyMembers
	}

	for _, m := range d.Members {
		if m.Split.Numerator > m.Split.Denominator {
			return fmt.Errorf("%w: %s has %s", ErrInvalidSplitBounds, m.Name, m.Split)
		}
	}

	var sum float64
	for _, m := range d.Members {
		sum += m.Split.Float64()
	}
	if math.Abs(sum-1) > splitTolerance {
		return fmt.Errorf("%w: got %.6f", ErrSplitSumMismatch, sum)
	}

	return nil
}

// Kind names the failure class of a parse error, for metrics and logs.
func Kind(err error) string {
	var genErr *generation.GenerationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &genErr):
		return "generation"
	case errors.Is(err, ErrSchemaValidation):
		return "schema"
	case errors.Is(err, ErrAmountInvalid):
		return "amount"
	case errors.Is(err, ErrMissingPayer):
		return "payer"
	case errors.Is(err, ErrEmptyMembers):
		return "members"
	case errors.Is(err, ErrInvalidSplitBounds):
		return "split_bounds"
	case errors.Is(err, ErrSplitSumMismatch):
		return "split_sum"
	default:
		return "other"
	}
}
