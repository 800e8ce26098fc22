package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// centPlaces is the precision shares are rounded to.
const centPlaces = 2

// ErrInvalidFraction is returned for a split with a non-positive denominator.
var ErrInvalidFraction = errors.New("split denominator must be positive")

// Share is the money one participant carries for an expense.
type Share struct {
	UserID string
	Role   models.Role
	Split  models.Fraction
	Amount decimal.Decimal
}

// ShareAmounts computes amount × numerator/denominator for each record,
// rounded half-up to cents. Shares keep the order of records.
func ShareAmounts(amount int64, records []models.ParticipantRecord) ([]Share, error) {
	total := decimal.NewFromInt(amount)
	shares := make([]Share, 0, len(records))

	for _, r := range records {
		if r.Split.Denominator <= 0 {
			return nil, fmt.Errorf("%w: %s has %s", ErrInvalidFraction, r.UserID, r.Split)
		}

		exact := total.Mul(decimal.NewFromInt(r.Split.Numerator)).
			Div(decimal.NewFromInt(r.Split.Denominator))

		shares = append(shares, Share{
			UserID: r.UserID,
			Role:   r.Role,
			Split:  r.Split,
			Amount: exact.Round(centPlaces),
		})
	}
	return shares, nil
}
