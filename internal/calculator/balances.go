package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNoPayer is returned when the shares name no payer.
var ErrNoPayer = errors.New("expense has no payer")

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// Debts lists what every non-payer owes the payer for one expense.
// Zero shares produce no edge.
func Debts(shares []Share) ([]DebtEdge, error) {
	payer := ""
	for _, s := range shares {
		if s.Role == models.RolePayer {
			payer = s.UserID
			break
		}
	}
	if payer == "" {
		return nil, ErrNoPayer
	}

	var edges []DebtEdge
	for _, s := range shares {
		if s.UserID == payer || s.Amount.IsZero() {
			continue
		}
		edges = append(edges, DebtEdge{From: s.UserID, To: payer, Amount: s.Amount})
	}
	return edges, nil
}
