package deposits

import (
	"errors"
	"time"
)

var (
	ErrDepositNotFound = errors.New("deposit not found")
	ErrNoCredits       = errors.New("no credits available")
	ErrDuplicateID     = errors.New("duplicate deposit id")
)

// Deposit is a prepaid credit balance spent one credit per session.
type Deposit struct {
	ID        string
	Credits   int
	CreatedAt time.Time
	PaymentID *string
}

type Deposits interface {
	Insert(d Deposit) error
	Get(id string) (Deposit, error)
	// SpendCredit takes one credit and returns what is left.
	// Unknown or exhausted deposits return ErrNoCredits and are left untouched.
	SpendCredit(id string) (int, error)
}
