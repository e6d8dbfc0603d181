package ledger

import (
	"errors"

	"github.com/fastprodman/arcadegate/internal/repos/deposits"
	"github.com/fastprodman/arcadegate/internal/repos/sessions"
)

var (
	ErrSessionNotFound    = sessions.ErrSessionNotFound
	ErrAlreadyUsed        = sessions.ErrAlreadyUsed
	ErrDepositNotFound    = deposits.ErrDepositNotFound
	ErrNoCreditsAvailable = deposits.ErrNoCredits
	ErrInvalidScore       = errors.New("invalid score")
)

// DefaultDepositCredits is what a $1.00 deposit buys at $0.001 per game.
const DefaultDepositCredits = 1000

// SessionStatus is the read-only view returned by ValidateSession.
type SessionStatus struct {
	SessionID string
	Valid     bool
	Used      bool
}
