package sessions

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyUsed     = errors.New("session already used")
	ErrDuplicateID     = errors.New("duplicate session id")
)

// Origin records how a session was paid for.
type Origin string

const (
	OriginPaid     Origin = "paid"
	OriginCredit   Origin = "credit"
	OriginContinue Origin = "continue"
)

// Session is a single authorized play, redeemable once.
type Session struct {
	ID        string
	CreatedAt time.Time
	Used      bool
	Origin    Origin

	// PaymentID is nil for credit-funded sessions.
	PaymentID *string
	// ContinueScore is set only when Origin is OriginContinue.
	ContinueScore *float64
}

type Sessions interface {
	Insert(s Session) error
	Get(id string) (Session, error)
	// MarkUsed flips Used to true and returns the session as it was before the flip.
	MarkUsed(id string) (Session, error)
	Count() int
}
