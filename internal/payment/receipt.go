package payment

import (
	"context"
	"errors"
	"sync"
)

// ErrNotSettled is returned by Commit when there is no verified payment to
// settle or when settlement failed.
var ErrNotSettled = errors.New("payment not settled")

// Receipt is what the gate hands to a handler after a settled payment.
type Receipt struct {
	Payer       string
	Transaction string
	Network     string
}

// PaymentID returns the settlement reference, or nil when there is none.
func (r Receipt) PaymentID() *string {
	if r.Transaction == "" {
		return nil
	}

	id := r.Transaction
	return &id
}

// settlement is a verified payment waiting to be charged. It settles at most once.
type settlement struct {
	once    sync.Once
	settle  func() (Receipt, error)
	tried   bool
	receipt Receipt
	err     error
}

func (s *settlement) commit() (Receipt, error) {
	s.once.Do(func() {
		s.tried = true
		s.receipt, s.err = s.settle()
	})

	return s.receipt, s.err
}

type settlementKey struct{}

func withSettlement(ctx context.Context, s *settlement) context.Context {
	return context.WithValue(ctx, settlementKey{}, s)
}

// Commit settles the verified payment carried by ctx and returns its receipt.
// Handlers call it after their own validation and before changing any state.
// On error the gate answers 402 and discards whatever the handler wrote.
func Commit(ctx context.Context) (Receipt, error) {
	s, ok := ctx.Value(settlementKey{}).(*settlement)
	if !ok {
		return Receipt{}, ErrNotSettled
	}

	return s.commit()
}

// ReceiptFromContext reports the receipt of an already committed payment.
func ReceiptFromContext(ctx context.Context) (Receipt, bool) {
	s, ok := ctx.Value(settlementKey{}).(*settlement)
	if !ok || !s.tried || s.err != nil {
		return Receipt{}, false
	}

	return s.receipt, true
}
