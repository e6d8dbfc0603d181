package deposits

import (
	"sync"

	"github.com/fastprodman/arcadegate/internal/repos/deposits"
)

var _ deposits.Deposits = (*depositsRepo)(nil)

type depositsRepo struct {
	mu       sync.Mutex
	deposits map[string]*deposits.Deposit
}

func New() *depositsRepo {
	return &depositsRepo{deposits: make(map[string]*deposits.Deposit)}
}

func (r *depositsRepo) Insert(d deposits.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deposits[d.ID]; ok {
		return deposits.ErrDuplicateID
	}

	r.deposits[d.ID] = &d

	return nil
}

func (r *depositsRepo) Get(id string) (deposits.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[id]
	if !ok {
		return deposits.Deposit{}, deposits.ErrDepositNotFound
	}

	return *d, nil
}

func (r *depositsRepo) SpendCredit(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[id]
	if !ok || d.Credits <= 0 {
		return 0, deposits.ErrNoCredits
	}

	d.Credits--

	return d.Credits, nil
}
