package book

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Token is the narrow slice of ERC20 behaviour the book needs from the base
// and reward token contracts: pull approved funds in, push funds out, and
// report external balances. Nothing else about the tokens matters here.
type Token interface {
	BalanceOf(owner string) decimal.Decimal
	Allowance(owner, spender string) decimal.Decimal
	TransferFrom(from, to string, amount decimal.Decimal) error
	Transfer(to string, amount decimal.Decimal) error
}

// MemoryToken is an in-memory Token, useful for testing and simulation.
type MemoryToken struct {
	mu         sync.Mutex
	balances   map[string]decimal.Decimal
	allowances map[string]map[string]decimal.Decimal
}

// NewMemoryToken creates an empty MemoryToken.
func NewMemoryToken() *MemoryToken {
	return &MemoryToken{
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]map[string]decimal.Decimal),
	}
}

// Mint credits freshly created units to owner.
func (t *MemoryToken) Mint(owner string, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = t.balances[owner].Add(amount)
}

// Approve sets the allowance spender may pull from owner.
func (t *MemoryToken) Approve(owner, spender string, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owned, ok := t.allowances[owner]
	if !ok {
		owned = make(map[string]decimal.Decimal)
		t.allowances[owner] = owned
	}
	owned[spender] = amount
}

func (t *MemoryToken) BalanceOf(owner string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[owner]
}

func (t *MemoryToken) Allowance(owner, spender string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

func (t *MemoryToken) TransferFrom(from, to string, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[from][to].LessThan(amount) {
		return ErrInsufficientApproval
	}
	if t.balances[from].LessThan(amount) {
		return ErrTransferFailed
	}
	t.allowances[from][to] = t.allowances[from][to].Sub(amount)
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

func (t *MemoryToken) Transfer(to string, amount decimal.Decimal) error {
	// The book's own holdings are not modelled; a push always succeeds.
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// account holds one client's book balances: funds available to trade or
// already earned, per asset. Approved and own figures are not stored here;
// they are read from the token collaborators on demand.
type account struct {
	base decimal.Decimal
	cntr decimal.Decimal
	rwrd decimal.Decimal
}

// ledger is the per-client balance table. An order's working capital is
// debited here at creation and credited back only by fills, cancellation or
// rejection: it is never left partially reserved between calls.
type ledger struct {
	accounts map[string]*account
}

func newLedger() *ledger {
	return &ledger{accounts: make(map[string]*account)}
}

func (l *ledger) account(client string) *account {
	acct, ok := l.accounts[client]
	if !ok {
		acct = &account{}
		l.accounts[client] = acct
	}
	return acct
}

func (a *account) balance(bt BalanceType) decimal.Decimal {
	switch bt {
	case BalanceBase:
		return a.base
	case BalanceCntr:
		return a.cntr
	}
	return a.rwrd
}

func (a *account) credit(bt BalanceType, amount decimal.Decimal) {
	switch bt {
	case BalanceBase:
		a.base = a.base.Add(amount)
	case BalanceCntr:
		a.cntr = a.cntr.Add(amount)
	case BalanceRwrd:
		a.rwrd = a.rwrd.Add(amount)
	}
}

// debit removes amount from the balance, failing without effect if the
// balance does not cover it.
func (a *account) debit(bt BalanceType, amount decimal.Decimal) error {
	if a.balance(bt).LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.credit(bt, amount.Neg())
	return nil
}

// ClientBalances is the full balance view for one client: the three book
// balances plus the approved and external token figures reported by the
// collaborators. The counter asset is native, so it has no approved or own
// entry.
type ClientBalances struct {
	BookBase     decimal.Decimal `json:"book_base"`
	BookCntr     decimal.Decimal `json:"book_cntr"`
	BookRwrd     decimal.Decimal `json:"book_rwrd"`
	ApprovedBase decimal.Decimal `json:"approved_base"`
	ApprovedRwrd decimal.Decimal `json:"approved_rwrd"`
	OwnBase      decimal.Decimal `json:"own_base"`
	OwnRwrd      decimal.Decimal `json:"own_rwrd"`
}
