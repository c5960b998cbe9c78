package types

import "math/big"

// Account is the balance record backing the transfer primitive. The ledger
// engine never manipulates balances directly; it goes through the state
// manager so value movement stays all-or-nothing per transition.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// EnsureDefaults replaces nil big.Int fields with zero values so callers can
// operate on freshly loaded accounts without nil checks.
func (a *Account) EnsureDefaults() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
