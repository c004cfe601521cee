package program

import "spl-rewards-token/internal/token"

// Account is a storage region passed into an operation: an
// identity-addressed byte buffer whose ownership the host enforces.
// Data is read and written in place; the host applies all mutations of
// one invocation atomically.
type Account struct {
	Key   token.PublicKey
	Owner token.PublicKey
	Data  []byte
}

// NewAccount creates an account with a zeroed region of the given size.
func NewAccount(key, owner token.PublicKey, size int) *Account {
	return &Account{Key: key, Owner: owner, Data: make([]byte, size)}
}

// AccountIter yields accounts in caller-supplied order. Operations take
// their fixed accounts first and, where applicable, consume the
// remainder positionally.
type AccountIter struct {
	accounts []*Account
	next     int
}

// NewAccountIter creates an iterator over the supplied accounts.
func NewAccountIter(accounts []*Account) *AccountIter {
	return &AccountIter{accounts: accounts}
}

// Next returns the next account or ErrNotEnoughAccounts.
func (it *AccountIter) Next() (*Account, error) {
	if it.next >= len(it.accounts) {
		return nil, ErrNotEnoughAccounts
	}
	a := it.accounts[it.next]
	it.next++
	return a, nil
}

// Remaining returns how many accounts have not been consumed.
func (it *AccountIter) Remaining() int {
	return len(it.accounts) - it.next
}
