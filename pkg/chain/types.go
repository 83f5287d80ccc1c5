// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

// Package chain models the host runtime the settlement program executes
// under: accounts as lamport-carrying byte buffers, token transfers,
// program-derived addresses and the all-or-nothing invocation semantics.
package chain

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound    = errors.New("chain: account not found")
	ErrMissingSignature   = errors.New("chain: missing required signature")
	ErrNotRentExempt      = errors.New("chain: account is not rent exempt")
	ErrInsufficientFunds  = errors.New("chain: insufficient funds")
	ErrNotTokenAccount    = errors.New("chain: not a token account")
	ErrMintMismatch       = errors.New("chain: token mint mismatch")
	ErrInvalidAuthority   = errors.New("chain: invalid transfer authority")
	ErrNoMoreAccounts     = errors.New("chain: no more accounts")
	ErrAmountOverflow     = errors.New("chain: amount overflow")
	ErrAccountInitialized = errors.New("chain: account already in use")
)

// Account is one program account as supplied to an invocation: a pubkey,
// a lamport balance and a mutable, program-owned data buffer.
type Account struct {
	Key      solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
	Signer   bool
	Writable bool
}

// IsEmpty reports whether the account carries no data.
func (a *Account) IsEmpty() bool {
	return len(a.Data) == 0
}

// AccountIter yields accounts in the order the caller supplied them.
// Every processor consumes its fixed accounts first and then pulls
// variable per-item accounts (payout receivers, slot stakes) one by one.
type AccountIter struct {
	accounts []*Account
	next     int
}

func NewAccountIter(accounts []*Account) *AccountIter {
	return &AccountIter{accounts: accounts}
}

// Next returns the next account or ErrNoMoreAccounts.
func (it *AccountIter) Next() (*Account, error) {
	if it.next >= len(it.accounts) {
		return nil, ErrNoMoreAccounts
	}
	a := it.accounts[it.next]
	it.next++
	return a, nil
}

// NextN returns the next n accounts, or ErrNoMoreAccounts if fewer remain.
func (it *AccountIter) NextN(n int) ([]*Account, error) {
	if it.next+n > len(it.accounts) {
		return nil, ErrNoMoreAccounts
	}
	accs := it.accounts[it.next : it.next+n]
	it.next += n
	return accs, nil
}

// Remaining reports how many accounts have not been consumed yet.
func (it *AccountIter) Remaining() int {
	return len(it.accounts) - it.next
}

const (
	lamportsPerByteYear = 3480
	rentExemptYears     = 2
	accountOverhead     = 128
)

// RentExemptMinimum returns the lamport balance an account of the given
// data size must hold to be exempt from rent collection.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(dataLen+accountOverhead) * lamportsPerByteYear * rentExemptYears
}

// IsRentExempt reports whether the account holds at least the exemption
// minimum for its current data size.
func IsRentExempt(a *Account) bool {
	return a.Lamports >= RentExemptMinimum(len(a.Data))
}
