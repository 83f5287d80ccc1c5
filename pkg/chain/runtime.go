// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package chain

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Runtime holds the accounts visible to the program and executes
// invocations with the host's transaction semantics: writers to an
// account never interleave, and an error discards every mutation the
// invocation made.
type Runtime struct {
	mu        sync.Mutex
	programID solana.PublicKey
	accounts  map[solana.PublicKey]*Account
}

func NewRuntime(programID solana.PublicKey) *Runtime {
	return &Runtime{
		programID: programID,
		accounts:  make(map[solana.PublicKey]*Account),
	}
}

func (rt *Runtime) ProgramID() solana.PublicKey {
	return rt.programID
}

// AddAccount registers an account with the runtime. Existing data for the
// same key is replaced.
func (rt *Runtime) AddAccount(a *Account) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.accounts[a.Key] = a
}

// Account returns the registered account for key.
func (rt *Runtime) Account(key solana.PublicKey) (*Account, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	a, ok := rt.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

type snapshot struct {
	account  *Account
	lamports uint64
	data     []byte
}

// Execute runs one invocation against the given accounts. All lamport and
// data mutations are committed only if fn returns nil; any error restores
// every account to its pre-invocation state, so callers observe no
// partial update.
func (rt *Runtime) Execute(accounts []*Account, fn func() error) error {
	return rt.ExecuteCommit(accounts, fn, nil)
}

// ExecuteCommit runs fn like Execute and, on success, calls commit before
// the invocation lock is released. No other invocation can touch the
// accounts between execution and commit, so commit observes exactly the
// state fn produced. A commit error rolls the accounts back like an
// execution error, keeping in-memory and committed state consistent.
func (rt *Runtime) ExecuteCommit(accounts []*Account, fn func() error, commit func() error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	snaps := make([]snapshot, 0, len(accounts))
	for _, a := range accounts {
		data := make([]byte, len(a.Data))
		copy(data, a.Data)
		snaps = append(snaps, snapshot{account: a, lamports: a.Lamports, data: data})
	}

	err := fn()
	if err == nil && commit != nil {
		err = commit()
	}
	if err != nil {
		for _, s := range snaps {
			s.account.Lamports = s.lamports
			s.account.Data = s.data
		}
		return err
	}
	return nil
}

// Realloc resizes an account's data buffer and tops up its lamports from
// payer so the account stays rent exempt at the new size.
func Realloc(a, payer *Account, newLen int) error {
	if newLen > len(a.Data) {
		grown := make([]byte, newLen)
		copy(grown, a.Data)
		a.Data = grown
		min := RentExemptMinimum(newLen)
		if a.Lamports < min {
			diff := min - a.Lamports
			if err := transferLamports(payer, a, diff); err != nil {
				return err
			}
		}
	} else {
		a.Data = a.Data[:newLen]
	}
	return nil
}
