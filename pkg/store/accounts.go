// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package store

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

const (
	accountPrefix    = "account:"
	checkpointPrefix = "checkpoint:"
)

// storedAccount is the persisted projection of a chain account. The
// signer and writable flags are per-invocation and never stored.
type storedAccount struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// AccountStore persists chain accounts and checkpoints in a DB.
type AccountStore struct {
	db DB
}

// NewAccountStore wraps a DB as an AccountStore.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func accountKey(key solana.PublicKey) []byte {
	return []byte(accountPrefix + key.String())
}

// Put persists one account under its public key.
func (s *AccountStore) Put(a *chain.Account) error {
	data, err := borsh.Serialize(storedAccount{
		Owner:    a.Owner,
		Lamports: a.Lamports,
		Data:     a.Data,
	})
	if err != nil {
		return err
	}
	return s.db.Set(accountKey(a.Key), data)
}

// Get loads one account. Returns ErrNotFound for unknown keys.
func (s *AccountStore) Get(key solana.PublicKey) (*chain.Account, error) {
	raw, err := s.db.Get(accountKey(key))
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := borsh.Deserialize(&stored, raw); err != nil {
		return nil, err
	}
	return &chain.Account{
		Key:      key,
		Owner:    stored.Owner,
		Lamports: stored.Lamports,
		Data:     stored.Data,
	}, nil
}

// Delete removes one account.
func (s *AccountStore) Delete(key solana.PublicKey) error {
	return s.db.Delete(accountKey(key))
}

// Each calls fn for every persisted account. Iteration stops at the
// first error.
func (s *AccountStore) Each(fn func(a *chain.Account) error) error {
	it := s.db.NewIterator([]byte(accountPrefix))
	defer it.Release()
	for it.Next() {
		key, err := solana.PublicKeyFromBase58(string(it.Key()[len(accountPrefix):]))
		if err != nil {
			return err
		}
		var stored storedAccount
		if err := borsh.Deserialize(&stored, it.Value()); err != nil {
			return err
		}
		if err := fn(&chain.Account{
			Key:      key,
			Owner:    stored.Owner,
			Lamports: stored.Lamports,
			Data:     stored.Data,
		}); err != nil {
			return err
		}
	}
	return it.Error()
}

// PutCheckpoint persists checkpoint bytes under their content id.
func (s *AccountStore) PutCheckpoint(cid string, data []byte) error {
	return s.db.Set([]byte(checkpointPrefix+cid), data)
}

// GetCheckpoint loads checkpoint bytes by content id.
func (s *AccountStore) GetCheckpoint(cid string) ([]byte, error) {
	return s.db.Get([]byte(checkpointPrefix + cid))
}

// Close closes the underlying DB.
func (s *AccountStore) Close() error {
	return s.db.Close()
}
