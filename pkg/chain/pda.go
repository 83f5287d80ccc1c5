// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package chain

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrInvalidReceiver = errors.New("chain: receiver is not owned by the account")

// DeriveAuthority returns the program-derived address for seeds under
// programID, the keyless signing authority of pooled stake accounts.
func DeriveAuthority(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(seeds, programID)
}

// ValidateReceiver confirms that receiver is the canonical receiving
// account of wallet for mint: the wallet itself for the native token, the
// associated token address otherwise.
func ValidateReceiver(wallet, mint, receiver solana.PublicKey) error {
	if IsNativeMint(mint) {
		if !receiver.Equals(wallet) {
			return ErrInvalidReceiver
		}
		return nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return err
	}
	if !receiver.Equals(ata) {
		return ErrInvalidReceiver
	}
	return nil
}

// TransferSource moves funds out of one pooled stake account under the
// stake's program-derived authority. Construction fails unless the
// supplied pda account matches the derived address.
type TransferSource struct {
	stake *Account
	mint  solana.PublicKey
}

// NewTransferSource verifies the authority of a stake pool and returns a
// source for paying out of it. seed is the account key the authority was
// derived from (the game or recipient account).
func NewTransferSource(programID solana.PublicKey, stake, pda *Account, seed []byte, mint solana.PublicKey) (*TransferSource, error) {
	derived, _, err := DeriveAuthority(programID, seed)
	if err != nil {
		return nil, err
	}
	if !derived.Equals(pda.Key) {
		return nil, ErrInvalidAuthority
	}
	if !IsNativeMint(mint) {
		tok, err := UnpackToken(stake)
		if err != nil {
			return nil, err
		}
		if !tok.Wallet.Equals(derived) {
			return nil, ErrInvalidAuthority
		}
	}
	return &TransferSource{stake: stake, mint: mint}, nil
}

// Transfer moves amount units from the pool to dest. Fails atomically on
// insufficient pool funds.
func (s *TransferSource) Transfer(dest *Account, amount uint64) error {
	return Transfer(s.stake, dest, s.mint, amount)
}

// Balance returns the pool's current spendable amount.
func (s *TransferSource) Balance() (uint64, error) {
	return TokenBalance(s.stake, s.mint)
}

// Transfer moves amount units of mint from one account to another,
// choosing lamport or token-ledger semantics by mint. The token path
// trusts the caller to have verified the source authority; processors go
// through TransferSource which does.
func Transfer(from, to *Account, mint solana.PublicKey, amount uint64) error {
	if IsNativeMint(mint) {
		return transferLamports(from, to, amount)
	}
	src, err := UnpackToken(from)
	if err != nil {
		return err
	}
	return transferToken(from, to, src.Wallet, amount)
}

// DrainToken moves the full current balance from a token account to dest
// and returns the amount moved.
func DrainToken(from, to *Account) (uint64, error) {
	src, err := UnpackToken(from)
	if err != nil {
		return 0, err
	}
	amount := src.Amount
	if amount > 0 {
		if err := transferToken(from, to, src.Wallet, amount); err != nil {
			return 0, err
		}
	}
	return amount, nil
}
