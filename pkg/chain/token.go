// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package chain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// TokenAccount is the fungible-token account layout stored in the data
// buffer of every non-native stake, temp and receiver account. The wallet
// is the authority allowed to move funds out; for pooled stakes it is a
// program-derived address.
type TokenAccount struct {
	Mint   solana.PublicKey
	Wallet solana.PublicKey
	Amount uint64
}

// IsNativeMint reports whether mint denotes the chain's native token, for
// which transfers are plain lamport moves instead of token-ledger updates.
func IsNativeMint(mint solana.PublicKey) bool {
	return mint.Equals(solana.SolMint)
}

// UnpackToken reads the token layout from an account's data buffer.
func UnpackToken(a *Account) (*TokenAccount, error) {
	var tok TokenAccount
	if a.IsEmpty() {
		return nil, ErrNotTokenAccount
	}
	if err := borsh.Deserialize(&tok, a.Data); err != nil {
		return nil, ErrNotTokenAccount
	}
	return &tok, nil
}

// PackToken writes the token layout back into the account's data buffer.
func PackToken(a *Account, tok *TokenAccount) error {
	data, err := borsh.Serialize(*tok)
	if err != nil {
		return err
	}
	a.Data = data
	return nil
}

// TokenBalance returns the spendable amount held by a pool or receiver
// account: lamports for the native token, the token-ledger amount
// otherwise.
func TokenBalance(a *Account, mint solana.PublicKey) (uint64, error) {
	if IsNativeMint(mint) {
		return a.Lamports, nil
	}
	tok, err := UnpackToken(a)
	if err != nil {
		return 0, err
	}
	if !tok.Mint.Equals(mint) {
		return 0, ErrMintMismatch
	}
	return tok.Amount, nil
}

// SetWallet reassigns the authority of a token account, the equivalent of
// an owner-authority change on the token program.
func SetWallet(a *Account, wallet solana.PublicKey) error {
	tok, err := UnpackToken(a)
	if err != nil {
		return err
	}
	tok.Wallet = wallet
	return PackToken(a, tok)
}

func transferLamports(from, to *Account, amount uint64) error {
	if from.Lamports < amount {
		return ErrInsufficientFunds
	}
	if to.Lamports+amount < to.Lamports {
		return ErrAmountOverflow
	}
	from.Lamports -= amount
	to.Lamports += amount
	return nil
}

func transferToken(from, to *Account, authority solana.PublicKey, amount uint64) error {
	src, err := UnpackToken(from)
	if err != nil {
		return err
	}
	dst, err := UnpackToken(to)
	if err != nil {
		return err
	}
	if !src.Wallet.Equals(authority) {
		return ErrInvalidAuthority
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if dst.Amount+amount < dst.Amount {
		return ErrAmountOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := PackToken(from, src); err != nil {
		return err
	}
	return PackToken(to, dst)
}

// CloseTokenAccount zeroes a token account and returns its rent lamports
// to dest. The account balance must have been drained first.
func CloseTokenAccount(a, dest *Account) error {
	tok, err := UnpackToken(a)
	if err != nil {
		return err
	}
	if tok.Amount > 0 {
		return ErrInsufficientFunds
	}
	dest.Lamports += a.Lamports
	a.Lamports = 0
	a.Data = nil
	return nil
}
