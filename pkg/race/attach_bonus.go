// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// AttachBonus records prize token accounts on a game and hands their
// authority to the game PDA. Only SPL bonuses are supported; the native
// token is refused. Accounts: payer (signer), game, then one bonus token
// account per identifier in order.
func AttachBonus(programID solana.PublicKey, accounts []*chain.Account, params AttachBonusParams) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
	if err != nil {
		return err
	}
	gameAccount, err := it.Next()
	if err != nil {
		return err
	}

	for _, identifier := range params.Identifiers {
		if len(identifier) == 0 || len(identifier) > MaxIdentifierLen {
			return ErrInvalidIdentifierLength
		}
	}
	if !payerAccount.Signer {
		return chain.ErrMissingSignature
	}
	if !chain.IsRentExempt(gameAccount) {
		return chain.ErrNotRentExempt
	}

	gameState, err := UnpackGameState(gameAccount.Data)
	if err != nil {
		return err
	}
	pda, _, err := chain.DeriveAuthority(programID, gameAccount.Key.Bytes())
	if err != nil {
		return ErrInvalidPDA
	}

	for _, identifier := range params.Identifiers {
		tempAccount, err := it.Next()
		if err != nil {
			return err
		}
		tempState, err := chain.UnpackToken(tempAccount)
		if err != nil {
			return err
		}
		if chain.IsNativeMint(tempState.Mint) {
			return ErrNativeTokenNotSupported
		}

		gameState.Bonuses = append(gameState.Bonuses, Bonus{
			Identifier: identifier,
			StakeAddr:  tempAccount.Key,
			TokenAddr:  tempState.Mint,
			Amount:     tempState.Amount,
		})
		if err := chain.SetWallet(tempAccount, pda); err != nil {
			return err
		}
	}

	return packStateToAccount(*gameState, gameAccount, payerAccount)
}
