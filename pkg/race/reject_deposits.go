// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// RejectDeposits marks pending deposits rejected and tries to refund
// them. A refund that fails receiver validation is not an error: the row
// stays Rejected, still binding pool funds, instead of failing the whole
// batch. The player behind each rejected deposit is evicted from the
// registry so they may join again. Accounts: transactor (signer), game,
// players registry, stake, pda, then one receiver per rejected deposit.
func RejectDeposits(programID solana.PublicKey, accounts []*chain.Account, params RejectDepositsParams) error {
	it := chain.NewAccountIter(accounts)

	transactorAccount, err := it.Next()
	if err != nil {
		return err
	}
	gameAccount, err := it.Next()
	if err != nil {
		return err
	}
	playersRegAccount, err := it.Next()
	if err != nil {
		return err
	}
	stakeAccount, err := it.Next()
	if err != nil {
		return err
	}
	pdaAccount, err := it.Next()
	if err != nil {
		return err
	}

	if !transactorAccount.Signer {
		return chain.ErrMissingSignature
	}

	gameState, err := UnpackGameState(gameAccount.Data)
	if err != nil {
		return err
	}
	if !gameState.StakeAccount.Equals(stakeAccount.Key) {
		return ErrInvalidStakeAccount
	}

	source, err := chain.NewTransferSource(programID, stakeAccount, pdaAccount,
		gameAccount.Key.Bytes(), gameState.TokenMint)
	if err != nil {
		return ErrInvalidPDA
	}

	regData := playersRegAccount.Data
	for _, rejectDeposit := range params.RejectDeposits {
		deposit := findDeposit(gameState, rejectDeposit)
		if deposit == nil {
			return ErrInvalidRejectDeposit
		}
		if deposit.Status != DepositPending {
			return ErrDuplicatedDepositRejection
		}
		deposit.Status = DepositRejected

		receiverAccount, err := it.Next()
		if err != nil {
			return err
		}
		if chain.ValidateReceiver(deposit.Addr, gameState.TokenMint, receiverAccount.Key) == nil {
			if err := source.Transfer(receiverAccount, deposit.Amount); err != nil {
				return err
			}
			deposit.Status = DepositRefunded
		}

		// Drop the registry entry sharing the deposit's access version
		// so the player can rejoin later.
		idx, entry, err := GetPlayerById(regData, rejectDeposit)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := RemovePlayerByIndex(regData, idx); err != nil {
				return err
			}
		}
	}

	if err := SetRegistryVersions(regData, gameState.AccessVersion, gameState.SettleVersion); err != nil {
		return err
	}
	return packStateToAccount(*gameState, gameAccount, transactorAccount)
}

func findDeposit(gameState *GameState, accessVersion uint64) *PlayerDeposit {
	for i := range gameState.Deposits {
		if gameState.Deposits[i].AccessVersion == accessVersion {
			return &gameState.Deposits[i]
		}
	}
	return nil
}
