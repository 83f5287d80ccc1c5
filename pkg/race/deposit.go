// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// Deposit tops up a joined player's stake. Accounts: payer (signer),
// temp, game, players registry, stake.
func Deposit(programID solana.PublicKey, accounts []*chain.Account, params DepositParams) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
	if err != nil {
		return err
	}
	tempAccount, err := it.Next()
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

	if !payerAccount.Signer {
		return chain.ErrMissingSignature
	}

	gameState, err := UnpackGameState(gameAccount.Data)
	if err != nil {
		return err
	}

	if gameState.SettleVersion < params.SettleVersion {
		return ErrInvalidSettleVersion
	}
	if !gameState.StakeAccount.Equals(stakeAccount.Key) {
		return ErrInvalidStakeAccount
	}
	switch gameState.EntryLock {
	case EntryLockOpen, EntryLockDepositOnly:
	default:
		return ErrEntryLockNotOpen
	}

	regData := playersRegAccount.Data
	if _, entry, err := GetPlayerByAddr(regData, payerAccount.Key); err != nil {
		return err
	} else if entry == nil {
		return ErrPlayerNotInGame
	}

	if err := validateEntryAmount(gameState, params.Amount); err != nil {
		return err
	}
	if err := collectDeposit(tempAccount, stakeAccount, payerAccount, gameState.TokenMint, params.Amount); err != nil {
		return err
	}

	gameState.AccessVersion++

	gameState.Deposits = append(gameState.Deposits, PlayerDeposit{
		Addr:          payerAccount.Key,
		Amount:        params.Amount,
		AccessVersion: gameState.AccessVersion,
		SettleVersion: params.SettleVersion,
		Status:        DepositPending,
	})

	if err := SetRegistryVersions(regData, gameState.AccessVersion, gameState.SettleVersion); err != nil {
		return err
	}

	return packStateToAccount(*gameState, gameAccount, payerAccount)
}
