// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// Join admits a player into a game: validates the buy-in against the
// entry type, moves the deposit from the player's temp account into the
// stake pool, appends a pending deposit row and inserts the player into
// the registry under a fresh access version. Accounts: payer (signer),
// temp, game, players registry, stake, recipient.
func Join(programID solana.PublicKey, accounts []*chain.Account, params JoinParams) error {
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
	recipientAccount, err := it.Next()
	if err != nil {
		return err
	}

	if !payerAccount.Signer {
		return chain.ErrMissingSignature
	}
	if !chain.IsRentExempt(gameAccount) {
		return chain.ErrNotRentExempt
	}

	recipientState, err := UnpackRecipientState(recipientAccount.Data)
	if err != nil {
		return err
	}
	if !recipientState.IsInitialized {
		return ErrInvalidRecipientAddress
	}

	gameState, err := UnpackGameState(gameAccount.Data)
	if err != nil {
		return err
	}

	// A join computed against a future settle version is malformed; one
	// computed against an older version is fine, the deposit row records
	// which version it was seen at.
	if gameState.SettleVersion < params.SettleVersion {
		return ErrInvalidSettleVersion
	}
	if !gameState.StakeAccount.Equals(stakeAccount.Key) {
		return ErrInvalidStakeAccount
	}
	switch gameState.EntryLock {
	case EntryLockOpen, EntryLockJoinOnly:
	default:
		return ErrEntryLockNotOpen
	}

	regData := playersRegAccount.Data
	occupied, err := RegistryOccupiedCount(regData)
	if err != nil {
		return err
	}
	if occupied >= uint64(gameState.MaxPlayers) {
		return ErrGameFullAlready
	}
	if params.Position >= gameState.MaxPlayers {
		return ErrInvalidPosition
	}
	if _, entry, err := GetPlayerByAddr(regData, payerAccount.Key); err != nil {
		return err
	} else if entry != nil {
		return ErrJoinedGameAlready
	}

	// A taken position falls back to the lowest free one.
	position := params.Position
	if IsPositionOccupied(regData, position) {
		position, err = FindFreePosition(regData, gameState.MaxPlayers)
		if err != nil {
			return ErrPositionTakenAlready
		}
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

	_, ok, err := AddPlayer(regData, &PlayerEntry{
		Addr:      payerAccount.Key,
		Position:  position,
		PlayerId:  gameState.AccessVersion,
		VerifyKey: params.VerifyKey,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrGameFullAlready
	}
	if err := SetRegistryVersions(regData, gameState.AccessVersion, gameState.SettleVersion); err != nil {
		return err
	}

	return packStateToAccount(*gameState, gameAccount, payerAccount)
}

// validateEntryAmount checks amount against the game's entry type.
func validateEntryAmount(gameState *GameState, amount uint64) error {
	switch gameState.EntryType.Enum {
	case 0: // cash
		cash := gameState.EntryType.Cash
		if amount < cash.MinDeposit || amount > cash.MaxDeposit {
			return ErrInvalidPaymentParams
		}
	case 1: // ticket
		if amount != gameState.EntryType.Ticket.Amount {
			return ErrInvalidPaymentParams
		}
	default:
		return ErrUnimplemented
	}
	return nil
}

// collectDeposit moves the buy-in from the player's temp account into the
// stake pool. For SPL tokens the temp account must hold exactly the
// declared amount and is closed afterwards, returning its rent to the
// payer; for the native token the temp lamports move wholesale.
func collectDeposit(tempAccount, stakeAccount, payerAccount *chain.Account, mint solana.PublicKey, amount uint64) error {
	if chain.IsNativeMint(mint) {
		if tempAccount.Lamports != amount {
			return ErrInvalidDeposit
		}
		stakeAccount.Lamports += tempAccount.Lamports
		tempAccount.Lamports = 0
		return nil
	}
	tempState, err := chain.UnpackToken(tempAccount)
	if err != nil {
		return ErrInvalidDeposit
	}
	if !tempState.Mint.Equals(mint) {
		return ErrInvalidMint
	}
	if tempState.Amount != amount {
		return ErrInvalidDeposit
	}
	if err := chain.Transfer(tempAccount, stakeAccount, mint, amount); err != nil {
		return err
	}
	return chain.CloseTokenAccount(tempAccount, payerAccount)
}
