// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// CreateGame initializes a game ledger and its players registry. For the
// native token the stake account must be the game PDA itself; for SPL
// tokens a dedicated token account is handed over to the PDA. Accounts:
// payer (signer), game, players registry, stake, token mint, bundle,
// recipient.
func CreateGame(programID solana.PublicKey, accounts []*chain.Account, params CreateGameParams) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
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
	tokenAccount, err := it.Next()
	if err != nil {
		return err
	}
	bundleAccount, err := it.Next()
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
	if state, err := UnpackGameState(gameAccount.Data); err == nil && state.IsInitialized {
		return chain.ErrAccountInitialized
	}
	if recipientAccount.IsEmpty() {
		return ErrInvalidRecipientAddress
	}

	pda, _, err := chain.DeriveAuthority(programID, gameAccount.Key.Bytes())
	if err != nil {
		return ErrInvalidPDA
	}

	if chain.IsNativeMint(tokenAccount.Key) {
		// Native stakes pool directly in the PDA's lamports.
		if !stakeAccount.Key.Equals(pda) {
			return ErrInvalidStakeAccount
		}
	} else {
		stakeState, err := chain.UnpackToken(stakeAccount)
		if err != nil {
			return ErrInvalidStakeAccount
		}
		if !stakeState.Mint.Equals(tokenAccount.Key) {
			return ErrInvalidStakeAccount
		}
		if err := chain.SetWallet(stakeAccount, pda); err != nil {
			return err
		}
	}

	regBuf := MakeRegistryBuffer(params.MaxPlayers)
	if len(playersRegAccount.Data) < len(regBuf) {
		return ErrInvalidPlayersRegAccountForInit
	}
	copy(playersRegAccount.Data, regBuf)

	gameState := GameState{
		IsInitialized: true,
		Version:       StateVersion,
		Title:         params.Title,
		BundleAddr:    bundleAccount.Key,
		StakeAccount:  stakeAccount.Key,
		Owner:         payerAccount.Key,
		TokenMint:     tokenAccount.Key,
		AccessVersion: 0,
		SettleVersion: 0,
		MaxPlayers:    params.MaxPlayers,
		DataLen:       uint32(len(params.Data)),
		Data:          params.Data,
		EntryType:     params.EntryType,
		RecipientAddr: recipientAccount.Key,
		EntryLock:     EntryLockOpen,
	}

	return packStateToAccount(gameState, gameAccount, payerAccount)
}
