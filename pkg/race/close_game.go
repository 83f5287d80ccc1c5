// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// CloseGame tears down a settled game: any remaining stake goes back to
// the owner and the rent of the game, registry and stake accounts is
// reclaimed. A game with outstanding player balances cannot be closed.
// Accounts: owner (signer), game, players registry, stake, pda, receiver.
func CloseGame(programID solana.PublicKey, accounts []*chain.Account) error {
	it := chain.NewAccountIter(accounts)

	ownerAccount, err := it.Next()
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
	receiverAccount, err := it.Next()
	if err != nil {
		return err
	}

	if !ownerAccount.Signer {
		return chain.ErrMissingSignature
	}

	gameState, err := UnpackGameState(gameAccount.Data)
	if err != nil {
		return err
	}
	for _, b := range gameState.Balances {
		if b.Balance > 0 {
			return ErrCantCloseGame
		}
	}
	if !gameState.Owner.Equals(ownerAccount.Key) {
		return ErrInvalidOwner
	}
	if !gameState.StakeAccount.Equals(stakeAccount.Key) {
		return ErrInvalidStakeAccount
	}

	source, err := chain.NewTransferSource(programID, stakeAccount, pdaAccount,
		gameAccount.Key.Bytes(), gameState.TokenMint)
	if err != nil {
		return ErrInvalidPDA
	}

	if err := chain.ValidateReceiver(ownerAccount.Key, gameState.TokenMint, receiverAccount.Key); err != nil {
		return ErrInvalidReceiverAddress
	}
	remaining, err := source.Balance()
	if err != nil {
		return err
	}
	if remaining > 0 {
		if err := source.Transfer(receiverAccount, remaining); err != nil {
			return err
		}
	}
	if !chain.IsNativeMint(gameState.TokenMint) {
		if err := chain.CloseTokenAccount(stakeAccount, ownerAccount); err != nil {
			return err
		}
	}

	ownerAccount.Lamports += gameAccount.Lamports + playersRegAccount.Lamports
	gameAccount.Lamports = 0
	gameAccount.Data = nil
	playersRegAccount.Lamports = 0
	playersRegAccount.Data = nil
	return nil
}
