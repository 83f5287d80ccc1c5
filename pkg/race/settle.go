// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

type payout struct {
	addr   solana.PublicKey
	amount uint64
}

// Settle applies one settlement batch: balance deltas, payouts for
// ejected players, an optional commission transfer, bonus awards and
// deposit acceptance, then verifies the stake conservation invariant and
// advances the settle version.
//
// Accounts: transactor (signer), game, players registry, stake, pda,
// recipient, then one receiver per ejected payout, one slot stake if a
// commission transfer is present, and one bonus stake plus one receiver
// per award. Any error aborts the invocation; the host discards all
// mutations.
func Settle(programID solana.PublicKey, accounts []*chain.Account, params SettleParams) error {
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
	recipientAccount, err := it.Next()
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

	if gameState.SettleVersion != params.SettleVersion {
		return ErrInvalidSettleVersion
	}
	if params.NextSettleVersion <= gameState.SettleVersion ||
		params.NextSettleVersion > gameState.SettleVersion+MaxSettleIncrement {
		return ErrInvalidNextSettleVersion
	}
	if !stakeAccount.Key.Equals(gameState.StakeAccount) {
		return ErrInvalidStakeAccount
	}

	// Apply settles in order; each entry observes the effects of the
	// previous ones.
	var pays []payout
	regData := playersRegAccount.Data
	for i := range params.Settles {
		settle := &params.Settles[i]
		if change := settle.Change; change != nil {
			bi := gameState.balanceIndex(settle.PlayerId)
			switch change.Enum {
			case 0: // add
				amt := change.Add.Amount
				if bi < 0 {
					gameState.Balances = append(gameState.Balances, PlayerBalance{
						PlayerId: settle.PlayerId,
						Balance:  amt,
					})
				} else {
					if gameState.Balances[bi].Balance+amt < gameState.Balances[bi].Balance {
						return ErrPlayerBalanceOverflow
					}
					gameState.Balances[bi].Balance += amt
				}
			case 1: // sub
				amt := change.Sub.Amount
				if bi < 0 || gameState.Balances[bi].Balance < amt {
					return ErrInvalidSettleBalance
				}
				gameState.Balances[bi].Balance -= amt
			default:
				return ErrInvalidSettleBalance
			}
		}
		if settle.Eject {
			idx, entry, err := GetPlayerById(regData, settle.PlayerId)
			if err != nil {
				return err
			}
			if entry == nil {
				return ErrInvalidSettlePlayerId
			}
			if settle.Amount > 0 {
				pays = append(pays, payout{addr: entry.Addr, amount: settle.Amount})
			}
			if err := RemovePlayerByIndex(regData, idx); err != nil {
				return err
			}
		}
	}

	// Zeroed balances are dropped once the whole batch has been applied.
	kept := gameState.Balances[:0]
	for _, b := range gameState.Balances {
		if b.Balance > 0 {
			kept = append(kept, b)
		}
	}
	gameState.Balances = kept

	source, err := chain.NewTransferSource(programID, stakeAccount, pdaAccount,
		gameAccount.Key.Bytes(), gameState.TokenMint)
	if err != nil {
		return ErrInvalidPDA
	}

	// Pay ejected players. Receivers arrive in payout order.
	for _, pay := range pays {
		receiver, err := it.Next()
		if err != nil {
			return err
		}
		if chain.ValidateReceiver(pay.addr, gameState.TokenMint, receiver.Key) != nil {
			return ErrInvalidReceiverAddress
		}
		if err := source.Transfer(receiver, pay.amount); err != nil {
			return err
		}
	}

	recipientState, err := UnpackRecipientState(recipientAccount.Data)
	if err != nil {
		return err
	}

	// Commission moves into the recipient slot carrying the game's token.
	if params.Transfer != nil {
		slotStakeAccount, err := it.Next()
		if err != nil {
			return err
		}
		slot := findSlotByToken(recipientState, gameState.TokenMint)
		if slot == nil {
			return ErrInvalidSlotId
		}
		if !slotStakeAccount.Key.Equals(slot.StakeAddr) {
			return ErrInvalidSlotStakeAccount
		}
		if err := source.Transfer(slotStakeAccount, params.Transfer.Amount); err != nil {
			return err
		}
	}

	// Bonus awards drain the full bonus balance, never a part of it. An
	// identifier may match several bonuses; all of them pay out.
	for _, award := range params.Awards {
		if err := applyAward(gameState, regData, it, transactorAccount, award); err != nil {
			return err
		}
	}

	for _, accessVersion := range params.AcceptDeposits {
		for i := range gameState.Deposits {
			d := &gameState.Deposits[i]
			if d.AccessVersion == accessVersion && d.Status == DepositPending {
				d.Status = DepositAccepted
			}
		}
	}
	keptDeposits := gameState.Deposits[:0]
	for _, d := range gameState.Deposits {
		if d.Status == DepositPending || d.Status == DepositRejected {
			keptDeposits = append(keptDeposits, d)
		}
	}
	gameState.Deposits = keptDeposits

	// Conservation: the live pool must equal custodied balances plus
	// unresolved deposits, or the whole settlement aborts.
	pooled, err := chain.TokenBalance(stakeAccount, gameState.TokenMint)
	if err != nil {
		return err
	}
	if pooled != gameState.totalBalances()+gameState.unresolvedDeposits() {
		return ErrUnbalancedGameStake
	}

	gameState.SettleVersion = params.NextSettleVersion
	gameState.Checkpoint = params.Checkpoint
	if params.EntryLock != nil {
		gameState.EntryLock = *params.EntryLock
	}
	if err := SetRegistryVersions(regData, gameState.AccessVersion, gameState.SettleVersion); err != nil {
		return err
	}
	return packStateToAccount(*gameState, gameAccount, transactorAccount)
}

func findSlotByToken(state *RecipientState, tokenAddr solana.PublicKey) *RecipientSlot {
	for i := range state.Slots {
		if state.Slots[i].TokenAddr.Equals(tokenAddr) {
			return &state.Slots[i]
		}
	}
	return nil
}

func applyAward(gameState *GameState, regData []byte, it *chain.AccountIter, transactor *chain.Account, award Award) error {
	_, entry, err := GetPlayerById(regData, award.PlayerId)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrInvalidAwardPlayerId
	}

	matched := false
	keptBonuses := gameState.Bonuses[:0]
	for _, bonus := range gameState.Bonuses {
		if bonus.Identifier != award.BonusIdentifier {
			keptBonuses = append(keptBonuses, bonus)
			continue
		}
		matched = true

		bonusStakeAccount, err := it.Next()
		if err != nil {
			return err
		}
		receiver, err := it.Next()
		if err != nil {
			return err
		}
		if !bonusStakeAccount.Key.Equals(bonus.StakeAddr) {
			return ErrInvalidSlotStakeAccount
		}
		if chain.ValidateReceiver(entry.Addr, bonus.TokenAddr, receiver.Key) != nil {
			return ErrInvalidReceiverAddress
		}
		if _, err := chain.DrainToken(bonusStakeAccount, receiver); err != nil {
			return err
		}
		// The emptied bonus account is closed; its rent goes back to the
		// transaction signer.
		if err := chain.CloseTokenAccount(bonusStakeAccount, transactor); err != nil {
			return err
		}
	}
	gameState.Bonuses = keptBonuses

	if !matched {
		return ErrInvalidAwardIdentifier
	}
	return nil
}
