// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// Claim lets an assigned share owner withdraw their entitled amount from
// recipient slots. Accounts: payer (signer), recipient, then one
// (pda, slot stake, receiver) triple per slot to sweep; a trailing
// partial triple is an error. Slots where the payer holds no share claim
// zero without error, so one invocation can sweep every slot of a
// recipient.
func Claim(programID solana.PublicKey, accounts []*chain.Account) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
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

	recipientState, err := UnpackRecipientState(recipientAccount.Data)
	if err != nil {
		return err
	}

	for it.Remaining() > 0 {
		triple, err := it.NextN(3)
		if err != nil {
			return err
		}
		pdaAccount, slotStakeAccount, receiver := triple[0], triple[1], triple[2]

		slot := findSlotByStake(recipientState, slotStakeAccount.Key)
		if slot == nil {
			return ErrInvalidRecipientSlotAccount
		}

		derived, _, err := chain.DeriveAuthority(programID, recipientAccount.Key.Bytes(), []byte{slot.Id})
		if err != nil || !derived.Equals(pdaAccount.Key) {
			return ErrInvalidPDA
		}

		if chain.ValidateReceiver(payerAccount.Key, slot.TokenAddr, receiver.Key) != nil {
			return ErrInvalidReceiverAddress
		}

		// Current pool balance; together with the recorded claims this
		// reconstructs the slot's lifetime total.
		stakeAmount, err := chain.TokenBalance(slotStakeAccount, slot.TokenAddr)
		if err != nil {
			return err
		}

		claim := ClaimFromSlot(stakeAmount, slot, payerAccount.Key)
		if claim > 0 {
			if err := chain.Transfer(slotStakeAccount, receiver, slot.TokenAddr, claim); err != nil {
				return err
			}
		}
	}

	return packStateToAccount(*recipientState, recipientAccount, payerAccount)
}

func findSlotByStake(state *RecipientState, stakeAddr solana.PublicKey) *RecipientSlot {
	for i := range state.Slots {
		if state.Slots[i].StakeAddr.Equals(stakeAddr) {
			return &state.Slots[i]
		}
	}
	return nil
}
