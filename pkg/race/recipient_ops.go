// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// CreateRecipient initializes a payout pool from a batch of slot
// definitions. Each slot's stake account is handed over to the slot PDA,
// derived from the recipient key and the slot id. Accounts: payer
// (signer), cap, recipient, then one stake account per slot in order.
func CreateRecipient(programID solana.PublicKey, accounts []*chain.Account, params CreateRecipientParams) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
	if err != nil {
		return err
	}
	capAccount, err := it.Next()
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
	if len(params.Slots) == 0 {
		return ErrEmptyRecipientSlots
	}

	slots := make([]RecipientSlot, 0, len(params.Slots))
	for _, init := range params.Slots {
		slotStakeAccount, err := it.Next()
		if err != nil {
			return err
		}
		if !init.StakeAddr.Equals(slotStakeAccount.Key) {
			return ErrInvalidSlotStakeAccount
		}
		for _, slot := range slots {
			if slot.TokenAddr.Equals(init.TokenAddr) {
				return ErrDuplicatedRecipientSlotToken
			}
			if slot.Id == init.Id {
				return ErrInvalidSlotId
			}
		}
		if err := checkShareIdentifiers(init.InitShares); err != nil {
			return err
		}
		if err := handOverSlotStake(programID, recipientAccount.Key, init.Id, init.TokenAddr, slotStakeAccount); err != nil {
			return err
		}
		slots = append(slots, init.intoSlot())
	}

	capAddr := capAccount.Key
	recipientState := RecipientState{
		IsInitialized: true,
		CapAddr:       &capAddr,
		Slots:         slots,
	}
	return packStateToAccount(recipientState, recipientAccount, payerAccount)
}

// AddRecipientSlot appends one slot to an existing recipient. Accounts:
// payer (signer), recipient, stake.
func AddRecipientSlot(programID solana.PublicKey, accounts []*chain.Account, params RecipientSlotInit) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
	if err != nil {
		return err
	}
	recipientAccount, err := it.Next()
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
	if len(params.InitShares) == 0 {
		return ErrEmptyRecipientSlotShares
	}

	recipientState, err := UnpackRecipientState(recipientAccount.Data)
	if err != nil {
		return err
	}
	if !recipientState.IsInitialized {
		return ErrInvalidRecipientAddress
	}
	if recipientState.CapAddr != nil && !recipientState.CapAddr.Equals(payerAccount.Key) {
		return ErrNoRecipientUpdateCap
	}
	for i := range recipientState.Slots {
		if recipientState.Slots[i].TokenAddr.Equals(params.TokenAddr) {
			return ErrDuplicatedRecipientSlotToken
		}
		if recipientState.Slots[i].Id == params.Id {
			return ErrInvalidSlotId
		}
	}
	if !params.StakeAddr.Equals(stakeAccount.Key) {
		return ErrInvalidSlotStakeAccount
	}
	if err := checkShareIdentifiers(params.InitShares); err != nil {
		return err
	}
	if err := handOverSlotStake(programID, recipientAccount.Key, params.Id, params.TokenAddr, stakeAccount); err != nil {
		return err
	}

	recipientState.Slots = append(recipientState.Slots, params.intoSlot())
	return packStateToAccount(*recipientState, recipientAccount, payerAccount)
}

// AssignRecipient fills every unassigned share carrying the identifier
// with the assignee's address. Only the capability holder may assign.
// Accounts: payer (signer), recipient, assignee.
func AssignRecipient(programID solana.PublicKey, accounts []*chain.Account, params AssignRecipientParams) error {
	it := chain.NewAccountIter(accounts)

	payerAccount, err := it.Next()
	if err != nil {
		return err
	}
	recipientAccount, err := it.Next()
	if err != nil {
		return err
	}
	assignAccount, err := it.Next()
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
	if recipientState.CapAddr != nil && !recipientState.CapAddr.Equals(payerAccount.Key) {
		return ErrNoRecipientUpdateCap
	}

	for i := range recipientState.Slots {
		shares := recipientState.Slots[i].Shares
		for j := range shares {
			owner := &shares[j].Owner
			if owner.Enum == 0 && owner.Unassigned.Identifier == params.Identifier {
				*owner = AssignedOwner(assignAccount.Key)
			}
		}
	}

	return packStateToAccount(*recipientState, recipientAccount, payerAccount)
}

// handOverSlotStake verifies a slot stake account and transfers its
// authority to the slot PDA. Native slots must use the PDA itself as
// their stake account.
func handOverSlotStake(programID solana.PublicKey, recipientKey solana.PublicKey, slotId uint8, tokenAddr solana.PublicKey, stakeAccount *chain.Account) error {
	pda, _, err := chain.DeriveAuthority(programID, recipientKey.Bytes(), []byte{slotId})
	if err != nil {
		return ErrInvalidPDA
	}
	if chain.IsNativeMint(tokenAddr) {
		if !stakeAccount.Key.Equals(pda) {
			return ErrInvalidSlotStakeAccount
		}
		return nil
	}
	stakeState, err := chain.UnpackToken(stakeAccount)
	if err != nil {
		return ErrInvalidSlotStakeAccount
	}
	if !stakeState.Mint.Equals(tokenAddr) {
		return ErrInvalidSlotStakeAccount
	}
	return chain.SetWallet(stakeAccount, pda)
}

func checkShareIdentifiers(shares []RecipientSlotShareInit) error {
	for i := range shares {
		if owner := &shares[i].Owner; owner.Enum == 0 {
			n := len(owner.Unassigned.Identifier)
			if n == 0 || n > MaxIdentifierLen {
				return ErrInvalidIdentifierLength
			}
		}
	}
	return nil
}
