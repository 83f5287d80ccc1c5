// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

type RecipientSlotType borsh.Enum

const (
	SlotTypeToken RecipientSlotType = iota
	SlotTypeNft
)

type SlotOwnerUnassigned struct {
	Identifier string
}

type SlotOwnerAssigned struct {
	Addr solana.PublicKey
}

// RecipientSlotOwner is either a placeholder identifier waiting for
// assignment or the address entitled to claim. A share transitions
// Unassigned to Assigned exactly once.
type RecipientSlotOwner struct {
	Enum       borsh.Enum `borsh_enum:"true"`
	Unassigned SlotOwnerUnassigned
	Assigned   SlotOwnerAssigned
}

func UnassignedOwner(identifier string) RecipientSlotOwner {
	return RecipientSlotOwner{Enum: 0, Unassigned: SlotOwnerUnassigned{Identifier: identifier}}
}

func AssignedOwner(addr solana.PublicKey) RecipientSlotOwner {
	return RecipientSlotOwner{Enum: 1, Assigned: SlotOwnerAssigned{Addr: addr}}
}

func (o *RecipientSlotOwner) IsAssignedTo(addr solana.PublicKey) bool {
	return o.Enum == 1 && o.Assigned.Addr.Equals(addr)
}

// RecipientSlotShare is one weighted claim on a slot's pooled stake.
type RecipientSlotShare struct {
	Owner       RecipientSlotOwner
	Weights     uint16
	ClaimAmount uint64
}

// RecipientSlot is one pooled token account with weighted owners. Slot
// ids and token addresses are unique within a recipient.
type RecipientSlot struct {
	Id        uint8
	SlotType  RecipientSlotType
	TokenAddr solana.PublicKey
	StakeAddr solana.PublicKey
	Shares    []RecipientSlotShare
}

// RecipientState is the persistent ledger of one payout pool, possibly
// shared by several games.
type RecipientState struct {
	IsInitialized bool
	CapAddr       *solana.PublicKey
	Slots         []RecipientSlot
}

// UnpackRecipientState deserializes a recipient account's data buffer.
func UnpackRecipientState(data []byte) (*RecipientState, error) {
	var state RecipientState
	if err := borsh.Deserialize(&state, data); err != nil {
		return nil, ErrRecipientDeserializationFailed
	}
	return &state, nil
}

// ClaimFromSlot computes and records the amount owner may withdraw from a
// slot given its current pooled stake. The lifetime total is the current
// stake plus everything already claimed; the owner's entitlement is their
// weighted share of that total, truncating division. The weighted product
// is computed in 128 bits, so the full u64 range of lifetime totals is
// handled. Sub-unit remainders stay in the pool. An owner with no share
// in the slot claims zero; that is not an error, so callers can sweep
// many slots in one invocation.
func ClaimFromSlot(stakeAmount uint64, slot *RecipientSlot, owner solana.PublicKey) uint64 {
	var totalWeights uint64
	totalAmount := stakeAmount
	for i := range slot.Shares {
		totalWeights += uint64(slot.Shares[i].Weights)
		totalAmount += slot.Shares[i].ClaimAmount
	}
	if totalWeights == 0 {
		return 0
	}
	for i := range slot.Shares {
		share := &slot.Shares[i]
		if !share.Owner.IsAssignedTo(owner) {
			continue
		}
		// share.Weights <= totalWeights, so the quotient fits in u64.
		hi, lo := bits.Mul64(totalAmount, uint64(share.Weights))
		entitled, _ := bits.Div64(hi, lo, totalWeights)
		claim := entitled - share.ClaimAmount
		share.ClaimAmount += claim
		return claim
	}
	return 0
}
