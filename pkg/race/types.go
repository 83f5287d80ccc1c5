// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// BalanceChange is the signed delta of one settle entry, a borsh tagged
// union of Add and Sub.
type BalanceChange struct {
	Enum borsh.Enum `borsh_enum:"true"`
	Add  ChangeAdd
	Sub  ChangeSub
}

type ChangeAdd struct {
	Amount uint64
}

type ChangeSub struct {
	Amount uint64
}

func AddBalance(amount uint64) *BalanceChange {
	return &BalanceChange{Enum: 0, Add: ChangeAdd{Amount: amount}}
}

func SubBalance(amount uint64) *BalanceChange {
	return &BalanceChange{Enum: 1, Sub: ChangeSub{Amount: amount}}
}

// SettleEntry is one entry of a settlement batch. Amount is the payout to
// make when the player is ejected.
type SettleEntry struct {
	PlayerId uint64
	Amount   uint64
	Change   *BalanceChange
	Eject    bool
}

// Transfer is the optional commission moved from the game stake into the
// recipient slot matching the game's token.
type Transfer struct {
	Amount uint64
}

// Award grants a player the full balance of an attached bonus.
type Award struct {
	PlayerId        uint64
	BonusIdentifier string
}

// SettleParams is one settlement batch. AccessVersion rides along for
// wire compatibility; the ledger's own access version is authoritative
// and the processor never reads the field.
type SettleParams struct {
	Settles           []SettleEntry
	Transfer          *Transfer
	Awards            []Award
	Checkpoint        []byte
	AccessVersion     uint64
	SettleVersion     uint64
	NextSettleVersion uint64
	EntryLock         *EntryLock
	AcceptDeposits    []uint64
}

type CreateGameParams struct {
	Title      string
	MaxPlayers uint16
	EntryType  EntryType
	Data       []byte
}

type JoinParams struct {
	Amount        uint64
	AccessVersion uint64
	SettleVersion uint64
	Position      uint16
	VerifyKey     string
}

type DepositParams struct {
	Amount        uint64
	SettleVersion uint64
}

type RejectDepositsParams struct {
	RejectDeposits []uint64
}

type RecipientSlotShareInit struct {
	Owner   RecipientSlotOwner
	Weights uint16
}

type RecipientSlotInit struct {
	Id         uint8
	SlotType   RecipientSlotType
	TokenAddr  solana.PublicKey
	StakeAddr  solana.PublicKey
	InitShares []RecipientSlotShareInit
}

func (init RecipientSlotInit) intoSlot() RecipientSlot {
	shares := make([]RecipientSlotShare, 0, len(init.InitShares))
	for _, s := range init.InitShares {
		shares = append(shares, RecipientSlotShare{
			Owner:       s.Owner,
			Weights:     s.Weights,
			ClaimAmount: 0,
		})
	}
	return RecipientSlot{
		Id:        init.Id,
		SlotType:  init.SlotType,
		TokenAddr: init.TokenAddr,
		StakeAddr: init.StakeAddr,
		Shares:    shares,
	}
}

type CreateRecipientParams struct {
	Slots []RecipientSlotInit
}

type AssignRecipientParams struct {
	Identifier string
}

type AttachBonusParams struct {
	Identifiers []string
}
