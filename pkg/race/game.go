// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

// DepositStatus tracks one deposit through its lifecycle. Only Pending
// and Rejected deposits still bind pool funds; Accepted and Refunded rows
// are pruned at the next settlement.
type DepositStatus borsh.Enum

const (
	DepositPending DepositStatus = iota
	DepositRejected
	DepositRefunded
	DepositAccepted
)

// EntryLock gates which entry operations a game currently admits.
type EntryLock borsh.Enum

const (
	EntryLockOpen EntryLock = iota
	EntryLockJoinOnly
	EntryLockDepositOnly
	EntryLockClosed
)

type EntryCash struct {
	MinDeposit uint64
	MaxDeposit uint64
}

type EntryTicket struct {
	Amount uint64
}

type EntryGating struct {
	Collection string
}

// EntryType is the buy-in rule of a game, a borsh tagged union.
type EntryType struct {
	Enum   borsh.Enum `borsh_enum:"true"`
	Cash   EntryCash
	Ticket EntryTicket
	Gating EntryGating
}

func NewCashEntry(minDeposit, maxDeposit uint64) EntryType {
	return EntryType{Enum: 0, Cash: EntryCash{MinDeposit: minDeposit, MaxDeposit: maxDeposit}}
}

func NewTicketEntry(amount uint64) EntryType {
	return EntryType{Enum: 1, Ticket: EntryTicket{Amount: amount}}
}

func NewGatingEntry(collection string) EntryType {
	return EntryType{Enum: 2, Gating: EntryGating{Collection: collection}}
}

// PlayerDeposit is one deposit row, keyed externally by AccessVersion.
type PlayerDeposit struct {
	Addr          solana.PublicKey
	Amount        uint64
	AccessVersion uint64
	SettleVersion uint64
	Status        DepositStatus
}

// PlayerBalance is the on-chain custody of one player's in-game balance.
// Rows that reach zero are pruned at the end of each settlement.
type PlayerBalance struct {
	PlayerId uint64
	Balance  uint64
}

// Bonus is an award pool attached to a game. The amount records the
// balance at attach time; awarding always drains the live balance.
type Bonus struct {
	Identifier string
	StakeAddr  solana.PublicKey
	TokenAddr  solana.PublicKey
	Amount     uint64
}

// GameState is the persistent ledger of one game. Field order is the wire
// layout and must not change.
type GameState struct {
	IsInitialized  bool
	Version        string
	Title          string
	BundleAddr     solana.PublicKey
	StakeAccount   solana.PublicKey
	Owner          solana.PublicKey
	TokenMint      solana.PublicKey
	TransactorAddr *solana.PublicKey
	AccessVersion  uint64
	SettleVersion  uint64
	MaxPlayers     uint16
	Deposits       []PlayerDeposit
	DataLen        uint32
	Data           []byte
	UnlockTime     *uint64
	EntryType      EntryType
	RecipientAddr  solana.PublicKey
	Checkpoint     []byte
	EntryLock      EntryLock
	Bonuses        []Bonus
	Balances       []PlayerBalance
}

// UnpackGameState deserializes a game account's data buffer.
func UnpackGameState(data []byte) (*GameState, error) {
	var state GameState
	if err := borsh.Deserialize(&state, data); err != nil {
		return nil, ErrGameDeserializationFailed
	}
	return &state, nil
}

// balanceIndex returns the balance row index for a player id, or -1.
func (g *GameState) balanceIndex(playerId uint64) int {
	for i := range g.Balances {
		if g.Balances[i].PlayerId == playerId {
			return i
		}
	}
	return -1
}

// totalBalances sums all custodied player balances.
func (g *GameState) totalBalances() uint64 {
	var sum uint64
	for i := range g.Balances {
		sum += g.Balances[i].Balance
	}
	return sum
}

// unresolvedDeposits sums deposits that still bind pool funds.
func (g *GameState) unresolvedDeposits() uint64 {
	var sum uint64
	for i := range g.Deposits {
		switch g.Deposits[i].Status {
		case DepositPending, DepositRejected:
			sum += g.Deposits[i].Amount
		}
	}
	return sum
}

// packStateToAccount reserializes a variable-length state wholesale,
// growing the account (with rent top-up from payer) when needed. The
// structurally stable registry buffer is the one layout patched in place
// instead; never mix the two schemes on one account.
func packStateToAccount(state interface{}, account, payer *chain.Account) error {
	data, err := borsh.Serialize(state)
	if err != nil {
		return err
	}
	if len(data) != len(account.Data) {
		if err := chain.Realloc(account, payer, len(data)); err != nil {
			return err
		}
	}
	copy(account.Data, data)
	return nil
}
