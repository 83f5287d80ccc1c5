// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import "fmt"

// ProcessError is a numbered program error. The numeric values are part
// of the external contract (off-chain coordinators match on them), so new
// errors are only ever appended.
type ProcessError uint32

const (
	ErrInvalidOwner ProcessError = iota // 0x00
	ErrCreateGameFailed
	ErrRegistrationIsFull
	ErrGameAlreadyRegistered
	ErrCantCloseGame
	ErrInvalidStakeAccount
	ErrInvalidPDA
	ErrStakeAmountOverflow
	ErrInvalidAccountStatus // 0x08
	ErrInvalidAccountPubkey
	ErrInvalidSettleAmounts
	ErrInvalidSettlePlayerId
	ErrUnhandledEliminatedPlayer
	ErrInvalidReceiverAddress
	ErrInvalidOrderOfSettles
	ErrPlayerBalanceOverflow
	ErrInvalidVoterAccount // 0x10
	ErrInvalidVoteeAccount
	ErrGameNotServed
	ErrUnimplemented
	ErrDuplicateServerJoin
	ErrInvalidUnregistration
	ErrServerNumberExceedsLimit
	ErrPositionTakenAlready
	ErrGameFullAlready // 0x18
	ErrJoinedGameAlready
	ErrInvalidMint
	ErrInvalidDeposit
	ErrInvalidPosition
	ErrNoRecipientUpdateCap
	ErrEmptyRecipientSlots
	ErrInvalidSlotId
	ErrInvalidSlotStakeAccount // 0x20
	ErrInvalidSettleVersion
	ErrInvalidNextSettleVersion
	ErrSettleValidationOverflow
	ErrServerDeserializationFailed
	ErrGameDeserializationFailed
	ErrRegistryDeserializationFailed
	ErrRecipientDeserializationFailed
	ErrProfileDeserializationFailed // 0x28
	ErrInvalidPaymentParams
	ErrRecipientSlotNotFound
	ErrInvalidRecipientSlotAccount
	ErrInvalidTokenMint
	ErrPlayerNotInGame
	ErrInvalidIdentifierLength
	ErrInvalidAwardIdentifier
	ErrInvalidAwardPlayerId // 0x30
	ErrNativeTokenNotSupported
	ErrSignerNotTransactor
	ErrInvalidRejectDeposit
	ErrReceiverUninitialized
	ErrDuplicatedDepositRejection
	ErrInvalidSettleBalance
	ErrUnbalancedGameStake
	ErrServerAccountNotAvailable // 0x38
	ErrEmptyRecipientSlotShares
	ErrDuplicatedRecipientSlotToken
	ErrInvalidRecipientAddress
	ErrInvalidPlayersRegAccountForInit
	ErrMalformedPlayersRegAccount
	ErrCantIncreasePlayersRegAccountSize
	ErrCantDecreasePlayersRegAccountSize
	ErrInvalidPlayersRegAccount // 0x40
	ErrInconsistentCredentials
	ErrEntryLockNotOpen
)

var processErrorMessages = map[ProcessError]string{
	ErrInvalidOwner:                      "invalid owner of this account",
	ErrCreateGameFailed:                  "failed to create game",
	ErrRegistrationIsFull:                "registration center is already full",
	ErrGameAlreadyRegistered:             "game already registered",
	ErrCantCloseGame:                     "unable to close game that still has players in it",
	ErrInvalidStakeAccount:               "invalid stake account",
	ErrInvalidPDA:                        "invalid program derived address",
	ErrStakeAmountOverflow:               "account stake amount overflows",
	ErrInvalidAccountStatus:              "expect writable account, found read-only",
	ErrInvalidAccountPubkey:              "account pubkey is not the same as that from transport",
	ErrInvalidSettleAmounts:              "settle amounts are not sum up to zero",
	ErrInvalidSettlePlayerId:             "invalid settle player id",
	ErrUnhandledEliminatedPlayer:         "unhandled eliminated player",
	ErrInvalidReceiverAddress:            "invalid receiver address, wallet and ATA mismatch",
	ErrInvalidOrderOfSettles:             "settles are not in correct order",
	ErrPlayerBalanceOverflow:             "player balance amount overflows",
	ErrInvalidVoterAccount:               "invalid voter account",
	ErrInvalidVoteeAccount:               "invalid votee account",
	ErrGameNotServed:                     "game is not served",
	ErrUnimplemented:                     "feature is unimplemented",
	ErrDuplicateServerJoin:               "duplicate joining not allowed as the server already joined",
	ErrInvalidUnregistration:             "can't unregister the game as it has not been registered yet",
	ErrServerNumberExceedsLimit:          "server number exceeds the max of 10",
	ErrPositionTakenAlready:              "position already taken by another player",
	ErrGameFullAlready:                   "can't join game because game is already full",
	ErrJoinedGameAlready:                 "can't join game because player already joined",
	ErrInvalidMint:                       "token's mint must be the same as that used in the game",
	ErrInvalidDeposit:                    "can't join game because deposit is invalid",
	ErrInvalidPosition:                   "given position falls out the range of 0 to max_players - 1",
	ErrNoRecipientUpdateCap:              "no capability to update recipient account",
	ErrEmptyRecipientSlots:               "empty recipient slots",
	ErrInvalidSlotId:                     "invalid slot id",
	ErrInvalidSlotStakeAccount:           "invalid slot stake account",
	ErrInvalidSettleVersion:              "invalid settle version",
	ErrInvalidNextSettleVersion:          "invalid next settle version",
	ErrSettleValidationOverflow:          "settle validation overflow",
	ErrServerDeserializationFailed:       "server account deserialization failed",
	ErrGameDeserializationFailed:         "game account deserialization failed",
	ErrRegistryDeserializationFailed:     "registry account deserialization failed",
	ErrRecipientDeserializationFailed:    "recipient account deserialization failed",
	ErrProfileDeserializationFailed:      "profile account deserialization failed",
	ErrInvalidPaymentParams:              "invalid payment amount",
	ErrRecipientSlotNotFound:             "recipient slot not found",
	ErrInvalidRecipientSlotAccount:       "invalid recipient slot account provided",
	ErrInvalidTokenMint:                  "invalid token mint",
	ErrPlayerNotInGame:                   "player not in game",
	ErrInvalidIdentifierLength:           "invalid identifier length",
	ErrInvalidAwardIdentifier:            "invalid award identifier",
	ErrInvalidAwardPlayerId:              "invalid award player id",
	ErrNativeTokenNotSupported:           "native token is not supported",
	ErrSignerNotTransactor:               "signer is not current transactor",
	ErrInvalidRejectDeposit:              "invalid reject deposit",
	ErrReceiverUninitialized:             "receiver account uninitialized",
	ErrDuplicatedDepositRejection:        "duplicated deposit rejection",
	ErrInvalidSettleBalance:              "invalid settle balance",
	ErrUnbalancedGameStake:               "unbalanced game stake",
	ErrServerAccountNotAvailable:         "server account not available",
	ErrEmptyRecipientSlotShares:          "empty recipient slot shares",
	ErrDuplicatedRecipientSlotToken:      "duplicated recipient slot token",
	ErrInvalidRecipientAddress:           "invalid recipient address",
	ErrInvalidPlayersRegAccountForInit:   "invalid players account for initialization",
	ErrMalformedPlayersRegAccount:        "malformed players reg account",
	ErrCantIncreasePlayersRegAccountSize: "can not increase the size of players reg account",
	ErrCantDecreasePlayersRegAccountSize: "can not decrease the size of players reg account",
	ErrInvalidPlayersRegAccount:          "invalid players reg account",
	ErrInconsistentCredentials:           "inconsistent credentials",
	ErrEntryLockNotOpen:                  "game entry is locked",
}

func (e ProcessError) Error() string {
	if msg, ok := processErrorMessages[e]; ok {
		return fmt.Sprintf("race: %s (0x%02X)", msg, uint32(e))
	}
	return fmt.Sprintf("race: unknown process error 0x%02X", uint32(e))
}

// Code returns the numeric error code.
func (e ProcessError) Code() uint32 {
	return uint32(e)
}
