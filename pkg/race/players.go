// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

// Player registry: accessors for the compact per-game players account.
// The buffer is patched in place, never reserialized wholesale, so every
// entry lives in a fixed-size slot and only the touched bytes change.
//
// Layout:
//
//	[access_version:u64][settle_version:u64][occupied_count:u64]
//	[position_bitmap:128 bytes][slot_capacity:u32]
//	[PlayerEntry or zeroes]*
//
// All integers are little endian. Each slot is 171 bytes; a slot whose
// address field is all zero is empty. The verify key occupies the slot
// tail and is skipped by the 42-byte keyless projection, which reads
// entirely on the stack.

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

const (
	regAccessVersionOff = 0
	regSettleVersionOff = 8
	regOccupiedCountOff = 16
	regBitmapOff        = 24
	regBitmapLen        = 128
	regSlotCapacityOff  = regBitmapOff + regBitmapLen

	// RegistryHeaderLen is the fixed header size of a players account.
	RegistryHeaderLen = regSlotCapacityOff + 4

	// PlayerEntryLen is the fixed slot size of one player entry.
	PlayerEntryLen = 171

	playerEntryKeylessLen = 42
	pubkeyLen             = 32

	// MaxBitmapPositions is the number of positions the bitmap covers.
	// Positions beyond it read as always occupied.
	MaxBitmapPositions = regBitmapLen * 8
)

// PlayerEntry is one registry slot: stable player id (the access version
// at join), table position and the transactor-facing verify key.
type PlayerEntry struct {
	Addr      solana.PublicKey
	Position  uint16
	PlayerId  uint64
	VerifyKey string
}

// PlayerEntryKeyless is the projection of a slot without its verify key.
type PlayerEntryKeyless struct {
	Addr     solana.PublicKey
	Position uint16
	PlayerId uint64
}

// MakeRegistryBuffer allocates an empty players account buffer sized for
// maxPlayers slots.
func MakeRegistryBuffer(maxPlayers uint16) []byte {
	data := make([]byte, RegistryHeaderLen+int(maxPlayers)*PlayerEntryLen)
	binary.LittleEndian.PutUint32(data[regSlotCapacityOff:], uint32(maxPlayers))
	return data
}

func checkRegistry(data []byte) error {
	if len(data) < RegistryHeaderLen {
		return ErrMalformedPlayersRegAccount
	}
	return nil
}

// registrySlots returns how many whole slots the buffer holds, bounded by
// the recorded capacity.
func registrySlots(data []byte) int {
	slots := (len(data) - RegistryHeaderLen) / PlayerEntryLen
	if capacity := int(binary.LittleEndian.Uint32(data[regSlotCapacityOff:])); capacity < slots {
		slots = capacity
	}
	return slots
}

// RegistrySlotCount returns the slot capacity recorded in the header.
func RegistrySlotCount(data []byte) (uint32, error) {
	if err := checkRegistry(data); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[regSlotCapacityOff:]), nil
}

// RegistryOccupiedCount returns the number of occupied slots.
func RegistryOccupiedCount(data []byte) (uint64, error) {
	if err := checkRegistry(data); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data[regOccupiedCountOff:]), nil
}

// RegistryVersions reads the access and settle version counters.
func RegistryVersions(data []byte) (accessVersion, settleVersion uint64, err error) {
	if err = checkRegistry(data); err != nil {
		return
	}
	accessVersion = binary.LittleEndian.Uint64(data[regAccessVersionOff:])
	settleVersion = binary.LittleEndian.Uint64(data[regSettleVersionOff:])
	return
}

// SetRegistryVersions patches the version counters in place.
func SetRegistryVersions(data []byte, accessVersion, settleVersion uint64) error {
	if err := checkRegistry(data); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(data[regAccessVersionOff:], accessVersion)
	binary.LittleEndian.PutUint64(data[regSettleVersionOff:], settleVersion)
	return nil
}

// IsPositionOccupied reads one bit of the position bitmap. Positions
// beyond the bitmap, and any buffer too short to carry the header, are
// reported occupied so they can never be handed out.
func IsPositionOccupied(data []byte, position uint16) bool {
	if position >= MaxBitmapPositions || len(data) < RegistryHeaderLen {
		return true
	}
	b := data[regBitmapOff+int(position)/8]
	return b&(1<<(position%8)) != 0
}

func setPositionBit(data []byte, position uint16, occupied bool) {
	if position >= MaxBitmapPositions {
		return
	}
	idx := regBitmapOff + int(position)/8
	mask := byte(1) << (position % 8)
	if occupied {
		data[idx] |= mask
	} else {
		data[idx] &^= mask
	}
}

// FindFreePosition returns the lowest unoccupied position below
// maxPlayers, or ErrGameFullAlready.
func FindFreePosition(data []byte, maxPlayers uint16) (uint16, error) {
	if err := checkRegistry(data); err != nil {
		return 0, err
	}
	for pos := uint16(0); pos < maxPlayers; pos++ {
		if !IsPositionOccupied(data, pos) {
			return pos, nil
		}
	}
	return 0, ErrGameFullAlready
}

func slotRange(index int) (start, end int) {
	start = RegistryHeaderLen + index*PlayerEntryLen
	return start, start + PlayerEntryLen
}

func slotEmpty(data []byte, index int) bool {
	start, _ := slotRange(index)
	for _, b := range data[start : start+pubkeyLen] {
		if b != 0 {
			return false
		}
	}
	return true
}

// AddPlayer writes the entry into the first empty slot, marks its
// position occupied and bumps the occupied count. It returns the slot
// index, or ok=false when every slot is taken, in which case the caller
// must grow the account and retry.
func AddPlayer(data []byte, entry *PlayerEntry) (index int, ok bool, err error) {
	if err = checkRegistry(data); err != nil {
		return 0, false, err
	}
	raw, err := borsh.Serialize(*entry)
	if err != nil || len(raw) > PlayerEntryLen {
		return 0, false, ErrInvalidPlayersRegAccount
	}
	for i := 0; i < registrySlots(data); i++ {
		if !slotEmpty(data, i) {
			continue
		}
		start, end := slotRange(i)
		for j := start; j < end; j++ {
			data[j] = 0
		}
		copy(data[start:], raw)
		setPositionBit(data, entry.Position, true)
		count := binary.LittleEndian.Uint64(data[regOccupiedCountOff:])
		binary.LittleEndian.PutUint64(data[regOccupiedCountOff:], count+1)
		return i, true, nil
	}
	return 0, false, nil
}

// GetPlayerByIndex returns the keyless projection of one slot, or nil for
// an empty or out-of-range slot.
func GetPlayerByIndex(data []byte, index int) (*PlayerEntryKeyless, error) {
	if err := checkRegistry(data); err != nil {
		return nil, err
	}
	if index < 0 || index >= registrySlots(data) || slotEmpty(data, index) {
		return nil, nil
	}
	start, _ := slotRange(index)
	var entry PlayerEntryKeyless
	if err := borsh.Deserialize(&entry, data[start:start+playerEntryKeylessLen]); err != nil {
		return nil, ErrInvalidPlayersRegAccount
	}
	return &entry, nil
}

// GetPlayerById scans slots in index order for the entry with the given
// player id.
func GetPlayerById(data []byte, playerId uint64) (int, *PlayerEntryKeyless, error) {
	if err := checkRegistry(data); err != nil {
		return 0, nil, err
	}
	for i := 0; i < registrySlots(data); i++ {
		entry, err := GetPlayerByIndex(data, i)
		if err != nil {
			return 0, nil, err
		}
		if entry != nil && entry.PlayerId == playerId {
			return i, entry, nil
		}
	}
	return 0, nil, nil
}

// GetPlayerByAddr scans slots in index order for the entry with the given
// address.
func GetPlayerByAddr(data []byte, addr solana.PublicKey) (int, *PlayerEntryKeyless, error) {
	if err := checkRegistry(data); err != nil {
		return 0, nil, err
	}
	for i := 0; i < registrySlots(data); i++ {
		entry, err := GetPlayerByIndex(data, i)
		if err != nil {
			return 0, nil, err
		}
		if entry != nil && entry.Addr.Equals(addr) {
			return i, entry, nil
		}
	}
	return 0, nil, nil
}

// RemovePlayerByIndex frees one slot: clears the stored position's bitmap
// bit, decrements the occupied count and zeroes the slot. Removing an
// already-empty slot is a no-op.
func RemovePlayerByIndex(data []byte, index int) error {
	if err := checkRegistry(data); err != nil {
		return err
	}
	if index < 0 || index >= registrySlots(data) || slotEmpty(data, index) {
		return nil
	}
	entry, err := GetPlayerByIndex(data, index)
	if err != nil {
		return err
	}
	count := binary.LittleEndian.Uint64(data[regOccupiedCountOff:])
	if count == 0 {
		return ErrCantDecreasePlayersRegAccountSize
	}
	setPositionBit(data, entry.Position, false)
	binary.LittleEndian.PutUint64(data[regOccupiedCountOff:], count-1)
	start, end := slotRange(index)
	for j := start; j < end; j++ {
		data[j] = 0
	}
	return nil
}
