// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

func TestCreateGameNative(t *testing.T) {
	f := newGameFixture(t, 0)
	programID := f.programID

	gameKey := pk(0x60)
	pda, _, err := chain.DeriveAuthority(programID, gameKey.Bytes())
	require.NoError(t, err)

	payer := &chain.Account{Key: pk(0x61), Lamports: 10_000_000, Signer: true, Writable: true}
	game := &chain.Account{Key: gameKey, Writable: true}
	reg := &chain.Account{Key: pk(0x62), Data: MakeRegistryBuffer(4), Writable: true}
	stake := &chain.Account{Key: pda, Writable: true}
	mint := &chain.Account{Key: solana.SolMint}
	bundle := &chain.Account{Key: pk(0x63)}

	err = CreateGame(programID, []*chain.Account{payer, game, reg, stake, mint, bundle, f.recipient}, CreateGameParams{
		Title:      "holdem #1",
		MaxPlayers: 4,
		EntryType:  NewCashEntry(100, 1000),
		Data:       []byte{1, 2, 3},
	})
	require.NoError(t, err)

	state, err := UnpackGameState(game.Data)
	require.NoError(t, err)
	assert.Equal(t, StateVersion, state.Version)
	assert.Equal(t, "holdem #1", state.Title)
	assert.Equal(t, pda, state.StakeAccount)
	assert.Equal(t, payer.Key, state.Owner)
	assert.Equal(t, solana.SolMint, state.TokenMint)
	assert.Equal(t, uint16(4), state.MaxPlayers)
	assert.Equal(t, uint32(3), state.DataLen)
	assert.Equal(t, EntryLockOpen, state.EntryLock)
	assert.True(t, chain.IsRentExempt(game), "payer funded the rent")

	slots, err := RegistrySlotCount(reg.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), slots)
}

func TestCreateGameNativeNeedsPdaStake(t *testing.T) {
	f := newGameFixture(t, 0)
	payer := &chain.Account{Key: pk(0x61), Lamports: 10_000_000, Signer: true}
	game := &chain.Account{Key: pk(0x60), Writable: true}
	reg := &chain.Account{Key: pk(0x62), Data: MakeRegistryBuffer(4)}
	stake := &chain.Account{Key: pk(0x64)} // not the PDA
	mint := &chain.Account{Key: solana.SolMint}
	bundle := &chain.Account{Key: pk(0x63)}

	err := CreateGame(f.programID, []*chain.Account{payer, game, reg, stake, mint, bundle, f.recipient}, CreateGameParams{
		Title: "bad", MaxPlayers: 4, EntryType: NewCashEntry(1, 2),
	})
	assert.ErrorIs(t, err, ErrInvalidStakeAccount)
}

func TestCreateGameTwiceRefused(t *testing.T) {
	f := newGameFixture(t, 0)
	payer := &chain.Account{Key: pk(0x61), Lamports: 10_000_000, Signer: true, Writable: true}

	// The fixture game is already initialized.
	err := CreateGame(f.programID, []*chain.Account{payer, f.game, f.reg, f.stake, {Key: solana.SolMint}, {Key: pk(0x63)}, f.recipient}, CreateGameParams{
		Title: "again", MaxPlayers: 4, EntryType: NewCashEntry(1, 2),
	})
	assert.ErrorIs(t, err, chain.ErrAccountInitialized)
}

func TestCreateGameSplHandsOverStake(t *testing.T) {
	f := newGameFixture(t, 0)
	gameKey := pk(0x60)
	pda, _, err := chain.DeriveAuthority(f.programID, gameKey.Bytes())
	require.NoError(t, err)

	mintKey := pk(0xEE)
	payer := &chain.Account{Key: pk(0x61), Lamports: 10_000_000, Signer: true, Writable: true}
	game := &chain.Account{Key: gameKey, Writable: true}
	reg := &chain.Account{Key: pk(0x62), Data: MakeRegistryBuffer(4), Writable: true}
	stake := tokenAccount(t, pk(0x64), mintKey, payer.Key, 0)
	mint := &chain.Account{Key: mintKey}
	bundle := &chain.Account{Key: pk(0x63)}

	err = CreateGame(f.programID, []*chain.Account{payer, game, reg, stake, mint, bundle, f.recipient}, CreateGameParams{
		Title: "spl", MaxPlayers: 4, EntryType: NewCashEntry(1, 2),
	})
	require.NoError(t, err)

	tok, err := chain.UnpackToken(stake)
	require.NoError(t, err)
	assert.Equal(t, pda, tok.Wallet, "stake authority moved to the PDA")
}

func TestCloseGame(t *testing.T) {
	f := newGameFixture(t, 1)
	owner := &chain.Account{Key: pk(0x03), Signer: true, Writable: true}

	// A game with custodied balances cannot be closed.
	err := CloseGame(f.programID, []*chain.Account{owner, f.game, f.reg, f.stake, f.stake, owner})
	assert.ErrorIs(t, err, ErrCantCloseGame)

	// Eject the last player, then close.
	receiver := &chain.Account{Key: f.players[0], Writable: true}
	require.NoError(t, Settle(f.programID, append(f.baseAccounts(), receiver), SettleParams{
		Settles:           []SettleEntry{{PlayerId: 1, Amount: testBuyin, Change: SubBalance(testBuyin), Eject: true}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	}))

	gameRent := f.game.Lamports
	regRent := f.reg.Lamports
	require.NoError(t, CloseGame(f.programID, []*chain.Account{owner, f.game, f.reg, f.stake, f.stake, owner}))
	assert.Equal(t, gameRent+regRent, owner.Lamports, "rent reclaimed")
	assert.Nil(t, f.game.Data)
	assert.Nil(t, f.reg.Data)
}

func TestCloseGameWrongOwner(t *testing.T) {
	f := newGameFixture(t, 0)
	stranger := &chain.Account{Key: pk(0x99), Signer: true}
	err := CloseGame(f.programID, []*chain.Account{stranger, f.game, f.reg, f.stake, f.stake, stranger})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestCreateRecipientAndAssign(t *testing.T) {
	programID := pk(0xF0)
	recipientKey := pk(0x70)
	slotPda, _, err := chain.DeriveAuthority(programID, recipientKey.Bytes(), []byte{0})
	require.NoError(t, err)

	payer := &chain.Account{Key: pk(0x71), Lamports: 10_000_000, Signer: true, Writable: true}
	capAccount := &chain.Account{Key: payer.Key}
	recipient := &chain.Account{Key: recipientKey, Writable: true}
	slotStake := &chain.Account{Key: slotPda, Writable: true}

	err = CreateRecipient(programID, []*chain.Account{payer, capAccount, recipient, slotStake}, CreateRecipientParams{
		Slots: []RecipientSlotInit{{
			Id:        0,
			SlotType:  SlotTypeToken,
			TokenAddr: solana.SolMint,
			StakeAddr: slotPda,
			InitShares: []RecipientSlotShareInit{
				{Owner: UnassignedOwner("host"), Weights: 2},
				{Owner: AssignedOwner(payer.Key), Weights: 1},
			},
		}},
	})
	require.NoError(t, err)

	state, err := UnpackRecipientState(recipient.Data)
	require.NoError(t, err)
	assert.True(t, state.IsInitialized)
	require.NotNil(t, state.CapAddr)
	assert.Equal(t, payer.Key, *state.CapAddr)
	require.Len(t, state.Slots, 1)
	assert.Equal(t, uint16(2), state.Slots[0].Shares[0].Weights)

	assignee := &chain.Account{Key: pk(0x72)}
	err = AssignRecipient(programID, []*chain.Account{payer, recipient, assignee}, AssignRecipientParams{
		Identifier: "host",
	})
	require.NoError(t, err)

	state, err = UnpackRecipientState(recipient.Data)
	require.NoError(t, err)
	assert.True(t, state.Slots[0].Shares[0].Owner.IsAssignedTo(assignee.Key))
}

func TestAssignRecipientNeedsCap(t *testing.T) {
	f := newGameFixture(t, 0)
	stranger := &chain.Account{Key: pk(0x99), Signer: true}
	assignee := &chain.Account{Key: pk(0x72)}
	err := AssignRecipient(f.programID, []*chain.Account{stranger, f.recipient, assignee}, AssignRecipientParams{
		Identifier: "host",
	})
	assert.ErrorIs(t, err, ErrNoRecipientUpdateCap)
}

func TestAddRecipientSlotDuplicates(t *testing.T) {
	f := newGameFixture(t, 0)
	owner := &chain.Account{Key: pk(0x03), Signer: true, Lamports: 10_000_000, Writable: true}
	mintKey := pk(0xEE)
	stake := tokenAccount(t, pk(0x73), mintKey, owner.Key, 0)

	// Same token as the existing slot.
	err := AddRecipientSlot(f.programID, []*chain.Account{owner, f.recipient, f.slotStake}, RecipientSlotInit{
		Id:         1,
		SlotType:   SlotTypeToken,
		TokenAddr:  solana.SolMint,
		StakeAddr:  f.slotStake.Key,
		InitShares: []RecipientSlotShareInit{{Owner: AssignedOwner(owner.Key), Weights: 1}},
	})
	assert.ErrorIs(t, err, ErrDuplicatedRecipientSlotToken)

	// Same slot id as the existing slot.
	err = AddRecipientSlot(f.programID, []*chain.Account{owner, f.recipient, stake}, RecipientSlotInit{
		Id:         0,
		SlotType:   SlotTypeToken,
		TokenAddr:  mintKey,
		StakeAddr:  stake.Key,
		InitShares: []RecipientSlotShareInit{{Owner: AssignedOwner(owner.Key), Weights: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidSlotId)
}

func TestAddRecipientSlotIdentifierLength(t *testing.T) {
	f := newGameFixture(t, 0)
	owner := &chain.Account{Key: pk(0x03), Signer: true, Lamports: 10_000_000, Writable: true}
	mintKey := pk(0xEE)
	stake := tokenAccount(t, pk(0x73), mintKey, owner.Key, 0)

	err := AddRecipientSlot(f.programID, []*chain.Account{owner, f.recipient, stake}, RecipientSlotInit{
		Id:         1,
		SlotType:   SlotTypeToken,
		TokenAddr:  mintKey,
		StakeAddr:  stake.Key,
		InitShares: []RecipientSlotShareInit{{Owner: UnassignedOwner("an-identifier-way-too-long"), Weights: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidIdentifierLength)
}

func TestClaimSweep(t *testing.T) {
	f := newGameFixture(t, 0)
	owner := &chain.Account{Key: pk(0x03), Signer: true, Writable: true}
	f.slotStake.Lamports = 300

	err := Claim(f.programID, []*chain.Account{
		owner, f.recipient, f.slotStake, f.slotStake, owner,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), owner.Lamports, "sole share takes the whole pool")
	assert.Equal(t, uint64(0), f.slotStake.Lamports)

	state := f.recipientState(t)
	assert.Equal(t, uint64(300), state.Slots[0].Shares[0].ClaimAmount)
}

func TestClaimPartialTriple(t *testing.T) {
	f := newGameFixture(t, 0)
	owner := &chain.Account{Key: pk(0x03), Signer: true, Writable: true}

	// Two trailing accounts do not form a (pda, stake, receiver) triple.
	err := Claim(f.programID, []*chain.Account{
		owner, f.recipient, f.slotStake, f.slotStake,
	})
	assert.ErrorIs(t, err, chain.ErrNoMoreAccounts)
}

func TestAttachBonus(t *testing.T) {
	f := newGameFixture(t, 0)
	pda, _, err := chain.DeriveAuthority(f.programID, f.game.Key.Bytes())
	require.NoError(t, err)

	payer := &chain.Account{Key: pk(0x03), Signer: true, Lamports: 10_000_000, Writable: true}
	mintKey := pk(0xEE)
	bonus := tokenAccount(t, pk(0x74), mintKey, payer.Key, 500)

	err = AttachBonus(f.programID, []*chain.Account{payer, f.game, bonus}, AttachBonusParams{
		Identifiers: []string{"prize"},
	})
	require.NoError(t, err)

	state := f.gameState(t)
	require.Len(t, state.Bonuses, 1)
	assert.Equal(t, "prize", state.Bonuses[0].Identifier)
	assert.Equal(t, bonus.Key, state.Bonuses[0].StakeAddr)
	assert.Equal(t, uint64(500), state.Bonuses[0].Amount)

	tok, err := chain.UnpackToken(bonus)
	require.NoError(t, err)
	assert.Equal(t, pda, tok.Wallet, "bonus authority moved to the PDA")
}

func TestAttachBonusRefusesNative(t *testing.T) {
	f := newGameFixture(t, 0)
	payer := &chain.Account{Key: pk(0x03), Signer: true, Lamports: 10_000_000}
	wsol := tokenAccount(t, pk(0x74), solana.SolMint, payer.Key, 500)

	err := AttachBonus(f.programID, []*chain.Account{payer, f.game, wsol}, AttachBonusParams{
		Identifiers: []string{"prize"},
	})
	assert.ErrorIs(t, err, ErrNativeTokenNotSupported)
}
