// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

import (
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RACE-Game/race-solana/pkg/chain"
)

const testBuyin = 1000

// gameFixture is a native-token game with funded players and a recipient
// carrying one slot for the game's token.
type gameFixture struct {
	programID  solana.PublicKey
	transactor *chain.Account
	game       *chain.Account
	reg        *chain.Account
	stake      *chain.Account
	recipient  *chain.Account
	slotStake  *chain.Account
	players    []solana.PublicKey
}

// baseAccounts is the fixed prefix every settle invocation takes. The
// stake of a native game is the PDA itself.
func (f *gameFixture) baseAccounts() []*chain.Account {
	return []*chain.Account{f.transactor, f.game, f.reg, f.stake, f.stake, f.recipient}
}

func (f *gameFixture) gameState(t *testing.T) *GameState {
	state, err := UnpackGameState(f.game.Data)
	require.NoError(t, err)
	return state
}

func (f *gameFixture) recipientState(t *testing.T) *RecipientState {
	state, err := UnpackRecipientState(f.recipient.Data)
	require.NoError(t, err)
	return state
}

// newGameFixture builds a game with n players already joined and settled
// in: each holds a balance of testBuyin custodied by the stake pool.
// Player ids run 1..n.
func newGameFixture(t *testing.T, n int) *gameFixture {
	programID := pk(0xF0)
	gameKey := pk(0x01)
	recipientKey := pk(0x02)
	ownerKey := pk(0x03)

	pda, _, err := chain.DeriveAuthority(programID, gameKey.Bytes())
	require.NoError(t, err)
	slotPda, _, err := chain.DeriveAuthority(programID, recipientKey.Bytes(), []byte{0})
	require.NoError(t, err)

	const maxPlayers = 8
	regData := MakeRegistryBuffer(maxPlayers)
	state := GameState{
		IsInitialized: true,
		Version:       StateVersion,
		Title:         "fixture",
		BundleAddr:    pk(0x04),
		StakeAccount:  pda,
		Owner:         ownerKey,
		TokenMint:     solana.SolMint,
		MaxPlayers:    maxPlayers,
		EntryType:     NewCashEntry(testBuyin, 10*testBuyin),
		RecipientAddr: recipientKey,
		EntryLock:     EntryLockOpen,
	}

	var players []solana.PublicKey
	for i := 1; i <= n; i++ {
		addr := pk(0x10 + byte(i))
		players = append(players, addr)
		_, ok, err := AddPlayer(regData, &PlayerEntry{
			Addr:      addr,
			Position:  uint16(i - 1),
			PlayerId:  uint64(i),
			VerifyKey: "vk",
		})
		require.NoError(t, err)
		require.True(t, ok)
		state.AccessVersion = uint64(i)
		state.Balances = append(state.Balances, PlayerBalance{
			PlayerId: uint64(i),
			Balance:  testBuyin,
		})
	}
	require.NoError(t, SetRegistryVersions(regData, state.AccessVersion, state.SettleVersion))

	gameData, err := borsh.Serialize(state)
	require.NoError(t, err)

	capAddr := ownerKey
	recipientData, err := borsh.Serialize(RecipientState{
		IsInitialized: true,
		CapAddr:       &capAddr,
		Slots: []RecipientSlot{{
			Id:        0,
			SlotType:  SlotTypeToken,
			TokenAddr: solana.SolMint,
			StakeAddr: slotPda,
			Shares: []RecipientSlotShare{
				{Owner: AssignedOwner(ownerKey), Weights: 1},
			},
		}},
	})
	require.NoError(t, err)

	return &gameFixture{
		programID:  programID,
		transactor: &chain.Account{Key: pk(0x05), Lamports: 10_000_000, Signer: true, Writable: true},
		game: &chain.Account{
			Key:      gameKey,
			Lamports: chain.RentExemptMinimum(len(gameData)),
			Data:     gameData,
			Writable: true,
		},
		reg: &chain.Account{
			Key:      pk(0x06),
			Lamports: chain.RentExemptMinimum(len(regData)),
			Data:     regData,
			Writable: true,
		},
		stake:     &chain.Account{Key: pda, Lamports: uint64(n) * testBuyin, Writable: true},
		recipient: &chain.Account{Key: recipientKey, Lamports: chain.RentExemptMinimum(len(recipientData)), Data: recipientData, Writable: true},
		slotStake: &chain.Account{Key: slotPda, Writable: true},
		players:   players,
	}
}

func TestSettleBalanceChanges(t *testing.T) {
	f := newGameFixture(t, 2)

	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		Settles: []SettleEntry{
			{PlayerId: 1, Change: SubBalance(400)},
			{PlayerId: 2, Change: AddBalance(400)},
		},
		Checkpoint:        []byte("cp-1"),
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)

	state := f.gameState(t)
	assert.Equal(t, uint64(1), state.SettleVersion)
	assert.Equal(t, []byte("cp-1"), state.Checkpoint)
	require.Len(t, state.Balances, 2)
	assert.Equal(t, uint64(600), state.Balances[0].Balance)
	assert.Equal(t, uint64(1400), state.Balances[1].Balance)

	_, settle, err := RegistryVersions(f.reg.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), settle, "registry mirrors the settle version")
}

func TestSettleStaleVersionRejected(t *testing.T) {
	f := newGameFixture(t, 2)
	rt := chain.NewRuntime(f.programID)

	gameBefore := append([]byte(nil), f.game.Data...)
	regBefore := append([]byte(nil), f.reg.Data...)
	stakeBefore := f.stake.Lamports

	accounts := f.baseAccounts()
	err := rt.Execute(accounts, func() error {
		return Settle(f.programID, accounts, SettleParams{
			Settles:           []SettleEntry{{PlayerId: 1, Change: SubBalance(100)}},
			SettleVersion:     7,
			NextSettleVersion: 8,
		})
	})
	assert.ErrorIs(t, err, ErrInvalidSettleVersion)
	assert.Equal(t, gameBefore, f.game.Data, "ledger unmodified")
	assert.Equal(t, regBefore, f.reg.Data, "registry unmodified")
	assert.Equal(t, stakeBefore, f.stake.Lamports, "pool unmodified")
}

func TestSettleNextVersionBounds(t *testing.T) {
	f := newGameFixture(t, 1)
	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		SettleVersion:     0,
		NextSettleVersion: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidNextSettleVersion, "next must advance")

	err = Settle(f.programID, f.baseAccounts(), SettleParams{
		SettleVersion:     0,
		NextSettleVersion: MaxSettleIncrement + 1,
	})
	assert.ErrorIs(t, err, ErrInvalidNextSettleVersion, "next bounded by the increment cap")
}

func TestSettleEjectPaysAndRemoves(t *testing.T) {
	f := newGameFixture(t, 2)
	receiver := &chain.Account{Key: f.players[0], Writable: true}
	accounts := append(f.baseAccounts(), receiver)

	err := Settle(f.programID, accounts, SettleParams{
		Settles: []SettleEntry{
			{PlayerId: 1, Amount: testBuyin, Change: SubBalance(testBuyin), Eject: true},
		},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(testBuyin), receiver.Lamports, "ejected player paid out")
	assert.Equal(t, uint64(testBuyin), f.stake.Lamports, "pool keeps the remaining balance")

	_, entry, err := GetPlayerById(f.reg.Data, 1)
	require.NoError(t, err)
	assert.Nil(t, entry, "ejected player left the registry")

	state := f.gameState(t)
	require.Len(t, state.Balances, 1, "zeroed balance pruned")
	assert.Equal(t, uint64(2), state.Balances[0].PlayerId)
}

func TestSettleEjectUnknownPlayer(t *testing.T) {
	f := newGameFixture(t, 1)
	rt := chain.NewRuntime(f.programID)

	stakeBefore := f.stake.Lamports
	receiver := &chain.Account{Key: pk(0x77), Writable: true}
	accounts := append(f.baseAccounts(), receiver)

	err := rt.Execute(accounts, func() error {
		return Settle(f.programID, accounts, SettleParams{
			Settles:           []SettleEntry{{PlayerId: 99, Amount: 10, Eject: true}},
			SettleVersion:     0,
			NextSettleVersion: 1,
		})
	})
	assert.ErrorIs(t, err, ErrInvalidSettlePlayerId)
	assert.Equal(t, stakeBefore, f.stake.Lamports, "aborted before any transfer")
	assert.Equal(t, uint64(0), receiver.Lamports)
}

func TestSettleSubBelowBalance(t *testing.T) {
	f := newGameFixture(t, 1)
	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		Settles:           []SettleEntry{{PlayerId: 1, Change: SubBalance(testBuyin + 1)}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidSettleBalance)

	err = Settle(f.programID, f.baseAccounts(), SettleParams{
		Settles:           []SettleEntry{{PlayerId: 42, Change: SubBalance(1)}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidSettleBalance, "sub without a balance row")
}

func TestSettleCommission(t *testing.T) {
	f := newGameFixture(t, 2)
	accounts := append(f.baseAccounts(), f.slotStake)

	err := Settle(f.programID, accounts, SettleParams{
		Settles: []SettleEntry{
			{PlayerId: 1, Change: SubBalance(100)},
			{PlayerId: 2, Change: AddBalance(50)},
		},
		Transfer:          &Transfer{Amount: 50},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), f.slotStake.Lamports, "commission landed in the token slot")
	assert.Equal(t, uint64(2*testBuyin-50), f.stake.Lamports)
}

func TestSettleConservationViolation(t *testing.T) {
	f := newGameFixture(t, 2)
	// Crediting out of thin air breaks pooled == balances + deposits.
	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		Settles:           []SettleEntry{{PlayerId: 1, Change: AddBalance(1)}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	assert.ErrorIs(t, err, ErrUnbalancedGameStake)
}

func TestSettleAcceptDeposits(t *testing.T) {
	f := newGameFixture(t, 1)

	// A second player joined with a pending deposit; pool already holds
	// the funds.
	state := f.gameState(t)
	state.AccessVersion++
	state.Deposits = append(state.Deposits, PlayerDeposit{
		Addr:          pk(0x12),
		Amount:        testBuyin,
		AccessVersion: state.AccessVersion,
		Status:        DepositPending,
	})
	_, ok, err := AddPlayer(f.reg.Data, &PlayerEntry{
		Addr: pk(0x12), Position: 1, PlayerId: state.AccessVersion, VerifyKey: "vk",
	})
	require.NoError(t, err)
	require.True(t, ok)
	data, err := borsh.Serialize(*state)
	require.NoError(t, err)
	f.game.Data = data
	f.stake.Lamports += testBuyin

	err = Settle(f.programID, f.baseAccounts(), SettleParams{
		Settles:           []SettleEntry{{PlayerId: 2, Change: AddBalance(testBuyin)}},
		AcceptDeposits:    []uint64{2},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)

	state = f.gameState(t)
	assert.Empty(t, state.Deposits, "accepted rows pruned")
	require.Len(t, state.Balances, 2)
	assert.Equal(t, uint64(testBuyin), state.Balances[1].Balance)
}

func TestSettleEntryLockUpdate(t *testing.T) {
	f := newGameFixture(t, 1)
	lock := EntryLockClosed
	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		EntryLock:         &lock,
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, EntryLockClosed, f.gameState(t).EntryLock)
}

func TestSettleAwardDrainsBonus(t *testing.T) {
	f := newGameFixture(t, 1)
	mint := pk(0xEE)
	bonusKey := pk(0x30)

	pda, _, err := chain.DeriveAuthority(f.programID, f.game.Key.Bytes())
	require.NoError(t, err)

	// Two bonuses share the identifier; both pay out on one award.
	bonusA := tokenAccount(t, bonusKey, mint, pda, 500)
	bonusB := tokenAccount(t, pk(0x31), mint, pda, 300)

	state := f.gameState(t)
	state.Bonuses = []Bonus{
		{Identifier: "prize", StakeAddr: bonusA.Key, TokenAddr: mint, Amount: 500},
		{Identifier: "prize", StakeAddr: bonusB.Key, TokenAddr: mint, Amount: 300},
	}
	data, err := borsh.Serialize(*state)
	require.NoError(t, err)
	f.game.Data = data

	ata, _, err := solana.FindAssociatedTokenAddress(f.players[0], mint)
	require.NoError(t, err)
	receiver := tokenAccount(t, ata, mint, f.players[0], 0)

	transactorBefore := f.transactor.Lamports
	accounts := append(f.baseAccounts(), bonusA, receiver, bonusB, receiver)
	err = Settle(f.programID, accounts, SettleParams{
		Awards:            []Award{{PlayerId: 1, BonusIdentifier: "prize"}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	require.NoError(t, err)

	tok, err := chain.UnpackToken(receiver)
	require.NoError(t, err)
	assert.Equal(t, uint64(800), tok.Amount, "both matching bonuses drained in full")
	assert.Nil(t, bonusA.Data, "bonus account closed")
	assert.Nil(t, bonusB.Data)
	assert.Greater(t, f.transactor.Lamports, transactorBefore, "bonus rent reclaimed by the signer")
	assert.Empty(t, f.gameState(t).Bonuses, "paid bonuses removed")
}

func TestSettleAwardUnknownIdentifier(t *testing.T) {
	f := newGameFixture(t, 1)
	err := Settle(f.programID, f.baseAccounts(), SettleParams{
		Awards:            []Award{{PlayerId: 1, BonusIdentifier: "nope"}},
		SettleVersion:     0,
		NextSettleVersion: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidAwardIdentifier)
}

// TestSettleConservationProperty runs random valid settle batches and
// checks that the pool always equals custodied balances plus unresolved
// deposits afterwards.
func TestSettleConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := newGameFixture(t, 4)

	version := uint64(0)
	for round := 0; round < 50; round++ {
		state := f.gameState(t)
		var settles []SettleEntry
		for _, b := range state.Balances {
			if b.Balance == 0 {
				continue
			}
			switch rng.Intn(3) {
			case 0:
				amt := uint64(rng.Int63n(int64(b.Balance))) + 1
				settles = append(settles, SettleEntry{PlayerId: b.PlayerId, Change: SubBalance(amt)})
				settles = append(settles, SettleEntry{PlayerId: b.PlayerId, Change: AddBalance(amt)})
			case 1:
				// Move half to the next balance row.
				amt := b.Balance / 2
				if amt > 0 {
					other := state.Balances[rng.Intn(len(state.Balances))].PlayerId
					settles = append(settles, SettleEntry{PlayerId: b.PlayerId, Change: SubBalance(amt)})
					settles = append(settles, SettleEntry{PlayerId: other, Change: AddBalance(amt)})
				}
			}
		}

		err := Settle(f.programID, f.baseAccounts(), SettleParams{
			Settles:           settles,
			SettleVersion:     version,
			NextSettleVersion: version + 1,
		})
		require.NoError(t, err, "round %d", round)
		version++

		state = f.gameState(t)
		pooled := f.stake.Lamports
		var sum uint64
		for _, b := range state.Balances {
			sum += b.Balance
		}
		for _, d := range state.Deposits {
			if d.Status == DepositPending || d.Status == DepositRejected {
				sum += d.Amount
			}
		}
		require.Equal(t, pooled, sum, "conservation after round %d", round)
	}
}

func tokenAccount(t *testing.T, key, mint, wallet solana.PublicKey, amount uint64) *chain.Account {
	data, err := borsh.Serialize(chain.TokenAccount{Mint: mint, Wallet: wallet, Amount: amount})
	require.NoError(t, err)
	return &chain.Account{
		Key:      key,
		Lamports: chain.RentExemptMinimum(len(data)),
		Data:     data,
		Writable: true,
	}
}
