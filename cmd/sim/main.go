// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

// Simulator: drives a full game lifecycle against a settlement node.
// It stands up a recipient and a game with the native token, joins two
// players, runs two settlement batches (deposit acceptance, then a win
// with eject and commission) and claims the commission, verifying the
// stake conservation invariant after every step.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/echa/log"
	"github.com/gagliardetto/solana-go"
	cid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/RACE-Game/race-solana/pkg/chain"
	"github.com/RACE-Game/race-solana/pkg/race"
)

var (
	nodeEndpoint string
	programId    string
	buyin        uint64
	flags        = flag.NewFlagSet("sim", flag.ContinueOnError)
)

func init() {
	flags.Usage = func() {}
	flags.StringVar(&nodeEndpoint, "node", envOr("RACE_NODE_URL", "http://localhost:8000"), "settlement node endpoint")
	flags.StringVar(&programId, "program", os.Getenv("RACE_PROGRAM_ID"), "program id")
	flags.Uint64Var(&buyin, "buyin", 1000, "buy-in amount in lamports")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	err := flags.Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			fmt.Printf("Usage: %s [flags]\n", os.Args[0])
			fmt.Println("\nFlags")
			flags.PrintDefaults()
			return nil
		}
		return err
	}

	if programId == "" {
		return fmt.Errorf("Empty program id")
	}
	programID, err := solana.PublicKeyFromBase58(programId)
	if err != nil {
		return err
	}

	owner := solana.NewWallet().PublicKey()
	transactor := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	gameKey := solana.NewWallet().PublicKey()
	registryKey := solana.NewWallet().PublicKey()
	recipientKey := solana.NewWallet().PublicKey()
	bundleKey := solana.NewWallet().PublicKey()

	gamePda, _, err := solana.FindProgramAddress([][]byte{gameKey.Bytes()}, programID)
	if err != nil {
		return err
	}
	slotPda, _, err := solana.FindProgramAddress([][]byte{recipientKey.Bytes(), {0}}, programID)
	if err != nil {
		return err
	}

	const maxPlayers = 6
	regSize := race.RegistryHeaderLen + maxPlayers*race.PlayerEntryLen

	// Bootstrap every account the scenario touches.
	for _, a := range []accountDump{
		{Key: owner.String(), Lamports: 10_000_000},
		{Key: transactor.String(), Lamports: 10_000_000},
		{Key: alice.String(), Lamports: 10_000_000},
		{Key: bob.String(), Lamports: 10_000_000},
		{Key: gameKey.String()},
		{Key: registryKey.String(),
			Lamports: chain.RentExemptMinimum(regSize),
			Data:     base64.StdEncoding.EncodeToString(make([]byte, regSize))},
		{Key: recipientKey.String()},
		{Key: bundleKey.String()},
		{Key: gamePda.String()},
		{Key: slotPda.String()},
		{Key: solana.SolMint.String()},
	} {
		if err := post("/account", a, nil); err != nil {
			return err
		}
	}

	// Recipient with one native slot, owner and transactor sharing 1:2.
	err = post("/create_recipient", invocation{
		Accounts: refs(
			signer(owner), key(owner), ref(recipientKey), ref(slotPda),
		),
		Params: race.CreateRecipientParams{
			Slots: []race.RecipientSlotInit{{
				Id:        0,
				SlotType:  race.SlotTypeToken,
				TokenAddr: solana.SolMint,
				StakeAddr: slotPda,
				InitShares: []race.RecipientSlotShareInit{
					{Owner: race.AssignedOwner(owner), Weights: 1},
					{Owner: race.UnassignedOwner("host"), Weights: 2},
				},
			}},
		},
	}, nil)
	if err != nil {
		return err
	}
	err = post("/assign_recipient", invocation{
		Accounts: refs(signer(owner), ref(recipientKey), ref(transactor)),
		Params:   race.AssignRecipientParams{Identifier: "host"},
	}, nil)
	if err != nil {
		return err
	}
	log.Infof("Recipient %s ready", recipientKey)

	err = post("/create_game", invocation{
		Accounts: refs(
			signer(owner), ref(gameKey), ref(registryKey), ref(gamePda),
			key(solana.SolMint), ref(bundleKey), ref(recipientKey),
		),
		Params: race.CreateGameParams{
			Title:      "sim table",
			MaxPlayers: maxPlayers,
			EntryType:  race.NewCashEntry(buyin, 10*buyin),
		},
	}, nil)
	if err != nil {
		return err
	}
	log.Infof("Game %s created, stake pda %s", gameKey, gamePda)

	// Both players buy in. The temp account holds exactly the buy-in.
	for i, player := range []solana.PublicKey{alice, bob} {
		temp := solana.NewWallet().PublicKey()
		if err := post("/account", accountDump{Key: temp.String(), Lamports: buyin}, nil); err != nil {
			return err
		}
		err = post("/join", invocation{
			Accounts: refs(
				signer(player), ref(temp), ref(gameKey), ref(registryKey),
				ref(gamePda), ref(recipientKey),
			),
			Params: race.JoinParams{
				Amount:    buyin,
				Position:  uint16(i),
				VerifyKey: fmt.Sprintf("key-%d", i),
			},
		}, nil)
		if err != nil {
			return err
		}
		log.Infof("Player %s joined at position %d", player, i)
	}

	// First settlement: accept both deposits and credit the balances.
	var res settleResult
	err = post("/settle", invocation{
		Accounts: refs(
			signer(transactor), ref(gameKey), ref(registryKey),
			ref(gamePda), ref(gamePda), ref(recipientKey),
		),
		Params: race.SettleParams{
			Settles: []race.SettleEntry{
				{PlayerId: 1, Change: race.AddBalance(buyin)},
				{PlayerId: 2, Change: race.AddBalance(buyin)},
			},
			Checkpoint:        checkpoint(1),
			SettleVersion:     0,
			NextSettleVersion: 1,
			AcceptDeposits:    []uint64{1, 2},
		},
	}, &res)
	if err != nil {
		return err
	}
	log.Infof("Settled v1, checkpoint %s", res.CheckpointCid)
	if err := verifyCheckpoint(res.CheckpointCid, checkpoint(1)); err != nil {
		return err
	}

	// Second settlement: bob wins half of alice's stack minus a 10%
	// commission, alice leaves with the rest.
	win := buyin / 2
	rake := win / 10
	err = post("/settle", invocation{
		Accounts: refs(
			signer(transactor), ref(gameKey), ref(registryKey),
			ref(gamePda), ref(gamePda), ref(recipientKey),
			ref(alice), ref(slotPda),
		),
		Params: race.SettleParams{
			Settles: []race.SettleEntry{
				{PlayerId: 1, Change: race.SubBalance(win)},
				{PlayerId: 2, Change: race.AddBalance(win - rake)},
				{PlayerId: 1, Amount: buyin - win, Change: race.SubBalance(buyin - win), Eject: true},
			},
			Transfer:          &race.Transfer{Amount: rake},
			Checkpoint:        checkpoint(2),
			SettleVersion:     1,
			NextSettleVersion: 2,
		},
	}, &res)
	if err != nil {
		return err
	}
	log.Infof("Settled v2, checkpoint %s", res.CheckpointCid)

	// The owner sweeps their third of the commission.
	err = post("/claim", invocation{
		Accounts: refs(
			signer(owner), ref(recipientKey),
			ref(slotPda), ref(slotPda), ref(owner),
		),
	}, nil)
	if err != nil {
		return err
	}

	var game race.GameState
	if err := get("/game?addr="+gameKey.String(), &game); err != nil {
		return err
	}
	var stake accountDump
	if err := get("/account?addr="+gamePda.String(), &stake); err != nil {
		return err
	}
	var pooled, balances uint64
	pooled = stake.Lamports
	for _, b := range game.Balances {
		balances += b.Balance
		log.Infof("Balance player=%d amount=%d", b.PlayerId, b.Balance)
	}
	if pooled != balances {
		return fmt.Errorf("stake pool %d does not cover balances %d", pooled, balances)
	}
	log.Infof("Conservation holds: pool=%d balances=%d version=%d", pooled, balances, game.SettleVersion)
	return nil
}

// checkpoint fabricates deterministic checkpoint bytes for a version.
func checkpoint(version uint64) []byte {
	return []byte(fmt.Sprintf("checkpoint-v%d", version))
}

// verifyCheckpoint recomputes the content id the node should have pinned.
func verifyCheckpoint(got string, data []byte) error {
	pref := cid.Prefix{
		Version:  1,
		Codec:    uint64(mc.Raw),
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}
	c, err := pref.Sum(data)
	if err != nil {
		return err
	}
	if c.String() != got {
		return fmt.Errorf("checkpoint cid mismatch: want %s, got %s", c.String(), got)
	}
	log.Infof("Checkpoint cid verified: %s", c)
	return nil
}

type accountRef struct {
	Key      string `json:"key"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

type invocation struct {
	Accounts []accountRef `json:"accounts"`
	Params   interface{}  `json:"params,omitempty"`
}

type accountDump struct {
	Key      string `json:"key"`
	Owner    string `json:"owner,omitempty"`
	Lamports uint64 `json:"lamports"`
	Data     string `json:"data,omitempty"`
}

type settleResult struct {
	CheckpointCid string `json:"checkpoint_cid"`
}

func signer(k solana.PublicKey) accountRef {
	return accountRef{Key: k.String(), Signer: true, Writable: true}
}

func ref(k solana.PublicKey) accountRef {
	return accountRef{Key: k.String(), Writable: true}
}

func key(k solana.PublicKey) accountRef {
	return accountRef{Key: k.String()}
}

func refs(rs ...accountRef) []accountRef { return rs }

func post(path string, body, result interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(nodeEndpoint+path, "application/json", bytes.NewBuffer(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s: %s (HTTP %d)", path, e.Error, resp.StatusCode)
	}
	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func get(path string, result interface{}) error {
	resp, err := http.Get(nodeEndpoint + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
