// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

// Settlement node: exposes the program's processors over HTTP against a
// persisted account store. Every invocation runs under the runtime's
// transaction semantics, so a handler error leaves the ledger untouched.
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/echa/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/schema"
	cid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/RACE-Game/race-solana/pkg/chain"
	"github.com/RACE-Game/race-solana/pkg/race"
	"github.com/RACE-Game/race-solana/pkg/store"
)

type Config struct {
	Port      string `env:"RACE_NODE_PORT" envDefault:"8000"`
	DBPath    string `env:"RACE_NODE_DB" envDefault:"race-node.db"`
	ProgramID string `env:"RACE_PROGRAM_ID"`
}

var (
	cfg     Config
	flags   = flag.NewFlagSet("node", flag.ContinueOnError)
	decoder = schema.NewDecoder()

	// checkpoint content ids use a raw sha2-256 CIDv1
	cidPrefix = cid.Prefix{
		Version:  1,
		Codec:    uint64(mc.Raw),
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}
)

func init() {
	flags.Usage = func() {}
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}
	flags.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "account database path")
	flags.StringVar(&cfg.ProgramID, "program", cfg.ProgramID, "program id")
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

	if cfg.ProgramID == "" {
		return fmt.Errorf("Empty program id")
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("invalid program id: %v", err)
	}

	db, err := store.NewLevelDB(cfg.DBPath)
	if err != nil {
		return err
	}
	accounts := store.NewAccountStore(db)
	defer accounts.Close()

	rt := chain.NewRuntime(programID)
	var loaded int
	err = accounts.Each(func(a *chain.Account) error {
		rt.AddAccount(a)
		loaded++
		return nil
	})
	if err != nil {
		return err
	}
	log.Infof("Loaded %d accounts from %s", loaded, cfg.DBPath)

	n := &node{rt: rt, store: accounts}

	// use default http server
	http.HandleFunc("/account", n.accountHandler)
	http.HandleFunc("/game", n.gameHandler)
	http.HandleFunc("/recipient", n.recipientHandler)
	http.HandleFunc("/create_game", invoke(n, race.CreateGame))
	http.HandleFunc("/close_game", invokeBare(n, race.CloseGame))
	http.HandleFunc("/join", invoke(n, race.Join))
	http.HandleFunc("/deposit", invoke(n, race.Deposit))
	http.HandleFunc("/reject_deposits", invoke(n, race.RejectDeposits))
	http.HandleFunc("/settle", n.settleHandler)
	http.HandleFunc("/claim", invokeBare(n, race.Claim))
	http.HandleFunc("/create_recipient", invoke(n, race.CreateRecipient))
	http.HandleFunc("/add_recipient_slot", invoke(n, race.AddRecipientSlot))
	http.HandleFunc("/assign_recipient", invoke(n, race.AssignRecipient))
	http.HandleFunc("/attach_bonus", invoke(n, race.AttachBonus))

	log.Infof("Listening on :%s", cfg.Port)
	return http.ListenAndServe(":"+cfg.Port, nil)
}

type node struct {
	rt    *chain.Runtime
	store *store.AccountStore
}

// AccountRef names one account of an invocation with its access flags.
type AccountRef struct {
	Key      string `json:"key"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// Invocation is the generic request body of every processor endpoint.
type Invocation[P any] struct {
	Accounts []AccountRef `json:"accounts"`
	Params   P            `json:"params"`
}

func (n *node) resolve(refs []AccountRef) ([]*chain.Account, error) {
	accounts := make([]*chain.Account, 0, len(refs))
	for _, ref := range refs {
		key, err := solana.PublicKeyFromBase58(ref.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid account key %q: %v", ref.Key, err)
		}
		a, err := n.rt.Account(key)
		if err != nil {
			return nil, fmt.Errorf("unknown account %s", ref.Key)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// execute runs one processor invocation and persists the touched accounts
// on success. Access flags are assigned and the store written inside the
// runtime's invocation lock, so concurrent requests touching the same
// accounts can neither flip flags mid-check nor persist a torn state.
func (n *node) execute(refs []AccountRef, fn func(programID solana.PublicKey, accounts []*chain.Account) error) error {
	accounts, err := n.resolve(refs)
	if err != nil {
		return err
	}
	return n.rt.ExecuteCommit(accounts, func() error {
		for i, a := range accounts {
			a.Signer = refs[i].Signer
			a.Writable = refs[i].Writable
		}
		return fn(n.rt.ProgramID(), accounts)
	}, func() error {
		for _, a := range accounts {
			if err := n.store.Put(a); err != nil {
				return err
			}
		}
		return nil
	})
}

// invoke adapts a processor with params into an HTTP handler.
func invoke[P any](n *node, proc func(solana.PublicKey, []*chain.Account, P) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inv Invocation[P]
		if !decodeBody(w, r, &inv) {
			return
		}
		err := n.execute(inv.Accounts, func(programID solana.PublicKey, accounts []*chain.Account) error {
			return proc(programID, accounts, inv.Params)
		})
		if err != nil {
			writeInvokeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// invokeBare adapts a parameterless processor into an HTTP handler.
func invokeBare(n *node, proc func(solana.PublicKey, []*chain.Account) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inv Invocation[struct{}]
		if !decodeBody(w, r, &inv) {
			return
		}
		if err := n.execute(inv.Accounts, proc); err != nil {
			writeInvokeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// settleHandler is invoke specialized for settlements: on success it also
// pins the committed checkpoint under its content id.
func (n *node) settleHandler(w http.ResponseWriter, r *http.Request) {
	var inv Invocation[race.SettleParams]
	if !decodeBody(w, r, &inv) {
		return
	}
	err := n.execute(inv.Accounts, func(programID solana.PublicKey, accounts []*chain.Account) error {
		return race.Settle(programID, accounts, inv.Params)
	})
	if err != nil {
		writeInvokeError(w, err)
		return
	}

	c, err := cidPrefix.Sum(inv.Params.Checkpoint)
	if err != nil {
		log.Error(err)
		http.Error(w, fmt.Sprintf("encode cid: %v", err), http.StatusInternalServerError)
		return
	}
	if err := n.store.PutCheckpoint(c.String(), inv.Params.Checkpoint); err != nil {
		log.Error(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Infof("Committed settle version %d checkpoint %s", inv.Params.NextSettleVersion, c.String())
	writeJSON(w, map[string]string{"checkpoint_cid": c.String()})
}

// AccountDump is the admin representation of one account.
type AccountDump struct {
	Key      string `json:"key"`
	Owner    string `json:"owner,omitempty"`
	Lamports uint64 `json:"lamports"`
	Data     string `json:"data,omitempty"` // base64
}

// accountHandler creates or funds accounts (POST) and dumps them (GET).
// This is the bootstrap surface the simulator uses to stand up games.
func (n *node) accountHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var q struct {
			Addr string `schema:"addr"`
		}
		if err := decoder.Decode(&q, r.URL.Query()); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a, err := n.lookup(q.Addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, AccountDump{
			Key:      a.Key.String(),
			Owner:    a.Owner.String(),
			Lamports: a.Lamports,
			Data:     base64.StdEncoding.EncodeToString(a.Data),
		})
	case http.MethodPost:
		var dump AccountDump
		if !decodeBody(w, r, &dump) {
			return
		}
		key, err := solana.PublicKeyFromBase58(dump.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a := &chain.Account{Key: key, Lamports: dump.Lamports}
		if dump.Owner != "" {
			if a.Owner, err = solana.PublicKeyFromBase58(dump.Owner); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if dump.Data != "" {
			if a.Data, err = base64.StdEncoding.DecodeString(dump.Data); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		n.rt.AddAccount(a)
		if err := n.store.Put(a); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	default:
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
	}
}

func (n *node) gameHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := n.queryAccount(w, r)
	if !ok {
		return
	}
	state, err := race.UnpackGameState(a.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, state)
}

func (n *node) recipientHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := n.queryAccount(w, r)
	if !ok {
		return
	}
	state, err := race.UnpackRecipientState(a.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, state)
}

func (n *node) queryAccount(w http.ResponseWriter, r *http.Request) (*chain.Account, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return nil, false
	}
	var q struct {
		Addr string `schema:"addr"`
	}
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	a, err := n.lookup(q.Addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return a, true
}

func (n *node) lookup(addr string) (*chain.Account, error) {
	key, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return nil, err
	}
	return n.rt.Account(key)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return false
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		log.Error(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	r.Body.Close()
	return true
}

func writeInvokeError(w http.ResponseWriter, err error) {
	log.Error(err)
	body := map[string]interface{}{"error": err.Error()}
	var perr race.ProcessError
	if errors.As(err, &perr) {
		body["code"] = perr.Code()
	}
	buf, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	w.Write(buf)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Date", time.Now().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}
