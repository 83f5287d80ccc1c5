// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

// Package race implements the on-chain settlement and payout engine of
// the RACE game protocol: the game and recipient ledgers, the compact
// player registry, the settlement processor and the weighted-claim
// engine, together with the entry operations (create, join, deposit,
// reject, bonus and recipient management) that produce the state
// settlement consumes.
//
// Every processor operates on caller-supplied accounts and reports typed
// numbered errors; the hosting runtime discards all mutations of a
// failed invocation, so processors validate eagerly and never roll back
// by hand.
package race
