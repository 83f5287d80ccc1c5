// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package race

const (
	// StateVersion is written into every newly created game account.
	StateVersion = "0.2.6"

	// MaxSettleIncrement bounds how far a single settlement may advance
	// the settle version.
	MaxSettleIncrement = 10

	// MaxIdentifierLen bounds bonus and share identifiers.
	MaxIdentifierLen = 16
)
