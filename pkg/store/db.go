// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

// Package store persists chain accounts and settlement checkpoints in a
// key-value database.
package store

import "errors"

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("store: not found")

// DB is the generic key-value store interface.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	NewIterator(prefix []byte) Iterator
	Close() error
}

// Iterator walks key-value pairs matching a prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}
