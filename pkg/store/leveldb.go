// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements DB using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
