// Copyright (c) 2024 RACE Foundation
// SPDX-License-Identifier: MIT

package store

import (
	"sort"
	"strings"
	"sync"
)

// MemDB is a thread-safe in-memory DB, used by the simulator and tests.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemDB creates an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemDB) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemDB) NewIterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := string(prefix)
	var pairs []kv
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			cp := make([]byte, len(v))
			copy(cp, v)
			pairs = append(pairs, kv{k: []byte(k), v: cp})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return string(pairs[i].k) < string(pairs[j].k)
	})
	return &memIter{pairs: pairs, idx: -1}
}

func (m *MemDB) Close() error { return nil }

type kv struct{ k, v []byte }

type memIter struct {
	pairs []kv
	idx   int
}

func (it *memIter) Next() bool    { it.idx++; return it.idx < len(it.pairs) }
func (it *memIter) Key() []byte   { return it.pairs[it.idx].k }
func (it *memIter) Value() []byte { return it.pairs[it.idx].v }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }
