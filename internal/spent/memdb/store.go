// Package memdb is an in-memory spent record store.
package memdb

import (
	"context"
	"sync"

	"github.com/drand/vmauth/internal/spent"
)

// Store keeps spent records in memory. Nothing survives a restart.
type Store struct {
	storeMtx *sync.RWMutex
	serials  map[string]spent.Entry
	tags     map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		storeMtx: &sync.RWMutex{},
		serials:  make(map[string]spent.Entry),
		tags:     make(map[string]struct{}),
	}
}

func (m *Store) Spend(_ context.Context, entries []spent.Entry) error {
	m.storeMtx.Lock()
	defer m.storeMtx.Unlock()

	batchSerials := make(map[string]struct{}, len(entries))
	batchTags := make(map[string]struct{}, len(entries))
	for i := range entries {
		sn, tag := string(entries[i].SerialNumber), string(entries[i].Tag)
		if _, ok := m.serials[sn]; ok {
			return &spent.DoubleSpendError{Entry: entries[i], Field: "serial number"}
		}
		if _, ok := batchSerials[sn]; ok {
			return &spent.DoubleSpendError{Entry: entries[i], Field: "serial number"}
		}
		if _, ok := m.tags[tag]; ok {
			return &spent.DoubleSpendError{Entry: entries[i], Field: "tag"}
		}
		if _, ok := batchTags[tag]; ok {
			return &spent.DoubleSpendError{Entry: entries[i], Field: "tag"}
		}
		batchSerials[sn] = struct{}{}
		batchTags[tag] = struct{}{}
	}
	for i := range entries {
		m.serials[string(entries[i].SerialNumber)] = entries[i]
		m.tags[string(entries[i].Tag)] = struct{}{}
	}
	return nil
}

func (m *Store) IsSpent(_ context.Context, serialNumber []byte) (bool, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	_, ok := m.serials[string(serialNumber)]
	return ok, nil
}

func (m *Store) HasTag(_ context.Context, tag []byte) (bool, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	_, ok := m.tags[string(tag)]
	return ok, nil
}

func (m *Store) Get(_ context.Context, serialNumber []byte) (*spent.Entry, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	e, ok := m.serials[string(serialNumber)]
	if !ok {
		return nil, spent.ErrNotFound
	}
	return &e, nil
}

func (m *Store) Len(_ context.Context) (int, error) {
	m.storeMtx.RLock()
	defer m.storeMtx.RUnlock()

	return len(m.serials), nil
}

func (m *Store) Close(_ context.Context) error {
	return nil
}
