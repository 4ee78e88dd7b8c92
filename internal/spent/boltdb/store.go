// Package boltdb implements the spent record store on top of boltdb.
package boltdb

import (
	"context"
	"path"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/internal/spent"
)

// BoltStore implements the spent.Store interface using boltdb. Entries are
// stored hex-JSON encoded under their serial number; a second bucket maps
// tags to serial numbers.
//
//nolint:gocritic // We do want to have a mutex here
type BoltStore struct {
	sync.Mutex
	db *bolt.DB

	log log.Logger
}

var (
	serialBucket = []byte("serial_numbers")
	tagBucket    = []byte("tags")
)

// BoltFileName is the name of the file boltdb writes to
const BoltFileName = "spent.db"

// BoltStoreOpenPerm is the permission we will use to read bolt store file from disk
const BoltStoreOpenPerm = 0660

// NewBoltStore returns a spent.Store backed by a boltdb file in folder.
func NewBoltStore(ctx context.Context, l log.Logger, folder string, opts *bolt.Options) (*BoltStore, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dbPath := path.Join(folder, BoltFileName)
	db, err := bolt.Open(dbPath, BoltStoreOpenPerm, opts)
	if err != nil {
		return nil, err
	}
	// create the buckets already
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(serialBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(tagBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		log: l,
		db:  db,
	}, nil
}

// Spend implements the spent.Store interface. All entries are written in a
// single transaction.
func (b *BoltStore) Spend(ctx context.Context, entries []spent.Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.Lock()
	defer b.Unlock()
	return b.db.Update(func(tx *bolt.Tx) error {
		serials := tx.Bucket(serialBucket)
		tags := tx.Bucket(tagBucket)
		for i := range entries {
			e := entries[i]
			if serials.Get(e.SerialNumber) != nil {
				return &spent.DoubleSpendError{Entry: e, Field: "serial number"}
			}
			if tags.Get(e.Tag) != nil {
				return &spent.DoubleSpendError{Entry: e, Field: "tag"}
			}
			buff, err := e.Marshal()
			if err != nil {
				return err
			}
			if err := serials.Put(e.SerialNumber, buff); err != nil {
				b.log.Debugw("storing serial number", "sn", e.String(), "err", err)
				return err
			}
			if err := tags.Put(e.Tag, e.SerialNumber); err != nil {
				return err
			}
		}
		return nil
	})
}

// IsSpent implements the spent.Store interface.
func (b *BoltStore) IsSpent(ctx context.Context, serialNumber []byte) (bool, error) {
	return b.has(ctx, serialBucket, serialNumber)
}

// HasTag implements the spent.Store interface.
func (b *BoltStore) HasTag(ctx context.Context, tag []byte) (bool, error) {
	return b.has(ctx, tagBucket, tag)
}

func (b *BoltStore) has(ctx context.Context, bucket, key []byte) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get(key) != nil
		return nil
	})
	return found, err
}

// Get returns the entry saved under this serial number
func (b *BoltStore) Get(ctx context.Context, serialNumber []byte) (*spent.Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entry := &spent.Entry{}
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(serialBucket).Get(serialNumber)
		if v == nil {
			return spent.ErrNotFound
		}
		return entry.Unmarshal(v)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Len returns the number of spent serial numbers.
func (b *BoltStore) Len(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	var length = 0
	err := b.db.View(func(tx *bolt.Tx) error {
		length = tx.Bucket(serialBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		b.log.Warnw("", "boltdb", "error getting length", "err", err)
	}
	return length, err
}

func (b *BoltStore) Close(context.Context) error {
	err := b.db.Close()
	if err != nil {
		b.log.Errorw("", "boltdb", "close", "err", err)
	}
	return err
}
