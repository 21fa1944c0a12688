package vector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

var (
	bucketEntries    = []byte("entries")
	bucketTombstones = []byte("tombstones")
)

// BoltIndex is the on-disk variant: every accepted mutation is committed to a bbolt file
// before it is applied to the in-memory graph, and the graph is rebuilt from the file on
// open. bbolt allows one writer at a time, so mutations serialise on the commit.
type BoltIndex struct {
	*HNSWIndex
	db *bbolt.DB
}

type storedEntry struct {
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
	Version  time.Time `json:"version"`
}

type storedTombstone struct {
	Version   time.Time `json:"version"`
	RemovedAt time.Time `json:"removed_at"`
}

func OpenBoltIndex(path string, params HNSWParams, opts ...Option) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEntries, bucketTombstones} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &BoltIndex{HNSWIndex: NewHNSWIndex(params, opts...), db: db}
	idx.backend = "bolt"
	if err := idx.load(); err != nil {
		db.Close()
		return nil, err
	}
	idx.store = idx
	log.Info().Msgf("bolt index %s loaded with %d entries", path, idx.Len())
	return idx, nil
}

func (b *BoltIndex) load() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var se storedEntry
			if err := json.Unmarshal(v, &se); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			return b.restore(Entry{ItemID: string(k), Vector: se.Vector, Metadata: se.Metadata, Version: se.Version}, false, time.Time{})
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTombstones).ForEach(func(k, v []byte) error {
			var st storedTombstone
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("tombstone %s: %w", k, err)
			}
			return b.restore(Entry{ItemID: string(k), Version: st.Version}, true, st.RemovedAt)
		})
	})
}

func (b *BoltIndex) saveEntry(e Entry) error {
	data, err := json.Marshal(storedEntry{Vector: e.Vector, Metadata: e.Metadata, Version: e.Version})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTombstones).Delete([]byte(e.ItemID)); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).Put([]byte(e.ItemID), data)
	})
}

func (b *BoltIndex) saveTombstone(itemID string, version, removedAt time.Time) error {
	data, err := json.Marshal(storedTombstone{Version: version, RemovedAt: removedAt})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Delete([]byte(itemID)); err != nil {
			return err
		}
		return tx.Bucket(bucketTombstones).Put([]byte(itemID), data)
	})
}

func (b *BoltIndex) dropTombstones(itemIDs []string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTombstones)
		for _, id := range itemIDs {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltIndex) Close() error {
	return b.db.Close()
}
