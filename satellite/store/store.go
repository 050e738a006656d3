// Package store implements the durable store from spec.md §4.1: nodes,
// relations, transaction records, and the secondary universes reads are
// filtered through, all persisted in a single bbolt database.
//
// bbolt's single-writer/multiple-reader transaction model is used
// directly rather than re-implemented: db.Update gives the exclusive
// write handle spec.md §4.1 calls write_txn(), db.View gives the
// lock-free snapshot read handle it calls read_txn(), and a failed
// Update's rollback already leaves the store byte-identical to
// pre-commit (grounded on cuemby-warren's pkg/storage.BoltStore, the
// only bbolt usage in the retrieval pack).
package store

import (
	"go.etcd.io/bbolt"

	"aruna.io/aruna/pkg/apierr"
)

// Idx is the compact node index the store allocates in place of the
// full 128-bit ULID for internal references (relations, universes).
type Idx uint64

var (
	bucketNodes           = []byte("nodes")
	bucketULIDIndex       = []byte("ulid_index")
	bucketRelations       = []byte("relations")
	bucketRelBySrc        = []byte("relations_by_origin")
	bucketUniverses       = []byte("universes")
	bucketTxLog           = []byte("txlog")
	bucketAnnouncementSeq = []byte("announcements_by_time")
	bucketMultipartParts  = []byte("multipart_parts")
)

var allBuckets = [][]byte{
	bucketNodes, bucketULIDIndex, bucketRelations, bucketRelBySrc, bucketUniverses, bucketTxLog, bucketAnnouncementSeq,
	bucketMultipartParts,
}

// DB is the durable store. It is safe for concurrent use: bbolt
// serializes writers and lets readers run against a consistent
// snapshot without blocking on them.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures
// every bucket the store needs exists.
func Open(path string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	d := &DB{bolt: bdb}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, apierr.ServerError.Wrap(err)
	}
	return d, nil
}

// Close closes the underlying database file.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// ReadTxn is a snapshot read handle, spec.md §4.1's read_txn().
type ReadTxn struct {
	tx *bbolt.Tx
}

// WriteTxn is the single exclusive writer handle, spec.md §4.1's
// write_txn(). It provides both a read view of pre-commit state
// (embedded ReadTxn) and the mutators.
type WriteTxn struct {
	ReadTxn
	tx *bbolt.Tx
}

// View runs fn against a read-only snapshot.
func (d *DB) View(fn func(rtxn *ReadTxn) error) error {
	return d.bolt.View(func(tx *bbolt.Tx) error {
		return fn(&ReadTxn{tx: tx})
	})
}

// Update runs fn inside the single exclusive write transaction. If fn
// returns an error, every mutation made inside it is discarded and the
// store is left byte-identical to before Update was called, matching
// spec.md §4.1's "no partial apply" failure semantics.
func (d *DB) Update(fn func(wtxn *WriteTxn) error) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return fn(&WriteTxn{ReadTxn: ReadTxn{tx: tx}, tx: tx})
	})
}
