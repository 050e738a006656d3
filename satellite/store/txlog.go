package store

import (
	"bytes"
	"encoding/gob"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
)

// AffectedSet is the set of node indices a committed write touched,
// published per spec.md §4.1/§4.4 to invalidate read caches, re-publish
// search documents, and notify endpoints.
type AffectedSet struct {
	EventID    arunaid.ID
	Primary    Idx
	Additional []Idx
}

// Commit appends the transaction record to the append-only log and
// returns the affected-node set for the caller (satellite/txn) to
// publish once this bbolt transaction durably commits. Writing the log
// entry inside the same write transaction as the mutations it describes
// is what makes replay (spec.md §8's replay-equivalence property)
// exact: a crash between the mutation and the log entry is impossible,
// since bbolt either commits both or neither.
func (w *WriteTxn) Commit(eventID arunaid.ID, record resource.TransactionRecord, primary Idx, additional []Idx) (AffectedSet, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record); err != nil {
		return AffectedSet{}, apierr.SerializeError.Wrap(err)
	}

	txlog := w.tx.Bucket(bucketTxLog)
	key := eventID[:]
	if err := txlog.Put(key, buf.Bytes()); err != nil {
		return AffectedSet{}, apierr.ServerError.Wrap(err)
	}

	return AffectedSet{EventID: eventID, Primary: primary, Additional: additional}, nil
}

// ReplayLog returns every transaction record in log (append) order, for
// rebuilding derived state from the durable log after a restart. bbolt
// iterates bucket keys in byte-sorted order, and a ULID's byte encoding
// sorts the same way its creation time does, so keying the log on
// eventID is enough to get append order back without a separate
// sequence counter.
func (r *ReadTxn) ReplayLog() ([]resource.TransactionRecord, error) {
	txlog := r.tx.Bucket(bucketTxLog)
	var out []resource.TransactionRecord
	err := txlog.ForEach(func(_, v []byte) error {
		var rec resource.TransactionRecord
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, apierr.DeserializeError.Wrap(err)
	}
	return out, nil
}

// GetLogRecord fetches a single transaction record by its id. The
// transaction controller does not call it: apply-time re-authorization
// re-resolves the requester from the stored User row instead
// (satellite/auth.ResolveRequesterByUserToken).
func (r *ReadTxn) GetLogRecord(eventID arunaid.ID) (resource.TransactionRecord, error) {
	txlog := r.tx.Bucket(bucketTxLog)
	data := txlog.Get(eventID[:])
	if data == nil {
		return resource.TransactionRecord{}, apierr.NotFound.New("transaction %s not found", eventID)
	}
	var rec resource.TransactionRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return resource.TransactionRecord{}, apierr.DeserializeError.Wrap(err)
	}
	return rec, nil
}
