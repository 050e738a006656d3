// Package arunaid implements the 128-bit, time-sortable identifiers used
// for every resource, transaction, and token index in the core.
package arunaid

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/errs"
)

// Error is the class for malformed identifiers.
var Error = errs.Class("arunaid")

// ID is a 128-bit lexicographically and time sortable identifier.
type ID [16]byte

// Nil is the zero ID.
var Nil ID

// entropy is process-wide; ulid.New is safe for concurrent use as long as
// the reader given to it is. A math/rand source guarded by entropyMu is
// adequate here: IDs only need monotonic-enough entropy within a
// millisecond, not cryptographic unpredictability.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// New generates a new ID from the current time.
func New() ID {
	return NewAtTime(time.Now())
}

// NewAtTime generates a new ID whose timestamp component is the given
// time, letting tests fix an ID's time and sort position. The random
// component still comes from the shared entropy source, so two calls
// with the same time return different IDs; Derive is the deterministic
// constructor.
func NewAtTime(t time.Time) ID {
	entropyMu.Lock()
	u := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyMu.Unlock()
	var id ID
	copy(id[:], u[:])
	return id
}

// Derive produces a deterministic child ID for the index-th resource a
// write request creates while applying the transaction eventID names.
// It keeps eventID's 48-bit timestamp component (so the derived ID's
// own Time() still reflects when the owning transaction committed)
// but replaces the ULID's random component with a SHA-256 digest of
// (eventID, index) in place of process entropy. A request's Apply must
// be a pure function of its durable log record — every other input it
// reads (eventID, the payload, prior store state) already is one, and
// a node ID minted from math/rand would be the one source of
// nondeterminism standing between the log and a byte-for-byte replay.
// index lets a single Apply call that creates more than one node (a
// batch) derive a distinct ID per node from the same eventID.
func Derive(eventID ID, index uint32) ID {
	var id ID
	copy(id[:6], eventID[:6])

	h := sha256.New()
	h.Write(eventID[:])
	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], index)
	h.Write(idxBytes[:])
	sum := h.Sum(nil)
	copy(id[6:], sum[:10])

	return id
}

// FromString parses the canonical 26-character Crockford base32 form.
func FromString(s string) (ID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return Nil, Error.Wrap(err)
	}
	var id ID
	copy(id[:], u[:])
	return id, nil
}

// FromBytes wraps a 16-byte slice as an ID.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return Nil, Error.New("invalid id length %d", len(b))
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// String returns the canonical Crockford base32 encoding.
func (id ID) String() string {
	return ulid.ULID(id).String()
}

// IsZero reports whether id is the nil identifier.
func (id ID) IsZero() bool {
	return id == Nil
}

// Time returns the embedded millisecond timestamp component.
func (id ID) Time() time.Time {
	ms := ulid.ULID(id).Time()
	return ulid.Time(ms)
}

// Compare orders two IDs lexicographically, which is also chronological
// order for IDs minted by this package.
func (id ID) Compare(other ID) int {
	return ulid.ULID(id).Compare(ulid.ULID(other))
}

// Less reports id < other under Compare.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

// MarshalText implements encoding.TextMarshaler for JSON control-plane bodies.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer so an ID can be stored as raw bytes.
func (id ID) Value() (driver.Value, error) {
	return id[:], nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return Error.New("unsupported scan type %T", src)
	}
	parsed, err := FromBytes(b)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

var _ fmt.Stringer = ID{}
