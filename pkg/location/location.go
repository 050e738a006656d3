// Package location describes where an Object's bytes live and how they
// are encoded, matching spec.md §3's DataLocation row and §4.6's
// multipart upload state.
package location

import "aruna.io/aruna/pkg/arunaid"

// Status is a DataLocation's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusFinished
)

func (s Status) String() string {
	if s == StatusFinished {
		return "Finished"
	}
	return "Pending"
}

// EncryptionKey is the per-object symmetric key used by ChaCha20Enc/Dec.
// It is generated once on Object init and never transmitted in full to
// clients; only the proxy and the object's own location carry it.
type EncryptionKey [32]byte

// DataLocation is a (endpoint, status, sizes, encoding) tuple embedded
// in an Object resource. Locations only ever reference endpoints
// reachable from the object's realm via RealmUsesComponent — that
// invariant is enforced by the resource-transaction layer, not here.
type DataLocation struct {
	EndpointID     arunaid.ID
	Status         Status
	RawContentLen  int64
	DiskContentLen int64
	IsCompressed   bool
	IsEncrypted    bool
	IsPithos       bool
	UploadID       *string
	EncryptionKey  *EncryptionKey
}

// Encoding summarizes the transform chain a location was written with,
// used to pick the matching decode chain on GET (pkg/transform.ComposeGet).
type Encoding struct {
	Compressed bool
	Encrypted  bool
	Pithos     bool
}

// Encoding extracts the location's encoding for pipeline composition.
func (d DataLocation) Encoding() Encoding {
	return Encoding{Compressed: d.IsCompressed, Encrypted: d.IsEncrypted, Pithos: d.IsPithos}
}

// Finish marks a Pending location Finished, the mutation RegisterData
// performs when a component reports the bytes durable.
func (d DataLocation) Finish() DataLocation {
	d.Status = StatusFinished
	return d
}

// UpsertFinished implements RegisterData's "upsert a location for
// component_id: if present set Finished, else append {component_id,
// Finished}" rule, and is idempotent in the count of locations per
// spec.md §8 ("RegisterData applied twice ... leaves the location
// count unchanged").
func UpsertFinished(locations []DataLocation, componentID arunaid.ID) []DataLocation {
	for i, loc := range locations {
		if loc.EndpointID == componentID {
			locations[i] = loc.Finish()
			return locations
		}
	}
	return append(locations, DataLocation{EndpointID: componentID, Status: StatusFinished})
}

// MultipartHandle tracks per-part state for an in-progress multipart
// upload, keyed by (UploadID, object, part number).
type MultipartHandle struct {
	UploadID   string
	ObjectID   arunaid.ID
	PartNumber int
	RawSize    int64
	DiskSize   int64
	ETag       string
}
