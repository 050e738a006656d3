package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// RegisterDataInput is the caller-supplied body of a RegisterData
// request (spec.md §4.5): a component reporting that it durably holds
// id's bytes, along with the digests it computed while receiving them.
type RegisterDataInput struct {
	ID          arunaid.ID
	ComponentID arunaid.ID
	Hashes      resource.Hashes
	ContentLen  int64

	// DiskContentLen, Encoding, and EncryptionKey describe the bytes as
	// component_id actually stored them, not as the caller originally
	// sent them — the write pipeline chooses compression/encryption at
	// PUT time, and this is the one place that choice is ever recorded
	// against the object's location, since CreateResource only ever
	// copies a parent's existing (always-default) location flags
	// forward rather than setting new ones.
	DiskContentLen int64
	Encoding       location.Encoding
	EncryptionKey  *location.EncryptionKey
}

// RegisterDataRequest is the txn.WriteRequest for spec.md §4.5's
// RegisterData.
type RegisterDataRequest struct {
	Input RegisterDataInput
	Idx   store.Idx
}

// NewRegisterDataRequest resolves the target object's id up front, the
// same way every other request in this package does.
func NewRegisterDataRequest(rtxn *store.ReadTxn, input RegisterDataInput) (*RegisterDataRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &RegisterDataRequest{Input: input, Idx: idx}, nil
}

// Context requires Write on the object being registered.
func (r *RegisterDataRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *RegisterDataRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagRegisterData, Payload: payload}, nil
}

// Apply rejects non-Object targets, upserts a Finished location for
// component_id via location.UpsertFinished (idempotent in the location
// count per spec.md §8), replaces the recorded hashes and true content
// length, and bumps updated_at — all through a single UpdateNodeField
// call. Recording ContentLen here, rather than in the later finalize
// step, is what makes finalize's status flip to Available describable
// as "carrying hashes and true content length": by the time finalize
// runs, RegisterData has already attached both to the node it promotes.
func (r *RegisterDataRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	if current.Variant != resource.VariantObject {
		return 0, nil, apierr.NewInvalidParameterf("id", "resource %s (variant %s) is not an Object", current.ID, current.Variant)
	}

	locations := location.UpsertFinished(append([]resource.DataLocation(nil), current.Locations...), r.Input.ComponentID)
	for i := range locations {
		if locations[i].EndpointID != r.Input.ComponentID {
			continue
		}
		locations[i].DiskContentLen = r.Input.DiskContentLen
		locations[i].IsCompressed = r.Input.Encoding.Compressed
		locations[i].IsEncrypted = r.Input.Encoding.Encrypted
		locations[i].IsPithos = r.Input.Encoding.Pithos
		locations[i].EncryptionKey = r.Input.EncryptionKey
		break
	}

	fields := resource.FieldMap{
		resource.FieldLocation:     locations,
		resource.FieldHashes:       r.Input.Hashes,
		resource.FieldContentLen:   r.Input.ContentLen,
		resource.FieldLastModified: eventID.Time(),
	}
	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}

	return r.Idx, nil, nil
}
