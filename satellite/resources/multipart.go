package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// BeginMultipartInput names the object and component a multipart
// upload is starting against, plus the backend-allocated upload_id and
// the encoding the finished bytes will carry — spec.md §4.6's Create
// step: "allocate upload_id via backend; persist initial DataLocation
// with upload_id=Some(...); object status stays Initializing".
type BeginMultipartInput struct {
	ID          arunaid.ID
	ComponentID arunaid.ID
	UploadID    string
	Encoding    location.Encoding
}

// BeginMultipartRequest is the txn.WriteRequest that stamps an
// in-progress upload_id onto the object's Pending location for
// ComponentID. It is a separate request from RegisterData because it
// runs before any bytes exist — CreateResource already left a Pending
// location in place (copied from the parent), and this only attaches
// the upload handle and the encoding the pipeline chose to it.
type BeginMultipartRequest struct {
	Input BeginMultipartInput
	Idx   store.Idx
}

// NewBeginMultipartRequest resolves the target object's id up front.
func NewBeginMultipartRequest(rtxn *store.ReadTxn, input BeginMultipartInput) (*BeginMultipartRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &BeginMultipartRequest{Input: input, Idx: idx}, nil
}

// Context requires Write on the object the upload targets.
func (r *BeginMultipartRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *BeginMultipartRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagBeginMultipart, Payload: payload}, nil
}

// Apply finds the Pending location for ComponentID — CreateResource
// always leaves one in place for an Object's target endpoint — and
// stamps UploadID and the chosen encoding onto it. If no matching
// location exists yet (the object's realm has no such component), one
// is appended Pending, the same fallback RegisterData's UpsertFinished
// uses for the Finished case.
func (r *BeginMultipartRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	if current.Variant != resource.VariantObject {
		return 0, nil, apierr.NewInvalidParameterf("id", "resource %s (variant %s) is not an Object", current.ID, current.Variant)
	}

	locations := append([]resource.DataLocation(nil), current.Locations...)
	found := false
	for i := range locations {
		if locations[i].EndpointID != r.Input.ComponentID {
			continue
		}
		found = true
		uploadID := r.Input.UploadID
		locations[i].UploadID = &uploadID
		locations[i].IsCompressed = r.Input.Encoding.Compressed
		locations[i].IsEncrypted = r.Input.Encoding.Encrypted
		locations[i].IsPithos = r.Input.Encoding.Pithos
		break
	}
	if !found {
		uploadID := r.Input.UploadID
		locations = append(locations, resource.DataLocation{
			EndpointID:   r.Input.ComponentID,
			Status:       location.StatusPending,
			UploadID:     &uploadID,
			IsCompressed: r.Input.Encoding.Compressed,
			IsEncrypted:  r.Input.Encoding.Encrypted,
			IsPithos:     r.Input.Encoding.Pithos,
		})
	}

	fields := resource.FieldMap{
		resource.FieldLocation:     locations,
		resource.FieldLastModified: eventID.Time(),
	}
	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}
	return r.Idx, nil, nil
}
