package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// FinalizeObjectInput names the object an ingress pipeline run has
// finished writing bytes for. Err, when non-empty, reports a failed run
// instead of a successful one: spec.md §7's "stream pipeline failures
// during PUT roll the object back to status Error and annotate it with
// a truncated error label" — so the same request that marks success
// also records failure, rather than adding a third write path.
type FinalizeObjectInput struct {
	ID  arunaid.ID
	Err string
}

// errorLabelKey is the well-known label key a failed pipeline run's
// truncated error message is recorded under, the same persisted-label
// treatment spec.md §6 already uses for CORS config.
const errorLabelKey = "app.aruna-storage.org/error"

// maxErrorLabelLen bounds the truncated error label spec.md §7 calls for.
const maxErrorLabelLen = 256

// FinalizeObjectRequest is the txn.WriteRequest satellite/s3 submits
// once a PUT (single-shot or completed multipart) has durably landed
// in the backend and RegisterData has recorded its location — the
// status half of spec.md §4.6's "marks status Available", split out
// from RegisterData because RegisterData's own contract (spec.md
// §4.5) is scoped to locations and hashes, not status.
type FinalizeObjectRequest struct {
	Input FinalizeObjectInput
	Idx   store.Idx
}

// NewFinalizeObjectRequest resolves the target id up front, the same
// way every other request in this package does.
func NewFinalizeObjectRequest(rtxn *store.ReadTxn, input FinalizeObjectInput) (*FinalizeObjectRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &FinalizeObjectRequest{Input: input, Idx: idx}, nil
}

// Context requires Write on the object being finalized.
func (r *FinalizeObjectRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *FinalizeObjectRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagFinalizeObject, Payload: payload}, nil
}

// Apply rejects non-Object and already-terminal targets and moves
// status to Available, or to Error with a truncated error label when
// Input.Err is set.
func (r *FinalizeObjectRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	if current.Variant != resource.VariantObject {
		return 0, nil, apierr.NewInvalidParameterf("id", "resource %s (variant %s) is not an Object", current.ID, current.Variant)
	}
	if current.Status == resource.StatusDeleted {
		return 0, nil, apierr.NotFound.New("resource %s is deleted", current.ID)
	}

	fields := resource.FieldMap{
		resource.FieldLastModified: eventID.Time(),
	}
	if r.Input.Err != "" {
		msg := r.Input.Err
		if len(msg) > maxErrorLabelLen {
			msg = msg[:maxErrorLabelLen]
		}
		var stale []resource.Label
		for _, l := range current.Labels {
			if l.Variant == resource.LabelStatic && l.Key == errorLabelKey {
				stale = append(stale, l)
			}
		}
		fields[resource.FieldStatus] = resource.StatusError
		fields[resource.FieldLabels] = resource.MergeLabels(current.Labels,
			[]resource.Label{{Variant: resource.LabelStatic, Key: errorLabelKey, Value: msg}}, stale)
	} else {
		fields[resource.FieldStatus] = resource.StatusAvailable
	}

	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}
	return r.Idx, nil, nil
}

// FinalizeObjectRequest does not implement txn.GraphMutation: it only
// ever changes a field value on a node already present in the graph.
