package resources

import (
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// AttachHookInput names the resource a hook binds to and the
// (key, value) pair recorded as a Hook label — spec.md's labels field
// already lists Hook as a LabelVariant, so a hook binding is just
// another label mutation rather than a separate entity.
type AttachHookInput struct {
	ID    arunaid.ID
	Key   string
	Value string
}

// AttachHookRequest is the txn.WriteRequest wrapping pkg/resource's
// AttachHook. Requires Write on the target, the same level
// UpdateResource requires for a label change.
type AttachHookRequest struct {
	Input AttachHookInput
	Idx   store.Idx
}

func NewAttachHookRequest(rtxn *store.ReadTxn, input AttachHookInput) (*AttachHookRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &AttachHookRequest{Input: input, Idx: idx}, nil
}

func (r *AttachHookRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

func (r *AttachHookRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagAttachHook, Payload: payload}, nil
}

func (r *AttachHookRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	fields := resource.FieldMap{
		resource.FieldLabels:       resource.AttachHook(current.Labels, r.Input.Key, r.Input.Value),
		resource.FieldLastModified: eventID.Time(),
	}
	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}
	return r.Idx, nil, nil
}

// SetHookStatusInput names the resource a hook is bound to and the new
// status value for that hook's key.
type SetHookStatusInput struct {
	ID    arunaid.ID
	Key   string
	Value string
}

// SetHookStatusRequest is the txn.WriteRequest wrapping pkg/resource's
// SetHookStatus, used by a hook runner to report its own outcome back
// onto the resource it was triggered against.
type SetHookStatusRequest struct {
	Input SetHookStatusInput
	Idx   store.Idx
}

func NewSetHookStatusRequest(rtxn *store.ReadTxn, input SetHookStatusInput) (*SetHookStatusRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &SetHookStatusRequest{Input: input, Idx: idx}, nil
}

func (r *SetHookStatusRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

func (r *SetHookStatusRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagSetHookStatus, Payload: payload}, nil
}

func (r *SetHookStatusRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	fields := resource.FieldMap{
		resource.FieldLabels:       resource.SetHookStatus(current.Labels, r.Input.Key, r.Input.Value),
		resource.FieldLastModified: eventID.Time(),
	}
	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}
	return r.Idx, nil, nil
}

// Neither AttachHookRequest nor SetHookStatusRequest implements
// txn.GraphMutation: both only change a node's Labels field, never a
// structural edge.
