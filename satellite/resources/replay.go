package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// Replay reapplies a single durable transaction record against wtxn,
// reconstructing the request from its tagged payload instead of going
// through Context()/IntoTx — those are pre-commit concerns the record
// already passed once, before it was ever written to the log.
// satellite/store.ReplayLog returns records in log order; driving each
// one through Replay from a genesis store must reproduce the same node
// IDs, timestamps, and relations Submit itself produced, since
// eventID (the record's own TransactionID, carried in the record
// rather than re-minted) is now the only per-call input Apply folds
// in, and arunaid.Derive makes every node ID this package mints a
// pure function of it.
//
// Covers the request tags whose Apply depends on nothing but fields
// the gob encoding in IntoTx actually carries (every exported field of
// the request struct, no more): CreateProject and CreateResource.
// CreateResourceBatch and UpdateResource additionally consult
// unexported fields resolved only at construction time
// (explicitParentIdx/permSources/itemGroups, parentIdx/isProject) that
// gob silently drops, so replaying those tags is not yet safe and
// Replay reports an error rather than silently reproducing a
// different result.
func Replay(wtxn *store.WriteTxn, rec resource.TransactionRecord) (store.Idx, []store.Idx, error) {
	requester := &auth.Requester{UserID: rec.Requester}

	switch rec.RequestTag {
	case TagCreateProject:
		var req CreateProjectRequest
		if err := decodePayload(rec.Payload, &req); err != nil {
			return 0, nil, err
		}
		return req.Apply(wtxn, rec.TransactionID, requester)
	case TagCreateResource:
		var req CreateResourceRequest
		if err := decodePayload(rec.Payload, &req); err != nil {
			return 0, nil, err
		}
		return req.Apply(wtxn, rec.TransactionID, requester)
	default:
		return 0, nil, apierr.NewInvalidParameterf("request_tag", "replay not implemented for tag %d", rec.RequestTag)
	}
}
