// Package resources implements the request layer and resource
// transactions from spec.md §4.4/§4.5: typed request objects that each
// expose the authorization context they need and either a read path or
// a transactional write path, submitted through satellite/txn.Controller.
package resources

import (
	"bytes"
	"encoding/gob"

	"aruna.io/aruna/pkg/apierr"
)

// Request tags discriminate a TransactionRecord's Payload encoding —
// the "closed tagged variant" spec.md §9 calls for so the log can
// deserialize every historical request shape without open-world
// dispatch.
const (
	TagCreateProject uint32 = iota + 1
	TagCreateResource
	TagCreateResourceBatch
	TagUpdateResource
	TagRegisterData
	TagCreateAnnouncement
	TagUpdateAnnouncement
	TagDeleteAnnouncement
	TagAttachHook
	TagSetHookStatus
	TagFinalizeObject
	TagBeginMultipart
)

// encodePayload/decodePayload gob-encode a request's input struct for
// TransactionRecord.Payload, matching satellite/store's own choice of
// gob over a general-purpose serialization library for the same
// tagged-record shape (see DESIGN.md).
func encodePayload(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, apierr.SerializeError.Wrap(err)
	}
	return buf.Bytes(), nil
}

func decodePayload(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return apierr.DeserializeError.Wrap(err)
	}
	return nil
}
