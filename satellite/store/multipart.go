package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/location"
)

// multipartKey orders a part record first by upload, then by part
// number, so ListMultipartParts's bucket scan returns parts already in
// ascending-part-number order per upload.
func multipartKey(uploadID string, partNumber int) []byte {
	key := make([]byte, 0, len(uploadID)+1+4)
	key = append(key, []byte(uploadID)...)
	key = append(key, 0)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(partNumber))
	return append(key, n[:]...)
}

// PutMultipartPart records one part of an in-progress multipart upload,
// per spec.md §4.6's UploadPart step: "record (upload_id, object_id, n,
// raw_size, disk_size)". Writing the same (UploadID, PartNumber) again
// overwrites it, the same re-upload-a-part tolerance S3 itself has.
func (w *WriteTxn) PutMultipartPart(h location.MultipartHandle) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h); err != nil {
		return apierr.SerializeError.Wrap(err)
	}
	parts := w.tx.Bucket(bucketMultipartParts)
	if err := parts.Put(multipartKey(h.UploadID, h.PartNumber), buf.Bytes()); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// ListMultipartParts returns every part recorded for uploadID, ordered
// by part number — the "fetch the recorded parts" CompleteMultipartUpload
// needs to verify part numbers and sum raw sizes.
func (r *ReadTxn) ListMultipartParts(uploadID string) ([]location.MultipartHandle, error) {
	parts := r.tx.Bucket(bucketMultipartParts)
	c := parts.Cursor()
	prefix := append([]byte(uploadID), 0)

	var out []location.MultipartHandle
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var h location.MultipartHandle
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&h); err != nil {
			return nil, apierr.DeserializeError.Wrap(err)
		}
		out = append(out, h)
	}
	return out, nil
}

// DeleteMultipartParts removes every part recorded for uploadID, called
// once an upload is completed or aborted so the parts bucket doesn't
// accumulate state for closed uploads.
func (w *WriteTxn) DeleteMultipartParts(uploadID string) error {
	parts := w.tx.Bucket(bucketMultipartParts)
	c := parts.Cursor()
	prefix := append([]byte(uploadID), 0)

	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := parts.Delete(k); err != nil {
			return apierr.ServerError.Wrap(err)
		}
	}
	return nil
}
