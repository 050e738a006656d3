package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/satellite/store"
)

func TestPutAndListMultipartPartsOrdersByPartNumber(t *testing.T) {
	db := openTestDB(t)
	uploadID := "upload-1"
	objectID := arunaid.New()

	err := db.Update(func(wtxn *store.WriteTxn) error {
		for _, n := range []int{2, 1, 3} {
			h := location.MultipartHandle{
				UploadID: uploadID, ObjectID: objectID, PartNumber: n,
				RawSize: int64(n) * 1024, ETag: "etag",
			}
			if err := wtxn.PutMultipartPart(h); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(rtxn *store.ReadTxn) error {
		parts, err := rtxn.ListMultipartParts(uploadID)
		require.NoError(t, err)
		require.Len(t, parts, 3)
		assert.Equal(t, 1, parts[0].PartNumber)
		assert.Equal(t, 2, parts[1].PartNumber)
		assert.Equal(t, 3, parts[2].PartNumber)
		return nil
	})
	require.NoError(t, err)
}

func TestPutMultipartPartOverwritesSamePartNumber(t *testing.T) {
	db := openTestDB(t)
	uploadID := "upload-2"

	err := db.Update(func(wtxn *store.WriteTxn) error {
		if err := wtxn.PutMultipartPart(location.MultipartHandle{UploadID: uploadID, PartNumber: 1, ETag: "first"}); err != nil {
			return err
		}
		return wtxn.PutMultipartPart(location.MultipartHandle{UploadID: uploadID, PartNumber: 1, ETag: "second"})
	})
	require.NoError(t, err)

	err = db.View(func(rtxn *store.ReadTxn) error {
		parts, err := rtxn.ListMultipartParts(uploadID)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, "second", parts[0].ETag)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteMultipartPartsRemovesOnlyThatUpload(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(wtxn *store.WriteTxn) error {
		if err := wtxn.PutMultipartPart(location.MultipartHandle{UploadID: "a", PartNumber: 1}); err != nil {
			return err
		}
		return wtxn.PutMultipartPart(location.MultipartHandle{UploadID: "b", PartNumber: 1})
	})
	require.NoError(t, err)

	err = db.Update(func(wtxn *store.WriteTxn) error {
		return wtxn.DeleteMultipartParts("a")
	})
	require.NoError(t, err)

	err = db.View(func(rtxn *store.ReadTxn) error {
		aParts, err := rtxn.ListMultipartParts("a")
		require.NoError(t, err)
		assert.Empty(t, aParts)

		bParts, err := rtxn.ListMultipartParts("b")
		require.NoError(t, err)
		assert.Len(t, bParts, 1)
		return nil
	})
	require.NoError(t, err)
}
