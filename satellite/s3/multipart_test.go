package s3_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	s3 "aruna.io/aruna/satellite/s3"
)

func TestMultipartUploadCompletesAndLandsObjectAvailable(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "big.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	part1 := bytes.Repeat([]byte("a"), 5*1024*1024)
	part2 := bytes.Repeat([]byte("b"), 5*1024*1024)

	etag1, err := f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "big.bin", UploadID: created.UploadID, PartNumber: 1, Body: bytes.NewReader(part1),
	})
	require.NoError(t, err)

	etag2, err := f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "big.bin", UploadID: created.UploadID, PartNumber: 2, Body: bytes.NewReader(part2),
	})
	require.NoError(t, err)

	result, err := f.svc.CompleteMultipartUpload(context.Background(), requester, s3.CompleteMultipartUploadInput{
		Bucket: f.bucket, Key: "big.bin", UploadID: created.UploadID,
		Parts: []s3.CompletedPart{{PartNumber: 1, ETag: etag1}, {PartNumber: 2, ETag: etag2}},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ObjectID, result.ID)

	f.reload(t)
	requester = f.requester(t)
	f.grantOn(t, requester, result.ID, resource.PermissionRead)
	info, err := f.svc.HeadObject(requester, f.bucket, "big.bin")
	require.NoError(t, err)
	assert.Equal(t, "Available", info.Status.String())
	assert.Equal(t, int64(len(part1)+len(part2)), info.ContentLen)
}

// TestUploadPartRejectsUndersizedPart is the literal scenario spec.md
// §8 names: UploadPart(n=1, body_len=1024) must fail EntityTooSmall
// immediately, with no dependency on whether the part is last.
func TestUploadPartRejectsUndersizedPart(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "small-parts.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	tooSmall := bytes.Repeat([]byte("x"), 1024)
	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "small-parts.bin", UploadID: created.UploadID, PartNumber: 1, Body: bytes.NewReader(tooSmall),
	})
	require.Error(t, err)
	assert.True(t, apierr.InvalidParameter.Has(err))
	assert.Equal(t, "EntityTooSmall", s3.ErrorCode(err))
}

func TestCompleteMultipartUploadRejectsPartialPartList(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "partial.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	part := bytes.Repeat([]byte("b"), 5*1024*1024)
	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "partial.bin", UploadID: created.UploadID, PartNumber: 1, Body: bytes.NewReader(part),
	})
	require.NoError(t, err)
	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "partial.bin", UploadID: created.UploadID, PartNumber: 2, Body: bytes.NewReader(part),
	})
	require.NoError(t, err)

	// omitting a recorded part trips the claimed-vs-recorded count
	// check, which reports as InvalidPart.
	_, err = f.svc.CompleteMultipartUpload(context.Background(), requester, s3.CompleteMultipartUploadInput{
		Bucket: f.bucket, Key: "partial.bin", UploadID: created.UploadID,
		Parts: []s3.CompletedPart{{PartNumber: 1, ETag: "whatever-etag"}},
	})
	require.Error(t, err)
	assert.True(t, apierr.InvalidParameter.Has(err))
	assert.Equal(t, "InvalidPart", s3.ErrorCode(err))
}

func TestCompleteMultipartUploadRejectsETagMismatch(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "bad-etag.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	part1 := bytes.Repeat([]byte("c"), 5*1024*1024)
	part2 := bytes.Repeat([]byte("d"), 5*1024*1024)
	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "bad-etag.bin", UploadID: created.UploadID, PartNumber: 1, Body: bytes.NewReader(part1),
	})
	require.NoError(t, err)
	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "bad-etag.bin", UploadID: created.UploadID, PartNumber: 2, Body: bytes.NewReader(part2),
	})
	require.NoError(t, err)

	_, err = f.svc.CompleteMultipartUpload(context.Background(), requester, s3.CompleteMultipartUploadInput{
		Bucket: f.bucket, Key: "bad-etag.bin", UploadID: created.UploadID,
		Parts: []s3.CompletedPart{{PartNumber: 1, ETag: "not-the-real-etag"}, {PartNumber: 2, ETag: "also-wrong"}},
	})
	require.Error(t, err)
	assert.True(t, apierr.InvalidParameter.Has(err))
	assert.Equal(t, "InvalidPart", s3.ErrorCode(err))
}

func TestUploadPartRejectsEmptyBody(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "empty-part.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	_, err = f.svc.UploadPart(context.Background(), requester, s3.UploadPartInput{
		Bucket: f.bucket, Key: "empty-part.bin", UploadID: created.UploadID, PartNumber: 1, Body: bytes.NewReader(nil),
	})
	require.Error(t, err)
	assert.True(t, apierr.InvalidParameter.Has(err))
}

func TestAbortMultipartUploadRollsObjectToError(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	created, err := f.svc.CreateMultipartUpload(context.Background(), requester, s3.CreateMultipartUploadInput{
		Bucket: f.bucket, Key: "aborted.bin",
	})
	require.NoError(t, err)
	f.reload(t)

	require.NoError(t, f.svc.AbortMultipartUpload(context.Background(), requester, f.bucket, "aborted.bin", created.UploadID))

	f.reload(t)
	requester = f.requester(t)
	f.grantOn(t, requester, created.ObjectID, resource.PermissionRead)
	info, err := f.svc.HeadObject(requester, f.bucket, "aborted.bin")
	require.NoError(t, err)
	assert.Equal(t, "Error", info.Status.String())
}
