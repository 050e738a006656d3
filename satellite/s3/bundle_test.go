package s3_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	s3 "aruna.io/aruna/satellite/s3"
)

func TestGetBundleConcatenatesFramedEntriesInOrder(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	body1 := []byte("first entry body")
	r1, err := f.svc.PutObject(context.Background(), requester, s3.PutObjectInput{
		Bucket: f.bucket, Key: "one.txt", Body: bytes.NewReader(body1),
	})
	require.NoError(t, err)

	body2 := []byte("second entry, a little longer than the first")
	r2, err := f.svc.PutObject(context.Background(), requester, s3.PutObjectInput{
		Bucket: f.bucket, Key: "two.txt", Body: bytes.NewReader(body2),
	})
	require.NoError(t, err)

	f.reload(t)
	requester = f.requester(t)
	f.grantOn(t, requester, r1.ID, resource.PermissionRead)
	f.grantOn(t, requester, r2.ID, resource.PermissionRead)

	result, err := f.svc.GetBundle(context.Background(), requester, []arunaid.ID{r1.ID, r2.ID})
	require.NoError(t, err)
	stream := drainChunks(result.Chunks)

	wantLen := 2*(16+8) + len(body1) + len(body2)
	require.Equal(t, wantLen, len(stream))

	gotID1 := stream[:16]
	assert.Equal(t, r1.ID[:], gotID1)
	gotLen1 := beUint64(stream[16:24])
	assert.Equal(t, uint64(len(body1)), gotLen1)
	gotBody1 := stream[24 : 24+len(body1)]
	assert.Equal(t, body1, gotBody1)

	rest := stream[24+len(body1):]
	gotID2 := rest[:16]
	assert.Equal(t, r2.ID[:], gotID2)
	gotLen2 := beUint64(rest[16:24])
	assert.Equal(t, uint64(len(body2)), gotLen2)
	gotBody2 := rest[24 : 24+len(body2)]
	assert.Equal(t, body2, gotBody2)
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func TestGetBundleRejectsUnreadableEntryBeforeSendingAnyBytes(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	readable, err := f.svc.PutObject(context.Background(), requester, s3.PutObjectInput{
		Bucket: f.bucket, Key: "visible.txt", Body: bytes.NewReader([]byte("visible")),
	})
	require.NoError(t, err)

	hidden, err := f.svc.PutObject(context.Background(), requester, s3.PutObjectInput{
		Bucket: f.bucket, Key: "hidden.txt", Body: bytes.NewReader([]byte("hidden")),
	})
	require.NoError(t, err)

	f.reload(t)
	requester = f.requester(t)
	f.grantOn(t, requester, readable.ID, resource.PermissionRead)
	// hidden.ID is deliberately left without a grant.

	_, err = f.svc.GetBundle(context.Background(), requester, []arunaid.ID{readable.ID, hidden.ID})
	require.Error(t, err)
}

func TestGetBundleRejectsEmptyIDList(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)

	_, err := f.svc.GetBundle(context.Background(), requester, nil)
	require.Error(t, err)
}
