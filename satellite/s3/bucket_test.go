package s3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	s3 "aruna.io/aruna/satellite/s3"
	"aruna.io/aruna/satellite/store"
)

func TestCreateBucketRejectsDuplicateName(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)

	_, err := f.svc.CreateBucket(context.Background(), requester, s3.CreateBucketInput{Name: f.bucket})
	require.Error(t, err)
	assert.True(t, apierr.ConflictParameter.Has(err))
}

func TestHeadBucketRejectsAnonymousOnPrivateProject(t *testing.T) {
	f := buildS3Fixture(t)
	anon := &auth.Requester{Anonymous: true, Permissions: map[store.Idx]resource.PermissionLevel{}}

	err := f.svc.HeadBucket(anon, f.bucket)
	require.Error(t, err)
	assert.True(t, apierr.Unauthorized.Has(err))
}

func TestPutAndGetBucketCORSRoundTrips(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	rules := []s3.CORSRule{{
		AllowedOrigins: []string{"https://example.test"},
		AllowedMethods: []string{"GET", "PUT"},
		MaxAgeSeconds:  600,
	}}
	err := f.svc.PutBucketCORS(context.Background(), requester, f.bucket, rules)
	require.NoError(t, err)

	got, err := f.svc.GetBucketCORS(requester, f.bucket)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rules[0].AllowedOrigins, got[0].AllowedOrigins)
	assert.Equal(t, 600, got[0].MaxAgeSeconds)
}

func TestDeleteBucketCORSRemovesLabel(t *testing.T) {
	f := buildS3Fixture(t)
	requester := f.requester(t)
	f.grantOn(t, requester, f.bucketID(t), resource.PermissionWrite)

	rules := []s3.CORSRule{{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}}}
	require.NoError(t, f.svc.PutBucketCORS(context.Background(), requester, f.bucket, rules))
	require.NoError(t, f.svc.DeleteBucketCORS(context.Background(), requester, f.bucket))

	got, err := f.svc.GetBucketCORS(requester, f.bucket)
	require.NoError(t, err)
	assert.Empty(t, got)
}
