package resource_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aruna.io/aruna/pkg/resource"
)

func TestIsNarrowing(t *testing.T) {
	tests := []struct {
		from, to resource.Visibility
		narrows  bool
	}{
		{resource.VisibilityPublic, resource.VisibilityPrivate, true},
		{resource.VisibilityPublic, resource.VisibilityPublicMetadata, true},
		{resource.VisibilityPrivate, resource.VisibilityPublic, false},
		{resource.VisibilityPublic, resource.VisibilityPublic, false},
		{resource.VisibilityPublicMetadata, resource.VisibilityPrivate, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.narrows, resource.IsNarrowing(tt.from, tt.to))
	}
}

func TestPermissionLevelSatisfies(t *testing.T) {
	assert.True(t, resource.PermissionAdmin.Satisfies(resource.PermissionWrite))
	assert.True(t, resource.PermissionWrite.Satisfies(resource.PermissionWrite))
	assert.False(t, resource.PermissionRead.Satisfies(resource.PermissionWrite))
	assert.True(t, resource.PermissionNone.Satisfies(resource.PermissionNone))
}

func TestVariantIsFolderLike(t *testing.T) {
	assert.True(t, resource.VariantProject.IsFolderLike())
	assert.True(t, resource.VariantCollection.IsFolderLike())
	assert.True(t, resource.VariantDataset.IsFolderLike())
	assert.False(t, resource.VariantObject.IsFolderLike())
}

func TestMergeLabelsPreservesOrderAndDedupes(t *testing.T) {
	current := []resource.Label{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
	}
	add := []resource.Label{
		{Key: "b", Value: "2"}, // duplicate, should not reappear
		{Key: "c", Value: "3"},
	}
	remove := []resource.Label{
		{Key: "a", Value: "1"},
	}

	got := resource.MergeLabels(current, add, remove)
	assert.Equal(t, []resource.Label{
		{Key: "b", Value: "2"},
		{Key: "c", Value: "3"},
	}, got)
}

func TestMergeIdentifiersDedupes(t *testing.T) {
	got := resource.MergeIdentifiers(
		[]resource.Identifier{"doi:1", "doi:2"},
		[]resource.Identifier{"doi:2", "doi:3"},
		[]resource.Identifier{"doi:1"},
	)
	assert.Equal(t, []resource.Identifier{"doi:2", "doi:3"}, got)
}

func TestHashesIsEmpty(t *testing.T) {
	assert.True(t, resource.Hashes{}.IsEmpty())
	assert.False(t, resource.Hashes{SHA256: "abc"}.IsEmpty())
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, resource.Token{}.Expired(now), "token without expiry never expires")
	assert.True(t, resource.Token{ExpiresAt: &past}.Expired(now))
	assert.False(t, resource.Token{ExpiresAt: &future}.Expired(now))
}
