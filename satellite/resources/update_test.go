package resources_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
)

func TestUpdateResourceChangesProjectTitle(t *testing.T) {
	pf := buildProjectFixture(t)
	requester := pf.requesterWithGroupPermission(t, resource.PermissionWrite)
	grantPermission(t, pf, requester, pf.projectID, resource.PermissionWrite)

	title := "New Title"
	var req *resources.UpdateResourceRequest
	err := pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID:    pf.projectID,
			Title: &title,
		})
		return err
	})
	require.NoError(t, err)

	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.NoError(t, err)

	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		project, err := rtxn.GetResource(pf.projectIdx)
		require.NoError(t, err)
		assert.Equal(t, "New Title", project.Title)
		assert.Equal(t, "proj-1", project.Name) // untouched
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateResourceRejectsVisibilityNarrowing(t *testing.T) {
	pf := buildProjectFixture(t)
	requester := pf.requesterWithGroupPermission(t, resource.PermissionWrite)
	grantPermission(t, pf, requester, pf.projectID, resource.PermissionWrite)

	err := pf.db.Update(func(wtxn *store.WriteTxn) error {
		return wtxn.UpdateNodeField(pf.projectIdx, resource.FieldMap{resource.FieldVisibility: resource.VisibilityPublic})
	})
	require.NoError(t, err)

	narrowed := resource.VisibilityPrivate
	var req *resources.UpdateResourceRequest
	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID:         pf.projectID,
			Visibility: &narrowed,
		})
		return err
	})
	require.NoError(t, err)

	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.Error(t, err)
	assert.True(t, apierr.ConflictParameter.Has(err))
}

func TestUpdateResourceMergesLabelsAsSetDifferenceUnion(t *testing.T) {
	pf := buildProjectFixture(t)
	requester := pf.requesterWithGroupPermission(t, resource.PermissionWrite)
	grantPermission(t, pf, requester, pf.projectID, resource.PermissionWrite)

	err := pf.db.Update(func(wtxn *store.WriteTxn) error {
		return wtxn.UpdateNodeField(pf.projectIdx, resource.FieldMap{
			resource.FieldLabels: []resource.Label{
				{Key: "keep", Value: "1"},
				{Key: "drop", Value: "2"},
			},
		})
	})
	require.NoError(t, err)

	var req *resources.UpdateResourceRequest
	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID: pf.projectID,
			Labels: &resources.LabelChange{
				Add:    []resource.Label{{Key: "added", Value: "3"}},
				Remove: []resource.Label{{Key: "drop", Value: "2"}},
			},
		})
		return err
	})
	require.NoError(t, err)

	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.NoError(t, err)

	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		project, err := rtxn.GetResource(pf.projectIdx)
		require.NoError(t, err)
		require.Len(t, project.Labels, 2)
		assert.Equal(t, "keep", project.Labels[0].Key)
		assert.Equal(t, "added", project.Labels[1].Key)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateResourceRejectsDuplicateSiblingNameUnderSameParent(t *testing.T) {
	pf := buildProjectFixture(t)
	requester := pf.requesterWithGroupPermission(t, resource.PermissionWrite)
	grantPermission(t, pf, requester, pf.projectID, resource.PermissionWrite)

	makeColl := func(name string) store.Idx {
		var req *resources.CreateResourceRequest
		err := pf.db.View(func(rtxn *store.ReadTxn) error {
			var err error
			req, err = resources.NewCreateResourceRequest(rtxn, pf.graph, resources.CreateResourceInput{
				Name:     name,
				Variant:  resource.VariantCollection,
				ParentID: pf.projectID,
			})
			return err
		})
		require.NoError(t, err)
		affected, err := pf.ctrl.Submit(context.Background(), requester, req)
		require.NoError(t, err)
		return affected.Primary
	}

	makeColl("coll-a")
	collB := makeColl("coll-b")

	collBID := idPtr(t, pf.fixture, collB)

	newName := "coll-a"
	var req *resources.UpdateResourceRequest
	err := pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID:   *collBID,
			Name: &newName,
		})
		return err
	})
	require.NoError(t, err)

	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.Error(t, err)
	assert.True(t, apierr.ConflictParameter.Has(err))
}

func TestUpdateResourceDeleteIsTerminal(t *testing.T) {
	pf := buildProjectFixture(t)
	requester := pf.requesterWithGroupPermission(t, resource.PermissionWrite)
	grantPermission(t, pf, requester, pf.projectID, resource.PermissionWrite)

	var req *resources.UpdateResourceRequest
	err := pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID:     pf.projectID,
			Delete: true,
		})
		return err
	})
	require.NoError(t, err)
	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.NoError(t, err)

	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		project, err := rtxn.GetResource(pf.projectIdx)
		require.NoError(t, err)
		assert.Equal(t, resource.StatusDeleted, project.Status)
		return nil
	})
	require.NoError(t, err)

	title := "too late"
	err = pf.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewUpdateResourceRequest(rtxn, pf.graph, resources.UpdateResourceInput{
			ID:    pf.projectID,
			Title: &title,
		})
		return err
	})
	require.NoError(t, err)
	_, err = pf.ctrl.Submit(context.Background(), requester, req)
	require.Error(t, err)
	assert.True(t, apierr.NotFound.Has(err))
}
