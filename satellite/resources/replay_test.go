package resources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
)

// buildFixtureGenesis recreates buildFixture's exact Group/Realm/
// Component/User bootstrap against a fresh db, using the same literal
// IDs and wtxn.CreateNode call order as f, so the replica's store.Idx
// assignments line up with the original's — replaying a write request
// whose Context/Apply addresses its parents by Idx (not ULID) only
// reproduces the original's state if the two stores agree on what
// index the genesis nodes got.
func buildFixtureGenesis(t *testing.T, f *fixture) (*store.DB, *graph.Graph) {
	t.Helper()
	db := openTestDB(t)
	g := graph.New()

	var groupIdx, realmIdx, compIdx store.Idx
	err := db.Update(func(wtxn *store.WriteTxn) error {
		var err error
		groupIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.groupID, Name: "group-1", Variant: resource.VariantGroup})
		if err != nil {
			return err
		}
		realmIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.realmID(t), Name: "realm-1", Variant: resource.VariantRealm})
		if err != nil {
			return err
		}
		compIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.compID(t), Name: "comp-1", Variant: resource.VariantComponent})
		if err != nil {
			return err
		}
		if err := wtxn.CreateRelation(realmIdx, compIdx, resource.RelationRealmUsesComponent); err != nil {
			return err
		}
		if err := wtxn.CreateRelation(realmIdx, compIdx, resource.RelationDefault); err != nil {
			return err
		}
		user := &resource.User{
			ID:     f.userID,
			Active: true,
			Attributes: resource.UserAttributes{
				Tokens:      []resource.Token{{UserID: f.userID, Index: 0, DefaultGroup: &f.groupID}},
				Permissions: map[arunaid.ID]resource.PermissionLevel{},
			},
		}
		_, err = wtxn.CreateNode(user)
		return err
	})
	require.NoError(t, err)

	b := g.Begin()
	b.InsertNode(groupIdx, resource.VariantGroup)
	b.InsertNode(realmIdx, resource.VariantRealm)
	b.InsertNode(compIdx, resource.VariantComponent)
	b.Publish()

	require.Equal(t, f.groupIdx, groupIdx)
	require.Equal(t, f.realmIdx, realmIdx)
	require.Equal(t, f.compIdx, compIdx)

	return db, g
}

func (f *fixture) realmID(t *testing.T) arunaid.ID {
	t.Helper()
	var id arunaid.ID
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(f.realmIdx)
		if err != nil {
			return err
		}
		id = res.ID
		return nil
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) compID(t *testing.T) arunaid.ID {
	t.Helper()
	var id arunaid.ID
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(f.compIdx)
		if err != nil {
			return err
		}
		id = res.ID
		return nil
	})
	require.NoError(t, err)
	return id
}

// TestReplayFromGenesisReproducesIdenticalNodeIDs is spec.md §8
// scenario 6: replaying the durable transaction log from genesis must
// reproduce byte-for-byte the same store a live Submit sequence
// produced, including every node ID Apply itself mints — the property
// arunaid.Derive(eventID, index) exists to guarantee, now that eventID
// is read back from the record rather than a fresh arunaid.New() call
// substituting different random entropy on each replay.
func TestReplayFromGenesisReproducesIdenticalNodeIDs(t *testing.T) {
	f := buildFixture(t)
	requester := f.requesterWithGroupPermission(t, resource.PermissionWrite)

	var projReq *resources.CreateProjectRequest
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		projReq, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
			Name:       "replayed-project",
			RealmID:    idPtr(t, f, f.realmIdx),
			Visibility: resource.VisibilityPublic,
		})
		return err
	})
	require.NoError(t, err)
	projAffected, err := f.ctrl.Submit(context.Background(), requester, projReq)
	require.NoError(t, err)

	var projectID arunaid.ID
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(projAffected.Primary)
		if err != nil {
			return err
		}
		projectID = res.ID
		return nil
	})
	require.NoError(t, err)

	var childReq *resources.CreateResourceRequest
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		childReq, err = resources.NewCreateResourceRequest(rtxn, f.graph, resources.CreateResourceInput{
			Name:       "child",
			Variant:    resource.VariantCollection,
			Visibility: resource.VisibilityPublic,
			ParentID:   projectID,
		})
		return err
	})
	require.NoError(t, err)
	childAffected, err := f.ctrl.Submit(context.Background(), requester, childReq)
	require.NoError(t, err)

	var records []resource.TransactionRecord
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		records, err = rtxn.ReplayLog()
		return err
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	replica, _ := buildFixtureGenesis(t, f)

	err = replica.Update(func(wtxn *store.WriteTxn) error {
		for _, rec := range records {
			if _, _, err := resources.Replay(wtxn, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var originalProject, replayedProject *resource.Resource
	var originalChild, replayedChild *resource.Resource
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		originalProject, err = rtxn.GetResource(projAffected.Primary)
		if err != nil {
			return err
		}
		originalChild, err = rtxn.GetResource(childAffected.Primary)
		return err
	})
	require.NoError(t, err)

	err = replica.View(func(rtxn *store.ReadTxn) error {
		var err error
		replayedProject, err = rtxn.GetResource(projAffected.Primary)
		if err != nil {
			return err
		}
		replayedChild, err = rtxn.GetResource(childAffected.Primary)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, originalProject.ID, replayedProject.ID)
	assert.Equal(t, originalProject.CreatedAt, replayedProject.CreatedAt)
	assert.Equal(t, originalProject.Name, replayedProject.Name)

	assert.Equal(t, originalChild.ID, replayedChild.ID)
	assert.Equal(t, originalChild.CreatedAt, replayedChild.CreatedAt)
	assert.Equal(t, originalChild.Name, replayedChild.Name)

	var timeZero time.Time
	assert.NotEqual(t, timeZero, originalChild.CreatedAt)
}
