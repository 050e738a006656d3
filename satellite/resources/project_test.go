package resources_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/satellite/txn"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixture wires a Group, a Realm, a Component the realm defaults to,
// and a User with an empty permission map, returning their indices;
// requesterWithGroupPermission grants the user a level on the group and
// resolves its Requester through auth.ResolveRequesterByUserToken.
type fixture struct {
	db       *store.DB
	graph    *graph.Graph
	ctrl     *txn.Controller
	userID   arunaid.ID
	groupID  arunaid.ID
	groupIdx store.Idx
	realmIdx store.Idx
	compIdx  store.Idx
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	g := graph.New()
	f := &fixture{db: db, graph: g, userID: arunaid.New(), groupID: arunaid.New()}

	err := db.Update(func(wtxn *store.WriteTxn) error {
		var err error
		f.groupIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.groupID, Name: "group-1", Variant: resource.VariantGroup})
		if err != nil {
			return err
		}
		f.realmIdx, err = wtxn.CreateNode(&resource.Resource{ID: arunaid.New(), Name: "realm-1", Variant: resource.VariantRealm})
		if err != nil {
			return err
		}
		f.compIdx, err = wtxn.CreateNode(&resource.Resource{ID: arunaid.New(), Name: "comp-1", Variant: resource.VariantComponent})
		if err != nil {
			return err
		}
		if err := wtxn.CreateRelation(f.realmIdx, f.compIdx, resource.RelationRealmUsesComponent); err != nil {
			return err
		}
		if err := wtxn.CreateRelation(f.realmIdx, f.compIdx, resource.RelationDefault); err != nil {
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
	b.InsertNode(f.groupIdx, resource.VariantGroup)
	b.InsertNode(f.realmIdx, resource.VariantRealm)
	b.InsertNode(f.compIdx, resource.VariantComponent)
	b.Publish()

	f.ctrl = txn.New(db, g, nil, time.Now)
	return f
}

// requesterWithGroupPermission records level on the group in the
// user's stored attribute permissions (not just the in-memory
// Requester) so that Controller.Submit's apply-time re-authorization —
// which re-resolves the Requester straight from the store — sees the
// same grant the pre-commit check did.
func (f *fixture) requesterWithGroupPermission(t *testing.T, level resource.PermissionLevel) *auth.Requester {
	t.Helper()
	err := f.db.Update(func(wtxn *store.WriteTxn) error {
		user, err := wtxn.GetUser(f.userIdx(t, wtxn))
		if err != nil {
			return err
		}
		user.Attributes.Permissions[f.groupID] = level
		_, err = wtxn.CreateNode(user)
		return err
	})
	require.NoError(t, err)

	var requester *auth.Requester
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		requester, err = auth.ResolveRequesterByUserToken(rtxn, f.userID, 0, time.Now())
		return err
	})
	require.NoError(t, err)
	return requester
}

func (f *fixture) userIdx(t *testing.T, rtxn *store.ReadTxn) store.Idx {
	t.Helper()
	idx, err := rtxn.GetIdxFromULID(f.userID)
	require.NoError(t, err)
	return idx
}

func TestCreateProjectSucceedsAndResolvesDefaultComponent(t *testing.T) {
	f := buildFixture(t)
	requester := f.requesterWithGroupPermission(t, resource.PermissionWrite)

	var req *resources.CreateProjectRequest
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
			Name:       "my-project",
			RealmID:    idPtr(t, f, f.realmIdx),
			Visibility: resource.VisibilityPublic,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, f.groupIdx, req.GroupIdx) // substituted from the token's default_group

	affected, err := f.ctrl.Submit(context.Background(), requester, req)
	require.NoError(t, err)
	assert.NotZero(t, affected.Primary)

	err = f.db.View(func(rtxn *store.ReadTxn) error {
		project, err := rtxn.GetResource(affected.Primary)
		require.NoError(t, err)
		assert.Equal(t, "my-project", project.Name)
		assert.Equal(t, resource.VariantProject, project.Variant)
		require.Len(t, project.Locations, 1)
		comp, err := rtxn.GetResource(f.compIdx)
		require.NoError(t, err)
		assert.Equal(t, comp.ID, project.Locations[0].EndpointID)
		assert.True(t, rtxn.HasRelation(f.groupIdx, affected.Primary, resource.RelationOwnsProject))
		assert.True(t, rtxn.HasRelation(affected.Primary, f.realmIdx, resource.RelationPartOfRealm))
		return nil
	})
	require.NoError(t, err)

	variant, ok := f.graph.Variant(affected.Primary)
	require.True(t, ok)
	assert.Equal(t, resource.VariantProject, variant)
}

func TestCreateProjectRejectsDuplicateName(t *testing.T) {
	f := buildFixture(t)
	requester := f.requesterWithGroupPermission(t, resource.PermissionWrite)

	makeReq := func() *resources.CreateProjectRequest {
		var req *resources.CreateProjectRequest
		err := f.db.View(func(rtxn *store.ReadTxn) error {
			var err error
			req, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
				Name:    "dup",
				RealmID: idPtr(t, f, f.realmIdx),
			})
			return err
		})
		require.NoError(t, err)
		return req
	}

	_, err := f.ctrl.Submit(context.Background(), requester, makeReq())
	require.NoError(t, err)

	_, err = f.ctrl.Submit(context.Background(), requester, makeReq())
	require.Error(t, err)
	assert.True(t, apierr.ConflictParameter.Has(err))
}

func TestCreateProjectDeniesWithoutWritePermission(t *testing.T) {
	f := buildFixture(t)
	requester := f.requesterWithGroupPermission(t, resource.PermissionRead)

	var req *resources.CreateProjectRequest
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		req, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
			Name:    "denied",
			RealmID: idPtr(t, f, f.realmIdx),
		})
		return err
	})
	require.NoError(t, err)

	_, err = f.ctrl.Submit(context.Background(), requester, req)
	require.Error(t, err)
	assert.True(t, apierr.Unauthorized.Has(err))
}

// idPtr resolves idx back to its ULID for building request input,
// mirroring what an HTTP handler does when it parses a request body's
// string id fields.
func idPtr(t *testing.T, f *fixture, idx store.Idx) *arunaid.ID {
	t.Helper()
	var id arunaid.ID
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		id = res.ID
		return nil
	})
	require.NoError(t, err)
	return &id
}
