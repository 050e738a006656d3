package s3_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/pathcache"
	"aruna.io/aruna/satellite/resources"
	s3 "aruna.io/aruna/satellite/s3"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/satellite/txn"
	"aruna.io/aruna/storage/backend"
)

// s3Fixture wires a Group/Realm/(default)Component/User the same way
// satellite/resources's own test fixture does, plus a Service bound to
// a DiskBackend and a path cache loaded from the current store state —
// the cheapest way to keep the cache in sync in tests that don't run a
// live commit-notification feed.
type s3Fixture struct {
	t *testing.T

	db    *store.DB
	graph *graph.Graph
	ctrl  *txn.Controller
	cache *pathcache.Cache
	be    *backend.DiskBackend
	svc   *s3.Service

	userID  arunaid.ID
	groupID arunaid.ID
	compID  arunaid.ID

	bucket string
}

func buildS3Fixture(t *testing.T) *s3Fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g := graph.New()
	f := &s3Fixture{t: t, db: db, graph: g, userID: arunaid.New(), groupID: arunaid.New()}

	var groupIdx, realmIdx, compIdx store.Idx
	err = db.Update(func(wtxn *store.WriteTxn) error {
		var err error
		groupIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.groupID, Name: "group-1", Variant: resource.VariantGroup})
		if err != nil {
			return err
		}
		realmID := arunaid.New()
		realmIdx, err = wtxn.CreateNode(&resource.Resource{ID: realmID, Name: "realm-1", Variant: resource.VariantRealm})
		if err != nil {
			return err
		}
		f.compID = arunaid.New()
		compIdx, err = wtxn.CreateNode(&resource.Resource{ID: f.compID, Name: "comp-1", Variant: resource.VariantComponent})
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
				Tokens:      []resource.Token{{UserID: f.userID, Index: 0, DefaultGroup: &f.groupID, DefaultRealm: &realmID}},
				Permissions: map[arunaid.ID]resource.PermissionLevel{f.groupID: resource.PermissionWrite},
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

	f.ctrl = txn.New(db, g, nil, time.Now)

	f.be, err = backend.NewDiskBackend(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	f.bucket = "bucket-1"
	requester := f.requester(t)

	var projReq *resources.CreateProjectRequest
	err = db.View(func(rtxn *store.ReadTxn) error {
		var err error
		projReq, err = resources.NewCreateProjectRequest(rtxn, requester, resources.CreateProjectInput{
			Name:       f.bucket,
			Visibility: resource.VisibilityPrivate,
		})
		return err
	})
	require.NoError(t, err)
	_, err = f.ctrl.Submit(context.Background(), requester, projReq)
	require.NoError(t, err)

	cache, err := pathcache.Load(db, g, nil)
	require.NoError(t, err)
	f.cache = cache

	f.svc = s3.New(f.ctrl, g, f.cache, db, f.be, nil)
	return f
}

// requester returns a fresh Requester resolved straight from the
// store, with Write on the fixture's group — the permission every
// CreateBucket/PutObject call in these tests needs.
func (f *s3Fixture) requester(t *testing.T) *auth.Requester {
	t.Helper()
	var requester *auth.Requester
	err := f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		requester, err = auth.ResolveRequesterByUserToken(rtxn, f.userID, 0, time.Now())
		return err
	})
	require.NoError(t, err)
	return requester
}

// grantOn additionally grants level on resID, both in the store (so
// apply-time re-authorization sees it) and on the given in-memory
// Requester (so the pre-submit check sees it too).
func (f *s3Fixture) grantOn(t *testing.T, requester *auth.Requester, resID arunaid.ID, level resource.PermissionLevel) {
	t.Helper()
	err := f.db.Update(func(wtxn *store.WriteTxn) error {
		userIdx, err := wtxn.GetIdxFromULID(f.userID)
		if err != nil {
			return err
		}
		user, err := wtxn.GetUser(userIdx)
		if err != nil {
			return err
		}
		user.Attributes.Permissions[resID] = level
		_, err = wtxn.CreateNode(user)
		return err
	})
	require.NoError(t, err)

	var resIdx store.Idx
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		resIdx, err = rtxn.GetIdxFromULID(resID)
		return err
	})
	require.NoError(t, err)
	requester.Permissions[resIdx] = level
}

// reload rebuilds the fixture's path cache from the current store
// state, standing in for the live commit-notification feed a running
// proxy would otherwise rely on.
func (f *s3Fixture) reload(t *testing.T) {
	t.Helper()
	cache, err := pathcache.Load(f.db, f.graph, nil)
	require.NoError(t, err)
	f.cache = cache
	f.svc = s3.New(f.ctrl, f.graph, f.cache, f.db, f.be, nil)
}

func (f *s3Fixture) bucketID(t *testing.T) arunaid.ID {
	t.Helper()
	idx, _, ok := f.cache.Resolve(f.bucket, "")
	require.True(t, ok)
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
	return id
}
