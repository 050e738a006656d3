// Package s3 implements spec.md §4.6's S3 ingress/egress surface as
// plain Go functions: CreateBucket, HeadBucket, ListBuckets,
// GetBucketLocation, bucket CORS get/put/delete, ListObjectsV2,
// HeadObject, GetObject, PutObject, the multipart upload state machine,
// and bundle streaming. Per spec.md §1/§6, HTTP/gRPC framing is an
// external collaborator's job; this package hands that collaborator a
// bound set of functions to wire onto its router paths, the same
// separation storj's satellite/metainfo keeps from its own gRPC
// endpoint layer.
package s3

import (
	"go.uber.org/zap"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/pathcache"
	"aruna.io/aruna/satellite/store"
	"aruna.io/aruna/satellite/txn"
	"aruna.io/aruna/storage/backend"
)

// Service bundles every dependency the S3 surface needs: the
// transaction controller for control-plane mutations, the graph for
// read-path authorization, the path cache for key resolution, the
// multipart part store, and the data-plane backend. One Service is
// built per proxy process and handed to whatever HTTP framing the
// deployment uses.
type Service struct {
	Ctrl    *txn.Controller
	Graph   *graph.Graph
	Cache   *pathcache.Cache
	DB      *store.DB
	Backend backend.Backend
	Log     *zap.Logger
}

// New builds a Service. log defaults to zap.NewNop() when nil, matching
// satellite/pathcache's own "logger is a required collaborator, but
// tests may not care" convention.
func New(ctrl *txn.Controller, g *graph.Graph, cache *pathcache.Cache, db *store.DB, be backend.Backend, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Ctrl: ctrl, Graph: g, Cache: cache, DB: db, Backend: be, Log: log}
}

// resolveObject looks up bucket/key in the path cache and requires it
// name an Object, the shared first step of HeadObject/GetObject/
// DeleteObject/UploadPart's target resolution.
func (s *Service) resolveObject(bucket, key string) (store.Idx, error) {
	idx, variant, ok := s.Cache.Resolve(bucket, key)
	if !ok {
		return 0, errNoSuchKey(bucket, key)
	}
	if variant != resource.VariantObject {
		return 0, apierr.NewInvalidParameterf("key", "%s/%s is not an Object", bucket, key)
	}
	return idx, nil
}

// resolveBucket looks up bucket as a Project in the path cache.
func (s *Service) resolveBucket(bucket string) (store.Idx, error) {
	idx, variant, ok := s.Cache.Resolve(bucket, "")
	if !ok || variant != resource.VariantProject {
		return 0, errNoSuchBucket(bucket)
	}
	return idx, nil
}

// requireRead authorizes a read against idx. An Anonymous requester
// never satisfies auth.Authorize (its Permissions map is always empty,
// per auth.Requester's own doc comment), so it is special-cased here
// exactly the way resources.GetResourcesRequest.Run already does it:
// admitted only when the resource itself is Visibility=Public.
func (s *Service) requireRead(rtxn *store.ReadTxn, requester *auth.Requester, idx store.Idx) error {
	if requester.Anonymous {
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return err
		}
		if res.Visibility != resource.VisibilityPublic {
			return apierr.Unauthorized.New("resource %s is not public", res.ID)
		}
		return nil
	}
	return auth.Authorize(s.Graph, requester, auth.RequirePermission(resource.PermissionRead, idx))
}

func (s *Service) requireWrite(requester *auth.Requester, idx store.Idx) error {
	return auth.Authorize(s.Graph, requester, auth.RequirePermission(resource.PermissionWrite, idx))
}
