package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// GetResourcesRequest is the txn.ReadRequest for spec.md §4.5's
// GetResources: a batch read requiring Permission{Read} per id, with an
// anonymous requester limited to Public resources regardless of any
// permission grant (an anonymous requester never has one anyway).
type GetResourcesRequest struct {
	IDs []arunaid.ID
	g   *graph.Graph
}

// NewGetResourcesRequest captures g so Run can resolve ancestor-
// inherited permission the same way auth.Authorize would for any other
// request; the id set itself is resolved fresh inside Run, against
// whatever read transaction Controller.Query opens for it.
func NewGetResourcesRequest(g *graph.Graph, ids []arunaid.ID) *GetResourcesRequest {
	return &GetResourcesRequest{IDs: ids, g: g}
}

// Context is Public: per-id Read/Visibility checks happen in Run, since
// they depend on ids this struct cannot resolve to store indices (and
// therefore cannot state as a fixed PermissionRequirement set) before a
// read transaction is open.
func (r *GetResourcesRequest) Context() auth.Context {
	return auth.Public()
}

// Run resolves every id, enforces Permission{Read} per resource (or, for
// an anonymous requester, restricts the result to Visibility=Public),
// and returns the resolved resources in input order.
func (r *GetResourcesRequest) Run(rtxn *store.ReadTxn, requester *auth.Requester) (interface{}, error) {
	out := make([]*resource.Resource, 0, len(r.IDs))
	for _, id := range r.IDs {
		idx, err := rtxn.GetIdxFromULID(id)
		if err != nil {
			return nil, err
		}
		res, err := rtxn.GetResource(idx)
		if err != nil {
			return nil, err
		}

		if requester.Anonymous {
			if res.Visibility != resource.VisibilityPublic {
				return nil, apierr.Unauthorized.New("resource %s is not public", res.ID)
			}
		} else if err := auth.Authorize(r.g, requester, auth.RequirePermission(resource.PermissionRead, idx)); err != nil {
			return nil, err
		}

		out = append(out, res)
	}
	return out, nil
}
