package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// CreateResourceInput is the caller-supplied body of a CreateResource
// request (spec.md §4.5): a Collection, Dataset, or Object attached as
// a child of ParentID.
type CreateResourceInput struct {
	Name        string
	Title       string
	Description string
	Variant     resource.Variant
	Visibility  resource.Visibility
	LicenseTag  string
	Labels      []resource.Label
	Identifiers []resource.Identifier
	Authors     []resource.Author

	ParentID arunaid.ID
}

// CreateResourceRequest is the txn.WriteRequest for spec.md §4.5's
// CreateResource algorithm. ParentIdx is resolved up front, the same
// way CreateProjectRequest resolves GroupIdx, so Context() stays a
// pure graph lookup.
type CreateResourceRequest struct {
	Input     CreateResourceInput
	ParentIdx store.Idx
	Groups    []store.Idx

	createdIdx store.Idx
}

// NewCreateResourceRequest resolves parent_id against rtxn and rejects
// variant=Project up front (spec.md §4.5: "rejects variant=Project").
// The owning groups visibility universe population needs are resolved
// here too, via g.RelatedUserOrGroups(parentIdx) — a pure graph walk,
// so doing it before submission costs nothing Apply would not also
// pay, and keeps Apply itself store-only.
func NewCreateResourceRequest(rtxn *store.ReadTxn, g *graph.Graph, input CreateResourceInput) (*CreateResourceRequest, error) {
	if input.Variant == resource.VariantProject {
		return nil, apierr.NewInvalidParameterf("variant", "CreateResource does not accept variant=Project; use CreateProject")
	}
	parentIdx, err := rtxn.GetIdxFromULID(input.ParentID)
	if err != nil {
		return nil, err
	}
	return &CreateResourceRequest{
		Input:     input,
		ParentIdx: parentIdx,
		Groups:    g.RelatedUserOrGroups(parentIdx),
	}, nil
}

// Context requires Write on the parent, matching spec.md §4.5's
// "requires Permission{Write, parent_id}".
func (r *CreateResourceRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.ParentIdx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *CreateResourceRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagCreateResource, Payload: payload}, nil
}

// Apply validates the parent is folder-like, enforces sibling name
// uniqueness among folder-like children, copies the parent's locations
// (marking them Pending when the new resource is an Object, per
// spec.md §4.5), creates the node and its HasPart edge, and populates
// the visibility universe for every group related_user_or_groups(parent)
// discovers.
func (r *CreateResourceRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	parent, err := wtxn.GetResource(r.ParentIdx)
	if err != nil {
		return 0, nil, err
	}
	if !parent.Variant.IsFolderLike() {
		return 0, nil, apierr.NewInvalidParameterf("parent_id", "resource %s (variant %s) is not folder-like", parent.ID, parent.Variant)
	}

	conflict, err := hasFolderLikeSibling(wtxn, r.ParentIdx, r.Input.Name)
	if err != nil {
		return 0, nil, err
	}
	if conflict {
		return 0, nil, apierr.NewConflictParameterf("name", "a sibling named %q already exists under this parent", r.Input.Name)
	}

	locations := append([]resource.DataLocation(nil), parent.Locations...)
	if r.Input.Variant == resource.VariantObject {
		for i := range locations {
			locations[i].Status = location.StatusPending
		}
	}

	createdAt := eventID.Time()
	child := &resource.Resource{
		ID:          arunaid.Derive(eventID, 0),
		Name:        r.Input.Name,
		Title:       r.Input.Title,
		Description: r.Input.Description,
		Variant:     r.Input.Variant,
		Visibility:  r.Input.Visibility,
		Authors:     r.Input.Authors,
		Labels:      r.Input.Labels,
		Identifiers: r.Input.Identifiers,
		LicenseTag:  r.Input.LicenseTag,
		Status:      resource.StatusInitializing,
		Locations:   locations,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	childIdx, err := wtxn.CreateNode(child)
	if err != nil {
		return 0, nil, err
	}
	if err := wtxn.CreateRelation(r.ParentIdx, childIdx, resource.RelationHasPart); err != nil {
		return 0, nil, err
	}

	if child.Visibility == resource.VisibilityPrivate {
		for _, groupIdx := range r.Groups {
			if err := wtxn.AddToGroupReadUniverse(childIdx, groupIdx); err != nil {
				return 0, nil, err
			}
		}
	}

	r.createdIdx = childIdx
	return childIdx, []store.Idx{r.ParentIdx}, nil
}

// MutateGraph adds the created node and its HasPart edge to the
// in-memory graph, implementing txn.GraphMutation.
func (r *CreateResourceRequest) MutateGraph(b *graph.Builder) {
	b.InsertNode(r.createdIdx, r.Input.Variant)
	b.InsertEdge(r.ParentIdx, r.createdIdx, resource.RelationHasPart)
}
