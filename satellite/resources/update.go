package resources

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/graph"
	"aruna.io/aruna/satellite/store"
)

// LabelChange is an add/remove pair applied to a resource's ordered
// label set via resource.MergeLabels's set-difference + union rule.
type LabelChange struct {
	Add    []resource.Label
	Remove []resource.Label
}

// IdentifierChange is the Identifier equivalent of LabelChange.
type IdentifierChange struct {
	Add    []resource.Identifier
	Remove []resource.Identifier
}

// AuthorChange is the Author equivalent of LabelChange.
type AuthorChange struct {
	Add    []resource.Author
	Remove []resource.Author
}

// UpdateResourceInput is the caller-supplied body of an UpdateResource
// request (spec.md §4.5). Every pointer/Change field is optional; a nil
// field leaves that part of the resource untouched.
type UpdateResourceInput struct {
	ID arunaid.ID

	Name        *string
	Title       *string
	Description *string
	Visibility  *resource.Visibility
	LicenseTag  *string

	Labels      *LabelChange
	Identifiers *IdentifierChange
	Authors     *AuthorChange

	// Delete moves the resource to its terminal Deleted status (spec.md
	// §3's "terminal state Deleted"). There is no separate
	// delete-resource transaction; deletion is one more field an update
	// can set, like any other status-affecting change.
	Delete bool
}

// UpdateResourceRequest is the txn.WriteRequest for spec.md §4.5's
// UpdateResource: load current node, validate the change, produce a
// partial resource.FieldMap, and let store.WriteTxn.UpdateNodeField
// apply it atomically.
type UpdateResourceRequest struct {
	Input     UpdateResourceInput
	Idx       store.Idx
	parentIdx store.Idx
	isProject bool
}

// NewUpdateResourceRequest resolves the target id up front so Context
// stays a pure graph lookup, matching the other write requests in this
// package. When the target isn't a Project, its structural parent is
// also resolved here via g.Parent — Apply has no *graph.Graph access,
// only the store write transaction, so a non-Project's sibling-name
// conflict check (which needs the parent to scope the search) must
// have the parent in hand before Apply runs.
func NewUpdateResourceRequest(rtxn *store.ReadTxn, g *graph.Graph, input UpdateResourceInput) (*UpdateResourceRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	r := &UpdateResourceRequest{Input: input, Idx: idx}
	variant, ok := g.Variant(idx)
	if !ok {
		return nil, apierr.NotFound.New("node %d not present in graph", idx)
	}
	r.isProject = variant == resource.VariantProject
	if !r.isProject && input.Name != nil {
		parentIdx, err := g.Parent(idx)
		if err != nil {
			return nil, err
		}
		r.parentIdx = parentIdx
	}
	return r, nil
}

// Context requires Write on the resource being updated.
func (r *UpdateResourceRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.Idx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *UpdateResourceRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagUpdateResource, Payload: payload}, nil
}

// Apply loads the current node, validates the requested change (name
// uniqueness via the variant=Project universe, visibility monotonicity,
// set-difference+union label/identifier/author merges), and applies the
// resulting field map atomically via UpdateNodeField. Input.Delete short-
// circuits every other field: once a resource is Deleted nothing else
// about it can be changed through this request.
func (r *UpdateResourceRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	current, err := wtxn.GetResource(r.Idx)
	if err != nil {
		return 0, nil, err
	}
	if current.Status == resource.StatusDeleted {
		return 0, nil, apierr.NotFound.New("resource %s is deleted", r.Input.ID)
	}

	fields := resource.FieldMap{}

	if r.Input.Delete {
		fields[resource.FieldStatus] = resource.StatusDeleted
		fields[resource.FieldLastModified] = eventID.Time()
		if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
			return 0, nil, err
		}
		return r.Idx, nil, nil
	}

	if r.Input.Name != nil && *r.Input.Name != current.Name {
		if r.isProject {
			conflicts, err := wtxn.FilteredUniverse(func(res *resource.Resource) bool {
				return res.Variant == resource.VariantProject && res.Name == *r.Input.Name
			})
			if err != nil {
				return 0, nil, err
			}
			if len(conflicts) > 0 {
				return 0, nil, apierr.NewConflictParameterf("name", "project name %q is already in use", *r.Input.Name)
			}
		} else {
			conflict, err := hasFolderLikeSibling(wtxn, r.parentIdx, *r.Input.Name)
			if err != nil {
				return 0, nil, err
			}
			if conflict {
				return 0, nil, apierr.NewConflictParameterf("name", "a sibling named %q already exists under this parent", *r.Input.Name)
			}
		}
		fields[resource.FieldName_] = *r.Input.Name
	}

	if r.Input.Title != nil {
		fields[resource.FieldTitle] = *r.Input.Title
	}
	if r.Input.Description != nil {
		fields[resource.FieldDescription] = *r.Input.Description
	}
	if r.Input.LicenseTag != nil {
		fields[resource.FieldLicense] = *r.Input.LicenseTag
	}

	if r.Input.Visibility != nil {
		if resource.IsNarrowing(current.Visibility, *r.Input.Visibility) {
			return 0, nil, apierr.NewConflictParameterf("visibility", "visibility may not narrow from %s to %s", current.Visibility, *r.Input.Visibility)
		}
		fields[resource.FieldVisibility] = *r.Input.Visibility
	}

	if r.Input.Labels != nil {
		fields[resource.FieldLabels] = resource.MergeLabels(current.Labels, r.Input.Labels.Add, r.Input.Labels.Remove)
	}
	if r.Input.Identifiers != nil {
		fields[resource.FieldIdentifiers] = resource.MergeIdentifiers(current.Identifiers, r.Input.Identifiers.Add, r.Input.Identifiers.Remove)
	}
	if r.Input.Authors != nil {
		fields[resource.FieldAuthors] = resource.MergeAuthors(current.Authors, r.Input.Authors.Add, r.Input.Authors.Remove)
	}

	fields[resource.FieldLastModified] = eventID.Time()

	if err := wtxn.UpdateNodeField(r.Idx, fields); err != nil {
		return 0, nil, err
	}

	return r.Idx, nil, nil
}

// UpdateResourceRequest does not implement txn.GraphMutation: it
// changes field values on an already-existing node, never structural
// edges, so the in-memory graph needs no update.
