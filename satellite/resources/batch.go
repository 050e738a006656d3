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

// ParentRef names a batch item's parent either as an existing node
// (ExistingID) or as the index of a sibling created earlier in the
// same batch (BatchIndex), per spec.md §4.5's "resources may reference
// parents either by id ... or by batch-local index".
type ParentRef struct {
	ExistingID *arunaid.ID
	BatchIndex *int
}

// BatchResourceInput is one (resource, parent_ref) tuple of a
// CreateResourceBatch request.
type BatchResourceInput struct {
	Name        string
	Title       string
	Description string
	Variant     resource.Variant
	Visibility  resource.Visibility
	LicenseTag  string
	Labels      []resource.Label
	Identifiers []resource.Identifier
	Authors     []resource.Author

	Parent ParentRef
}

// CreateResourceBatchRequest is the txn.WriteRequest for spec.md
// §4.5's CreateResourceBatch: a two-pass create where pass 1 validates
// every tuple and pass 2 creates nodes then wires HasPart edges using
// the final index map.
type CreateResourceBatchRequest struct {
	Items []BatchResourceInput

	explicitParentIdx map[int]store.Idx
	permSources       []store.Idx
	itemGroups        [][]store.Idx

	created      []store.Idx
	finalParents []store.Idx
}

// NewCreateResourceBatchRequest resolves every ExistingID parent
// reference against rtxn and rejects variant=Project up front. Each
// item's owning groups (for visibility universe population) are
// resolved here too, by walking a batch-local parent chain back to its
// nearest ExistingID ancestor — item 0 can never itself be
// batch-local, since BatchIndex references must point strictly
// backward, so that walk always terminates.
func NewCreateResourceBatchRequest(rtxn *store.ReadTxn, g *graph.Graph, items []BatchResourceInput) (*CreateResourceBatchRequest, error) {
	if len(items) == 0 {
		return nil, apierr.NewInvalidParameterf("items", "batch must contain at least one resource")
	}

	explicit := make(map[int]store.Idx, len(items))
	seen := map[store.Idx]bool{}
	var perms []store.Idx

	for i, item := range items {
		if item.Variant == resource.VariantProject {
			return nil, apierr.NewInvalidParameterf("variant", "batch item %d: CreateResourceBatch does not accept variant=Project", i)
		}
		switch {
		case item.Parent.ExistingID != nil:
			idx, err := rtxn.GetIdxFromULID(*item.Parent.ExistingID)
			if err != nil {
				return nil, err
			}
			explicit[i] = idx
			if !seen[idx] {
				seen[idx] = true
				perms = append(perms, idx)
			}
		case item.Parent.BatchIndex != nil:
			ref := *item.Parent.BatchIndex
			if ref < 0 || ref >= i {
				return nil, apierr.NewInvalidParameterf("parent", "batch item %d: parent batch index %d must reference an earlier item", i, ref)
			}
		default:
			return nil, apierr.NewInvalidParameterf("parent", "batch item %d: neither an existing parent id nor a batch index was given", i)
		}
	}

	itemGroups := make([][]store.Idx, len(items))
	for i := range items {
		root := i
		for items[root].Parent.BatchIndex != nil {
			root = *items[root].Parent.BatchIndex
		}
		itemGroups[i] = g.RelatedUserOrGroups(explicit[root])
	}

	return &CreateResourceBatchRequest{
		Items:             items,
		explicitParentIdx: explicit,
		permSources:       perms,
		itemGroups:        itemGroups,
	}, nil
}

// Context requires Write on every distinct explicitly-named parent;
// batch-local parents are created under one of these (or transitively
// under another batch-local item rooted at one of these), so no
// separate check is needed for them.
func (r *CreateResourceBatchRequest) Context() auth.Context {
	reqs := make([]auth.PermissionRequirement, len(r.permSources))
	for i, idx := range r.permSources {
		reqs[i] = auth.PermissionRequirement{MinLevel: resource.PermissionWrite, Source: idx}
	}
	return auth.RequirePermissionBatch(reqs)
}

// IntoTx gob-encodes the batch's items for the transaction log.
func (r *CreateResourceBatchRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r.Items)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagCreateResourceBatch, Payload: payload}, nil
}

type batchNameKey struct {
	parent store.Idx
	batch  int
	name   string
}

// Apply runs the two passes spec.md §4.5 names: pass 1 validates every
// tuple against the pre-commit store or against other batch entries,
// tracking per-parent name conflicts; pass 2 creates the nodes in
// order (a batch-local parent is always an earlier index, so its node
// already exists by the time a later item references it) and wires
// the HasPart edges.
func (r *CreateResourceBatchRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	n := len(r.Items)
	resolvedParent := make([]store.Idx, n)
	fromBatch := make([]bool, n)
	seenNames := map[batchNameKey]bool{}

	for i, item := range r.Items {
		if idx, ok := r.explicitParentIdx[i]; ok {
			parent, err := wtxn.GetResource(idx)
			if err != nil {
				return 0, nil, err
			}
			if !parent.Variant.IsFolderLike() {
				return 0, nil, apierr.NewInvalidParameterf("parent", "batch item %d: parent %s is not folder-like", i, parent.ID)
			}
			conflict, err := hasFolderLikeSibling(wtxn, idx, item.Name)
			if err != nil {
				return 0, nil, err
			}
			if conflict {
				return 0, nil, apierr.NewConflictParameterf("name", "batch item %d: a sibling named %q already exists under the given parent", i, item.Name)
			}
			key := batchNameKey{parent: idx, batch: -1, name: item.Name}
			if seenNames[key] {
				return 0, nil, apierr.NewConflictParameterf("name", "batch item %d: duplicate name %q under the same parent within the batch", i, item.Name)
			}
			seenNames[key] = true
			resolvedParent[i] = idx
		} else {
			ref := *item.Parent.BatchIndex
			if !r.Items[ref].Variant.IsFolderLike() {
				return 0, nil, apierr.NewInvalidParameterf("parent", "batch item %d: batch-local parent %d is not folder-like", i, ref)
			}
			key := batchNameKey{batch: ref, name: item.Name}
			if seenNames[key] {
				return 0, nil, apierr.NewConflictParameterf("name", "batch item %d: duplicate name %q under the same batch-local parent", i, item.Name)
			}
			seenNames[key] = true
			fromBatch[i] = true
		}
	}

	created := make([]store.Idx, n)
	finalParents := make([]store.Idx, n)
	createdAt := eventID.Time()

	for i, item := range r.Items {
		parent := resolvedParent[i]
		if fromBatch[i] {
			parent = created[*item.Parent.BatchIndex]
		}

		parentRes, err := wtxn.GetResource(parent)
		if err != nil {
			return 0, nil, err
		}
		locations := append([]resource.DataLocation(nil), parentRes.Locations...)
		if item.Variant == resource.VariantObject {
			for j := range locations {
				locations[j].Status = location.StatusPending
			}
		}

		child := &resource.Resource{
			ID:          arunaid.Derive(eventID, uint32(i)),
			Name:        item.Name,
			Title:       item.Title,
			Description: item.Description,
			Variant:     item.Variant,
			Visibility:  item.Visibility,
			Authors:     item.Authors,
			Labels:      item.Labels,
			Identifiers: item.Identifiers,
			LicenseTag:  item.LicenseTag,
			Status:      resource.StatusInitializing,
			Locations:   locations,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}

		idx, err := wtxn.CreateNode(child)
		if err != nil {
			return 0, nil, err
		}
		if err := wtxn.CreateRelation(parent, idx, resource.RelationHasPart); err != nil {
			return 0, nil, err
		}
		if child.Visibility == resource.VisibilityPrivate {
			for _, groupIdx := range r.itemGroups[i] {
				if err := wtxn.AddToGroupReadUniverse(idx, groupIdx); err != nil {
					return 0, nil, err
				}
			}
		}

		created[i] = idx
		finalParents[i] = parent
	}

	r.created = created
	r.finalParents = finalParents

	additional := append([]store.Idx(nil), created[1:]...)
	additional = append(additional, finalParents...)
	return created[0], additional, nil
}

// hasFolderLikeSibling implements the same variant<3-then-parent-
// equality check single CreateResource uses, factored out so the batch
// path can reuse it.
func hasFolderLikeSibling(wtxn *store.WriteTxn, parentIdx store.Idx, name string) (bool, error) {
	candidates, err := wtxn.FilteredUniverse(func(res *resource.Resource) bool {
		return res.Variant.IsFolderLike() && res.Name == name
	})
	if err != nil {
		return false, err
	}
	for _, idx := range candidates {
		if wtxn.HasRelation(parentIdx, idx, resource.RelationHasPart) {
			return true, nil
		}
	}
	return false, nil
}

// MutateGraph adds every created node and its HasPart edge to the
// in-memory graph, implementing txn.GraphMutation.
func (r *CreateResourceBatchRequest) MutateGraph(b *graph.Builder) {
	for i, idx := range r.created {
		b.InsertNode(idx, r.Items[i].Variant)
		b.InsertEdge(r.finalParents[i], idx, resource.RelationHasPart)
	}
}
