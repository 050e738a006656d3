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

// CreateProjectInput is the caller-supplied body of a CreateProject
// request (spec.md §4.5). GroupID/RealmID/DataEndpoint are all
// optional: GroupID/RealmID fall back to the requester's token
// defaults, DataEndpoint falls back to the realm's Default-tagged
// Component.
type CreateProjectInput struct {
	Name        string
	Title       string
	Description string
	Visibility  resource.Visibility
	LicenseTag  string
	Labels      []resource.Label
	Identifiers []resource.Identifier
	Authors     []resource.Author

	GroupID      *arunaid.ID
	RealmID      *arunaid.ID
	DataEndpoint *arunaid.ID
}

// CreateProjectRequest is the txn.WriteRequest for spec.md §4.5's
// CreateProject algorithm. GroupIdx/RealmIdx are resolved up front by
// NewCreateProjectRequest, before submission, so Context() can state
// the Permission requirement without touching the store: the
// transaction controller's pre-commit Authorize call only ever
// consults the in-memory graph (spec.md §4.3).
type CreateProjectRequest struct {
	Input    CreateProjectInput
	GroupIdx store.Idx
	RealmIdx store.Idx

	createdIdx store.Idx
}

// NewCreateProjectRequest resolves group_id/realm_id against rtxn,
// substituting the bearer token's default_group/default_realm
// (requester.DefaultGroup/DefaultRealm) when the input omits them, per
// spec.md §4.5. data_endpoint resolution is deferred to Apply, since
// picking the realm's Default-tagged Component needs a write
// transaction's relation lookups anyway.
func NewCreateProjectRequest(rtxn *store.ReadTxn, requester *auth.Requester, input CreateProjectInput) (*CreateProjectRequest, error) {
	groupIdx, err := resolveOrDefault(rtxn, input.GroupID, requester.DefaultGroup, "group_id")
	if err != nil {
		return nil, err
	}
	realmIdx, err := resolveOrDefault(rtxn, input.RealmID, requester.DefaultRealm, "realm_id")
	if err != nil {
		return nil, err
	}
	return &CreateProjectRequest{Input: input, GroupIdx: groupIdx, RealmIdx: realmIdx}, nil
}

func resolveOrDefault(rtxn *store.ReadTxn, explicit *arunaid.ID, fallback *store.Idx, paramName string) (store.Idx, error) {
	if explicit != nil {
		return rtxn.GetIdxFromULID(*explicit)
	}
	if fallback != nil {
		return *fallback, nil
	}
	return 0, apierr.NewInvalidParameterf(paramName, "not given and the token carries no default")
}

// Context requires Write on the resolved owning group, matching
// spec.md §4.5's "requires Permission{Write, group_id}".
func (r *CreateProjectRequest) Context() auth.Context {
	return auth.RequirePermission(resource.PermissionWrite, r.GroupIdx)
}

// IntoTx gob-encodes the request for the transaction log.
func (r *CreateProjectRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagCreateProject, Payload: payload}, nil
}

// Apply validates Group/Realm existence and the data endpoint, enforces
// global project-name uniqueness, creates the Project node plus its
// OwnsProject/PartOfRealm edges, and populates the visibility universe
// the new project's Visibility calls for (spec.md §4.5).
func (r *CreateProjectRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	group, err := wtxn.GetResource(r.GroupIdx)
	if err != nil {
		return 0, nil, err
	}
	if group.Variant != resource.VariantGroup {
		return 0, nil, apierr.NewInvalidParameterf("group_id", "resource %s is not a Group", group.ID)
	}
	realm, err := wtxn.GetResource(r.RealmIdx)
	if err != nil {
		return 0, nil, err
	}
	if realm.Variant != resource.VariantRealm {
		return 0, nil, apierr.NewInvalidParameterf("realm_id", "resource %s is not a Realm", realm.ID)
	}

	endpoint, err := r.resolveDataEndpoint(wtxn)
	if err != nil {
		return 0, nil, err
	}

	conflicts, err := wtxn.FilteredUniverse(func(res *resource.Resource) bool {
		return res.Variant == resource.VariantProject && res.Name == r.Input.Name
	})
	if err != nil {
		return 0, nil, err
	}
	if len(conflicts) > 0 {
		return 0, nil, apierr.NewConflictParameterf("name", "project name %q is already in use", r.Input.Name)
	}

	createdAt := eventID.Time()
	project := &resource.Resource{
		ID:          arunaid.Derive(eventID, 0),
		Name:        r.Input.Name,
		Title:       r.Input.Title,
		Description: r.Input.Description,
		Variant:     resource.VariantProject,
		Visibility:  r.Input.Visibility,
		Authors:     r.Input.Authors,
		Labels:      r.Input.Labels,
		Identifiers: r.Input.Identifiers,
		LicenseTag:  r.Input.LicenseTag,
		Status:      resource.StatusAvailable,
		Locations: []resource.DataLocation{{
			EndpointID: endpoint.ID,
			Status:     location.StatusFinished,
		}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	projectIdx, err := wtxn.CreateNode(project)
	if err != nil {
		return 0, nil, err
	}
	if err := wtxn.CreateRelation(r.GroupIdx, projectIdx, resource.RelationOwnsProject); err != nil {
		return 0, nil, err
	}
	if err := wtxn.CreateRelation(projectIdx, r.RealmIdx, resource.RelationPartOfRealm); err != nil {
		return 0, nil, err
	}
	if project.Visibility == resource.VisibilityPrivate {
		if err := wtxn.AddToGroupReadUniverse(projectIdx, r.GroupIdx); err != nil {
			return 0, nil, err
		}
	}

	r.createdIdx = projectIdx
	return projectIdx, []store.Idx{r.GroupIdx, r.RealmIdx}, nil
}

// resolveDataEndpoint validates an explicitly named endpoint against the
// realm's RealmUsesComponent edges, or else picks the realm's unique
// Default-tagged Component, per spec.md §4.5.
func (r *CreateProjectRequest) resolveDataEndpoint(wtxn *store.WriteTxn) (*resource.Resource, error) {
	if r.Input.DataEndpoint != nil {
		idx, err := wtxn.GetIdxFromULID(*r.Input.DataEndpoint)
		if err != nil {
			return nil, err
		}
		if !wtxn.HasRelation(r.RealmIdx, idx, resource.RelationRealmUsesComponent) {
			return nil, apierr.NewInvalidParameterf("data_endpoint", "component is not usable by this realm")
		}
		return wtxn.GetResource(idx)
	}

	edges, err := wtxn.OutboundRelations(r.RealmIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if e.Type == resource.RelationDefault {
			return wtxn.GetResource(e.Target)
		}
	}
	return nil, apierr.NewInvalidParameterf("data_endpoint", "not given and the realm has no default component")
}

// MutateGraph adds the created project node and its two structural
// edges to the in-memory graph, implementing txn.GraphMutation.
func (r *CreateProjectRequest) MutateGraph(b *graph.Builder) {
	b.InsertNode(r.createdIdx, resource.VariantProject)
	b.InsertEdge(r.GroupIdx, r.createdIdx, resource.RelationOwnsProject)
	b.InsertEdge(r.createdIdx, r.RealmIdx, resource.RelationPartOfRealm)
}
