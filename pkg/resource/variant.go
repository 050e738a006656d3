package resource

// Variant discriminates the node kinds stored in the resource graph.
// Values below 3 (Project/Collection/Dataset) are the "folder-like"
// variants the name-uniqueness universe query `variant<3` filters on;
// see satellite/store's FilteredUniverse callers.
type Variant int

const (
	VariantProject Variant = iota
	VariantCollection
	VariantDataset
	VariantObject
	VariantUser
	VariantGroup
	VariantRealm
	VariantComponent
)

func (v Variant) String() string {
	switch v {
	case VariantProject:
		return "Project"
	case VariantCollection:
		return "Collection"
	case VariantDataset:
		return "Dataset"
	case VariantObject:
		return "Object"
	case VariantUser:
		return "User"
	case VariantGroup:
		return "Group"
	case VariantRealm:
		return "Realm"
	case VariantComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// IsFolderLike reports whether v is one of Project/Collection/Dataset —
// the set eligible for the `variant<3` sibling-name uniqueness query.
func (v Variant) IsFolderLike() bool {
	return v == VariantProject || v == VariantCollection || v == VariantDataset
}

// Visibility orders from most to least open as Public < PublicMetadata <
// Private. Updates may only move a resource's visibility to a lower
// (more private->more public, i.e. numerically smaller) value: see
// IsNarrowing.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPublicMetadata
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "Public"
	case VisibilityPublicMetadata:
		return "PublicMetadata"
	case VisibilityPrivate:
		return "Private"
	default:
		return "Unknown"
	}
}

// IsNarrowing reports whether moving from 'from' to 'to' narrows
// visibility (makes the resource less open), which update transactions
// must reject per spec.md §3's monotonicity invariant.
func IsNarrowing(from, to Visibility) bool {
	return to > from
}

// Status is a Resource's lifecycle state.
type Status int

const (
	StatusInitializing Status = iota
	StatusValidating
	StatusAvailable
	StatusUnavailable
	StatusError
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "Initializing"
	case StatusValidating:
		return "Validating"
	case StatusAvailable:
		return "Available"
	case StatusUnavailable:
		return "Unavailable"
	case StatusError:
		return "Error"
	case StatusDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// RelationType names the edges of the resource multigraph.
type RelationType string

const (
	RelationHasPart            RelationType = "HasPart"
	RelationOwnsProject        RelationType = "OwnsProject"
	RelationPartOfRealm        RelationType = "PartOfRealm"
	RelationRealmUsesComponent RelationType = "RealmUsesComponent"
	RelationDefault            RelationType = "Default"
	RelationDeleted            RelationType = "Deleted"
)

// IsStructural reports whether rt is one of the parent-defining edge
// types (HasPart/OwnsProject) that graph.Parent restricts its unique
// inbound-edge lookup to.
func (rt RelationType) IsStructural() bool {
	return rt == RelationHasPart || rt == RelationOwnsProject
}

// LabelVariant discriminates the label kinds a Resource carries.
type LabelVariant int

const (
	LabelPlain LabelVariant = iota
	LabelStatic
	LabelHook
	LabelHookStatus
)

// PermissionLevel is the authorization ordering None < Read < Append <
// Write < Admin from spec.md §4.3.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionRead
	PermissionAppend
	PermissionWrite
	PermissionAdmin
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionNone:
		return "None"
	case PermissionRead:
		return "Read"
	case PermissionAppend:
		return "Append"
	case PermissionWrite:
		return "Write"
	case PermissionAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// Satisfies reports whether p meets or exceeds the required minimum.
func (p PermissionLevel) Satisfies(min PermissionLevel) bool {
	return p >= min
}
