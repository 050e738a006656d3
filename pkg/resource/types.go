package resource

import (
	"time"

	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/location"
)

// DataLocation is an alias for location.DataLocation so Resource and
// the rest of this package can refer to it without every caller
// importing pkg/location directly.
type DataLocation = location.DataLocation

// Label is an ordered key/value annotation on a Resource. Ordering is
// preserved (not a map) because UpdateResource's label mutation is
// specified as a set-difference + union that must preserve input order.
type Label struct {
	Key     string
	Value   string
	Variant LabelVariant
}

// Identifier is an external identifier attached to a Resource (DOI, etc).
type Identifier string

// Author is a free-text author/contributor entry.
type Author struct {
	Name        string
	Affiliation string
	Orcid       string
}

// Hashes carries the content digests computed by the ingress pipeline.
type Hashes struct {
	SHA256 string
	MD5    string
}

// IsEmpty reports whether no hash has been recorded yet — Objects in
// Initializing/Validating status are expected to have empty Hashes.
func (h Hashes) IsEmpty() bool {
	return h.SHA256 == "" && h.MD5 == ""
}

// Resource is the single node type backing Project/Collection/Dataset/
// Object, matching spec.md §3's "Resource" row: a tagged struct rather
// than one Go type per variant, so the store's node column family can
// hold every variant under one encoding (see satellite/store/nodes.go).
type Resource struct {
	ID          arunaid.ID
	Name        string
	Title       string
	Description string
	Variant     Variant
	Visibility  Visibility
	Authors     []Author
	Labels      []Label
	Identifiers []Identifier
	LicenseTag  string
	Status      Status
	ContentLen  int64
	Count       int64
	Revision    int64
	Hashes      Hashes
	Locations   []DataLocation
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Relation is an edge of the resource multigraph.
type Relation struct {
	Origin     arunaid.ID
	Target     arunaid.ID
	Type       RelationType
	OriginType Variant
	TargetType Variant
}

// Key returns the (origin,target,type) uniqueness key create_relation is
// idempotent on.
func (r Relation) Key() RelationKey {
	return RelationKey{Origin: r.Origin, Target: r.Target, Type: r.Type}
}

// RelationKey is the unique identity of a Relation.
type RelationKey struct {
	Origin arunaid.ID
	Target arunaid.ID
	Type   RelationType
}

// TokenPermission narrows a requester's effective permission set to a
// single resource/level pair, as carried by a Token with an explicit
// resource scope (spec.md §4.3).
type TokenPermission struct {
	ResourceID arunaid.ID
	Level      PermissionLevel
}

// Token is a bearer credential belonging to a User.
type Token struct {
	UserID       arunaid.ID
	Index        int
	Name         string
	PubkeySerial string
	ExpiresAt    *time.Time
	DefaultGroup *arunaid.ID
	DefaultRealm *arunaid.ID
	Permission   *TokenPermission
}

// Expired reports whether the token is past its expiry at t.
func (tok Token) Expired(t time.Time) bool {
	return tok.ExpiresAt != nil && t.After(*tok.ExpiresAt)
}

// UserAttributes carries a User's authorization-relevant state.
type UserAttributes struct {
	GlobalAdmin      bool
	ServiceAccount   bool
	Tokens           []Token
	TrustedEndpoints []arunaid.ID
	// Permissions maps a resource id to the direct permission level the
	// user holds on it (before ancestor inheritance is applied).
	Permissions map[arunaid.ID]PermissionLevel
}

// User is a principal that can authenticate and hold permissions.
type User struct {
	ID          arunaid.ID
	DisplayName string
	Email       string
	ExternalIDs []string
	Attributes  UserAttributes
	Active      bool
}

// AnnouncementType discriminates announcement categories.
type AnnouncementType string

// Announcement is an operator-authored, orderable notice.
type Announcement struct {
	ID             arunaid.ID
	Type           AnnouncementType
	Title          string
	Content        string
	CreatedBy      arunaid.ID
	CreatedAt      time.Time
	LastModifiedBy arunaid.ID
	LastModifiedAt time.Time
}

// TransactionRecord is an append-only log entry: the request payload
// plus who submitted it and when, so apply() can re-authorize with the
// stored requester rather than trusting pre-commit auth (spec.md §4.4).
type TransactionRecord struct {
	TransactionID arunaid.ID
	RequestTag    uint32
	Payload       []byte
	Requester     arunaid.ID
	SubmittedAt   time.Time
}
