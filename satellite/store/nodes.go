package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
)

// nodeKind tags which of nodeRecord's fields is populated, letting the
// nodes bucket hold every node variant spec.md §3 names under one
// column family rather than one bucket per Go type.
type nodeKind uint8

const (
	kindResource nodeKind = iota
	kindUser
	kindAnnouncement
)

type nodeRecord struct {
	Kind         nodeKind
	Resource     *resource.Resource
	User         *resource.User
	Announcement *resource.Announcement
}

func idxKey(idx Idx) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(idx))
	return b[:]
}

func idxFromKey(k []byte) Idx {
	return Idx(binary.BigEndian.Uint64(k))
}

func encodeNode(rec nodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, apierr.SerializeError.Wrap(err)
	}
	return buf.Bytes(), nil
}

func decodeNode(data []byte) (nodeRecord, error) {
	var rec nodeRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nodeRecord{}, apierr.DeserializeError.Wrap(err)
	}
	return rec, nil
}

// CreateNode allocates a fresh Idx, writes the canonical record, and
// indexes it by ULID. node must be *resource.Resource, *resource.User,
// or *resource.Announcement. Resources with Public or PublicMetadata
// visibility are appended to the public universe; Private resources are
// left out until the caller (which alone knows the owning group, via
// graph.RelatedUserOrGroups) calls AddToGroupReadUniverse.
func (w *WriteTxn) CreateNode(node interface{}) (Idx, error) {
	var rec nodeRecord
	var id arunaid.ID

	switch n := node.(type) {
	case *resource.Resource:
		rec = nodeRecord{Kind: kindResource, Resource: n}
		id = n.ID
	case *resource.User:
		rec = nodeRecord{Kind: kindUser, User: n}
		id = n.ID
	case *resource.Announcement:
		rec = nodeRecord{Kind: kindAnnouncement, Announcement: n}
		id = n.ID
	default:
		return 0, apierr.InvalidParameter.New("create_node: unsupported node type %T", node)
	}

	nodes := w.tx.Bucket(bucketNodes)
	seq, err := nodes.NextSequence()
	if err != nil {
		return 0, apierr.ServerError.Wrap(err)
	}
	idx := Idx(seq)

	data, err := encodeNode(rec)
	if err != nil {
		return 0, err
	}
	if err := nodes.Put(idxKey(idx), data); err != nil {
		return 0, apierr.ServerError.Wrap(err)
	}

	ulidIdx := w.tx.Bucket(bucketULIDIndex)
	if err := ulidIdx.Put(id[:], idxKey(idx)); err != nil {
		return 0, apierr.ServerError.Wrap(err)
	}

	if rec.Kind == kindResource {
		if rec.Resource.Visibility == resource.VisibilityPublic || rec.Resource.Visibility == resource.VisibilityPublicMetadata {
			if err := w.addToUniverse("public", idx); err != nil {
				return 0, err
			}
		}
	}

	return idx, nil
}

// GetNode returns the node at idx as one of *resource.Resource,
// *resource.User, or *resource.Announcement.
func (r *ReadTxn) GetNode(idx Idx) (interface{}, error) {
	nodes := r.tx.Bucket(bucketNodes)
	data := nodes.Get(idxKey(idx))
	if data == nil {
		return nil, apierr.NotFound.New("node idx %d not found", idx)
	}
	rec, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	return unwrapNode(rec), nil
}

func unwrapNode(rec nodeRecord) interface{} {
	switch rec.Kind {
	case kindUser:
		return rec.User
	case kindAnnouncement:
		return rec.Announcement
	default:
		return rec.Resource
	}
}

// GetResource is a typed convenience wrapper over GetNode for the
// common case of fetching a Resource.
func (r *ReadTxn) GetResource(idx Idx) (*resource.Resource, error) {
	n, err := r.GetNode(idx)
	if err != nil {
		return nil, err
	}
	res, ok := n.(*resource.Resource)
	if !ok {
		return nil, apierr.ConversionError.New("node idx %d is not a Resource", idx)
	}
	return res, nil
}

// GetUser is a typed convenience wrapper over GetNode for the common
// case of fetching a User, used by satellite/auth to resolve a bearer
// token's owning principal.
func (r *ReadTxn) GetUser(idx Idx) (*resource.User, error) {
	n, err := r.GetNode(idx)
	if err != nil {
		return nil, err
	}
	u, ok := n.(*resource.User)
	if !ok {
		return nil, apierr.ConversionError.New("node idx %d is not a User", idx)
	}
	return u, nil
}

// GetIdxFromULID looks up the compact index for a node's ULID.
func (r *ReadTxn) GetIdxFromULID(id arunaid.ID) (Idx, error) {
	ulidIdx := r.tx.Bucket(bucketULIDIndex)
	data := ulidIdx.Get(id[:])
	if data == nil {
		return 0, apierr.NotFound.New("id %s not found", id)
	}
	return idxFromKey(data), nil
}

// UpdateNodeField applies a partial field-map update to the Resource at
// idx, matching spec.md §4.1's update_node_field. Only the fields
// present in fields are mutated; everything else in the stored record
// is left untouched.
func (w *WriteTxn) UpdateNodeField(idx Idx, fields resource.FieldMap) error {
	res, err := w.GetResource(idx)
	if err != nil {
		return err
	}

	for field, value := range fields {
		switch field {
		case resource.FieldName_:
			res.Name = value.(string)
		case resource.FieldTitle:
			res.Title = value.(string)
		case resource.FieldDescription:
			res.Description = value.(string)
		case resource.FieldVisibility:
			res.Visibility = value.(resource.Visibility)
			// Mirrors CreateNode's public-universe population: a
			// widening update (the only direction UpdateResource
			// allows) must be reflected the same way a create would
			// have been, or a since-widened resource would never
			// surface through the public universe.
			if res.Visibility == resource.VisibilityPublic || res.Visibility == resource.VisibilityPublicMetadata {
				if err := w.addToUniverse("public", idx); err != nil {
					return err
				}
			}
		case resource.FieldLicense:
			res.LicenseTag = value.(string)
		case resource.FieldLabels:
			res.Labels = value.([]resource.Label)
		case resource.FieldIdentifiers:
			res.Identifiers = value.([]resource.Identifier)
		case resource.FieldAuthors:
			res.Authors = value.([]resource.Author)
		case resource.FieldLocation:
			res.Locations = value.([]resource.DataLocation)
		case resource.FieldHashes:
			res.Hashes = value.(resource.Hashes)
		case resource.FieldStatus:
			res.Status = value.(resource.Status)
		case resource.FieldContentLen:
			res.ContentLen = value.(int64)
		case resource.FieldLastModified:
			res.UpdatedAt = value.(time.Time)
		default:
			return apierr.NewInvalidParameterf(string(field), "unsupported field_map key")
		}
	}

	return w.putResource(idx, res)
}

func (w *WriteTxn) putResource(idx Idx, res *resource.Resource) error {
	data, err := encodeNode(nodeRecord{Kind: kindResource, Resource: res})
	if err != nil {
		return err
	}
	nodes := w.tx.Bucket(bucketNodes)
	if err := nodes.Put(idxKey(idx), data); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// FilteredUniverse scans every Resource node and returns the indices
// for which predicate holds, implementing spec.md §4.1's
// filtered_universe(predicate) for server-side filters of the form
// `name='…' AND variant<k`. There is no query planner here: the
// predicate is a plain Go closure the caller builds from the request.
func (r *ReadTxn) FilteredUniverse(predicate func(*resource.Resource) bool) ([]Idx, error) {
	var out []Idx
	nodes := r.tx.Bucket(bucketNodes)
	err := nodes.ForEach(func(k, v []byte) error {
		rec, err := decodeNode(v)
		if err != nil {
			return err
		}
		if rec.Kind == kindResource && predicate(rec.Resource) {
			out = append(out, idxFromKey(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddToGroupReadUniverse records that the group at groupIdx may read
// the resource at idx, populating the universe spec.md §4.1 describes
// Private visibility feeding into. Called by satellite/resources after
// graph.RelatedUserOrGroups resolves the owning group(s).
func (w *WriteTxn) AddToGroupReadUniverse(idx, groupIdx Idx) error {
	return w.addToUniverse(groupReadUniverseName(groupIdx), idx)
}

func groupReadUniverseName(groupIdx Idx) string {
	return "group_read:" + idxKeyString(groupIdx)
}

func idxKeyString(idx Idx) string {
	return string(idxKey(idx))
}

func (w *WriteTxn) addToUniverse(name string, idx Idx) error {
	universes := w.tx.Bucket(bucketUniverses)
	sub, err := universes.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return sub.Put(idxKey(idx), []byte{})
}

// Universe returns every index recorded under the named universe
// ("public" or a group_read universe), or nil if the universe has never
// had anything added to it.
func (r *ReadTxn) Universe(name string) ([]Idx, error) {
	universes := r.tx.Bucket(bucketUniverses)
	sub := universes.Bucket([]byte(name))
	if sub == nil {
		return nil, nil
	}
	var out []Idx
	err := sub.ForEach(func(k, _ []byte) error {
		out = append(out, idxFromKey(k))
		return nil
	})
	if err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	return out, nil
}

// GroupReadUniverse is the Universe convenience form for a group's read
// index by its compact idx.
func (r *ReadTxn) GroupReadUniverse(groupIdx Idx) ([]Idx, error) {
	return r.Universe(groupReadUniverseName(groupIdx))
}
