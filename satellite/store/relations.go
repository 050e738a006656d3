package store

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
)

// relationKey returns the bucketRelations key origin(8)||target(8)||type
// is stored under — idempotency for create_relation is keyed on exactly
// this (origin, target, type) triple per spec.md §4.1.
func relationKey(origin, target Idx, relType resource.RelationType) []byte {
	key := make([]byte, 0, 17+len(relType))
	key = append(key, idxKey(origin)...)
	key = append(key, idxKey(target)...)
	key = append(key, 0)
	key = append(key, []byte(relType)...)
	return key
}

// bySourcePrefix is the key prefix under which every relation
// originating at origin is also indexed, so graph.Relations(idx) can
// range over a single cursor prefix instead of scanning the whole
// bucket.
func bySourcePrefix(origin Idx) []byte {
	return idxKey(origin)
}

// CreateRelation records an edge from origin to target, idempotent on
// the (origin, target, type) triple: calling it twice with the same
// triple is a no-op, matching spec.md §4.1.
func (w *WriteTxn) CreateRelation(origin, target Idx, relType resource.RelationType) error {
	relations := w.tx.Bucket(bucketRelations)
	key := relationKey(origin, target, relType)
	if relations.Get(key) != nil {
		return nil
	}
	if err := relations.Put(key, []byte{}); err != nil {
		return apierr.ServerError.Wrap(err)
	}

	bySrc := w.tx.Bucket(bucketRelBySrc)
	srcKey := append(bySourcePrefix(origin), key...)
	if err := bySrc.Put(srcKey, idxKey(target)); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// HasRelation reports whether the exact (origin, target, type) edge
// exists.
func (r *ReadTxn) HasRelation(origin, target Idx, relType resource.RelationType) bool {
	relations := r.tx.Bucket(bucketRelations)
	return relations.Get(relationKey(origin, target, relType)) != nil
}

// RelationEdge is one outbound edge as recorded by CreateRelation.
type RelationEdge struct {
	Target Idx
	Type   resource.RelationType
}

// OutboundRelations returns every edge originating at idx, in
// insertion-independent (cursor) order. graph.Parent/graph.Relations
// build their adjacency views from this.
func (r *ReadTxn) OutboundRelations(idx Idx) ([]RelationEdge, error) {
	bySrc := r.tx.Bucket(bucketRelBySrc)
	prefix := bySourcePrefix(idx)

	var out []RelationEdge
	c := bySrc.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		// k = prefix(8) || origin(8) || target(8) || 0 || type; the
		// relation type starts after the 17-byte (origin,target,sep)
		// header recorded in relationKey, offset by the 8-byte source
		// prefix this bucket additionally keys on.
		relType := resource.RelationType(k[8+17:])
		out = append(out, RelationEdge{Target: idxFromKey(v), Type: relType})
	}
	return out, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
