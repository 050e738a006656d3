package store

import (
	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
)

// UpsertAnnouncement creates a.ID fresh, or overwrites the existing
// record in place when a.ID is already known — the same
// "ON CONFLICT(id) DO UPDATE" shape the restored announcements feature
// is grounded on, but expressed as a store-level idempotency rule
// rather than a SQL upsert. The by-time ordering index is only
// populated on the create path, since a.ID is an arunaid.ID (a ULID)
// and therefore already time-sortable: the index key is exactly a.ID,
// never the mutable LastModifiedAt, so an update never moves an
// announcement's position in the ordered listing.
func (w *WriteTxn) UpsertAnnouncement(a *resource.Announcement) (Idx, error) {
	idx, err := w.GetIdxFromULID(a.ID)
	switch {
	case err == nil:
		return idx, w.putAnnouncement(idx, a)
	case apierr.NotFound.Has(err):
		idx, err := w.CreateNode(a)
		if err != nil {
			return 0, err
		}
		seq := w.tx.Bucket(bucketAnnouncementSeq)
		if err := seq.Put(a.ID[:], idxKey(idx)); err != nil {
			return 0, apierr.ServerError.Wrap(err)
		}
		return idx, nil
	default:
		return 0, err
	}
}

func (w *WriteTxn) putAnnouncement(idx Idx, a *resource.Announcement) error {
	data, err := encodeNode(nodeRecord{Kind: kindAnnouncement, Announcement: a})
	if err != nil {
		return err
	}
	nodes := w.tx.Bucket(bucketNodes)
	if err := nodes.Put(idxKey(idx), data); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// DeleteAnnouncement removes an announcement's node, ULID mapping, and
// by-time ordering entry entirely — announcements have no soft-delete
// state of their own (unlike Resource's terminal Deleted Status), so
// spec.md's restored delete operation is a hard delete.
func (w *WriteTxn) DeleteAnnouncement(id arunaid.ID) error {
	idx, err := w.GetIdxFromULID(id)
	if err != nil {
		return err
	}
	nodes := w.tx.Bucket(bucketNodes)
	if err := nodes.Delete(idxKey(idx)); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	ulidIdx := w.tx.Bucket(bucketULIDIndex)
	if err := ulidIdx.Delete(id[:]); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	seq := w.tx.Bucket(bucketAnnouncementSeq)
	if err := seq.Delete(id[:]); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}

// AnnouncementPage is one page of ordered announcements plus the cursor
// to resume after it, if there are more.
type AnnouncementPage struct {
	Announcements []*resource.Announcement
	NextCursor    *arunaid.ID
}

// ListAnnouncements returns up to limit announcements in creation order,
// starting strictly after cursor (nil for the first page) — spec.md's
// restored "ordered paging" requirement, implemented as a bbolt cursor
// range scan over bucketAnnouncementSeq rather than a SQL OFFSET, since
// announcement ids are already time-sortable.
func (r *ReadTxn) ListAnnouncements(cursor *arunaid.ID, limit int) (AnnouncementPage, error) {
	seq := r.tx.Bucket(bucketAnnouncementSeq)
	c := seq.Cursor()

	var k, v []byte
	if cursor != nil {
		c.Seek(cursor[:])
		k, v = c.Next()
	} else {
		k, v = c.First()
	}

	var page AnnouncementPage
	for ; k != nil && len(page.Announcements) < limit; k, v = c.Next() {
		a, err := r.GetAnnouncement(idxFromKey(v))
		if err != nil {
			return AnnouncementPage{}, err
		}
		page.Announcements = append(page.Announcements, a)
	}
	if k != nil && len(page.Announcements) > 0 {
		next := page.Announcements[len(page.Announcements)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

// GetAnnouncement is a typed convenience wrapper over GetNode, the
// Announcement equivalent of GetResource/GetUser.
func (r *ReadTxn) GetAnnouncement(idx Idx) (*resource.Announcement, error) {
	n, err := r.GetNode(idx)
	if err != nil {
		return nil, err
	}
	a, ok := n.(*resource.Announcement)
	if !ok {
		return nil, apierr.ConversionError.New("node idx %d is not an Announcement", idx)
	}
	return a, nil
}

// GetAnnouncementsByType scans every announcement node for a Type match,
// the same full-scan-with-predicate shape FilteredUniverse uses for
// Resources — announcement volume is small enough that no secondary
// type index is warranted.
func (r *ReadTxn) GetAnnouncementsByType(t resource.AnnouncementType) ([]*resource.Announcement, error) {
	var out []*resource.Announcement
	nodes := r.tx.Bucket(bucketNodes)
	err := nodes.ForEach(func(_, v []byte) error {
		rec, err := decodeNode(v)
		if err != nil {
			return err
		}
		if rec.Kind == kindAnnouncement && rec.Announcement.Type == t {
			out = append(out, rec.Announcement)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.ServerError.Wrap(err)
	}
	return out, nil
}

// GetAnnouncementsByIDs resolves a caller-supplied id list directly,
// spec.md's "by ids" variant of GetAnnouncements.
func (r *ReadTxn) GetAnnouncementsByIDs(ids []arunaid.ID) ([]*resource.Announcement, error) {
	out := make([]*resource.Announcement, 0, len(ids))
	for _, id := range ids {
		idx, err := r.GetIdxFromULID(id)
		if err != nil {
			return nil, err
		}
		a, err := r.GetAnnouncement(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
