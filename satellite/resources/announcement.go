package resources

import (
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/store"
)

// CreateAnnouncementInput is the caller-supplied body of a
// CreateAnnouncement request, restoring the operator-authored notice
// feature spec.md's data model names but its operation list drops.
type CreateAnnouncementInput struct {
	Type    resource.AnnouncementType
	Title   string
	Content string
}

// CreateAnnouncementRequest is the txn.WriteRequest for creating one
// Announcement. Only a global admin may author one.
type CreateAnnouncementRequest struct {
	Input CreateAnnouncementInput
}

func NewCreateAnnouncementRequest(input CreateAnnouncementInput) *CreateAnnouncementRequest {
	return &CreateAnnouncementRequest{Input: input}
}

func (r *CreateAnnouncementRequest) Context() auth.Context {
	return auth.RequireGlobalAdmin()
}

func (r *CreateAnnouncementRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagCreateAnnouncement, Payload: payload}, nil
}

func (r *CreateAnnouncementRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	createdAt := eventID.Time()
	a := &resource.Announcement{
		ID:             arunaid.Derive(eventID, 0),
		Type:           r.Input.Type,
		Title:          r.Input.Title,
		Content:        r.Input.Content,
		CreatedBy:      requester.UserID,
		CreatedAt:      createdAt,
		LastModifiedBy: requester.UserID,
		LastModifiedAt: createdAt,
	}
	idx, err := wtxn.UpsertAnnouncement(a)
	if err != nil {
		return 0, nil, err
	}
	return idx, nil, nil
}

// UpdateAnnouncementInput is the caller-supplied body of an
// UpdateAnnouncement request; Title/Content are optional, matching the
// partial-update convention the rest of this package follows.
type UpdateAnnouncementInput struct {
	ID      arunaid.ID
	Title   *string
	Content *string
}

// UpdateAnnouncementRequest is the txn.WriteRequest for mutating an
// existing Announcement's Title/Content in place, without moving its
// position in the ordered-by-creation listing.
type UpdateAnnouncementRequest struct {
	Input UpdateAnnouncementInput
}

func NewUpdateAnnouncementRequest(input UpdateAnnouncementInput) *UpdateAnnouncementRequest {
	return &UpdateAnnouncementRequest{Input: input}
}

func (r *UpdateAnnouncementRequest) Context() auth.Context {
	return auth.RequireGlobalAdmin()
}

func (r *UpdateAnnouncementRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagUpdateAnnouncement, Payload: payload}, nil
}

func (r *UpdateAnnouncementRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	idx, err := wtxn.GetIdxFromULID(r.Input.ID)
	if err != nil {
		return 0, nil, err
	}
	a, err := wtxn.GetAnnouncement(idx)
	if err != nil {
		return 0, nil, err
	}

	if r.Input.Title != nil {
		a.Title = *r.Input.Title
	}
	if r.Input.Content != nil {
		a.Content = *r.Input.Content
	}
	a.LastModifiedBy = requester.UserID
	a.LastModifiedAt = eventID.Time()

	if _, err := wtxn.UpsertAnnouncement(a); err != nil {
		return 0, nil, err
	}
	return idx, nil, nil
}

// DeleteAnnouncementInput names the announcement to remove.
type DeleteAnnouncementInput struct {
	ID arunaid.ID
}

// DeleteAnnouncementRequest is the txn.WriteRequest for a hard delete —
// announcements have no soft-delete state, unlike Resource's Deleted
// Status.
type DeleteAnnouncementRequest struct {
	Input DeleteAnnouncementInput
	idx   store.Idx
}

func NewDeleteAnnouncementRequest(rtxn *store.ReadTxn, input DeleteAnnouncementInput) (*DeleteAnnouncementRequest, error) {
	idx, err := rtxn.GetIdxFromULID(input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteAnnouncementRequest{Input: input, idx: idx}, nil
}

func (r *DeleteAnnouncementRequest) Context() auth.Context {
	return auth.RequireGlobalAdmin()
}

func (r *DeleteAnnouncementRequest) IntoTx(requester *auth.Requester) (resource.TransactionRecord, error) {
	payload, err := encodePayload(r)
	if err != nil {
		return resource.TransactionRecord{}, err
	}
	return resource.TransactionRecord{RequestTag: TagDeleteAnnouncement, Payload: payload}, nil
}

func (r *DeleteAnnouncementRequest) Apply(wtxn *store.WriteTxn, eventID arunaid.ID, requester *auth.Requester) (store.Idx, []store.Idx, error) {
	if err := wtxn.DeleteAnnouncement(r.Input.ID); err != nil {
		return 0, nil, err
	}
	return r.idx, nil, nil
}

// GetAnnouncementsInput selects which of the three original lookup
// shapes (by id, by type, or an ordered page of everything) a
// GetAnnouncementsRequest runs; exactly one selector should be set.
type GetAnnouncementsInput struct {
	IDs    []arunaid.ID
	Type   *resource.AnnouncementType
	Cursor *arunaid.ID
	Limit  int
}

// GetAnnouncementsRequest is the txn.ReadRequest restoring
// get_announcements/get_announcements_by_type/all_paginated as one
// request type, selected by which of GetAnnouncementsInput's fields is
// populated. Open to anyone — announcements are operator broadcasts,
// not access-controlled resources.
type GetAnnouncementsRequest struct {
	Input GetAnnouncementsInput
}

func NewGetAnnouncementsRequest(input GetAnnouncementsInput) *GetAnnouncementsRequest {
	return &GetAnnouncementsRequest{Input: input}
}

func (r *GetAnnouncementsRequest) Context() auth.Context {
	return auth.Public()
}

func (r *GetAnnouncementsRequest) Run(rtxn *store.ReadTxn, requester *auth.Requester) (interface{}, error) {
	if len(r.Input.IDs) > 0 {
		return rtxn.GetAnnouncementsByIDs(r.Input.IDs)
	}
	if r.Input.Type != nil {
		return rtxn.GetAnnouncementsByType(*r.Input.Type)
	}
	return rtxn.ListAnnouncements(r.Input.Cursor, r.Input.Limit)
}
