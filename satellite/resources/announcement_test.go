package resources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/arunaid"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/auth"
	"aruna.io/aruna/satellite/resources"
	"aruna.io/aruna/satellite/store"
)

// requesterAsGlobalAdmin flips the stored user's GlobalAdmin attribute
// and re-resolves the Requester, so Submit's apply-time re-authorization
// (which re-derives the Requester from the store) sees the same grant
// the pre-commit check did — mirrors fixture.requesterWithGroupPermission.
func requesterAsGlobalAdmin(t *testing.T, f *fixture) *auth.Requester {
	t.Helper()
	err := f.db.Update(func(wtxn *store.WriteTxn) error {
		user, err := wtxn.GetUser(f.userIdx(t, wtxn))
		if err != nil {
			return err
		}
		user.Attributes.GlobalAdmin = true
		_, err = wtxn.CreateNode(user)
		return err
	})
	require.NoError(t, err)

	var requester *auth.Requester
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		requester, err = auth.ResolveRequesterByUserToken(rtxn, f.userID, 0, time.Now())
		return err
	})
	require.NoError(t, err)
	return requester
}

func TestCreateAnnouncementRequiresGlobalAdmin(t *testing.T) {
	f := buildFixture(t)
	requester := f.requesterWithGroupPermission(t, resource.PermissionWrite)

	req := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{
		Type:    "maintenance",
		Title:   "Scheduled downtime",
		Content: "The service will be unavailable Saturday.",
	})
	_, err := f.ctrl.Submit(context.Background(), requester, req)
	require.Error(t, err)
	assert.True(t, apierr.Unauthorized.Has(err))
}

func TestCreateAnnouncementAndGetByID(t *testing.T) {
	f := buildFixture(t)
	admin := requesterAsGlobalAdmin(t, f)

	req := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{
		Type:    "maintenance",
		Title:   "Scheduled downtime",
		Content: "The service will be unavailable Saturday.",
	})
	affected, err := f.ctrl.Submit(context.Background(), admin, req)
	require.NoError(t, err)

	var id arunaid.ID
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		a, err := rtxn.GetAnnouncement(affected.Primary)
		require.NoError(t, err)
		id = a.ID
		assert.Equal(t, "Scheduled downtime", a.Title)
		assert.Equal(t, resource.AnnouncementType("maintenance"), a.Type)
		return nil
	})
	require.NoError(t, err)

	getReq := resources.NewGetAnnouncementsRequest(resources.GetAnnouncementsInput{IDs: []arunaid.ID{id}})
	resp, err := f.ctrl.Query(auth.Anonymous(), getReq)
	require.NoError(t, err)
	list := resp.([]*resource.Announcement)
	require.Len(t, list, 1)
	assert.Equal(t, "Scheduled downtime", list[0].Title)
}

func TestUpdateAnnouncementChangesTitleWithoutMovingOrder(t *testing.T) {
	f := buildFixture(t)
	admin := requesterAsGlobalAdmin(t, f)

	createReq := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{
		Type: "general", Title: "first", Content: "c1",
	})
	affected, err := f.ctrl.Submit(context.Background(), admin, createReq)
	require.NoError(t, err)

	var id arunaid.ID
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		a, err := rtxn.GetAnnouncement(affected.Primary)
		require.NoError(t, err)
		id = a.ID
		return nil
	})
	require.NoError(t, err)

	newTitle := "first (revised)"
	updateReq := resources.NewUpdateAnnouncementRequest(resources.UpdateAnnouncementInput{ID: id, Title: &newTitle})
	_, err = f.ctrl.Submit(context.Background(), admin, updateReq)
	require.NoError(t, err)

	err = f.db.View(func(rtxn *store.ReadTxn) error {
		a, err := rtxn.GetAnnouncement(affected.Primary)
		require.NoError(t, err)
		assert.Equal(t, newTitle, a.Title)
		assert.Equal(t, "c1", a.Content)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteAnnouncementRemovesIt(t *testing.T) {
	f := buildFixture(t)
	admin := requesterAsGlobalAdmin(t, f)

	createReq := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{
		Type: "general", Title: "gone-soon", Content: "c1",
	})
	affected, err := f.ctrl.Submit(context.Background(), admin, createReq)
	require.NoError(t, err)

	var id arunaid.ID
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		a, err := rtxn.GetAnnouncement(affected.Primary)
		require.NoError(t, err)
		id = a.ID
		return nil
	})
	require.NoError(t, err)

	var delReq *resources.DeleteAnnouncementRequest
	err = f.db.View(func(rtxn *store.ReadTxn) error {
		var err error
		delReq, err = resources.NewDeleteAnnouncementRequest(rtxn, resources.DeleteAnnouncementInput{ID: id})
		return err
	})
	require.NoError(t, err)

	_, err = f.ctrl.Submit(context.Background(), admin, delReq)
	require.NoError(t, err)

	err = f.db.View(func(rtxn *store.ReadTxn) error {
		_, err := rtxn.GetAnnouncement(affected.Primary)
		return err
	})
	require.Error(t, err)
	assert.True(t, apierr.NotFound.Has(err))
}

func TestListAnnouncementsOrdersByCreationAndPages(t *testing.T) {
	f := buildFixture(t)
	admin := requesterAsGlobalAdmin(t, f)

	titles := []string{"one", "two", "three"}
	for _, title := range titles {
		req := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{Type: "general", Title: title, Content: "c"})
		_, err := f.ctrl.Submit(context.Background(), admin, req)
		require.NoError(t, err)
	}

	getReq := resources.NewGetAnnouncementsRequest(resources.GetAnnouncementsInput{Limit: 2})
	resp, err := f.ctrl.Query(auth.Anonymous(), getReq)
	require.NoError(t, err)
	page := resp.(store.AnnouncementPage)
	require.Len(t, page.Announcements, 2)
	assert.Equal(t, "one", page.Announcements[0].Title)
	assert.Equal(t, "two", page.Announcements[1].Title)
	require.NotNil(t, page.NextCursor)

	getReq2 := resources.NewGetAnnouncementsRequest(resources.GetAnnouncementsInput{Cursor: page.NextCursor, Limit: 2})
	resp2, err := f.ctrl.Query(auth.Anonymous(), getReq2)
	require.NoError(t, err)
	page2 := resp2.(store.AnnouncementPage)
	require.Len(t, page2.Announcements, 1)
	assert.Equal(t, "three", page2.Announcements[0].Title)
	assert.Nil(t, page2.NextCursor)
}

func TestGetAnnouncementsByType(t *testing.T) {
	f := buildFixture(t)
	admin := requesterAsGlobalAdmin(t, f)

	for _, tc := range []struct{ typ, title string }{
		{"maintenance", "m1"},
		{"general", "g1"},
		{"maintenance", "m2"},
	} {
		req := resources.NewCreateAnnouncementRequest(resources.CreateAnnouncementInput{
			Type: resource.AnnouncementType(tc.typ), Title: tc.title, Content: "c",
		})
		_, err := f.ctrl.Submit(context.Background(), admin, req)
		require.NoError(t, err)
	}

	typ := resource.AnnouncementType("maintenance")
	getReq := resources.NewGetAnnouncementsRequest(resources.GetAnnouncementsInput{Type: &typ})
	resp, err := f.ctrl.Query(auth.Anonymous(), getReq)
	require.NoError(t, err)
	list := resp.([]*resource.Announcement)
	assert.Len(t, list, 2)
}
