package services

import (
	"context"
	"testing"
	"time"

	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/memstore"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboard(t *testing.T, store *memstore.Store) *DashboardService {
	d := NewDashboardService(NewIDResolver(store), store, store, store, store, time.Minute, discard)
	t.Cleanup(d.Stop)
	return d
}

func hostClaims(userID string, roles ...string) *helpers.HostClaims {
	claims := &helpers.CustomClaims{}
	claims.AppMetadata.Roles = roles
	return &helpers.HostClaims{CustomClaims: claims, UserID: userID, AccessToken: "token"}
}

func TestEventForHostChecksOwnership(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)
	ctx := context.Background()

	event, err := d.EventForHost(ctx, "wedding-2026", hostClaims("host-1"))
	require.NoError(t, err)
	assert.Equal(t, eventID, event.ID)

	_, err = d.EventForHost(ctx, "wedding-2026", hostClaims("host-2"))
	assert.ErrorIs(t, err, models.ErrSecurityRejection)

	_, err = d.EventForHost(ctx, "wedding-2026", hostClaims("someone", "admin"))
	assert.NoError(t, err)

	_, err = d.EventForHost(ctx, "missing", hostClaims("host-1"))
	assert.True(t, models.IsResolutionError(err))
}

func TestAnalyticsCountsDerivedStatus(t *testing.T) {
	store := seed(t)
	store.AddGuest(models.Guest{ID: "a0000000-0000-0000-0000-000000000001", EventID: eventID, Name: "B", Viewed: true, Accepted: true})
	store.AddGuest(models.Guest{ID: "a0000000-0000-0000-0000-000000000002", EventID: eventID, Name: "C", Viewed: true, Accepted: true, RSVPData: map[string]any{"meal": "veg"}})
	store.AddGuest(models.Guest{ID: "a0000000-0000-0000-0000-000000000003", EventID: eventID, Name: "D", Viewed: true})
	store.Views = append(store.Views, &models.InvitationView{EventID: eventID, GuestID: guestID})
	d := newDashboard(t, store)

	event, err := d.EventForHost(context.Background(), eventID, hostClaims("host-1"))
	require.NoError(t, err)
	stats, err := d.Analytics(context.Background(), event, "token")
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalGuests)
	assert.Equal(t, 3, stats.Viewed)
	assert.Equal(t, 2, stats.Unresponded)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Submitted)
	require.NotNil(t, stats.Views)
	assert.Equal(t, int64(1), stats.Views.TotalViews)
}

func TestAnalyticsCacheInvalidation(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)
	ctx := context.Background()
	event := store.Events[eventID]

	before, err := d.Analytics(ctx, event, "token")
	require.NoError(t, err)
	assert.Equal(t, 0, before.Accepted)

	require.NoError(t, store.MarkAccepted(ctx, guestID, time.Now()))

	cached, err := d.Analytics(ctx, event, "token")
	require.NoError(t, err)
	assert.Equal(t, 0, cached.Accepted)

	d.InvalidateEvent(eventID)
	fresh, err := d.Analytics(ctx, event, "token")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Accepted)
}

func TestAdminWishesCacheInvalidation(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)
	ctx := context.Background()
	event := store.Events[eventID]

	wishes, err := d.AdminWishes(ctx, event, "token")
	require.NoError(t, err)
	assert.Empty(t, wishes)

	store.AddWish(models.Wish{ID: "77777777-7777-7777-7777-777777777777", EventID: eventID, WishText: "hi"})
	d.InvalidateWishes(eventID)

	wishes, err = d.AdminWishes(ctx, event, "token")
	require.NoError(t, err)
	require.Len(t, wishes, 1)
	assert.Equal(t, "hi", wishes[0].Content)
}

func TestListEvents(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)

	events, err := d.ListEvents(context.Background(), hostClaims("host-1"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Wedding", events[0].Name)
}

func TestResetGuest(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)
	ctx := context.Background()
	event := store.Events[eventID]
	require.NoError(t, store.SubmitRSVP(ctx, guestID, map[string]any{"meal": "veg"}, time.Now()))

	require.NoError(t, d.ResetGuest(ctx, event, "g1", "token"))

	g := store.Guest(guestID)
	assert.False(t, g.Accepted)
	assert.False(t, g.Viewed)
	assert.Nil(t, g.RSVPData)

	err := d.ResetGuest(ctx, event, "g9", "token")
	assert.ErrorIs(t, err, models.ErrGuestNotFound)
}

func TestBulkUpdateGuests(t *testing.T) {
	store := seed(t)
	d := newDashboard(t, store)
	name := "Renamed"

	result, err := d.BulkUpdateGuests(context.Background(), store.Events[eventID], []models.GuestUpdate{
		{ID: guestID, Name: &name},
		{ID: strangerID, Name: &name},
		{Name: &name},
	}, "token")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Len(t, result.Failed, 2)
	assert.Equal(t, "Renamed", store.Guest(guestID).Name)
	assert.Equal(t, "Z", store.Guest(strangerID).Name)

	_, err = d.BulkUpdateGuests(context.Background(), store.Events[eventID], nil, "token")
	assert.True(t, models.IsValidationError(err))
}
