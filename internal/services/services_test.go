package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joshua-takyi/invites/internal/memstore"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventID      = "11111111-1111-1111-1111-111111111111"
	otherEventID = "33333333-3333-3333-3333-333333333333"
	guestID      = "22222222-2222-2222-2222-222222222222"
	strangerID   = "44444444-4444-4444-4444-444444444444"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	store.AddEvent(models.Event{ID: eventID, CustomID: "wedding-2026", HostID: "host-1", Name: "Wedding", WishesEnabled: true, AllowRSVPEdit: true})
	store.AddEvent(models.Event{ID: otherEventID, CustomID: "party", HostID: "host-2", Name: "Party", WishesEnabled: true})
	store.AddGuest(models.Guest{ID: guestID, CustomID: "g1", EventID: eventID, Name: "A"})
	store.AddGuest(models.Guest{ID: strangerID, CustomID: "g9", EventID: otherEventID, Name: "Z"})
	store.SetFields(eventID, []models.RSVPField{
		{ID: "f2", EventID: eventID, FieldName: "plus_one", Label: "Plus one", FieldType: "boolean", DisplayOrder: 2},
		{ID: "f1", EventID: eventID, FieldName: "meal", Label: "Meal", FieldType: "select", Required: true, Options: []string{"veg", "meat"}, DisplayOrder: 1},
	})
	return store
}

func TestResolverPassesInternalIDThrough(t *testing.T) {
	r := NewIDResolver(seed(t))

	id, err := r.Resolve(context.Background(), models.KindGuest, guestID)
	require.NoError(t, err)
	assert.Equal(t, guestID, id)
}

func TestResolverMapsCustomID(t *testing.T) {
	r := NewIDResolver(seed(t))

	id, err := r.Resolve(context.Background(), models.KindEvent, "wedding-2026")
	require.NoError(t, err)
	assert.Equal(t, eventID, id)
}

func TestResolverFailsOnUnknownIDs(t *testing.T) {
	r := NewIDResolver(seed(t))

	for _, publicID := range []string{"nope", "", "55555555-5555-5555-5555-555555555555", "WEDDING-2026"} {
		_, err := r.Resolve(context.Background(), models.KindEvent, publicID)
		assert.True(t, models.IsResolutionError(err), "expected resolution error for %q, got %v", publicID, err)
	}
}

func TestResolverRejectsAmbiguousCustomID(t *testing.T) {
	store := seed(t)
	store.AddGuest(models.Guest{ID: "66666666-6666-6666-6666-666666666666", CustomID: "g1", EventID: eventID})
	r := NewIDResolver(store)

	_, err := r.Resolve(context.Background(), models.KindGuest, "g1")
	var re *models.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.Ambiguous)
}

func TestDeriveStatus(t *testing.T) {
	event := &models.Event{ID: eventID, AllowRSVPEdit: true}
	fields := []models.RSVPField{{FieldName: "meal"}}

	cases := []struct {
		name       string
		guest      models.Guest
		status     RSVPStatus
		submitBtn  bool
		editButton bool
	}{
		{"never viewed", models.Guest{}, StatusUnresponded, true, false},
		{"viewed only", models.Guest{Viewed: true}, StatusUnresponded, true, false},
		{"accepted", models.Guest{Accepted: true}, StatusAccepted, true, false},
		{"submitted", models.Guest{Accepted: true, RSVPData: map[string]any{"meal": "veg"}}, StatusSubmitted, false, true},
		{"empty submission still counts", models.Guest{Accepted: true, RSVPData: map[string]any{}}, StatusSubmitted, false, true},
		{"data without acceptance", models.Guest{RSVPData: map[string]any{"meal": "veg"}}, StatusUnresponded, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := DeriveGuestState(&tc.guest, event, fields)
			assert.Equal(t, tc.status, state.Status)
			assert.Equal(t, tc.submitBtn, state.ShowSubmitButton)
			assert.Equal(t, tc.editButton, state.ShowEditButton)
		})
	}
}

func TestDeriveHidesSubmitWithoutFields(t *testing.T) {
	state := DeriveGuestState(&models.Guest{}, &models.Event{}, nil)
	assert.False(t, state.ShowSubmitButton)
	assert.NotNil(t, state.Fields)
}

func TestDeriveEditRequiresEventPermission(t *testing.T) {
	guest := &models.Guest{Accepted: true, RSVPData: map[string]any{"meal": "veg"}}
	state := DeriveGuestState(guest, &models.Event{AllowRSVPEdit: false}, nil)
	assert.Equal(t, StatusSubmitted, state.Status)
	assert.False(t, state.ShowEditButton)
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]RSVPStatus{"a": StatusUnresponded, "b": StatusAccepted, "c": StatusSubmitted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":"accepted","c":"submitted"}`, string(raw))
}

func newRSVP(store *memstore.Store) *RSVPService {
	svc := NewRSVPService(NewIDResolver(store), store, store, discard)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestRSVPUnrespondedGuestSeesSubmitButton(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)

	payload, err := svc.View(context.Background(), RSVPRequest{EventID: "wedding-2026", GuestID: "g1"})
	require.NoError(t, err)

	assert.Equal(t, StatusUnresponded, payload.Status)
	assert.True(t, payload.ShowSubmitButton)
	assert.False(t, payload.ShowEditButton)
	require.Len(t, payload.RSVPFields, 2)
	assert.Equal(t, "meal", payload.RSVPFields[0].FieldName)
	assert.Equal(t, "wedding-2026", payload.EventID)

	g := store.Guest(guestID)
	assert.True(t, g.Viewed)
	assert.False(t, g.Accepted)
	assert.Len(t, store.Views, 1)
}

func TestRSVPAcceptIsIdempotent(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)
	req := RSVPRequest{EventID: eventID, GuestID: "g1"}

	first, err := svc.Accept(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Accept(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, first.Status)
	assert.Equal(t, StatusAccepted, second.Status)
	assert.Len(t, store.Guests, 2)
	assert.Equal(t, 0, store.WishCount())
}

func TestRSVPSubmitAcceptsAndStoresData(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)

	payload, err := svc.Submit(context.Background(), RSVPRequest{EventID: eventID, GuestID: guestID, RSVPData: map[string]any{"meal": "veg"}})
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, payload.Status)
	assert.True(t, payload.ShowEditButton)
	assert.False(t, payload.ShowSubmitButton)
	assert.Equal(t, map[string]any{"meal": "veg"}, payload.ExistingRSVPData)

	g := store.Guest(guestID)
	assert.True(t, g.Accepted)
	assert.NotNil(t, g.AcceptedAt)
	assert.Equal(t, map[string]any{"meal": "veg"}, g.RSVPData)
}

func TestRSVPSubmitReplacesDataWholesale(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)
	ctx := context.Background()

	_, err := svc.Submit(ctx, RSVPRequest{EventID: eventID, GuestID: guestID, RSVPData: map[string]any{"meal": "veg", "plus_one": true}})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, RSVPRequest{EventID: eventID, GuestID: guestID, RSVPData: map[string]any{"meal": "meat"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"meal": "meat"}, store.Guest(guestID).RSVPData)
}

func TestRSVPValidationFailsBeforeMutation(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)
	ctx := context.Background()

	_, err := svc.Accept(ctx, RSVPRequest{EventID: eventID})
	assert.True(t, models.IsValidationError(err))

	_, err = svc.Accept(ctx, RSVPRequest{GuestID: guestID})
	assert.True(t, models.IsValidationError(err))

	_, err = svc.Submit(ctx, RSVPRequest{EventID: eventID, GuestID: guestID})
	assert.True(t, models.IsValidationError(err))

	assert.Equal(t, 0, store.Writes)
}

func TestRSVPRejectsGuestOfAnotherEvent(t *testing.T) {
	store := seed(t)
	svc := newRSVP(store)

	_, err := svc.Accept(context.Background(), RSVPRequest{EventID: eventID, GuestID: "g9"})
	assert.True(t, models.IsResolutionError(err))
	assert.False(t, store.Guest(strangerID).Accepted)
	assert.Equal(t, 0, store.Writes)
}

func TestRSVPStorageFailureSurfaces(t *testing.T) {
	store := seed(t)
	store.FailWrites = true
	svc := newRSVP(store)

	_, err := svc.Accept(context.Background(), RSVPRequest{EventID: eventID, GuestID: guestID})
	assert.True(t, models.IsStorageError(err))
}

func TestRSVPRejectsEventOtherThanChannel(t *testing.T) {
	store := seed(t)
	store.AddGuest(models.Guest{ID: "55555555-5555-5555-5555-555555555555", CustomID: "p1", EventID: otherEventID})
	svc := newRSVP(store)

	_, err := svc.Accept(context.Background(), RSVPRequest{EventID: "party", GuestID: "p1", ChannelEventID: eventID})
	assert.True(t, models.IsResolutionError(err))
	assert.Equal(t, 0, store.Writes)
}

func TestFrameGuestMustBelongToEvent(t *testing.T) {
	svc := newRSVP(seed(t))

	guest, err := svc.FrameGuest(context.Background(), eventID, "g1")
	require.NoError(t, err)
	assert.Equal(t, guestID, guest.ID)

	_, err = svc.FrameGuest(context.Background(), eventID, "g9")
	assert.True(t, models.IsResolutionError(err))

	_, err = svc.FrameGuest(context.Background(), eventID, "missing")
	assert.True(t, models.IsResolutionError(err))
}
