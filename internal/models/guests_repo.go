package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"
)

const guestColumns = "id,custom_id,event_id,name,mobile_number,viewed,viewed_at,accepted,accepted_at,rsvp_data"

// GuestsRepo is the host side of the guest list. Every call carries the host's
// token so row-level security scopes it to the host's own events.
type GuestsRepo interface {
	ListGuestsByEvent(ctx context.Context, eventId string, accessToken string) ([]*Guest, error)
	ResetGuest(ctx context.Context, eventId, id string, accessToken string) error
	UpdateGuest(ctx context.Context, eventId string, update GuestUpdate, accessToken string) error
}

func (su *SupabaseRepo) ListGuestsByEvent(ctx context.Context, eventId string, accessToken string) ([]*Guest, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	raw, _, err := client.From(GuestsTable).
		Select(guestColumns, "exact", false).
		Eq("event_id", eventId).
		Order("name", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, storageErr("list guests", err)
	}

	var guests []*Guest
	if err := json.Unmarshal(raw, &guests); err != nil {
		return nil, storageErr("decode guests", err)
	}
	return guests, nil
}

// updateGuest applies one UPDATE statement and fails when no row matched.
func (su *SupabaseRepo) updateGuest(accessToken string, op string, values map[string]interface{}, filters map[string]string) error {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return fmt.Errorf("failed to create authenticated client: %v", err)
	}

	query := client.From(GuestsTable).Update(values, "", "exact")
	for column, value := range filters {
		query = query.Eq(column, value)
	}

	_, count, err := query.Execute()
	if err != nil {
		return storageErr(op, err)
	}
	if count == 0 {
		return ErrGuestNotFound
	}
	return nil
}

func (su *SupabaseRepo) ResetGuest(ctx context.Context, eventId, id string, accessToken string) error {
	return su.updateGuest(accessToken, "reset guest", map[string]interface{}{
		"viewed":      false,
		"viewed_at":   nil,
		"accepted":    false,
		"accepted_at": nil,
		"rsvp_data":   nil,
	}, map[string]string{"id": id, "event_id": eventId})
}

func (su *SupabaseRepo) UpdateGuest(ctx context.Context, eventId string, update GuestUpdate, accessToken string) error {
	values := map[string]interface{}{}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.MobileNumber != nil {
		values["mobile_number"] = *update.MobileNumber
	}
	if len(values) == 0 {
		return NewValidationError("guests", "no fields to update")
	}

	return su.updateGuest(accessToken, "update guest", values, map[string]string{"id": update.ID, "event_id": eventId})
}
