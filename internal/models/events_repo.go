package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"
)

type IdentityRepo interface {
	// MatchIDs returns the internal ids of rows in table whose column equals value.
	MatchIDs(ctx context.Context, table, column, value string) ([]string, error)
}

// EventsRepo reads events with the host's token.
type EventsRepo interface {
	GetEvent(ctx context.Context, id string, accessToken string) (*Event, error)
	ListEventsByHost(ctx context.Context, hostId string, accessToken string) ([]*Event, error)
}

func (su *SupabaseRepo) GetEvent(ctx context.Context, id string, accessToken string) (*Event, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	raw, _, err := client.From(EventsTable).
		Select("id,custom_id,host_id,name,wishes_enabled,allow_rsvp_edit", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, storageErr("get event", err)
	}

	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, storageErr("decode event", err)
	}
	if len(events) == 0 {
		return nil, ErrEventNotFound
	}
	return &events[0], nil
}

func (su *SupabaseRepo) ListEventsByHost(ctx context.Context, hostId string, accessToken string) ([]*Event, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	raw, _, err := client.From(EventsTable).
		Select("id,custom_id,host_id,name,wishes_enabled,allow_rsvp_edit", "exact", false).
		Eq("host_id", hostId).
		Order("name", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, storageErr("list events", err)
	}

	var events []*Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, storageErr("decode events", err)
	}
	return events, nil
}
