package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InvitationRepo serves the template side: id resolution, the event and guest
// a frame renders, and the RSVP transitions. It runs on the server's own
// connection, so the anon key needs no access to events or guests.
type InvitationRepo interface {
	IdentityRepo
	GetInvitationEvent(ctx context.Context, id string) (*Event, error)
	ListRSVPFields(ctx context.Context, eventId string) ([]RSVPField, error)
	GetGuest(ctx context.Context, id string) (*Guest, error)
	MarkViewed(ctx context.Context, id string, at time.Time) error
	MarkAccepted(ctx context.Context, id string, at time.Time) error
	SubmitRSVP(ctx context.Context, id string, data map[string]any, at time.Time) error
}

var _ InvitationRepo = (*PostgresRepo)(nil)

// matchable lists the columns MatchIDs may compare against.
var matchable = map[string]bool{
	EventsTable + ".id":        true,
	EventsTable + ".custom_id": true,
	GuestsTable + ".id":        true,
	GuestsTable + ".custom_id": true,
}

func (pg *PostgresRepo) MatchIDs(ctx context.Context, table, column, value string) ([]string, error) {
	if !matchable[table+"."+column] {
		return nil, fmt.Errorf("match %s.%s: column not matchable", table, column)
	}

	query := fmt.Sprintf("select id::text from %s where %s = $1 limit 2",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())
	rows, err := pg.pool.Query(ctx, query, value)
	if err != nil {
		return nil, storageErr("match "+table+"."+column, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("match "+table+"."+column, err)
	}
	return ids, nil
}

const invitationEventSQL = `
select id::text, coalesce(custom_id, ''), host_id::text, name, wishes_enabled, allow_rsvp_edit
from events
where id = $1`

func (pg *PostgresRepo) GetInvitationEvent(ctx context.Context, id string) (*Event, error) {
	var e Event
	err := pg.pool.QueryRow(ctx, invitationEventSQL, id).
		Scan(&e.ID, &e.CustomID, &e.HostID, &e.Name, &e.WishesEnabled, &e.AllowRSVPEdit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, storageErr("get event", err)
	}
	return &e, nil
}

const rsvpFieldsSQL = `
select id::text, event_id::text, field_name, label, field_type, required, options::text, display_order
from rsvp_fields
where event_id = $1
order by display_order`

func (pg *PostgresRepo) ListRSVPFields(ctx context.Context, eventId string) ([]RSVPField, error) {
	rows, err := pg.pool.Query(ctx, rsvpFieldsSQL, eventId)
	if err != nil {
		return nil, storageErr("list rsvp fields", err)
	}
	defer rows.Close()

	fields := []RSVPField{}
	for rows.Next() {
		var (
			f       RSVPField
			options string
		)
		if err := rows.Scan(&f.ID, &f.EventID, &f.FieldName, &f.Label, &f.FieldType, &f.Required, &options, &f.DisplayOrder); err != nil {
			return nil, storageErr("scan rsvp field", err)
		}
		if err := json.Unmarshal([]byte(options), &f.Options); err != nil {
			return nil, storageErr("decode rsvp field options", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list rsvp fields", err)
	}
	return fields, nil
}

const guestSQL = `
select id::text, coalesce(custom_id, ''), event_id::text, name, coalesce(mobile_number, ''),
       viewed, viewed_at, accepted, accepted_at, rsvp_data::text
from guests
where id = $1`

func (pg *PostgresRepo) GetGuest(ctx context.Context, id string) (*Guest, error) {
	var (
		g    Guest
		data *string
	)
	err := pg.pool.QueryRow(ctx, guestSQL, id).Scan(
		&g.ID, &g.CustomID, &g.EventID, &g.Name, &g.MobileNumber,
		&g.Viewed, &g.ViewedAt, &g.Accepted, &g.AcceptedAt, &data,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, storageErr("get guest", err)
	}
	if data != nil {
		if err := json.Unmarshal([]byte(*data), &g.RSVPData); err != nil {
			return nil, storageErr("decode rsvp data", err)
		}
		if g.RSVPData == nil {
			g.RSVPData = map[string]any{}
		}
	}
	return &g, nil
}

// execGuest runs one UPDATE on a single guest row and fails when no row matched.
func (pg *PostgresRepo) execGuest(ctx context.Context, op, sql string, args ...any) error {
	tag, err := pg.pool.Exec(ctx, sql, args...)
	if err != nil {
		return storageErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGuestNotFound
	}
	return nil
}

func (pg *PostgresRepo) MarkViewed(ctx context.Context, id string, at time.Time) error {
	return pg.execGuest(ctx, "mark guest viewed",
		`update guests set viewed = true, viewed_at = $2 where id = $1`, id, at)
}

func (pg *PostgresRepo) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	return pg.execGuest(ctx, "mark guest accepted",
		`update guests set accepted = true, accepted_at = $2 where id = $1`, id, at)
}

// SubmitRSVP replaces rsvp_data wholesale and implies acceptance.
func (pg *PostgresRepo) SubmitRSVP(ctx context.Context, id string, data map[string]any, at time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewValidationError("rsvpData", "not encodable")
	}
	return pg.execGuest(ctx, "submit rsvp",
		`update guests set accepted = true, accepted_at = $2, rsvp_data = $3::jsonb where id = $1`, id, at, string(raw))
}
