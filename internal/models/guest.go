package models

import "time"

type Guest struct {
	ID           string         `json:"id"`
	CustomID     string         `json:"custom_id,omitempty"`
	EventID      string         `json:"event_id"`
	Name         string         `json:"name"`
	MobileNumber string         `json:"mobile_number,omitempty"`
	Viewed       bool           `json:"viewed"`
	ViewedAt     *time.Time     `json:"viewed_at"`
	Accepted     bool           `json:"accepted"`
	AcceptedAt   *time.Time     `json:"accepted_at"`
	RSVPData     map[string]any `json:"rsvp_data"`
}

// HasRSVPData reports whether the guest has submitted form values. An empty
// object still counts as submitted.
func (g *Guest) HasRSVPData() bool {
	return g.RSVPData != nil
}

// GuestUpdate is one entry of a host bulk update. Nil fields are left untouched.
type GuestUpdate struct {
	ID           string  `json:"id" validate:"required"`
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	MobileNumber *string `json:"mobile_number,omitempty" validate:"omitempty,max=32"`
}
