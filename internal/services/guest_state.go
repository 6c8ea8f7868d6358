package services

import (
	"encoding/json"
	"fmt"

	"github.com/joshua-takyi/invites/internal/models"
)

// RSVPStatus is the guest's response state as seen by templates. It is always
// derived from stored flags, never stored itself.
type RSVPStatus int

const (
	StatusUnresponded RSVPStatus = iota
	StatusAccepted
	StatusSubmitted
)

func (s RSVPStatus) String() string {
	switch s {
	case StatusUnresponded:
		return "unresponded"
	case StatusAccepted:
		return "accepted"
	case StatusSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("RSVPStatus(%d)", int(s))
	}
}

// MarshalJSON emits null for unresponded guests; templates treat a missing
// status as "no answer yet".
func (s RSVPStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusUnresponded:
		return []byte("null"), nil
	case StatusAccepted, StatusSubmitted:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("unknown rsvp status %d", int(s))
	}
}

type GuestState struct {
	Status           RSVPStatus
	ShowSubmitButton bool
	ShowEditButton   bool
	Fields           []models.RSVPField
	ExistingData     map[string]any
}

// DeriveGuestState is pure: the same guest, event and fields always give the
// same state. Viewed is deliberately not an input.
func DeriveGuestState(guest *models.Guest, event *models.Event, fields []models.RSVPField) GuestState {
	status := StatusUnresponded
	switch {
	case guest.Accepted && guest.HasRSVPData():
		status = StatusSubmitted
	case guest.Accepted:
		status = StatusAccepted
	}

	if fields == nil {
		fields = []models.RSVPField{}
	}

	return GuestState{
		Status:           status,
		ShowSubmitButton: len(fields) > 0 && !guest.HasRSVPData(),
		ShowEditButton:   guest.HasRSVPData() && event.AllowRSVPEdit,
		Fields:           fields,
		ExistingData:     guest.RSVPData,
	}
}
