// Package protocol implements the message protocol spoken between invitation
// templates and the host: envelope decoding, origin checks, the per-event frame
// registry and the router that dispatches to the RSVP and wish handlers.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/services"
)

type MessageType string

// Inbound, guest-facing.
const (
	TypeRequestInitialWishes MessageType = "REQUEST_INITIAL_WISHES_DATA"
	TypeSubmitNewWish        MessageType = "SUBMIT_NEW_WISH"
	TypeToggleWishLike       MessageType = "TOGGLE_WISH_LIKE"
	TypeSubmitWishReply      MessageType = "SUBMIT_WISH_REPLY"
	TypeInvitationViewed     MessageType = "INVITATION_VIEWED"
	TypeRSVPAccepted         MessageType = "RSVP_ACCEPTED"
	TypeGuestAcceptance      MessageType = "GUEST_ACCEPTANCE"
	TypeRSVPSubmitted        MessageType = "RSVP_SUBMITTED"
	TypeRSVPUpdated          MessageType = "RSVP_UPDATED"
	TypeGuestRSVPUpdate      MessageType = "GUEST_RSVP_UPDATE"
)

// Inbound, admin-facing.
const (
	TypeRequestInitialAdminWishes MessageType = "REQUEST_INITIAL_ADMIN_WISHES_DATA"
	TypeApproveWish               MessageType = "APPROVE_WISH"
	TypeDeleteWish                MessageType = "DELETE_WISH"
	TypeRequestWishesRefresh      MessageType = "REQUEST_WISHES_REFRESH"
)

// Outbound.
const (
	TypeInitialWishesData      MessageType = "INITIAL_WISHES_DATA"
	TypeInitialAdminWishesData MessageType = "INITIAL_ADMIN_WISHES_DATA"
	TypeError                  MessageType = "ERROR"
	TypeRSVPStatus             MessageType = "RSVP_STATUS"
)

// Envelope is the JSON frame every message travels in.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the closed set of inbound messages. Only types in this file
// implement it.
type Message interface {
	Type() MessageType
	adminOnly() bool
}

type RequestInitialWishes struct{}

type SubmitNewWish struct {
	services.SubmitWishRequest
}

type ToggleWishLike struct {
	WishID string `json:"wish_id"`
}

type SubmitWishReply struct {
	services.WishReplyRequest
}

type InvitationViewed struct {
	services.RSVPRequest
}

// RSVPAccepted covers RSVP_ACCEPTED and its synonym GUEST_ACCEPTANCE.
type RSVPAccepted struct {
	Kind MessageType `json:"-"`
	services.RSVPRequest
}

// RSVPSubmitted covers RSVP_SUBMITTED, RSVP_UPDATED and GUEST_RSVP_UPDATE.
type RSVPSubmitted struct {
	Kind MessageType `json:"-"`
	services.RSVPRequest
}

type RequestInitialAdminWishes struct{}

type ApproveWish struct {
	WishID string `json:"wish_id"`
}

type DeleteWish struct {
	WishID string `json:"wish_id"`
}

type RequestWishesRefresh struct{}

// Unknown carries a type the protocol does not define. It is logged and ignored.
type Unknown struct {
	Kind MessageType
}

func (RequestInitialWishes) Type() MessageType      { return TypeRequestInitialWishes }
func (SubmitNewWish) Type() MessageType             { return TypeSubmitNewWish }
func (ToggleWishLike) Type() MessageType            { return TypeToggleWishLike }
func (SubmitWishReply) Type() MessageType           { return TypeSubmitWishReply }
func (InvitationViewed) Type() MessageType          { return TypeInvitationViewed }
func (m RSVPAccepted) Type() MessageType            { return m.Kind }
func (m RSVPSubmitted) Type() MessageType           { return m.Kind }
func (RequestInitialAdminWishes) Type() MessageType { return TypeRequestInitialAdminWishes }
func (ApproveWish) Type() MessageType               { return TypeApproveWish }
func (DeleteWish) Type() MessageType                { return TypeDeleteWish }
func (RequestWishesRefresh) Type() MessageType      { return TypeRequestWishesRefresh }
func (m Unknown) Type() MessageType                 { return m.Kind }

func (RequestInitialWishes) adminOnly() bool      { return false }
func (SubmitNewWish) adminOnly() bool             { return false }
func (ToggleWishLike) adminOnly() bool            { return false }
func (SubmitWishReply) adminOnly() bool           { return false }
func (InvitationViewed) adminOnly() bool          { return false }
func (RSVPAccepted) adminOnly() bool              { return false }
func (RSVPSubmitted) adminOnly() bool             { return false }
func (RequestInitialAdminWishes) adminOnly() bool { return true }
func (ApproveWish) adminOnly() bool               { return true }
func (DeleteWish) adminOnly() bool                { return true }
func (RequestWishesRefresh) adminOnly() bool      { return true }
func (Unknown) adminOnly() bool                   { return false }

// Decode parses an envelope into its message variant. A broken envelope or a
// payload that does not fit its type is a *models.ValidationError.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, models.NewValidationError("envelope", err.Error())
	}
	if env.Type == "" {
		return nil, models.NewValidationError("type", "required")
	}

	switch env.Type {
	case TypeRequestInitialWishes:
		return RequestInitialWishes{}, nil
	case TypeRequestInitialAdminWishes:
		return RequestInitialAdminWishes{}, nil
	case TypeRequestWishesRefresh:
		return RequestWishesRefresh{}, nil
	case TypeSubmitNewWish:
		var m SubmitNewWish
		err := decodePayload(env, &m)
		return m, err
	case TypeToggleWishLike:
		var m ToggleWishLike
		err := decodePayload(env, &m)
		return m, err
	case TypeSubmitWishReply:
		var m SubmitWishReply
		err := decodePayload(env, &m)
		return m, err
	case TypeInvitationViewed:
		var m InvitationViewed
		err := decodePayload(env, &m)
		return m, err
	case TypeRSVPAccepted, TypeGuestAcceptance:
		m := RSVPAccepted{Kind: env.Type}
		err := decodePayload(env, &m)
		return m, err
	case TypeRSVPSubmitted, TypeRSVPUpdated, TypeGuestRSVPUpdate:
		m := RSVPSubmitted{Kind: env.Type}
		err := decodePayload(env, &m)
		return m, err
	case TypeApproveWish:
		var m ApproveWish
		err := decodePayload(env, &m)
		return m, err
	case TypeDeleteWish:
		var m DeleteWish
		err := decodePayload(env, &m)
		return m, err
	default:
		return Unknown{Kind: env.Type}, nil
	}
}

func decodePayload(env Envelope, v any) error {
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return models.NewValidationError("payload", fmt.Sprintf("%s requires a payload", env.Type))
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return models.NewValidationError("payload", err.Error())
	}
	return nil
}

// Outbound is a message sent to a frame or observer.
type Outbound struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type wishesPayload struct {
	Wishes []models.WishPayload `json:"wishes"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// GenericError is the only error text a template ever sees.
const GenericError = "Something went wrong. Please try again."

func WishesMessage(admin bool, wishes []models.WishPayload) Outbound {
	if wishes == nil {
		wishes = []models.WishPayload{}
	}
	t := TypeInitialWishesData
	if admin {
		t = TypeInitialAdminWishesData
	}
	return Outbound{Type: t, Payload: wishesPayload{Wishes: wishes}}
}

func ErrorMessage() Outbound {
	return Outbound{Type: TypeError, Payload: errorPayload{Error: GenericError}}
}

func RSVPStatusMessage(p *services.RSVPPayload) Outbound {
	return Outbound{Type: TypeRSVPStatus, Payload: p}
}
