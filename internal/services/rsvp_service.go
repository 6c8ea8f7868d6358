package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/invites/internal/models"
)

type RSVPRequest struct {
	EventID  string         `json:"eventId"`
	GuestID  string         `json:"guestId"`
	RSVPData map[string]any `json:"rsvpData"`

	// Set by the transport, not by the template.
	Origin    string `json:"-"`
	UserAgent string `json:"-"`

	// ChannelEventID is the internal id of the event the frame is bound to.
	// When set, the payload's event must resolve to it.
	ChannelEventID string `json:"-"`
}

// RSVPPayload is the full state a template renders from after every transition.
type RSVPPayload struct {
	EventID          string             `json:"eventId"`
	GuestID          string             `json:"guestId"`
	Status           RSVPStatus         `json:"status"`
	ShowSubmitButton bool               `json:"showSubmitButton"`
	ShowEditButton   bool               `json:"showEditButton"`
	RSVPFields       []models.RSVPField `json:"rsvpFields"`
	ExistingRSVPData map[string]any     `json:"existingRsvpData"`
}

type RSVPService struct {
	resolver    *IDResolver
	invitations models.InvitationRepo
	views       models.InvitationViewsRepo
	logger      *slog.Logger
	now         func() time.Time
}

func NewRSVPService(resolver *IDResolver, invitations models.InvitationRepo, views models.InvitationViewsRepo, logger *slog.Logger) *RSVPService {
	return &RSVPService{
		resolver:    resolver,
		invitations: invitations,
		views:       views,
		logger:      logger,
		now:         time.Now,
	}
}

// View marks the invitation as opened. The derived status does not change.
func (s *RSVPService) View(ctx context.Context, req RSVPRequest) (*RSVPPayload, error) {
	event, guest, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.invitations.MarkViewed(ctx, guest.ID, s.now()); err != nil {
		return nil, fmt.Errorf("mark viewed: %w", err)
	}

	if s.views != nil {
		view := &models.InvitationView{
			EventID:   event.ID,
			GuestID:   guest.ID,
			Origin:    req.Origin,
			UserAgent: req.UserAgent,
		}
		if err := s.views.TrackInvitationView(ctx, view); err != nil {
			s.logger.Warn("Failed to track invitation view", "event_id", event.ID, "guest_id", guest.ID, "error", err)
		}
	}

	return s.payload(ctx, req, event, guest.ID)
}

// Accept is idempotent: accepting twice only moves the timestamp.
func (s *RSVPService) Accept(ctx context.Context, req RSVPRequest) (*RSVPPayload, error) {
	event, guest, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.invitations.MarkAccepted(ctx, guest.ID, s.now()); err != nil {
		return nil, fmt.Errorf("mark accepted: %w", err)
	}

	return s.payload(ctx, req, event, guest.ID)
}

// Submit stores the form values wholesale and accepts on the guest's behalf.
// Concurrent submits are last-write-wins.
func (s *RSVPService) Submit(ctx context.Context, req RSVPRequest) (*RSVPPayload, error) {
	if req.RSVPData == nil {
		return nil, models.NewValidationError("rsvpData", "required")
	}

	event, guest, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.invitations.SubmitRSVP(ctx, guest.ID, req.RSVPData, s.now()); err != nil {
		return nil, fmt.Errorf("submit rsvp: %w", err)
	}

	return s.payload(ctx, req, event, guest.ID)
}

func (s *RSVPService) resolve(ctx context.Context, req RSVPRequest) (*models.Event, *models.Guest, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, nil, models.NewValidationError("eventId", "required")
	}
	if strings.TrimSpace(req.GuestID) == "" {
		return nil, nil, models.NewValidationError("guestId", "required")
	}

	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, req.EventID)
	if err != nil {
		return nil, nil, err
	}
	guestID, err := s.resolver.Resolve(ctx, models.KindGuest, req.GuestID)
	if err != nil {
		return nil, nil, err
	}

	event, err := s.invitations.GetInvitationEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, nil, &models.ResolutionError{Kind: models.KindEvent, PublicID: req.EventID}
		}
		return nil, nil, err
	}
	if req.ChannelEventID != "" && event.ID != req.ChannelEventID {
		return nil, nil, &models.ResolutionError{Kind: models.KindEvent, PublicID: req.EventID}
	}
	guest, err := s.invitations.GetGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, models.ErrGuestNotFound) {
			return nil, nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: req.GuestID}
		}
		return nil, nil, err
	}

	// A guest id that exists under another event is as good as unknown here.
	if guest.EventID != event.ID {
		return nil, nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: req.GuestID}
	}

	return event, guest, nil
}

// payload re-reads the guest so templates render confirmed server state.
func (s *RSVPService) payload(ctx context.Context, req RSVPRequest, event *models.Event, guestID string) (*RSVPPayload, error) {
	guest, err := s.invitations.GetGuest(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("reload guest: %w", err)
	}
	fields, err := s.invitations.ListRSVPFields(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load rsvp fields: %w", err)
	}

	state := DeriveGuestState(guest, event, fields)
	return &RSVPPayload{
		EventID:          req.EventID,
		GuestID:          req.GuestID,
		Status:           state.Status,
		ShowSubmitButton: state.ShowSubmitButton,
		ShowEditButton:   state.ShowEditButton,
		RSVPFields:       state.Fields,
		ExistingRSVPData: state.ExistingData,
	}, nil
}

// FrameGuest resolves the guest a template frame was opened for. The guest
// must belong to eventID.
func (s *RSVPService) FrameGuest(ctx context.Context, eventID, guestPublicID string) (*models.Guest, error) {
	guestID, err := s.resolver.Resolve(ctx, models.KindGuest, guestPublicID)
	if err != nil {
		return nil, err
	}
	guest, err := s.invitations.GetGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, models.ErrGuestNotFound) {
			return nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: guestPublicID}
		}
		return nil, err
	}
	if guest.EventID != eventID {
		return nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: guestPublicID}
	}
	return guest, nil
}
