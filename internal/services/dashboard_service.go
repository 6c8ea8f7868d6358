package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/karlseguin/ccache/v2"
)

const (
	cacheEvents    = "events"
	cacheAnalytics = "analytics"
	cacheWishes    = "wishes"
)

type EventAnalytics struct {
	EventID     string                      `json:"event_id"`
	TotalGuests int                         `json:"total_guests"`
	Viewed      int                         `json:"viewed"`
	Unresponded int                         `json:"unresponded"`
	Accepted    int                         `json:"accepted"`
	Submitted   int                         `json:"submitted"`
	Views       *models.InvitationViewStats `json:"views,omitempty"`
}

type BulkUpdateResult struct {
	Updated int               `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// DashboardService serves host-side reads from a cache that the realtime
// listener invalidates, plus the host's administrative guest actions.
type DashboardService struct {
	resolver *IDResolver
	events   models.EventsRepo
	guests   models.GuestsRepo
	wishes   models.WishesRepo
	views    models.InvitationViewsRepo
	cache    *ccache.LayeredCache
	ttl      time.Duration
	logger   *slog.Logger
}

func NewDashboardService(
	resolver *IDResolver,
	events models.EventsRepo,
	guests models.GuestsRepo,
	wishes models.WishesRepo,
	views models.InvitationViewsRepo,
	ttl time.Duration,
	logger *slog.Logger,
) *DashboardService {
	return &DashboardService{
		resolver: resolver,
		events:   events,
		guests:   guests,
		wishes:   wishes,
		views:    views,
		cache:    ccache.Layered(ccache.Configure().MaxSize(5000)),
		ttl:      ttl,
		logger:   logger,
	}
}

func (d *DashboardService) Stop() {
	d.cache.Stop()
}

// EventForHost resolves a public event id and checks the caller may manage it.
func (d *DashboardService) EventForHost(ctx context.Context, publicID string, claims *helpers.HostClaims) (*models.Event, error) {
	eventID, err := d.resolver.Resolve(ctx, models.KindEvent, publicID)
	if err != nil {
		return nil, err
	}
	event, err := d.events.GetEvent(ctx, eventID, claims.AccessToken)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, &models.ResolutionError{Kind: models.KindEvent, PublicID: publicID}
		}
		return nil, err
	}
	if !claims.CanManage(event.HostID) {
		return nil, models.ErrSecurityRejection
	}
	return event, nil
}

func (d *DashboardService) ListEvents(ctx context.Context, claims *helpers.HostClaims) ([]*models.Event, error) {
	item, err := d.cache.Fetch(cacheEvents, claims.UserID, d.ttl, func() (interface{}, error) {
		return d.events.ListEventsByHost(ctx, claims.UserID, claims.AccessToken)
	})
	if err != nil {
		return nil, err
	}
	return item.Value().([]*models.Event), nil
}

func (d *DashboardService) Analytics(ctx context.Context, event *models.Event, accessToken string) (*EventAnalytics, error) {
	item, err := d.cache.Fetch(cacheAnalytics, event.ID, d.ttl, func() (interface{}, error) {
		return d.computeAnalytics(ctx, event, accessToken)
	})
	if err != nil {
		return nil, err
	}
	return item.Value().(*EventAnalytics), nil
}

func (d *DashboardService) computeAnalytics(ctx context.Context, event *models.Event, accessToken string) (*EventAnalytics, error) {
	guests, err := d.guests.ListGuestsByEvent(ctx, event.ID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}

	stats := &EventAnalytics{EventID: event.ID, TotalGuests: len(guests)}
	for _, g := range guests {
		if g.Viewed {
			stats.Viewed++
		}
		switch DeriveGuestState(g, event, nil).Status {
		case StatusUnresponded:
			stats.Unresponded++
		case StatusAccepted:
			stats.Accepted++
		case StatusSubmitted:
			stats.Submitted++
		}
	}

	if d.views != nil {
		views, err := d.views.GetInvitationViewStats(ctx, event.ID)
		if err != nil {
			d.logger.Warn("Failed to load invitation view stats", "event_id", event.ID, "error", err)
		} else {
			stats.Views = views
		}
	}
	return stats, nil
}

func (d *DashboardService) AdminWishes(ctx context.Context, event *models.Event, accessToken string) ([]models.WishPayload, error) {
	item, err := d.cache.Fetch(cacheWishes, event.ID, d.ttl, func() (interface{}, error) {
		wishes, err := d.wishes.ListWishes(ctx, event.ID, false, accessToken)
		if err != nil {
			return nil, err
		}
		return models.WishesToPayload(wishes), nil
	})
	if err != nil {
		return nil, err
	}
	return item.Value().([]models.WishPayload), nil
}

// ResetGuest clears viewed, accepted and submitted data for one guest.
func (d *DashboardService) ResetGuest(ctx context.Context, event *models.Event, guestPublicID string, accessToken string) error {
	guestID, err := d.resolver.Resolve(ctx, models.KindGuest, guestPublicID)
	if err != nil {
		return err
	}
	if err := d.guests.ResetGuest(ctx, event.ID, guestID, accessToken); err != nil {
		return err
	}
	d.InvalidateEvent(event.ID)
	return nil
}

// BulkUpdateGuests applies each update as its own statement. A failed entry
// does not stop the rest.
func (d *DashboardService) BulkUpdateGuests(ctx context.Context, event *models.Event, updates []models.GuestUpdate, accessToken string) (*BulkUpdateResult, error) {
	if len(updates) == 0 {
		return nil, models.NewValidationError("guests", "no updates given")
	}

	result := &BulkUpdateResult{}
	for _, u := range updates {
		if err := models.Validate.Struct(u); err != nil {
			result.fail(u.ID, err)
			continue
		}
		if err := d.guests.UpdateGuest(ctx, event.ID, u, accessToken); err != nil {
			result.fail(u.ID, err)
			continue
		}
		result.Updated++
	}

	if result.Updated > 0 {
		d.InvalidateEvent(event.ID)
	}
	return result, nil
}

func (r *BulkUpdateResult) fail(id string, err error) {
	if r.Failed == nil {
		r.Failed = map[string]string{}
	}
	r.Failed[id] = err.Error()
}

// InvalidateEvent drops cached event lists and the event's analytics.
func (d *DashboardService) InvalidateEvent(eventID string) {
	d.cache.DeleteAll(cacheEvents)
	if eventID != "" {
		d.cache.Delete(cacheAnalytics, eventID)
	}
}

func (d *DashboardService) InvalidateWishes(eventID string) {
	d.cache.Delete(cacheWishes, eventID)
}
