package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/services"
)

var errReleased = errors.New("registration released")

// CacheInvalidator is told about protocol mutations so host dashboards do
// not serve stale aggregates until the change stream catches up.
type CacheInvalidator interface {
	InvalidateEvent(eventID string)
	InvalidateWishes(eventID string)
}

// Inbound is one message as received from a bridge.
type Inbound struct {
	EventID      string
	Origin       string
	UserAgent    string
	Registration *Registration
	Raw          []byte
}

type Router struct {
	registry *Registry
	origins  *OriginPolicy
	rsvp     *services.RSVPService
	wishes   *services.WishService
	cache    CacheInvalidator
	logger   *slog.Logger
}

func NewRouter(
	registry *Registry,
	origins *OriginPolicy,
	rsvp *services.RSVPService,
	wishes *services.WishService,
	cache CacheInvalidator,
	logger *slog.Logger,
) *Router {
	return &Router{
		registry: registry,
		origins:  origins,
		rsvp:     rsvp,
		wishes:   wishes,
		cache:    cache,
		logger:   logger,
	}
}

// reply is an outbound message and whether the registration's observer
// should see it too.
type reply struct {
	msg     Outbound
	observe bool
}

// Handle processes one inbound message. It never returns an error and never
// panics: failures become a generic ERROR reply, and messages that fail the
// access checks are dropped without any reply.
func (rt *Router) Handle(ctx context.Context, in Inbound) {
	reg := in.Registration
	if !rt.registry.Registered(in.EventID, reg) {
		metricsMessagesDropped.WithLabelValues("unregistered").Inc()
		rt.logger.Debug("Dropping message for unregistered frame", "event_id", in.EventID)
		return
	}
	if !rt.origins.Allowed(in.Origin) {
		metricsMessagesDropped.WithLabelValues("origin").Inc()
		rt.logger.Warn("Dropping message from disallowed origin", "event_id", in.EventID, "origin", in.Origin)
		return
	}

	msg, err := Decode(in.Raw)
	if msg != nil && msg.adminOnly() && reg.Role() != RoleAdmin {
		rt.reject(reg, msg)
		return
	}
	if err != nil {
		rt.fail(reg, msg, err)
		return
	}
	if u, ok := msg.(Unknown); ok {
		metricsMessagesDropped.WithLabelValues("unknown_type").Inc()
		rt.logger.Info("Ignoring unknown message type", "event_id", in.EventID, "type", u.Kind)
		return
	}

	// The socket may go away mid-message; storage work is allowed to finish.
	ctx = context.WithoutCancel(ctx)

	reg.channel.mu.Lock()
	defer reg.channel.mu.Unlock()

	replies, err := rt.dispatchSafely(ctx, in, msg)
	if err != nil {
		if errors.Is(err, models.ErrSecurityRejection) {
			rt.reject(reg, msg)
			return
		}
		rt.fail(reg, msg, err)
		return
	}

	metricsMessagesHandled.WithLabelValues(metricsType(msg)).Inc()
	for _, r := range replies {
		if err := reg.deliver(r.msg, r.observe); err != nil {
			rt.logger.Debug("Reply not delivered", "event_id", reg.EventID(), "type", r.msg.Type, "error", err)
			return
		}
	}
}

func (rt *Router) dispatchSafely(ctx context.Context, in Inbound, msg Message) (replies []reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			rt.logger.Error("Message handler panicked", "type", msg.Type(), "panic", p, "stack", string(debug.Stack()))
			replies, err = nil, fmt.Errorf("handler panic: %v", p)
		}
	}()
	return rt.dispatch(ctx, in, msg)
}

func (rt *Router) dispatch(ctx context.Context, in Inbound, msg Message) ([]reply, error) {
	reg := in.Registration

	switch m := msg.(type) {
	case InvitationViewed:
		return rt.rsvpTransition(ctx, in, m.RSVPRequest, rt.rsvp.View)
	case RSVPAccepted:
		return rt.rsvpTransition(ctx, in, m.RSVPRequest, rt.rsvp.Accept)
	case RSVPSubmitted:
		return rt.rsvpTransition(ctx, in, m.RSVPRequest, rt.rsvp.Submit)
	case RequestInitialWishes:
		return rt.loadWishes(ctx, reg, false)
	case RequestInitialAdminWishes, RequestWishesRefresh:
		return rt.loadWishes(ctx, reg, true)
	case SubmitNewWish:
		return rt.submitWish(ctx, reg, m)
	case ToggleWishLike:
		return rt.toggleLike(ctx, reg, m)
	case SubmitWishReply:
		return rt.replyToWish(ctx, reg, m)
	case ApproveWish:
		return rt.approveWish(ctx, reg, m)
	case DeleteWish:
		return rt.deleteWish(ctx, reg, m)
	case Unknown:
		return nil, nil
	default:
		return nil, fmt.Errorf("no handler for message %T", msg)
	}
}

func (rt *Router) rsvpTransition(
	ctx context.Context,
	in Inbound,
	req services.RSVPRequest,
	transition func(context.Context, services.RSVPRequest) (*services.RSVPPayload, error),
) ([]reply, error) {
	req.Origin = in.Origin
	req.UserAgent = in.UserAgent
	req.ChannelEventID = in.Registration.EventID()

	payload, err := transition(ctx, req)
	if err != nil {
		return nil, err
	}
	if rt.cache != nil {
		rt.cache.InvalidateEvent(in.Registration.EventID())
	}
	return []reply{{msg: RSVPStatusMessage(payload)}}, nil
}

// reject drops a message the sender had no right to send.
func (rt *Router) reject(reg *Registration, msg Message) {
	metricsMessagesDropped.WithLabelValues("security").Inc()
	rt.logger.Warn("Rejected message", "event_id", reg.EventID(), "role", reg.Role().String(), "type", msg.Type())
}

// fail logs the detail host-side and sends the template a generic ERROR.
func (rt *Router) fail(reg *Registration, msg Message, err error) {
	kind := "internal"
	level := slog.LevelError
	switch {
	case models.IsValidationError(err):
		kind, level = "validation", slog.LevelInfo
	case models.IsResolutionError(err):
		kind, level = "resolution", slog.LevelInfo
	case errors.Is(err, models.ErrWishNotFound), errors.Is(err, models.ErrWishesDisabled):
		kind, level = "not_found", slog.LevelInfo
	case models.IsStorageError(err):
		kind = "storage"
	}

	metricsMessagesFailed.WithLabelValues(metricsType(msg), kind).Inc()
	rt.logger.Log(context.Background(), level, "Message failed",
		"event_id", reg.EventID(),
		"registration", reg.ID(),
		"type", metricsType(msg),
		"error", err,
	)

	if err := reg.deliver(ErrorMessage(), false); err != nil {
		rt.logger.Debug("Error reply not delivered", "event_id", reg.EventID(), "error", err)
	}
}
