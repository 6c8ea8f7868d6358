package protocol

import (
	"context"

	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/services"
)

func (rt *Router) actor(reg *Registration) services.WishActor {
	actor := services.WishActor{
		EventID:     reg.EventID(),
		Admin:       reg.Role() == RoleAdmin,
		AccessToken: reg.binding.AccessToken,
		GuestID:     reg.binding.GuestID,
		DisplayName: reg.binding.DisplayName,
	}
	if actor.Admin && reg.binding.HostID != "" {
		actor.LikerKey = "host:" + reg.binding.HostID
	}
	return actor
}

func (rt *Router) loadWishes(ctx context.Context, reg *Registration, admin bool) ([]reply, error) {
	msg, err := rt.wishList(ctx, reg, admin)
	if err != nil {
		return nil, err
	}
	return []reply{{msg: msg}}, nil
}

func (rt *Router) wishList(ctx context.Context, reg *Registration, admin bool) (Outbound, error) {
	var (
		wishes []models.WishPayload
		err    error
	)
	if admin {
		wishes, err = rt.wishes.AdminWishes(ctx, rt.actor(reg))
	} else {
		wishes, err = rt.wishes.GuestWishes(ctx, rt.actor(reg))
	}
	if err != nil {
		return Outbound{}, err
	}
	return WishesMessage(admin, wishes), nil
}

// refreshed re-runs the initial load for the sender's role after a mutation and
// pushes the full list to the frame and its observer.
func (rt *Router) refreshed(ctx context.Context, reg *Registration) ([]reply, error) {
	if rt.cache != nil {
		rt.cache.InvalidateWishes(reg.EventID())
	}
	msg, err := rt.wishList(ctx, reg, reg.Role() == RoleAdmin)
	if err != nil {
		return nil, err
	}
	return []reply{{msg: msg, observe: true}}, nil
}

func (rt *Router) submitWish(ctx context.Context, reg *Registration, m SubmitNewWish) ([]reply, error) {
	wish, err := rt.wishes.Submit(ctx, rt.actor(reg), m.SubmitWishRequest)
	if err != nil {
		return nil, err
	}
	rt.logger.Info("Wish submitted", "event_id", reg.EventID(), "wish_id", wish.ID, "with_image", wish.PhotoURL != nil)
	return rt.refreshed(ctx, reg)
}

func (rt *Router) toggleLike(ctx context.Context, reg *Registration, m ToggleWishLike) ([]reply, error) {
	if _, err := rt.wishes.ToggleLike(ctx, rt.actor(reg), m.WishID); err != nil {
		return nil, err
	}
	return rt.refreshed(ctx, reg)
}

func (rt *Router) replyToWish(ctx context.Context, reg *Registration, m SubmitWishReply) ([]reply, error) {
	if _, err := rt.wishes.Reply(ctx, rt.actor(reg), m.WishReplyRequest); err != nil {
		return nil, err
	}
	return rt.refreshed(ctx, reg)
}

func (rt *Router) approveWish(ctx context.Context, reg *Registration, m ApproveWish) ([]reply, error) {
	if err := rt.wishes.Approve(ctx, rt.actor(reg), m.WishID); err != nil {
		return nil, err
	}
	rt.logger.Info("Wish approved", "event_id", reg.EventID(), "wish_id", m.WishID)
	return rt.refreshed(ctx, reg)
}

func (rt *Router) deleteWish(ctx context.Context, reg *Registration, m DeleteWish) ([]reply, error) {
	if err := rt.wishes.Delete(ctx, rt.actor(reg), m.WishID); err != nil {
		return nil, err
	}
	rt.logger.Info("Wish deleted", "event_id", reg.EventID(), "wish_id", m.WishID)
	return rt.refreshed(ctx, reg)
}
