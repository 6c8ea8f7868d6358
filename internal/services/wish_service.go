package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/models"
)

// WishActor identifies who sent a wish message on a channel.
type WishActor struct {
	EventID     string
	Admin       bool
	AccessToken string
	GuestID     string
	DisplayName string
	// LikerKey identifies a host liker. Guests like under their guest id, so a
	// frame opened without one cannot like.
	LikerKey string
}

type SubmitWishRequest struct {
	Content       string `json:"content" validate:"required"`
	GuestID       string `json:"guest_id" validate:"required"`
	GuestName     string `json:"guest_name" validate:"required"`
	ImageData     string `json:"image_data,omitempty"`
	ImageFilename string `json:"image_filename,omitempty"`
	ImageType     string `json:"image_type,omitempty"`
}

type WishReplyRequest struct {
	WishID string `json:"wish_id" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

type WishLimits struct {
	MaxImageBytes   int
	MaxContentRunes int
	MaxReplyRunes   int
	MaxNameRunes    int
}

var DefaultWishLimits = WishLimits{
	MaxImageBytes:   5 << 20,
	MaxContentRunes: 2000,
	MaxReplyRunes:   1000,
	MaxNameRunes:    120,
}

type WishService struct {
	resolver    *IDResolver
	invitations models.InvitationRepo
	wishes      models.WishesRepo
	likes       models.LikesRepo
	images      helpers.ImageStore
	limits      WishLimits
	logger      *slog.Logger
	now         func() time.Time
}

func NewWishService(
	resolver *IDResolver,
	invitations models.InvitationRepo,
	wishes models.WishesRepo,
	likes models.LikesRepo,
	images helpers.ImageStore,
	limits WishLimits,
	logger *slog.Logger,
) *WishService {
	return &WishService{
		resolver:    resolver,
		invitations: invitations,
		wishes:      wishes,
		likes:       likes,
		images:      images,
		limits:      limits,
		logger:      logger,
		now:         time.Now,
	}
}

// GuestWishes returns approved wishes, newest first. Events with wishes
// switched off show an empty wall.
func (s *WishService) GuestWishes(ctx context.Context, actor WishActor) ([]models.WishPayload, error) {
	event, err := s.event(ctx, actor.EventID)
	if err != nil {
		return nil, err
	}
	if !event.WishesEnabled {
		return []models.WishPayload{}, nil
	}

	wishes, err := s.wishes.ListWishes(ctx, event.ID, true, "")
	if err != nil {
		return nil, err
	}
	return models.WishesToPayload(wishes), nil
}

// AdminWishes returns every wish regardless of approval, newest first.
func (s *WishService) AdminWishes(ctx context.Context, actor WishActor) ([]models.WishPayload, error) {
	if !actor.Admin {
		return nil, models.ErrSecurityRejection
	}
	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, actor.EventID)
	if err != nil {
		return nil, err
	}

	wishes, err := s.wishes.ListWishes(ctx, eventID, false, actor.AccessToken)
	if err != nil {
		return nil, err
	}
	return models.WishesToPayload(wishes), nil
}

// Submit creates an unapproved wish. Any inline image is uploaded first and
// only its URL is stored; a failed insert leaves at most an orphaned object.
func (s *WishService) Submit(ctx context.Context, actor WishActor, req SubmitWishRequest) (*models.Wish, error) {
	if err := models.Validate.Struct(req); err != nil {
		return nil, models.NewValidationError("wish", err.Error())
	}

	content, err := checkText("content", req.Content, s.limits.MaxContentRunes)
	if err != nil {
		return nil, err
	}
	name, err := checkText("guest_name", req.GuestName, s.limits.MaxNameRunes)
	if err != nil {
		return nil, err
	}

	event, err := s.event(ctx, actor.EventID)
	if err != nil {
		return nil, err
	}
	if !event.WishesEnabled {
		return nil, models.ErrWishesDisabled
	}

	guestID, err := s.resolver.Resolve(ctx, models.KindGuest, req.GuestID)
	if err != nil {
		return nil, err
	}
	guest, err := s.invitations.GetGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, models.ErrGuestNotFound) {
			return nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: req.GuestID}
		}
		return nil, err
	}
	if guest.EventID != event.ID {
		return nil, &models.ResolutionError{Kind: models.KindGuest, PublicID: req.GuestID}
	}

	var img *helpers.InlineImage
	if strings.TrimSpace(req.ImageData) != "" {
		img, err = helpers.DecodeInlineImage(req.ImageData, path.Base(req.ImageFilename), s.limits.MaxImageBytes)
		if err != nil {
			return nil, models.NewValidationError("image_data", err.Error())
		}
	}

	wish := &models.Wish{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		GuestID:   &guest.ID,
		GuestName: name,
		WishText:  content,
		CreatedAt: s.now().UTC(),
	}

	var publicID string
	if img != nil {
		url, id, err := s.images.Upload(ctx, path.Join(helpers.WishesFolder, event.ID), img)
		if err != nil {
			return nil, &models.StorageError{Op: "upload wish image", Err: err}
		}
		wish.PhotoURL = &url
		publicID = id
	}

	if err := s.wishes.CreateWish(ctx, wish); err != nil {
		if publicID != "" {
			if delErr := s.images.Delete(context.WithoutCancel(ctx), publicID); delErr != nil {
				s.logger.Warn("Failed to clean up wish image", "public_id", publicID, "error", delErr)
			}
		}
		return nil, err
	}

	return wish, nil
}

// Approve is one-way; there is no un-approve.
func (s *WishService) Approve(ctx context.Context, actor WishActor, wishID string) error {
	eventID, wishID, err := s.adminTarget(ctx, actor, wishID)
	if err != nil {
		return err
	}
	return s.wishes.ApproveWish(ctx, eventID, wishID, actor.AccessToken)
}

func (s *WishService) Delete(ctx context.Context, actor WishActor, wishID string) error {
	eventID, wishID, err := s.adminTarget(ctx, actor, wishID)
	if err != nil {
		return err
	}
	return s.wishes.DeleteWish(ctx, eventID, wishID, actor.AccessToken)
}

// ToggleLike flips the actor's like on a wish and returns the new count.
func (s *WishService) ToggleLike(ctx context.Context, actor WishActor, wishID string) (int, error) {
	wishID, err := parseWishID(wishID)
	if err != nil {
		return 0, err
	}
	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, actor.EventID)
	if err != nil {
		return 0, err
	}

	liker := actor.GuestID
	if actor.Admin {
		liker = actor.LikerKey
	}
	if liker == "" {
		return 0, models.NewValidationError("guest", "likes need a guest invitation link")
	}

	return s.likes.ToggleLike(ctx, eventID, wishID, liker)
}

func (s *WishService) Reply(ctx context.Context, actor WishActor, req WishReplyRequest) (*models.WishReply, error) {
	if err := models.Validate.Struct(req); err != nil {
		return nil, models.NewValidationError("reply", err.Error())
	}
	wishID, err := parseWishID(req.WishID)
	if err != nil {
		return nil, err
	}
	text, err := checkText("text", req.Text, s.limits.MaxReplyRunes)
	if err != nil {
		return nil, err
	}

	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, actor.EventID)
	if err != nil {
		return nil, err
	}

	author := "Host"
	if !actor.Admin {
		author = clipRunes(helpers.SanitizeText(actor.DisplayName), s.limits.MaxNameRunes)
		if author == "" {
			author = "Guest"
		}
	}

	reply := &models.WishReply{
		ID:         uuid.New().String(),
		WishID:     wishID,
		AuthorName: author,
		ReplyText:  text,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.wishes.CreateReply(ctx, eventID, reply, actor.AccessToken); err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *WishService) adminTarget(ctx context.Context, actor WishActor, wishID string) (string, string, error) {
	if !actor.Admin {
		return "", "", models.ErrSecurityRejection
	}
	wishID, err := parseWishID(wishID)
	if err != nil {
		return "", "", err
	}
	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, actor.EventID)
	if err != nil {
		return "", "", err
	}
	return eventID, wishID, nil
}

func (s *WishService) event(ctx context.Context, publicID string) (*models.Event, error) {
	eventID, err := s.resolver.Resolve(ctx, models.KindEvent, publicID)
	if err != nil {
		return nil, err
	}
	event, err := s.invitations.GetInvitationEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, &models.ResolutionError{Kind: models.KindEvent, PublicID: publicID}
		}
		return nil, err
	}
	return event, nil
}

// checkText rejects empty or oversize guest text instead of rewriting it.
func checkText(field, raw string, max int) (string, error) {
	clean, err := helpers.CheckText(raw, max)
	if err != nil {
		return "", models.NewValidationError(field, err.Error())
	}
	return clean, nil
}

// clipRunes shortens text that comes from storage rather than from the sender.
func clipRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// parseWishID rejects ids that cannot exist instead of sending them to storage.
func parseWishID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", models.NewValidationError("wish_id", "required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrWishNotFound, raw)
	}
	return id.String(), nil
}
