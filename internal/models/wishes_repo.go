package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/supabase-community/postgrest-go"
)

const wishSelect = "id,event_id,guest_id,guest_name,wish_text,photo_url,is_approved,likes_count,created_at,wish_replies(id,wish_id,author_name,reply_text,created_at)"

type WishesRepo interface {
	ListWishes(ctx context.Context, eventId string, approvedOnly bool, accessToken string) ([]*Wish, error)
	CreateWish(ctx context.Context, wish *Wish) error
	ApproveWish(ctx context.Context, eventId, wishId string, accessToken string) error
	DeleteWish(ctx context.Context, eventId, wishId string, accessToken string) error
	CreateReply(ctx context.Context, eventId string, reply *WishReply, accessToken string) error
}

type LikesRepo interface {
	// ToggleLike adds or removes likerKey's like on the wish and returns the new count.
	ToggleLike(ctx context.Context, eventId, wishId, likerKey string) (int, error)
}

// ListWishes returns wishes newest first. approvedOnly restricts the result to
// the rows guests are allowed to see.
func (su *SupabaseRepo) ListWishes(ctx context.Context, eventId string, approvedOnly bool, accessToken string) ([]*Wish, error) {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	query := client.From(WishesTable).
		Select(wishSelect, "", false).
		Eq("event_id", eventId)
	if approvedOnly {
		query = query.Eq("is_approved", "true")
	}

	raw, _, err := query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("created_at", &postgrest.OrderOpts{Ascending: true, ForeignTable: WishRepliesTable}).
		Execute()
	if err != nil {
		return nil, storageErr("list wishes", err)
	}

	wishes := []*Wish{}
	if err := json.Unmarshal(raw, &wishes); err != nil {
		return nil, storageErr("decode wishes", err)
	}
	return wishes, nil
}

func (su *SupabaseRepo) CreateWish(ctx context.Context, wish *Wish) error {
	_, count, err := su.supabaseClient.From(WishesTable).
		Insert(wish.insertRow(), false, "", "", "exact").
		Execute()
	if err != nil {
		return storageErr("create wish", err)
	}
	if count == 0 {
		return storageErr("create wish", errors.New("no row inserted"))
	}
	return nil
}

func (su *SupabaseRepo) ApproveWish(ctx context.Context, eventId, wishId string, accessToken string) error {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return fmt.Errorf("failed to create authenticated client: %v", err)
	}

	_, count, err := client.From(WishesTable).
		Update(map[string]interface{}{"is_approved": true}, "", "exact").
		Eq("id", wishId).
		Eq("event_id", eventId).
		Execute()
	if err != nil {
		return storageErr("approve wish", err)
	}
	if count == 0 {
		return ErrWishNotFound
	}
	return nil
}

func (su *SupabaseRepo) DeleteWish(ctx context.Context, eventId, wishId string, accessToken string) error {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return fmt.Errorf("failed to create authenticated client: %v", err)
	}

	_, count, err := client.From(WishesTable).
		Delete("", "exact").
		Eq("id", wishId).
		Eq("event_id", eventId).
		Execute()
	if err != nil {
		return storageErr("delete wish", err)
	}
	if count == 0 {
		return ErrWishNotFound
	}
	return nil
}

// CreateReply inserts a reply; the insert policy checks that the wish belongs to eventId.
func (su *SupabaseRepo) CreateReply(ctx context.Context, eventId string, reply *WishReply, accessToken string) error {
	client, err := su.clientFor(accessToken)
	if err != nil {
		return fmt.Errorf("failed to create authenticated client: %v", err)
	}

	_, count, err := client.From(WishRepliesTable).
		Insert(map[string]interface{}{
			"id":          reply.ID,
			"wish_id":     reply.WishID,
			"event_id":    eventId,
			"author_name": reply.AuthorName,
			"reply_text":  reply.ReplyText,
			"created_at":  reply.CreatedAt,
		}, false, "", "", "exact").
		Execute()
	if err != nil {
		return storageErr("create wish reply", err)
	}
	if count == 0 {
		return ErrWishNotFound
	}
	return nil
}

const toggleLikeSQL = `
WITH target AS (
	SELECT id FROM wishes WHERE id = $1::uuid AND event_id = $2::uuid
), removed AS (
	DELETE FROM wish_likes l
	USING target
	WHERE l.wish_id = target.id AND l.liker_key = $3
	RETURNING l.wish_id
), added AS (
	INSERT INTO wish_likes (wish_id, liker_key)
	SELECT id, $3 FROM target
	WHERE NOT EXISTS (SELECT 1 FROM removed)
	RETURNING wish_id
)
UPDATE wishes w
SET likes_count = GREATEST(0, w.likes_count + CASE WHEN EXISTS (SELECT 1 FROM removed) THEN -1 ELSE 1 END)
FROM target
WHERE w.id = target.id
RETURNING w.likes_count`

func (pg *PostgresRepo) ToggleLike(ctx context.Context, eventId, wishId, likerKey string) (int, error) {
	var count int
	err := pg.pool.QueryRow(ctx, toggleLikeSQL, wishId, eventId, likerKey).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWishNotFound
	}
	if err != nil {
		return 0, storageErr("toggle wish like", err)
	}
	return count, nil
}
