package models

import "time"

// Wish is a row of the wishes table. Column names differ from the wire shape
// sent to templates; see ToPayload and FromPayload.
type Wish struct {
	ID         string      `json:"id"`
	EventID    string      `json:"event_id"`
	GuestID    *string     `json:"guest_id"`
	GuestName  string      `json:"guest_name"`
	WishText   string      `json:"wish_text"`
	PhotoURL   *string     `json:"photo_url"`
	IsApproved bool        `json:"is_approved"`
	LikesCount int         `json:"likes_count"`
	CreatedAt  time.Time   `json:"created_at"`
	Replies    []WishReply `json:"wish_replies,omitempty"`
}

type WishReply struct {
	ID         string    `json:"id"`
	WishID     string    `json:"wish_id"`
	AuthorName string    `json:"author_name"`
	ReplyText  string    `json:"reply_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// WishPayload is the wire shape exchanged with templates.
type WishPayload struct {
	ID         string             `json:"id"`
	GuestID    *string            `json:"guest_id"`
	GuestName  string             `json:"guest_name"`
	Content    string             `json:"content"`
	ImageURL   *string            `json:"image_url"`
	LikesCount int                `json:"likes_count"`
	IsApproved bool               `json:"is_approved"`
	CreatedAt  time.Time          `json:"created_at"`
	Replies    []WishReplyPayload `json:"replies"`
}

type WishReplyPayload struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (w *Wish) ToPayload() WishPayload {
	replies := make([]WishReplyPayload, 0, len(w.Replies))
	for _, r := range w.Replies {
		replies = append(replies, WishReplyPayload{
			ID:         r.ID,
			AuthorName: r.AuthorName,
			Text:       r.ReplyText,
			CreatedAt:  r.CreatedAt,
		})
	}
	return WishPayload{
		ID:         w.ID,
		GuestID:    w.GuestID,
		GuestName:  w.GuestName,
		Content:    w.WishText,
		ImageURL:   w.PhotoURL,
		LikesCount: w.LikesCount,
		IsApproved: w.IsApproved,
		CreatedAt:  w.CreatedAt,
		Replies:    replies,
	}
}

// FromPayload maps a wire wish back onto a row for the given event.
func FromPayload(eventID string, p WishPayload) Wish {
	replies := make([]WishReply, 0, len(p.Replies))
	for _, r := range p.Replies {
		replies = append(replies, WishReply{
			ID:         r.ID,
			WishID:     p.ID,
			AuthorName: r.AuthorName,
			ReplyText:  r.Text,
			CreatedAt:  r.CreatedAt,
		})
	}
	return Wish{
		ID:         p.ID,
		EventID:    eventID,
		GuestID:    p.GuestID,
		GuestName:  p.GuestName,
		WishText:   p.Content,
		PhotoURL:   p.ImageURL,
		IsApproved: p.IsApproved,
		LikesCount: p.LikesCount,
		CreatedAt:  p.CreatedAt,
		Replies:    replies,
	}
}

func WishesToPayload(wishes []*Wish) []WishPayload {
	out := make([]WishPayload, 0, len(wishes))
	for _, w := range wishes {
		out = append(out, w.ToPayload())
	}
	return out
}

// insertRow is the column map used when creating a wish. Approval and likes
// always start at their zero values.
func (w *Wish) insertRow() map[string]interface{} {
	return map[string]interface{}{
		"id":          w.ID,
		"event_id":    w.EventID,
		"guest_id":    w.GuestID,
		"guest_name":  w.GuestName,
		"wish_text":   w.WishText,
		"photo_url":   w.PhotoURL,
		"is_approved": false,
		"likes_count": 0,
		"created_at":  w.CreatedAt,
	}
}
