// Package memstore provides in-memory implementations of the repository
// interfaces in models. It mirrors the row-level rules the database enforces
// closely enough for handler tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/models"
)

type Store struct {
	mu      sync.Mutex
	Events  map[string]*models.Event
	Guests  map[string]*models.Guest
	Wishes  map[string]*models.Wish
	Fields  map[string][]models.RSVPField
	Likes   map[string]map[string]bool
	Views   []*models.InvitationView
	Uploads map[string]*helpers.InlineImage

	// Writes counts successful mutations, to assert that rejected messages
	// touched nothing.
	Writes      int
	// FailWrites makes every mutation return a storage error.
	FailWrites  bool
	// FailUploads makes image uploads fail.
	FailUploads bool
}

var (
	_ models.InvitationRepo      = (*Store)(nil)
	_ models.EventsRepo          = (*Store)(nil)
	_ models.GuestsRepo          = (*Store)(nil)
	_ models.WishesRepo          = (*Store)(nil)
	_ models.LikesRepo           = (*Store)(nil)
	_ models.InvitationViewsRepo = (*Store)(nil)
	_ helpers.ImageStore         = (*Store)(nil)
)

func New() *Store {
	return &Store{
		Events:  map[string]*models.Event{},
		Guests:  map[string]*models.Guest{},
		Wishes:  map[string]*models.Wish{},
		Fields:  map[string][]models.RSVPField{},
		Likes:   map[string]map[string]bool{},
		Uploads: map[string]*helpers.InlineImage{},
	}
}

var errWriteFailed = errors.New("simulated write failure")

func (s *Store) write(op string) error {
	if s.FailWrites {
		return &models.StorageError{Op: op, Err: errWriteFailed}
	}
	s.Writes++
	return nil
}

func (s *Store) AddEvent(e models.Event) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := e
	s.Events[e.ID] = &ev
	return &ev
}

func (s *Store) AddGuest(g models.Guest) *models.Guest {
	s.mu.Lock()
	defer s.mu.Unlock()
	guest := g
	s.Guests[g.ID] = &guest
	return &guest
}

func (s *Store) AddWish(w models.Wish) *models.Wish {
	s.mu.Lock()
	defer s.mu.Unlock()
	wish := w
	s.Wishes[w.ID] = &wish
	return &wish
}

func (s *Store) SetFields(eventID string, fields []models.RSVPField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fields[eventID] = fields
}

// Guest returns a copy of the stored guest row.
func (s *Store) Guest(id string) models.Guest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Guests[id]
}

func (s *Store) Wish(id string) (models.Wish, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.Wishes[id]
	if !ok {
		return models.Wish{}, false
	}
	return *w, true
}

func (s *Store) WishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Wishes)
}

func (s *Store) MatchIDs(ctx context.Context, table, column, value string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	match := func(id, custom string) {
		if (column == "id" && id == value) || (column == "custom_id" && custom != "" && custom == value) {
			ids = append(ids, id)
		}
	}
	switch table {
	case models.EventsTable:
		for _, e := range s.Events {
			match(e.ID, e.CustomID)
		}
	case models.GuestsTable:
		for _, g := range s.Guests {
			match(g.ID, g.CustomID)
		}
	default:
		return nil, fmt.Errorf("unknown table %s", table)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetEvent(ctx context.Context, id string, accessToken string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.Events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	ev := *e
	return &ev, nil
}

// GetInvitationEvent reads the event the way the template side does.
func (s *Store) GetInvitationEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.GetEvent(ctx, id, "")
}

func (s *Store) ListEventsByHost(ctx context.Context, hostId string, accessToken string) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.Events {
		if e.HostID == hostId {
			ev := *e
			out = append(out, &ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListRSVPFields(ctx context.Context, eventId string) ([]models.RSVPField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := append([]models.RSVPField{}, s.Fields[eventId]...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].DisplayOrder < fields[j].DisplayOrder })
	return fields, nil
}

func (s *Store) GetGuest(ctx context.Context, id string) (*models.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.Guests[id]
	if !ok {
		return nil, models.ErrGuestNotFound
	}
	guest := *g
	return &guest, nil
}

func (s *Store) ListGuestsByEvent(ctx context.Context, eventId string, accessToken string) ([]*models.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Guest
	for _, g := range s.Guests {
		if g.EventID == eventId {
			guest := *g
			out = append(out, &guest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) mutateGuest(op, id string, fn func(g *models.Guest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.Guests[id]
	if !ok {
		return models.ErrGuestNotFound
	}
	if err := s.write(op); err != nil {
		return err
	}
	fn(g)
	return nil
}

func (s *Store) MarkViewed(ctx context.Context, id string, at time.Time) error {
	return s.mutateGuest("mark guest viewed", id, func(g *models.Guest) {
		g.Viewed = true
		g.ViewedAt = &at
	})
}

func (s *Store) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	return s.mutateGuest("mark guest accepted", id, func(g *models.Guest) {
		g.Accepted = true
		g.AcceptedAt = &at
	})
}

func (s *Store) SubmitRSVP(ctx context.Context, id string, data map[string]any, at time.Time) error {
	return s.mutateGuest("submit rsvp", id, func(g *models.Guest) {
		g.Accepted = true
		g.AcceptedAt = &at
		g.RSVPData = data
	})
}

func (s *Store) ResetGuest(ctx context.Context, eventId, id string, accessToken string) error {
	s.mu.Lock()
	g, ok := s.Guests[id]
	s.mu.Unlock()
	if !ok || g.EventID != eventId {
		return models.ErrGuestNotFound
	}
	return s.mutateGuest("reset guest", id, func(g *models.Guest) {
		g.Viewed, g.ViewedAt = false, nil
		g.Accepted, g.AcceptedAt = false, nil
		g.RSVPData = nil
	})
}

func (s *Store) UpdateGuest(ctx context.Context, eventId string, update models.GuestUpdate, accessToken string) error {
	s.mu.Lock()
	g, ok := s.Guests[update.ID]
	s.mu.Unlock()
	if !ok || g.EventID != eventId {
		return models.ErrGuestNotFound
	}
	if update.Name == nil && update.MobileNumber == nil {
		return models.NewValidationError("guests", "no fields to update")
	}
	return s.mutateGuest("update guest", update.ID, func(g *models.Guest) {
		if update.Name != nil {
			g.Name = *update.Name
		}
		if update.MobileNumber != nil {
			g.MobileNumber = *update.MobileNumber
		}
	})
}

// ListWishes applies the guest read rule: approved rows of events with wishes enabled.
func (s *Store) ListWishes(ctx context.Context, eventId string, approvedOnly bool, accessToken string) ([]*models.Wish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if approvedOnly {
		if e, ok := s.Events[eventId]; !ok || !e.WishesEnabled {
			return []*models.Wish{}, nil
		}
	}

	out := []*models.Wish{}
	for _, w := range s.Wishes {
		if w.EventID != eventId || (approvedOnly && !w.IsApproved) {
			continue
		}
		wish := *w
		wish.Replies = append([]models.WishReply{}, w.Replies...)
		out = append(out, &wish)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CreateWish applies the insert rule: the guest must belong to the wish's event.
func (s *Store) CreateWish(ctx context.Context, wish *models.Wish) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wish.GuestID != nil {
		g, ok := s.Guests[*wish.GuestID]
		if !ok || g.EventID != wish.EventID {
			return &models.StorageError{Op: "create wish", Err: errors.New("row violates row-level security policy")}
		}
	}
	if err := s.write("create wish"); err != nil {
		return err
	}
	w := *wish
	w.IsApproved = false
	w.LikesCount = 0
	s.Wishes[w.ID] = &w
	return nil
}

func (s *Store) eventWish(eventId, wishId string) (*models.Wish, error) {
	w, ok := s.Wishes[wishId]
	if !ok || w.EventID != eventId {
		return nil, models.ErrWishNotFound
	}
	return w, nil
}

func (s *Store) ApproveWish(ctx context.Context, eventId, wishId string, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.eventWish(eventId, wishId)
	if err != nil {
		return err
	}
	if err := s.write("approve wish"); err != nil {
		return err
	}
	w.IsApproved = true
	return nil
}

func (s *Store) DeleteWish(ctx context.Context, eventId, wishId string, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.eventWish(eventId, wishId); err != nil {
		return err
	}
	if err := s.write("delete wish"); err != nil {
		return err
	}
	delete(s.Wishes, wishId)
	delete(s.Likes, wishId)
	return nil
}

func (s *Store) CreateReply(ctx context.Context, eventId string, reply *models.WishReply, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.eventWish(eventId, reply.WishID)
	if err != nil {
		return err
	}
	if err := s.write("create wish reply"); err != nil {
		return err
	}
	w.Replies = append(w.Replies, *reply)
	return nil
}

func (s *Store) ToggleLike(ctx context.Context, eventId, wishId, likerKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.eventWish(eventId, wishId)
	if err != nil {
		return 0, err
	}
	if err := s.write("toggle wish like"); err != nil {
		return 0, err
	}
	if s.Likes[wishId] == nil {
		s.Likes[wishId] = map[string]bool{}
	}
	if s.Likes[wishId][likerKey] {
		delete(s.Likes[wishId], likerKey)
		if w.LikesCount > 0 {
			w.LikesCount--
		}
	} else {
		s.Likes[wishId][likerKey] = true
		w.LikesCount++
	}
	return w.LikesCount, nil
}

func (s *Store) TrackInvitationView(ctx context.Context, view *models.InvitationView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *view
	v.ViewedAt = time.Now()
	s.Views = append(s.Views, &v)
	return nil
}

func (s *Store) GetInvitationViewStats(ctx context.Context, eventId string) (*models.InvitationViewStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.InvitationViewStats{EventID: eventId}
	seen := map[string]bool{}
	for _, v := range s.Views {
		if v.EventID != eventId {
			continue
		}
		stats.TotalViews++
		if !seen[v.GuestID] {
			seen[v.GuestID] = true
			stats.UniqueGuests++
		}
	}
	return stats, nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (s *Store) Upload(ctx context.Context, folder string, img *helpers.InlineImage) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return "", "", errors.New("simulated upload failure")
	}
	publicID := fmt.Sprintf("%s/%d", folder, len(s.Uploads)+1)
	s.Uploads[publicID] = img
	return "https://images.test/" + publicID, publicID, nil
}

func (s *Store) Delete(ctx context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Uploads, publicID)
	return nil
}
