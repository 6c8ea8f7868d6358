package realtime

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStatusWarnsAfterDebounce(t *testing.T) {
	s := NewStatus(30 * time.Millisecond)
	defer s.Stop()

	s.Set(StateSubscribed)
	assert.True(t, s.Connected())

	s.Set(StateError)
	snap := s.Snapshot()
	assert.False(t, snap.Connected)
	assert.False(t, snap.Warning)
	assert.Equal(t, StateError, snap.State)

	assert.Eventually(t, func() bool { return s.Snapshot().Warning }, time.Second, 5*time.Millisecond)

	s.Set(StateSubscribed)
	assert.False(t, s.Snapshot().Warning)
}

func TestStatusIgnoresShortDrops(t *testing.T) {
	s := NewStatus(50 * time.Millisecond)
	defer s.Stop()

	s.Set(StateSubscribed)
	s.Set(StateTimeout)
	s.Set(StateError)
	s.Set(StateSubscribed)

	assert.Never(t, func() bool { return s.Snapshot().Warning }, 120*time.Millisecond, 10*time.Millisecond)
}

func TestStatusNotifiesChanges(t *testing.T) {
	s := NewStatus(20 * time.Millisecond)
	defer s.Stop()

	var mu sync.Mutex
	var seen []Snapshot
	s.OnChange(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	s.Set(StateSubscribed)
	s.Set(StateSubscribed)
	s.Set(StateClosed)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateSubscribed, seen[0].State)
	assert.Equal(t, StateClosed, seen[1].State)
	assert.True(t, seen[2].Warning)
}

func TestListenerDispatchMatchesTableAndEvent(t *testing.T) {
	l := NewListener(nil, "", NewStatus(0), discard)

	var all, scoped []Change
	l.Subscribe([]string{"events", "guests"}, "", func(c Change) { all = append(all, c) })
	cancel := l.Subscribe([]string{"wishes"}, "e1", func(c Change) { scoped = append(scoped, c) })

	l.Dispatch(`{"table":"guests","op":"UPDATE","event_id":"e1","id":"g1"}`)
	l.Dispatch(`{"table":"wishes","op":"INSERT","event_id":"e1","id":"w1"}`)
	l.Dispatch(`{"table":"wishes","op":"INSERT","event_id":"e2","id":"w2"}`)
	l.Dispatch(`not json`)

	require.Len(t, all, 1)
	assert.Equal(t, Change{Table: "guests", Op: "UPDATE", EventID: "e1", ID: "g1"}, all[0])
	require.Len(t, scoped, 1)
	assert.Equal(t, "w1", scoped[0].ID)

	cancel()
	l.Dispatch(`{"table":"wishes","op":"DELETE","event_id":"e1","id":"w1"}`)
	assert.Len(t, scoped, 1)
	assert.Equal(t, DefaultChannel, l.channel)
}

func TestHubPublishesPerEvent(t *testing.T) {
	h := NewHub()
	a, closeA := h.Subscribe("e1")
	b, closeB := h.Subscribe("e2")
	defer closeB()

	assert.True(t, h.Watching("e1"))
	h.Publish("e1", Notice{Kind: NoticeWishes})

	select {
	case n := <-a:
		assert.Equal(t, NoticeWishes, n.Kind)
	case <-time.After(time.Second):
		t.Fatal("no notice delivered")
	}
	select {
	case n := <-b:
		t.Fatalf("unexpected notice %v", n)
	default:
	}

	h.Broadcast(Notice{Kind: NoticeStatus})
	assert.Equal(t, NoticeStatus, (<-a).Kind)
	assert.Equal(t, NoticeStatus, (<-b).Kind)

	closeA()
	closeA()
	_, open := <-a
	assert.False(t, open)
	assert.False(t, h.Watching("e1"))
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub()
	ch, closeFn := h.Subscribe("e1")
	defer closeFn()

	for i := 0; i < subscriberCapacity*2; i++ {
		h.Publish("e1", Notice{Kind: NoticeGuests})
	}
	assert.Len(t, ch, subscriberCapacity)
}

type recordingCache struct {
	mu     sync.Mutex
	events []string
	wishes []string
}

func (c *recordingCache) InvalidateEvent(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, eventID)
}

func (c *recordingCache) InvalidateWishes(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wishes = append(c.wishes, eventID)
}

func TestWireInvalidatesAndNotifies(t *testing.T) {
	status := NewStatus(time.Hour)
	defer status.Stop()
	l := NewListener(nil, "", status, discard)
	hub := NewHub()
	cache := &recordingCache{}
	unwire := Wire(l, status, hub, cache)

	notices, closeStream := hub.Subscribe("e1")
	defer closeStream()

	l.Dispatch(`{"table":"wishes","op":"INSERT","event_id":"e1","id":"w1"}`)
	l.Dispatch(`{"table":"wish_replies","op":"INSERT","event_id":"e2","id":"r1"}`)
	l.Dispatch(`{"table":"guests","op":"UPDATE","event_id":"e1","id":"g1"}`)
	status.Set(StateSubscribed)

	assert.Equal(t, []string{"e1", "e2"}, cache.wishes)
	assert.Equal(t, []string{"e1"}, cache.events)

	var kinds []string
	for len(notices) > 0 {
		kinds = append(kinds, (<-notices).Kind)
	}
	assert.Equal(t, []string{NoticeWishes, NoticeGuests, NoticeStatus}, kinds)

	unwire()
	l.Dispatch(`{"table":"wishes","op":"DELETE","event_id":"e1","id":"w1"}`)
	assert.Len(t, cache.wishes, 2)
	assert.Empty(t, notices)
}
