package realtime

import "sync"

// Notice is one item on a host dashboard stream.
type Notice struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

const (
	NoticeStatus    = "status"
	NoticeWishes    = "wishes_changed"
	NoticeGuests    = "guests_changed"
	NoticeFramePush = "frame_push"
)

const subscriberCapacity = 16

// Hub fans notices out to the dashboard streams open for an event. Slow
// subscribers lose notices instead of blocking the publisher.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[chan Notice]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan Notice]struct{})}
}

// Subscribe opens a stream for eventID. The returned func closes it.
func (h *Hub) Subscribe(eventID string) (<-chan Notice, func()) {
	ch := make(chan Notice, subscriberCapacity)

	h.mu.Lock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[chan Notice]struct{})
		h.rooms[eventID] = room
	}
	room[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.rooms[eventID], ch)
			if len(h.rooms[eventID]) == 0 {
				delete(h.rooms, eventID)
			}
			close(ch)
		})
	}
}

// Watching reports whether any dashboard stream is open for eventID.
func (h *Hub) Watching(eventID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[eventID]) > 0
}

func (h *Hub) Publish(eventID string, n Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[eventID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Broadcast sends n to every open stream.
func (h *Hub) Broadcast(n Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for ch := range room {
			select {
			case ch <- n:
			default:
			}
		}
	}
}
