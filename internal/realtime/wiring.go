package realtime

// Invalidator drops cached views that a row change made stale.
type Invalidator interface {
	InvalidateEvent(eventID string)
	InvalidateWishes(eventID string)
}

const (
	tableEvents      = "events"
	tableGuests      = "guests"
	tableWishes      = "wishes"
	tableWishReplies = "wish_replies"
)

// Wire connects row changes and connection state to the cache and the
// dashboard streams. The returned func undoes the subscriptions.
func Wire(l *Listener, status *Status, hub *Hub, cache Invalidator) func() {
	stopGuests := l.Subscribe([]string{tableEvents, tableGuests}, "", func(c Change) {
		cache.InvalidateEvent(c.EventID)
		if c.Table == tableGuests && hub.Watching(c.EventID) {
			hub.Publish(c.EventID, Notice{Kind: NoticeGuests, Data: c})
		}
	})

	stopWishes := l.Subscribe([]string{tableWishes, tableWishReplies}, "", func(c Change) {
		cache.InvalidateWishes(c.EventID)
		if hub.Watching(c.EventID) {
			hub.Publish(c.EventID, Notice{Kind: NoticeWishes, Data: c})
		}
	})

	status.OnChange(func(s Snapshot) {
		hub.Broadcast(Notice{Kind: NoticeStatus, Data: s})
	})

	return func() {
		stopGuests()
		stopWishes()
		status.OnChange(nil)
	}
}
