package realtime

import (
	"sync"
	"time"
)

type State string

const (
	StateSubscribed State = "subscribed"
	StateError      State = "error"
	StateTimeout    State = "timeout"
	StateClosed     State = "closed"
)

const DefaultDisconnectDebounce = 3 * time.Second

// Snapshot is the connection state as shown to host dashboards.
type Snapshot struct {
	State     State     `json:"state"`
	Connected bool      `json:"connected"`
	Warning   bool      `json:"disconnected_warning"`
	Since     time.Time `json:"since"`
}

// Status tracks the change stream connection. The disconnected warning is only
// raised once the connection has been down for the whole debounce window, so
// short drops do not flicker on dashboards.
type Status struct {
	mu       sync.Mutex
	state    State
	since    time.Time
	warning  bool
	debounce time.Duration
	timer    *time.Timer
	gen      int
	onChange func(Snapshot)
}

func NewStatus(debounce time.Duration) *Status {
	if debounce <= 0 {
		debounce = DefaultDisconnectDebounce
	}
	return &Status{state: StateClosed, since: time.Now(), debounce: debounce}
}

// OnChange registers fn to be called after every visible change. fn must not
// call back into Status.
func (s *Status) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Status) Set(state State) {
	s.mu.Lock()
	if state == s.state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.since = time.Now()

	if state == StateSubscribed {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
		s.warning = false
	} else if s.timer == nil && !s.warning {
		s.gen++
		gen := s.gen
		s.timer = time.AfterFunc(s.debounce, func() { s.raiseWarning(gen) })
	}

	snap, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (s *Status) raiseWarning(gen int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.state == StateSubscribed || s.warning {
		s.mu.Unlock()
		return
	}
	s.warning = true
	snap, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (s *Status) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSubscribed
}

func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Status) snapshotLocked() Snapshot {
	return Snapshot{
		State:     s.state,
		Connected: s.state == StateSubscribed,
		Warning:   s.warning,
		Since:     s.since,
	}
}

// Stop cancels a pending warning.
func (s *Status) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
