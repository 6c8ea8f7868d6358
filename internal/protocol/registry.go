package protocol

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Role int

const (
	RoleGuest Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "guest"
}

// Frame is the template side of a registration.
type Frame interface {
	Send(msg Outbound) error
}

// Observer receives the same refreshed lists the frame does. Host dashboards
// use it to stay in sync without polling.
type Observer func(eventID string, msg Outbound)

// Binding is what a bridge supplies when it registers a frame.
type Binding struct {
	Frame    Frame
	Observer Observer
	Role     Role

	// GuestID is the internal id of the guest the frame was opened for, if any.
	GuestID     string
	DisplayName string
	// AccessToken is the host's token on admin registrations. It stops being
	// usable at ExpiresAt; the bridge closes the frame then.
	AccessToken string
	ExpiresAt   time.Time
	// HostID is the host behind an admin registration.
	HostID string
}

// channel serialises message handling for one event.
type channel struct {
	mu   sync.Mutex
	refs int
}

// Registry owns the active frame registrations, keyed by internal event id.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*channel
	regs     map[string]map[string]*Registration
}

func NewRegistry() *Registry {
	return &Registry{
		channels: map[string]*channel{},
		regs:     map[string]map[string]*Registration{},
	}
}

// Registration is a frame's handle on its event channel. It is valid until
// Release is called.
type Registration struct {
	id       string
	eventID  string
	binding  Binding
	channel  *channel
	registry *Registry
	released atomic.Bool
}

// Acquire registers a frame for eventID. Every registration for the same event
// shares one sequential channel.
func (r *Registry) Acquire(eventID string, b Binding) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[eventID]
	if !ok {
		ch = &channel{}
		r.channels[eventID] = ch
	}
	ch.refs++

	reg := &Registration{
		id:       uuid.NewString(),
		eventID:  eventID,
		binding:  b,
		channel:  ch,
		registry: r,
	}
	if r.regs[eventID] == nil {
		r.regs[eventID] = map[string]*Registration{}
	}
	r.regs[eventID][reg.id] = reg
	return reg
}

// Release unregisters the frame. Messages already in flight still finish, but
// their replies are dropped. Calling Release more than once is a no-op.
func (reg *Registration) Release() {
	if !reg.released.CompareAndSwap(false, true) {
		return
	}
	r := reg.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.regs[reg.eventID], reg.id)
	if len(r.regs[reg.eventID]) == 0 {
		delete(r.regs, reg.eventID)
	}
	reg.channel.refs--
	if reg.channel.refs == 0 {
		delete(r.channels, reg.eventID)
	}
}

func (reg *Registration) Active() bool {
	return !reg.released.Load()
}

func (reg *Registration) ID() string {
	return reg.id
}

func (reg *Registration) EventID() string {
	return reg.eventID
}

func (reg *Registration) Role() Role {
	return reg.binding.Role
}

// Registered reports whether reg is a live registration of this registry for eventID.
func (r *Registry) Registered(eventID string, reg *Registration) bool {
	if reg == nil || !reg.Active() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.regs[eventID][reg.id]
	return ok
}

// Count returns the number of live registrations for eventID.
func (r *Registry) Count(eventID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs[eventID])
}

// deliver sends msg to the frame, and to the observer when observe is set.
// Nothing is sent once the registration has been released.
func (reg *Registration) deliver(msg Outbound, observe bool) error {
	if !reg.Active() {
		return errReleased
	}
	if observe && reg.binding.Observer != nil {
		reg.binding.Observer(reg.eventID, msg)
	}
	if reg.binding.Frame == nil {
		return nil
	}
	return reg.binding.Frame.Send(msg)
}
