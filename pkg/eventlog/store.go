package eventlog

import (
	"strings"
	"sync"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// DefaultCapacity is used when New is given a non-positive size.
const DefaultCapacity = 1000

// subscriberBuffer is how many events a slow subscriber may fall behind
// before events are dropped for it.
const subscriberBuffer = 100

// Filter selects events. Zero fields match everything. Path matches events
// whose path starts with it; Offset skips that many matching events and Limit
// caps how many are returned.
type Filter struct {
	Type   chaos.EventType
	Method string
	Path   string
	Route  string
	Kind   chaos.FaultKind
	Status int
	Limit  int
	Offset int
}

// Matches reports whether ev passes the filter. Limit and Offset are ignored.
func (f *Filter) Matches(ev *chaos.FaultEvent) bool {
	if f == nil {
		return true
	}
	switch {
	case f.Type != "" && ev.Type != f.Type,
		f.Method != "" && !strings.EqualFold(ev.Method, f.Method),
		f.Path != "" && !strings.HasPrefix(ev.Path, f.Path),
		f.Route != "" && ev.Route != f.Route,
		f.Kind != "" && ev.Kind != f.Kind,
		f.Status != 0 && ev.Status != f.Status:
		return false
	}
	return true
}

// Subscriber receives events as they are recorded.
type Subscriber chan chaos.FaultEvent

// Store is an in-memory ring of the most recent events. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	events []chaos.FaultEvent
	next   int // slot the next event is written to
	full   bool

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

var _ chaos.EventSink = (*Store)(nil)

// New creates a Store holding up to capacity events.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		events:      make([]chaos.FaultEvent, capacity),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Emit records ev, evicting the oldest event when the store is full, and
// forwards it to subscribers without blocking.
func (s *Store) Emit(ev chaos.FaultEvent) {
	s.mu.Lock()
	s.events[s.next] = ev
	s.next = (s.next + 1) % len(s.events)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()

	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- ev:
		default:
			// subscriber is behind; drop
		}
	}
	s.subMu.RUnlock()
}

// Capacity returns the maximum number of events kept.
func (s *Store) Capacity() int {
	return len(s.events)
}

// Count returns the number of events held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}

func (s *Store) countLocked() int {
	if s.full {
		return len(s.events)
	}
	return s.next
}

// at returns the i-th newest event. Caller must hold s.mu.
func (s *Store) at(i int) *chaos.FaultEvent {
	idx := (s.next - 1 - i + len(s.events)) % len(s.events)
	return &s.events[idx]
}

// Get returns the event with the given ID.
func (s *Store) Get(id string) (chaos.FaultEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.countLocked() {
		if ev := s.at(i); ev.ID == id {
			return *ev, true
		}
	}
	return chaos.FaultEvent{}, false
}

// List returns matching events, newest first.
func (s *Store) List(filter *Filter) []chaos.FaultEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := 0
	if filter != nil {
		skip = filter.Offset
	}
	result := []chaos.FaultEvent{}
	for i := range s.countLocked() {
		ev := s.at(i)
		if !filter.Matches(ev) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		result = append(result, *ev)
		if filter != nil && filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

// Clear removes every event.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	s.next, s.full = 0, false
}

// Subscribe registers a subscriber for new events. The returned function
// unregisters it and closes the channel.
func (s *Store) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}
