// Package sched provides a clock-driven event scheduler. Callbacks run when
// the owner calls RunDue after the underlying SimClock has moved past their
// due time, so tests can replace wall-clock waits with virtual time.
package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

// EventScheduler schedules callbacks to run at specific simulation times.
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event.
	// It is a no-op if the ID is unknown or the event already ran.
	Cancel(id string)

	// Now returns the current simulation time.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now().
	// Already-run events never run again.
	RunDue()

	// Pending returns the number of events still waiting to run.
	Pending() int
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventScheduler stores events ordered by due time and reads the current
// time from a SimClock.
type eventScheduler struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when' (earliest first)
	index   map[string]*scheduledEvent
}

// NewEventScheduler creates a new event scheduler backed by the given SimClock.
func NewEventScheduler(clock timectrl.SimClock) EventScheduler {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	return newEventScheduler(clock)
}

func newEventScheduler(clock timectrl.SimClock) *eventScheduler {
	return &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

// Schedule registers a callback to run at the specified simulation time.
func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}
	s.addEventLocked(ev)
	s.index[id] = ev

	return id
}

// addEventLocked inserts an event after every event due at or before it,
// so events sharing a due time run in scheduling order.
// Caller must hold s.mu lock.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})

	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

// Cancel attempts to cancel a previously scheduled event.
func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}

	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

// Now returns the current simulation time from the underlying clock.
func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// Pending returns the number of scheduled, not yet run, events.
func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// popNextLocked removes and returns the earliest due, non-cancelled event.
// Returns nil if no events are due.
// Caller must hold s.mu lock.
func (s *eventScheduler) popNextLocked(now time.Time) *scheduledEvent {
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		return ev
	}
	return nil
}

// RunDue executes all events whose scheduled time is <= Now().
func (s *eventScheduler) RunDue() {
	for {
		now := s.clock.Now()

		s.mu.Lock()
		ev := s.popNextLocked(now)
		if ev == nil {
			s.mu.Unlock()
			return
		}
		delete(s.index, ev.id)
		s.mu.Unlock()

		// Callbacks run outside the lock so they may schedule more events.
		if ev.f != nil {
			ev.f()
		}
	}
}
