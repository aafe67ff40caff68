package sched

import (
	"time"

	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

// FakeEventScheduler is the production scheduler driven by a ManualClock.
// Tests move virtual time with AdvanceTo or AdvanceBy, which run whatever
// fell due, so packet lifecycles complete without wall-clock sleeps.
type FakeEventScheduler struct {
	*eventScheduler
	clock *timectrl.ManualClock
}

var _ EventScheduler = (*FakeEventScheduler)(nil)

// NewFakeEventScheduler returns a scheduler whose clock starts at start.
func NewFakeEventScheduler(start time.Time) *FakeEventScheduler {
	clock := timectrl.NewManualClock(start)
	return &FakeEventScheduler{eventScheduler: newEventScheduler(clock), clock: clock}
}

// Clock exposes the virtual clock so the topology store can share it.
func (s *FakeEventScheduler) Clock() *timectrl.ManualClock { return s.clock }

// AdvanceTo moves the clock to t and runs due events. Times before Now are
// ignored.
func (s *FakeEventScheduler) AdvanceTo(t time.Time) {
	s.AdvanceBy(t.Sub(s.clock.Now()))
}

// AdvanceBy moves the clock forward by d and runs due events.
func (s *FakeEventScheduler) AdvanceBy(d time.Duration) {
	s.clock.Advance(d)
	s.RunDue()
}
