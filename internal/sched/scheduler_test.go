package sched

import (
	"testing"
	"time"

	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

func TestEventScheduler_SingleEvent(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timectrl.NewManualClock(start)
	s := NewEventScheduler(clock)

	var counter int
	id := s.Schedule(start.Add(10*time.Second), func() { counter++ })
	if id == "" {
		t.Fatalf("Schedule returned empty ID")
	}

	s.RunDue()
	if counter != 0 {
		t.Fatalf("expected counter=0 before time advance, got %d", counter)
	}

	clock.Advance(10 * time.Second)
	s.RunDue()
	if counter != 1 {
		t.Fatalf("expected counter=1 after time advance, got %d", counter)
	}

	s.RunDue()
	if counter != 1 {
		t.Fatalf("event ran twice, counter=%d", counter)
	}
}

func TestEventScheduler_SameTimeRunsInScheduleOrder(t *testing.T) {
	start := time.Unix(0, 0)
	clock := timectrl.NewManualClock(start)
	s := NewEventScheduler(clock)

	var order []int
	at := start.Add(time.Second)
	for i := range 5 {
		s.Schedule(at, func() { order = append(order, i) })
	}
	s.Schedule(start.Add(500*time.Millisecond), func() { order = append(order, -1) })

	clock.Advance(time.Second)
	s.RunDue()

	want := []int{-1, 0, 1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEventScheduler_CancelAndPending(t *testing.T) {
	start := time.Unix(0, 0)
	clock := timectrl.NewManualClock(start)
	s := NewEventScheduler(clock)

	var ran []string
	a := s.Schedule(start.Add(time.Second), func() { ran = append(ran, "a") })
	s.Schedule(start.Add(2*time.Second), func() { ran = append(ran, "b") })
	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}

	s.Cancel(a)
	s.Cancel(a)
	if s.Pending() != 1 {
		t.Fatalf("Pending after cancel = %d, want 1", s.Pending())
	}

	clock.Advance(5 * time.Second)
	s.RunDue()
	if len(ran) != 1 || ran[0] != "b" {
		t.Fatalf("ran = %v, want [b]", ran)
	}
}

func TestEventScheduler_CallbackMaySchedule(t *testing.T) {
	start := time.Unix(0, 0)
	clock := timectrl.NewManualClock(start)
	s := NewEventScheduler(clock)

	var count int
	s.Schedule(start, func() {
		count++
		// Already due: picked up by the same RunDue pass.
		s.Schedule(start, func() { count++ })
	})
	s.RunDue()
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}
