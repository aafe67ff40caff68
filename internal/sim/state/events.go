package state

// EventType indicates what kind of change happened in the topology.
type EventType int

const (
	EventDeviceAdded EventType = iota
	EventDeviceUpdated
	EventDeviceRemoved
	EventConnectionAdded
	EventConnectionUpdated
	EventConnectionRemoved
	EventPacketAdded
	EventPacketUpdated
	EventPacketsCleared
	EventSimulationStarted
	EventSimulationStopped
	EventSimulationReset
	EventTopologyCleared
)

var eventTypeNames = [...]string{
	"device_added",
	"device_updated",
	"device_removed",
	"connection_added",
	"connection_updated",
	"connection_removed",
	"packet_added",
	"packet_updated",
	"packets_cleared",
	"simulation_started",
	"simulation_stopped",
	"simulation_reset",
	"topology_cleared",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is emitted to subscribers after a mutation lands. ID names the
// affected entity; it is empty for collection-wide events.
type Event struct {
	Type EventType
	ID   string
}

// Subscribe registers a callback for topology events. Callbacks run on the
// mutating goroutine, outside the state lock, so they may read the state.
// It returns an unsubscribe function.
func (s *TopologyState) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

type subscription struct {
	id int
	fn func(Event)
}

func (s *TopologyState) publish(ev Event) {
	s.subMu.Lock()
	subs := append([]subscription(nil), s.subs...)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
