// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/kb"
	"github.com/signalsfoundry/netlab-simulator/model"
	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

var (
	// ErrDeviceInvalid indicates a device spec is missing required fields.
	ErrDeviceInvalid = errors.New("invalid device")
	// ErrConnectionInvalid indicates a connection spec names a missing
	// device or the same device twice.
	ErrConnectionInvalid = errors.New("invalid connection")
	// ErrPacketInvalid indicates a packet spec is malformed.
	ErrPacketInvalid = errors.New("invalid packet")
	// ErrDeviceNotFound indicates a referenced device does not exist.
	ErrDeviceNotFound = kb.ErrDeviceNotFound
	// ErrNoAvailableInterface indicates a connect request found no down
	// interface on one of the endpoints.
	ErrNoAvailableInterface = core.ErrNoAvailableInterface
	// ErrSelfConnection indicates a connect request named one device twice.
	ErrSelfConnection = core.ErrSelfConnection
)

// TopologyState is the single coordinator for the simulation engine. It
// owns devices, connections, packets and the running flag, and every
// mutation goes through it.
//
// Mutators on unknown IDs are no-ops; they report whether anything changed
// but never return an error for a missing ID.
type TopologyState struct {
	// mu is the coarse topology-level lock. Take it before touching either
	// KB so the lock order is TopologyState -> KB.
	mu sync.RWMutex

	devices *kb.KnowledgeBase
	network *core.KnowledgeBase

	packets     []*model.Packet
	packetIndex map[string]*model.Packet

	running bool

	clock timectrl.SimClock
	newID func() string

	log     logging.Logger
	metrics TopologyMetricsRecorder

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

// TopologySnapshot is a deep copy of the state at one point in time.
// Callers may keep and mutate it freely.
type TopologySnapshot struct {
	Devices     []*model.Device
	Connections []*model.Connection
	Packets     []*model.Packet
	Running     bool
}

// TopologyMetricsRecorder receives entity counts and path timings.
type TopologyMetricsRecorder interface {
	SetTopologyCounts(devices, connections, packets int)
	ObservePathComputation(d time.Duration)
}

// TopologyStateOption customises TopologyState construction.
type TopologyStateOption func(*TopologyState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m TopologyMetricsRecorder) TopologyStateOption {
	return func(s *TopologyState) {
		s.metrics = m
	}
}

// WithClock sets the clock used to timestamp packets.
func WithClock(c timectrl.SimClock) TopologyStateOption {
	return func(s *TopologyState) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator replaces the UUID generator used for new entity IDs.
func WithIDGenerator(fn func() string) TopologyStateOption {
	return func(s *TopologyState) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewTopologyState wires the device and network knowledge bases into a
// coordinator with an empty packet collection.
func NewTopologyState(devices *kb.KnowledgeBase, network *core.KnowledgeBase, log logging.Logger, opts ...TopologyStateOption) *TopologyState {
	if devices == nil {
		devices = kb.NewKnowledgeBase()
	}
	if network == nil {
		network = core.NewKnowledgeBase()
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &TopologyState{
		devices:     devices,
		network:     network,
		packetIndex: make(map[string]*model.Packet),
		clock:       timectrl.WallClock{},
		newID:       uuid.NewString,
		log:         log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

// Snapshot returns a coherent deep copy of the current state.
func (s *TopologyState) Snapshot() *TopologySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &TopologySnapshot{
		Devices:     s.listDevicesLocked(),
		Connections: s.listConnectionsLocked(),
		Packets:     s.listPacketsLocked(),
		Running:     s.running,
	}
}

//
// ---------- Devices ----------
//

// AddDevice creates a device with a fresh ID. Status defaults to offline,
// and the type-determined interface set and config are attached when the
// spec carries none.
func (s *TopologyState) AddDevice(ctx context.Context, spec model.DeviceSpec) (*model.Device, error) {
	if !spec.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrDeviceInvalid, spec.Type)
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrDeviceInvalid)
	}

	d := &model.Device{
		Type:       spec.Type,
		Name:       spec.Name,
		Position:   spec.Position,
		Status:     spec.Status,
		Interfaces: spec.Interfaces,
		Config:     spec.Config,
	}
	if d.Status == "" {
		d.Status = model.DeviceOffline
	}
	if d.Interfaces == nil {
		d.Interfaces = core.DefaultInterfaces(d.Type)
	}
	if model.IsNilConfig(d.Config) {
		d.Config = model.DefaultConfig(d.Type, d.Name)
	}
	d = d.Clone()

	s.mu.Lock()
	d.ID = s.newID()
	if err := s.devices.AddDevice(d); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.updateMetricsLocked()
	out := d.Clone()
	s.mu.Unlock()

	s.logDebug(ctx, "device added", "device", "add",
		logging.String("device_id", out.ID),
		logging.String("device_type", string(out.Type)),
		logging.String("name", out.Name),
	)
	s.publish(Event{Type: EventDeviceAdded, ID: out.ID})
	return out, nil
}

// GetDevice returns a copy of the device with the given ID.
func (s *TopologyState) GetDevice(id string) (*model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.devices.GetDevice(id)
	if d == nil {
		return nil, false
	}
	return d.Clone(), true
}

// ListDevices returns copies of all devices in insertion order.
func (s *TopologyState) ListDevices() []*model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDevicesLocked()
}

// UpdateDevice shallow-merges patch into the device. Interface-name
// uniqueness and config shape are not checked. It reports whether the
// device existed.
func (s *TopologyState) UpdateDevice(ctx context.Context, id string, patch model.DevicePatch) bool {
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.devices.UpdateDevice(id, patch.Apply)
	}()

	if err != nil {
		return false
	}
	s.logDebug(ctx, "device updated", "device", "update", logging.String("device_id", id))
	s.publish(Event{Type: EventDeviceUpdated, ID: id})
	return true
}

// RemoveDevice deletes the device and every connection naming it as
// source or target. Interface status on former peers is left as is.
// Removing an unknown ID is a no-op.
func (s *TopologyState) RemoveDevice(ctx context.Context, id string) bool {
	s.mu.Lock()
	if err := s.devices.DeleteDevice(id); err != nil {
		s.mu.Unlock()
		return false
	}
	removed := s.network.DeleteConnectionsForDevice(id)
	s.updateMetricsLocked()
	s.mu.Unlock()

	s.logDebug(ctx, "device removed", "device", "remove",
		logging.String("device_id", id),
		logging.Int("connections_removed", len(removed)),
	)
	for _, connID := range removed {
		s.publish(Event{Type: EventConnectionRemoved, ID: connID})
	}
	s.publish(Event{Type: EventDeviceRemoved, ID: id})
	return true
}

//
// ---------- Connections ----------
//

// AddConnection appends a connected link between two existing, distinct
// devices. It does not check interface availability and does not bring
// the referenced interfaces up; see Connect for that sequence.
func (s *TopologyState) AddConnection(ctx context.Context, spec model.ConnectionSpec) (*model.Connection, error) {
	if spec.Source == "" || spec.Target == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrConnectionInvalid)
	}
	if spec.Source == spec.Target {
		return nil, fmt.Errorf("%w: source and target are both %q", ErrConnectionInvalid, spec.Source)
	}

	s.mu.Lock()
	for _, endpoint := range []string{spec.Source, spec.Target} {
		if s.devices.GetDevice(endpoint) == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %w: %q", ErrConnectionInvalid, ErrDeviceNotFound, endpoint)
		}
	}
	c := &model.Connection{
		ID:              s.newID(),
		Source:          spec.Source,
		Target:          spec.Target,
		SourceInterface: spec.SourceInterface,
		TargetInterface: spec.TargetInterface,
		Status:          model.ConnectionConnected,
	}
	if err := s.network.AddConnection(c); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.updateMetricsLocked()
	out := *c
	s.mu.Unlock()

	s.logDebug(ctx, "connection added", "connection", "add",
		logging.String("connection_id", out.ID),
		logging.String("source", out.Source),
		logging.String("target", out.Target),
	)
	s.publish(Event{Type: EventConnectionAdded, ID: out.ID})
	return &out, nil
}

// ListConnections returns copies of all connections in insertion order.
func (s *TopologyState) ListConnections() []*model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listConnectionsLocked()
}

// SetConnectionStatus marks a link connected or disconnected. Disconnected
// links are ignored by the path resolver. Setting the status a link already
// has reports true without emitting an event.
func (s *TopologyState) SetConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) bool {
	s.mu.Lock()
	c := s.network.GetConnection(id)
	if c == nil {
		s.mu.Unlock()
		return false
	}
	if c.Status == status {
		s.mu.Unlock()
		return true
	}
	err := s.network.SetConnectionStatus(id, status)
	s.mu.Unlock()

	if err != nil {
		return false
	}
	s.logDebug(ctx, "connection status changed", "connection", "update",
		logging.String("connection_id", id),
		logging.String("status", string(status)),
	)
	s.publish(Event{Type: EventConnectionUpdated, ID: id})
	return true
}

// RemoveConnection deletes a connection by ID. Interface status is left as
// is. Removing an unknown ID is a no-op.
func (s *TopologyState) RemoveConnection(ctx context.Context, id string) bool {
	s.mu.Lock()
	err := s.network.DeleteConnection(id)
	if err == nil {
		s.updateMetricsLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return false
	}
	s.logDebug(ctx, "connection removed", "connection", "remove", logging.String("connection_id", id))
	s.publish(Event{Type: EventConnectionRemoved, ID: id})
	return true
}

//
// ---------- Simulation control ----------
//

// StartSimulation sets the running flag.
func (s *TopologyState) StartSimulation(ctx context.Context) {
	s.setRunning(ctx, true)
}

// StopSimulation clears the running flag. Packets already scheduled keep
// their timers.
func (s *TopologyState) StopSimulation(ctx context.Context) {
	s.setRunning(ctx, false)
}

// IsRunning reports the running flag.
func (s *TopologyState) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *TopologyState) setRunning(ctx context.Context, running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()

	evType, op := EventSimulationStopped, "stop"
	if running {
		evType, op = EventSimulationStarted, "start"
	}
	s.logDebug(ctx, "simulation "+op, "simulation", op)
	s.publish(Event{Type: evType})
}

// ResetSimulation clears all packets, stops the simulation and sets every
// device offline. Interfaces and connections are untouched, and pending
// packet timers are not cancelled.
func (s *TopologyState) ResetSimulation(ctx context.Context) {
	s.mu.Lock()
	cleared := len(s.packets)
	s.clearPacketsLocked()
	s.running = false
	s.devices.ForEach(func(d *model.Device) {
		d.Status = model.DeviceOffline
	})
	s.updateMetricsLocked()
	s.mu.Unlock()

	s.logDebug(ctx, "simulation reset", "simulation", "reset", logging.Int("packets_cleared", cleared))
	s.publish(Event{Type: EventSimulationReset})
}

// ClearTopology empties the store: devices, connections and packets are
// dropped and the simulation stops. Pending lifecycle timers are left to
// fire against the missing packets.
func (s *TopologyState) ClearTopology(ctx context.Context) {
	s.mu.Lock()
	devices, connections, packets := s.devices.Len(), s.network.Len(), len(s.packets)
	s.devices.Clear()
	s.network.Clear()
	s.clearPacketsLocked()
	s.running = false
	s.updateMetricsLocked()
	s.mu.Unlock()

	s.logDebug(ctx, "topology cleared", "topology", "clear",
		logging.Int("devices", devices),
		logging.Int("connections", connections),
		logging.Int("packets", packets),
	)
	s.publish(Event{Type: EventTopologyCleared})
}

//
// ---------- Path resolution ----------
//

// ShortestPath resolves a route against the current state. It never fails;
// see core.ShortestPath for the fallback rule.
func (s *TopologyState) ShortestPath(sourceID, destinationID string) []string {
	start := time.Now()
	s.mu.RLock()
	devices := s.devices.ListDevices()
	conns := s.network.GetAllConnections()
	path := core.ShortestPath(sourceID, destinationID, devices, conns)
	s.mu.RUnlock()

	if s.metrics != nil {
		s.metrics.ObservePathComputation(time.Since(start))
	}
	return path
}

// FindPath is ShortestPath without the fallback: ok is false when the
// devices are not connected.
func (s *TopologyState) FindPath(sourceID, destinationID string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.FindPath(sourceID, destinationID, s.devices.ListDevices(), s.network.GetAllConnections())
}

//
// ---------- helpers ----------
//

// updateMetricsLocked pushes current entity counts into the metrics recorder.
// Caller must hold s.mu when invoking this helper.
func (s *TopologyState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.SetTopologyCounts(s.devices.Len(), s.network.Len(), len(s.packets))
}

func (s *TopologyState) listDevicesLocked() []*model.Device {
	stored := s.devices.ListDevices()
	out := make([]*model.Device, 0, len(stored))
	for _, d := range stored {
		out = append(out, d.Clone())
	}
	return out
}

func (s *TopologyState) listConnectionsLocked() []*model.Connection {
	stored := s.network.GetAllConnections()
	out := make([]*model.Connection, 0, len(stored))
	for _, c := range stored {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (s *TopologyState) logDebug(ctx context.Context, msg, entity, op string, fields ...logging.Field) {
	logging.FromContext(ctx, s.log).Debug(ctx, msg, append(logging.Op(entity, op), fields...)...)
}
