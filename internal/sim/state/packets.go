package state

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/model"
)

// AddPacket stores a new packet with a fresh ID. An empty status defaults
// to transmitted, an empty path to the direct [source, destination] hop and
// a zero timestamp to the state clock.
func (s *TopologyState) AddPacket(ctx context.Context, spec model.PacketSpec) (*model.Packet, error) {
	if spec.Source == "" || spec.Destination == "" {
		return nil, fmt.Errorf("%w: empty source or destination", ErrPacketInvalid)
	}
	if spec.Protocol != "" && !spec.Protocol.Valid() {
		return nil, fmt.Errorf("%w: unknown protocol %q", ErrPacketInvalid, spec.Protocol)
	}
	if spec.Status != "" && !spec.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrPacketInvalid, spec.Status)
	}
	path := append([]string(nil), spec.Path...)
	switch {
	case len(path) == 0 && spec.Source == spec.Destination:
		path = []string{spec.Source}
	case len(path) == 0:
		path = []string{spec.Source, spec.Destination}
	default:
		if err := checkPath(path, spec.Source, spec.Destination); err != nil {
			return nil, err
		}
	}

	p := &model.Packet{
		Source:      spec.Source,
		Destination: spec.Destination,
		Protocol:    spec.Protocol,
		Status:      spec.Status,
		Path:        path,
		Timestamp:   spec.Timestamp,
	}
	if p.Protocol == "" {
		p.Protocol = model.ProtocolICMP
	}
	if p.Status == "" {
		p.Status = model.PacketTransmitted
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.clock.Now()
	}

	s.mu.Lock()
	p.ID = s.newID()
	s.packets = append(s.packets, p)
	s.packetIndex[p.ID] = p
	s.updateMetricsLocked()
	out := p.Clone()
	s.mu.Unlock()

	s.logDebug(ctx, "packet added", "packet", "add",
		logging.String("packet_id", out.ID),
		logging.String("protocol", string(out.Protocol)),
		logging.Int("hops", len(out.Path)),
	)
	s.publish(Event{Type: EventPacketAdded, ID: out.ID})
	return out, nil
}

// UpdatePacket merges patch into the packet. Unknown IDs, including
// packets cleared since a timer was scheduled, are a silent no-op. A patch
// carrying an unknown status or a path that does not run from the packet's
// source to its destination is dropped whole; both cases report false.
func (s *TopologyState) UpdatePacket(ctx context.Context, id string, patch model.PacketPatch) bool {
	s.mu.Lock()
	p, ok := s.packetIndex[id]
	var err error
	if ok {
		if err = checkPacketPatch(p, patch); err == nil {
			patch.Apply(p)
		}
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err != nil {
		logging.FromContext(ctx, s.log).Warn(ctx, "packet update rejected",
			logging.String("packet_id", id),
			logging.Err(err),
		)
		return false
	}
	fields := []logging.Field{logging.String("packet_id", id)}
	if patch.Status != nil {
		fields = append(fields, logging.String("status", string(*patch.Status)))
	}
	s.logDebug(ctx, "packet updated", "packet", "update", fields...)
	s.publish(Event{Type: EventPacketUpdated, ID: id})
	return true
}

func checkPacketPatch(p *model.Packet, patch model.PacketPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrPacketInvalid, *patch.Status)
	}
	if patch.Path != nil {
		return checkPath(patch.Path, p.Source, p.Destination)
	}
	return nil
}

// checkPath enforces that a packet path is non-empty and runs from source
// to destination.
func checkPath(path []string, source, destination string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrPacketInvalid)
	}
	if path[0] != source || path[len(path)-1] != destination {
		return fmt.Errorf("%w: path %v does not run from %q to %q", ErrPacketInvalid, path, source, destination)
	}
	return nil
}

// GetPacket returns a copy of the packet with the given ID.
func (s *TopologyState) GetPacket(id string) (*model.Packet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packetIndex[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ListPackets returns copies of all packets in injection order.
func (s *TopologyState) ListPackets() []*model.Packet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPacketsLocked()
}

// ClearPackets drops every packet unconditionally.
func (s *TopologyState) ClearPackets(ctx context.Context) {
	s.mu.Lock()
	cleared := len(s.packets)
	s.clearPacketsLocked()
	s.updateMetricsLocked()
	s.mu.Unlock()

	s.logDebug(ctx, "packets cleared", "packet", "clear", logging.Int("count", cleared))
	s.publish(Event{Type: EventPacketsCleared})
}

func (s *TopologyState) clearPacketsLocked() {
	s.packets = nil
	s.packetIndex = make(map[string]*model.Packet)
}

func (s *TopologyState) listPacketsLocked() []*model.Packet {
	out := make([]*model.Packet, 0, len(s.packets))
	for _, p := range s.packets {
		out = append(out, p.Clone())
	}
	return out
}
