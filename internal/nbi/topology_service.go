// internal/nbi/topology_service.go
package nbi

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/netlab-simulator/internal/lifecycle"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/nbi/types"
	sim "github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"github.com/signalsfoundry/netlab-simulator/model"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TopologyService implements netlab.v1.TopologyService on top of a
// TopologyState and a lifecycle Scheduler.
type TopologyService struct {
	state     *sim.TopologyState
	lifecycle *lifecycle.Scheduler
	log       logging.Logger
}

// NewTopologyService binds the control surface to the engine.
func NewTopologyService(state *sim.TopologyState, lc *lifecycle.Scheduler, log logging.Logger) *TopologyService {
	if log == nil {
		log = logging.Noop()
	}
	return &TopologyService{
		state:     state,
		lifecycle: lc,
		log:       log,
	}
}

// AddDevice creates a device.
func (s *TopologyService) AddDevice(ctx context.Context, in *types.DeviceRequest) (*model.Device, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	spec := model.DeviceSpec{
		Type:       model.DeviceType(strings.ToLower(string(in.Type))),
		Name:       in.Name,
		Position:   in.Position,
		Status:     in.Status,
		Interfaces: in.Interfaces,
	}
	if err := validateDeviceStatus(spec.Status); err != nil {
		return nil, err
	}
	if len(in.Config) > 0 {
		cfg, err := model.DecodeConfig(spec.Type, in.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		spec.Config = cfg
	}

	ctx, span := StartChildSpan(ctx, "TopologyState.AddDevice", "device", "")
	defer span.End()
	return s.state.AddDevice(ctx, spec)
}

// UpdateDevice patches a device. Unknown IDs report changed=false.
func (s *TopologyService) UpdateDevice(ctx context.Context, in *types.UpdateDeviceRequest) (*types.ChangedResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	patch := model.DevicePatch{
		Name:       in.Name,
		Position:   in.Position,
		Status:     in.Status,
		Interfaces: in.Interfaces,
	}
	if in.Status != nil {
		if err := validateDeviceStatus(*in.Status); err != nil {
			return nil, err
		}
	}
	if len(in.Config) > 0 {
		current, ok := s.state.GetDevice(in.ID)
		if !ok {
			return &types.ChangedResponse{}, nil
		}
		cfg, err := model.DecodeConfig(current.Type, in.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		patch.Config = cfg
	}

	ctx, span := StartChildSpan(ctx, "TopologyState.UpdateDevice", "device", in.ID)
	defer span.End()
	return &types.ChangedResponse{Changed: s.state.UpdateDevice(ctx, in.ID, patch)}, nil
}

// RemoveDevice deletes a device and its connections.
func (s *TopologyService) RemoveDevice(ctx context.Context, in *types.IDRequest) (*types.ChangedResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, span := StartChildSpan(ctx, "TopologyState.RemoveDevice", "device", in.ID)
	defer span.End()
	return &types.ChangedResponse{Changed: s.state.RemoveDevice(ctx, in.ID)}, nil
}

// Connect picks free interfaces on both devices, adds the connection and
// brings the interfaces up.
func (s *TopologyService) Connect(ctx context.Context, in *types.ConnectRequest) (*model.Connection, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, span := StartChildSpan(ctx, "TopologyState.Connect", "connection", "",
		attribute.String("netlab.source", in.Source), attribute.String("netlab.target", in.Target))
	defer span.End()
	return s.state.Connect(ctx, in.Source, in.Target)
}

// AddConnection stores a connection exactly as given.
func (s *TopologyService) AddConnection(ctx context.Context, in *types.ConnectionRequest) (*model.Connection, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.state.AddConnection(ctx, model.ConnectionSpec{
		Source:          in.Source,
		Target:          in.Target,
		SourceInterface: in.SourceInterface,
		TargetInterface: in.TargetInterface,
	})
}

// SetConnectionStatus marks a connection connected or disconnected.
func (s *TopologyService) SetConnectionStatus(ctx context.Context, in *types.ConnectionStatusRequest) (*types.ChangedResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	switch in.Status {
	case model.ConnectionConnected, model.ConnectionDisconnected:
	default:
		return nil, fmt.Errorf("%w: unknown connection status %q", ErrInvalidRequest, in.Status)
	}
	return &types.ChangedResponse{Changed: s.state.SetConnectionStatus(ctx, in.ID, in.Status)}, nil
}

// RemoveConnection deletes a connection.
func (s *TopologyService) RemoveConnection(ctx context.Context, in *types.IDRequest) (*types.ChangedResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return &types.ChangedResponse{Changed: s.state.RemoveConnection(ctx, in.ID)}, nil
}

// ShortestPath resolves a route. It never fails on unreachable devices.
func (s *TopologyService) ShortestPath(ctx context.Context, in *types.PathRequest) (*types.PathResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if in.Source == "" || in.Destination == "" {
		return nil, status.Error(codes.InvalidArgument, "source and destination are required")
	}
	path := s.state.ShortestPath(in.Source, in.Destination)
	_, reachable := s.state.FindPath(in.Source, in.Destination)
	return &types.PathResponse{Path: path, Reachable: reachable}, nil
}

// Ping sends an ICMP packet with a randomised outcome.
func (s *TopologyService) Ping(ctx context.Context, in *types.ActionRequest) (*types.PacketResponse, error) {
	if err := s.ensureLifecycle(); err != nil {
		return nil, err
	}
	if err := requireEndpoints(in.Source, in.Destination); err != nil {
		return nil, err
	}
	return packetResponse(s.lifecycle.Ping(ctx, in.Source, in.Destination))
}

// DNSLookup resolves against a reachable DNS server.
func (s *TopologyService) DNSLookup(ctx context.Context, in *types.ActionRequest) (*types.PacketResponse, error) {
	if err := s.ensureLifecycle(); err != nil {
		return nil, err
	}
	if in.Source == "" {
		return nil, status.Error(codes.InvalidArgument, "source is required")
	}
	return packetResponse(s.lifecycle.DNSLookup(ctx, in.Source, in.Hostname))
}

// Traceroute probes the path between two distinct devices.
func (s *TopologyService) Traceroute(ctx context.Context, in *types.ActionRequest) (*types.PacketResponse, error) {
	if err := s.ensureLifecycle(); err != nil {
		return nil, err
	}
	if err := requireEndpoints(in.Source, in.Destination); err != nil {
		return nil, err
	}
	return packetResponse(s.lifecycle.Traceroute(ctx, in.Source, in.Destination))
}

// SendPacket injects an animated packet, or an action packet when an
// outcome is named.
func (s *TopologyService) SendPacket(ctx context.Context, in *types.SendPacketRequest) (*types.PacketResponse, error) {
	if err := s.ensureLifecycle(); err != nil {
		return nil, err
	}
	if err := requireEndpoints(in.Source, in.Destination); err != nil {
		return nil, err
	}
	protocol := model.Protocol(strings.ToUpper(string(in.Protocol)))
	if in.Outcome == "" {
		return packetResponse(s.lifecycle.Animate(ctx, in.Source, in.Destination, protocol))
	}
	return packetResponse(s.lifecycle.Inject(ctx, lifecycle.ActionRequest{
		Source:      in.Source,
		Destination: in.Destination,
		Protocol:    protocol,
		Outcome:     lifecycle.Outcome(strings.ToLower(in.Outcome)),
	}))
}

// ClearPackets drops every packet.
func (s *TopologyService) ClearPackets(ctx context.Context, _ *types.Empty) (*types.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ClearPackets(ctx)
	return &types.Empty{}, nil
}

// StartSimulation sets the running flag.
func (s *TopologyService) StartSimulation(ctx context.Context, _ *types.Empty) (*types.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.StartSimulation(ctx)
	return &types.Empty{}, nil
}

// StopSimulation clears the running flag.
func (s *TopologyService) StopSimulation(ctx context.Context, _ *types.Empty) (*types.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.StopSimulation(ctx)
	return &types.Empty{}, nil
}

// ResetSimulation clears packets and sets every device offline.
func (s *TopologyService) ResetSimulation(ctx context.Context, _ *types.Empty) (*types.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ResetSimulation(ctx)
	return &types.Empty{}, nil
}

// ClearTopology removes every device, connection and packet.
func (s *TopologyService) ClearTopology(ctx context.Context, _ *types.Empty) (*types.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ClearTopology(ctx)
	return &types.Empty{}, nil
}

// GetSnapshot returns the whole topology.
func (s *TopologyService) GetSnapshot(ctx context.Context, _ *types.Empty) (*types.SnapshotResponse, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return types.SnapshotFromState(s.state.Snapshot()), nil
}

func (s *TopologyService) ensureReady() error {
	if s == nil || s.state == nil {
		return status.Error(codes.FailedPrecondition, "topology state is not configured")
	}
	return nil
}

func (s *TopologyService) ensureLifecycle() error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if s.lifecycle == nil {
		return status.Error(codes.FailedPrecondition, "packet scheduler is not configured")
	}
	return nil
}

func requireEndpoints(source, destination string) error {
	if source == "" || destination == "" {
		return status.Error(codes.InvalidArgument, "source and destination are required")
	}
	return nil
}

func validateDeviceStatus(st model.DeviceStatus) error {
	switch st {
	case "", model.DeviceOnline, model.DeviceOffline, model.DeviceError:
		return nil
	}
	return fmt.Errorf("%w: unknown device status %q", ErrInvalidRequest, st)
}

func packetResponse(sc *lifecycle.Scheduled, err error) (*types.PacketResponse, error) {
	if err != nil {
		return nil, err
	}
	return &types.PacketResponse{
		Packet:  sc.Packet,
		Outcome: string(sc.Outcome),
		DueAt:   sc.DueAt,
	}, nil
}
