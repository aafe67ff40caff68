// Package types holds the wire shapes of the topology control service and
// their conversion to and from google.protobuf.Struct.
//
// Every RPC carries a Struct on the wire. The shapes below are its JSON
// form; field names follow the model's JSON tags.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"github.com/signalsfoundry/netlab-simulator/model"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DeviceRequest creates a device. Config is decoded against Type.
type DeviceRequest struct {
	Type       model.DeviceType   `json:"type"`
	Name       string             `json:"name"`
	Position   model.Position     `json:"position"`
	Status     model.DeviceStatus `json:"status,omitempty"`
	Interfaces []model.Interface  `json:"interfaces,omitempty"`
	Config     json.RawMessage    `json:"config,omitempty"`
}

// UpdateDeviceRequest patches a device. Absent fields are left as is.
// Config is decoded against the stored device's type.
type UpdateDeviceRequest struct {
	ID         string              `json:"id"`
	Name       *string             `json:"name,omitempty"`
	Position   *model.Position     `json:"position,omitempty"`
	Status     *model.DeviceStatus `json:"status,omitempty"`
	Interfaces []model.Interface   `json:"interfaces,omitempty"`
	Config     json.RawMessage     `json:"config,omitempty"`
}

// IDRequest names one entity.
type IDRequest struct {
	ID string `json:"id"`
}

// ChangedResponse reports whether a mutation found its target.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}

// ConnectRequest asks the server to pick interfaces and wire two devices.
type ConnectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ConnectionRequest adds a connection verbatim, without interface checks.
type ConnectionRequest struct {
	Source          string `json:"source"`
	Target          string `json:"target"`
	SourceInterface string `json:"sourceInterface,omitempty"`
	TargetInterface string `json:"targetInterface,omitempty"`
}

// ConnectionStatusRequest marks a connection connected or disconnected.
type ConnectionStatusRequest struct {
	ID     string                 `json:"id"`
	Status model.ConnectionStatus `json:"status"`
}

// PathRequest names two devices to route between.
type PathRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// PathResponse is the resolved route. Reachable is false when Path is the
// direct fallback hop.
type PathResponse struct {
	Path      []string `json:"path"`
	Reachable bool     `json:"reachable"`
}

// ActionRequest triggers ping, DNS lookup or traceroute.
type ActionRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
}

// SendPacketRequest injects a packet. With an empty Outcome the packet is
// animated along its path; otherwise it resolves per the outcome class.
type SendPacketRequest struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Protocol    model.Protocol `json:"protocol,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
}

// PacketResponse describes a scheduled packet.
type PacketResponse struct {
	Packet  *model.Packet `json:"packet"`
	Outcome string        `json:"outcome"`
	DueAt   time.Time     `json:"dueAt"`
}

// Empty is the request and response of argument-less RPCs.
type Empty struct{}

// SnapshotResponse is a full copy of the topology.
type SnapshotResponse struct {
	Devices     []*model.Device     `json:"devices"`
	Connections []*model.Connection `json:"connections"`
	Packets     []*model.Packet     `json:"packets"`
	Running     bool                `json:"running"`
}

// SnapshotFromState converts a state snapshot to its wire shape.
func SnapshotFromState(s *state.TopologySnapshot) *SnapshotResponse {
	if s == nil {
		return &SnapshotResponse{}
	}
	return &SnapshotResponse{
		Devices:     s.Devices,
		Connections: s.Connections,
		Packets:     s.Packets,
		Running:     s.Running,
	}
}

// ToStruct encodes v through its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return out, nil
}

// FromStruct decodes s into v. Unknown fields are rejected.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
