package nbi

import (
	"context"

	"github.com/signalsfoundry/netlab-simulator/internal/nbi/types"
	"github.com/signalsfoundry/netlab-simulator/model"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client for netlab.v1.TopologyService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req encoded as a Struct and decodes the reply
// into resp.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := types.ToStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	return types.FromStruct(out, resp)
}

func (c *Client) AddDevice(ctx context.Context, req *types.DeviceRequest) (*model.Device, error) {
	out := new(model.Device)
	return out, c.Call(ctx, MethodAddDevice, req, out)
}

func (c *Client) UpdateDevice(ctx context.Context, req *types.UpdateDeviceRequest) (bool, error) {
	out := new(types.ChangedResponse)
	err := c.Call(ctx, MethodUpdateDevice, req, out)
	return out.Changed, err
}

func (c *Client) RemoveDevice(ctx context.Context, id string) (bool, error) {
	out := new(types.ChangedResponse)
	err := c.Call(ctx, MethodRemoveDevice, &types.IDRequest{ID: id}, out)
	return out.Changed, err
}

func (c *Client) Connect(ctx context.Context, source, target string) (*model.Connection, error) {
	out := new(model.Connection)
	return out, c.Call(ctx, MethodConnect, &types.ConnectRequest{Source: source, Target: target}, out)
}

func (c *Client) ShortestPath(ctx context.Context, source, destination string) (*types.PathResponse, error) {
	out := new(types.PathResponse)
	return out, c.Call(ctx, MethodShortestPath, &types.PathRequest{Source: source, Destination: destination}, out)
}

func (c *Client) Ping(ctx context.Context, source, destination string) (*types.PacketResponse, error) {
	out := new(types.PacketResponse)
	return out, c.Call(ctx, MethodPing, &types.ActionRequest{Source: source, Destination: destination}, out)
}

func (c *Client) DNSLookup(ctx context.Context, source, hostname string) (*types.PacketResponse, error) {
	out := new(types.PacketResponse)
	return out, c.Call(ctx, MethodDNSLookup, &types.ActionRequest{Source: source, Hostname: hostname}, out)
}

func (c *Client) Traceroute(ctx context.Context, source, destination string) (*types.PacketResponse, error) {
	out := new(types.PacketResponse)
	return out, c.Call(ctx, MethodTraceroute, &types.ActionRequest{Source: source, Destination: destination}, out)
}

func (c *Client) SendPacket(ctx context.Context, req *types.SendPacketRequest) (*types.PacketResponse, error) {
	out := new(types.PacketResponse)
	return out, c.Call(ctx, MethodSendPacket, req, out)
}

func (c *Client) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*types.SnapshotResponse, error) {
	out := new(types.SnapshotResponse)
	return out, c.Call(ctx, MethodGetSnapshot, &types.Empty{}, out, opts...)
}
