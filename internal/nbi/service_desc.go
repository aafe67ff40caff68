package nbi

import (
	"context"

	"github.com/signalsfoundry/netlab-simulator/internal/nbi/types"
	"github.com/signalsfoundry/netlab-simulator/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "netlab.v1.TopologyService"

// Method names of netlab.v1.TopologyService.
const (
	MethodAddDevice           = "AddDevice"
	MethodUpdateDevice        = "UpdateDevice"
	MethodRemoveDevice        = "RemoveDevice"
	MethodConnect             = "Connect"
	MethodAddConnection       = "AddConnection"
	MethodSetConnectionStatus = "SetConnectionStatus"
	MethodRemoveConnection    = "RemoveConnection"
	MethodShortestPath        = "ShortestPath"
	MethodPing                = "Ping"
	MethodDNSLookup           = "DNSLookup"
	MethodTraceroute          = "Traceroute"
	MethodSendPacket          = "SendPacket"
	MethodClearPackets        = "ClearPackets"
	MethodStartSimulation     = "StartSimulation"
	MethodStopSimulation      = "StopSimulation"
	MethodResetSimulation     = "ResetSimulation"
	MethodClearTopology       = "ClearTopology"
	MethodGetSnapshot         = "GetSnapshot"
)

// TopologyServiceServer is the server API of netlab.v1.TopologyService.
type TopologyServiceServer interface {
	AddDevice(context.Context, *types.DeviceRequest) (*model.Device, error)
	UpdateDevice(context.Context, *types.UpdateDeviceRequest) (*types.ChangedResponse, error)
	RemoveDevice(context.Context, *types.IDRequest) (*types.ChangedResponse, error)
	Connect(context.Context, *types.ConnectRequest) (*model.Connection, error)
	AddConnection(context.Context, *types.ConnectionRequest) (*model.Connection, error)
	SetConnectionStatus(context.Context, *types.ConnectionStatusRequest) (*types.ChangedResponse, error)
	RemoveConnection(context.Context, *types.IDRequest) (*types.ChangedResponse, error)
	ShortestPath(context.Context, *types.PathRequest) (*types.PathResponse, error)
	Ping(context.Context, *types.ActionRequest) (*types.PacketResponse, error)
	DNSLookup(context.Context, *types.ActionRequest) (*types.PacketResponse, error)
	Traceroute(context.Context, *types.ActionRequest) (*types.PacketResponse, error)
	SendPacket(context.Context, *types.SendPacketRequest) (*types.PacketResponse, error)
	ClearPackets(context.Context, *types.Empty) (*types.Empty, error)
	StartSimulation(context.Context, *types.Empty) (*types.Empty, error)
	StopSimulation(context.Context, *types.Empty) (*types.Empty, error)
	ResetSimulation(context.Context, *types.Empty) (*types.Empty, error)
	ClearTopology(context.Context, *types.Empty) (*types.Empty, error)
	GetSnapshot(context.Context, *types.Empty) (*types.SnapshotResponse, error)
}

var _ TopologyServiceServer = (*TopologyService)(nil)

// TopologyServiceDesc describes netlab.v1.TopologyService. Every method
// takes and returns a google.protobuf.Struct holding the JSON form of the
// matching types.* shape.
var TopologyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TopologyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodAddDevice, TopologyServiceServer.AddDevice),
		unaryMethod(MethodUpdateDevice, TopologyServiceServer.UpdateDevice),
		unaryMethod(MethodRemoveDevice, TopologyServiceServer.RemoveDevice),
		unaryMethod(MethodConnect, TopologyServiceServer.Connect),
		unaryMethod(MethodAddConnection, TopologyServiceServer.AddConnection),
		unaryMethod(MethodSetConnectionStatus, TopologyServiceServer.SetConnectionStatus),
		unaryMethod(MethodRemoveConnection, TopologyServiceServer.RemoveConnection),
		unaryMethod(MethodShortestPath, TopologyServiceServer.ShortestPath),
		unaryMethod(MethodPing, TopologyServiceServer.Ping),
		unaryMethod(MethodDNSLookup, TopologyServiceServer.DNSLookup),
		unaryMethod(MethodTraceroute, TopologyServiceServer.Traceroute),
		unaryMethod(MethodSendPacket, TopologyServiceServer.SendPacket),
		unaryMethod(MethodClearPackets, TopologyServiceServer.ClearPackets),
		unaryMethod(MethodStartSimulation, TopologyServiceServer.StartSimulation),
		unaryMethod(MethodStopSimulation, TopologyServiceServer.StopSimulation),
		unaryMethod(MethodResetSimulation, TopologyServiceServer.ResetSimulation),
		unaryMethod(MethodClearTopology, TopologyServiceServer.ClearTopology),
		unaryMethod(MethodGetSnapshot, TopologyServiceServer.GetSnapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netlab/v1/topology.proto",
}

// RegisterTopologyService registers svc on s.
func RegisterTopologyService(s grpc.ServiceRegistrar, svc TopologyServiceServer) {
	s.RegisterService(&TopologyServiceDesc, svc)
}

// unaryMethod adapts a typed service method to the Struct wire format.
// Interceptors see the raw Struct request and response.
func unaryMethod[Req, Resp any](name string, call func(TopologyServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				var typed Req
				if err := types.FromStruct(req.(*structpb.Struct), &typed); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				resp, err := call(srv.(TopologyServiceServer), ctx, &typed)
				if err != nil {
					return nil, ToStatusError(err)
				}
				out, err := types.ToStruct(resp)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
