package nbi

import (
	"context"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const requestIDMetadataKey = "x-request-id"

// rpcScope names the engine entity a control RPC acts on and what it does
// to it.
type rpcScope struct {
	entity    string
	operation string
}

var rpcScopes = map[string]rpcScope{
	MethodAddDevice:           {"device", "add"},
	MethodUpdateDevice:        {"device", "update"},
	MethodRemoveDevice:        {"device", "remove"},
	MethodConnect:             {"connection", "connect"},
	MethodAddConnection:       {"connection", "add"},
	MethodSetConnectionStatus: {"connection", "set_status"},
	MethodRemoveConnection:    {"connection", "remove"},
	MethodShortestPath:        {"path", "resolve"},
	MethodPing:                {"packet", "ping"},
	MethodDNSLookup:           {"packet", "dns_lookup"},
	MethodTraceroute:          {"packet", "traceroute"},
	MethodSendPacket:          {"packet", "send"},
	MethodClearPackets:        {"packet", "clear"},
	MethodStartSimulation:     {"simulation", "start"},
	MethodStopSimulation:      {"simulation", "stop"},
	MethodResetSimulation:     {"simulation", "reset"},
	MethodClearTopology:       {"topology", "clear"},
	MethodGetSnapshot:         {"topology", "snapshot"},
}

func scopeOf(fullMethod string) rpcScope {
	_, method := observability.SplitMethod(fullMethod)
	if sc, ok := rpcScopes[method]; ok {
		return sc
	}
	return rpcScope{entity: "unknown", operation: method}
}

// endpoint is one engine object named by a request.
type endpoint struct {
	key   string
	value string
}

// requestEndpoints lists the object IDs a Struct request names. The
// generic "id" field is reported under the RPC's entity, e.g. device_id.
func (sc rpcScope) requestEndpoints(req any) []endpoint {
	in, ok := req.(*structpb.Struct)
	if !ok {
		return nil
	}
	var out []endpoint
	for _, key := range []string{"id", "source", "target", "destination"} {
		v := in.GetFields()[key].GetStringValue()
		if v == "" {
			continue
		}
		if key == "id" {
			key = sc.entity + "_id"
		}
		out = append(out, endpoint{key: key, value: v})
	}
	return out
}

// RequestIDUnaryServerInterceptor gives every RPC a request ID, taken from
// x-request-id metadata when the caller sent one, and parks a logger on the
// context tagged with the RPC's method, target entity and the object IDs
// it names. Those fields carry an rpc_ prefix so they never collide with the
// entity_type, operation and *_id fields engine code logs through the same
// logger.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if id := incomingRequestID(ctx); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, _ = logging.EnsureRequestID(ctx)

		sc := scopeOf(info.FullMethod)
		fields := []logging.Field{
			logging.String("rpc_method", info.FullMethod),
			logging.String("rpc_entity", sc.entity),
			logging.String("rpc_operation", sc.operation),
		}
		for _, ep := range sc.requestEndpoints(req) {
			fields = append(fields, logging.String("rpc_"+ep.key, ep.value))
		}
		reqLog := base.With(fields...)
		ctx = logging.ContextWithLogger(ctx, reqLog)

		start := time.Now()
		resp, err := handler(ctx, req)
		reqLog.Debug(ctx, "rpc handled",
			logging.String("code", status.Code(err).String()),
			logging.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
