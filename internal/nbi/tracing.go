package nbi

import (
	"context"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const tracerName = "github.com/signalsfoundry/netlab-simulator/internal/nbi"

// Span attribute keys for engine objects.
const (
	attrEntity    = attribute.Key("netlab.entity_type")
	attrOperation = attribute.Key("netlab.operation")
	attrRequestID = attribute.Key("netlab.request_id")
)

// TracingUnaryServerInterceptor names the RPC span after the engine entity
// and operation it drives (e.g. "netlab.device.update") and tags it with the
// device, connection or packet IDs the request names. A server span is
// started when the otelgrpc stats handler is not installed.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		sc := scopeOf(info.FullMethod)
		name := "netlab." + sc.entity + "." + sc.operation

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.method", info.FullMethod),
			attrEntity.String(sc.entity),
			attrOperation.String(sc.operation),
		}
		for _, ep := range sc.requestEndpoints(req) {
			attrs = append(attrs, attribute.String("netlab."+ep.key, ep.value))
		}
		if id := logging.RequestIDFromContext(ctx); id != "" {
			attrs = append(attrs, attrRequestID.String(id))
		}
		span.SetAttributes(attrs...)

		resp, err := handler(ctx, req)
		if err != nil {
			st := status.Convert(err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
			span.SetStatus(otelcodes.Error, st.Message())
		}
		return resp, err
	}
}

// StartChildSpan opens a span around one engine call made by a handler.
// An empty entityID is left off.
func StartChildSpan(ctx context.Context, name, entityType, entityID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{attrEntity.String(entityType)}, extra...)
	if entityID != "" {
		attrs = append(attrs, attribute.String("netlab."+entityType+"_id", entityID))
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
