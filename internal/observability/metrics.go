package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// TopologyCollector bundles Prometheus metrics for the control surface and
// the topology store, and provides helpers to wire them into gRPC servers
// and HTTP handlers.
type TopologyCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	TopologyDevices     prometheus.Gauge
	TopologyConnections prometheus.Gauge
	TopologyPackets     prometheus.Gauge

	PathComputationDuration prometheus.Histogram
}

// NewTopologyCollector registers topology Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewTopologyCollector(reg prometheus.Registerer) (*TopologyCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_requests_total",
		Help: "Total number of handled control RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "netlab_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netlab_request_duration_seconds",
		Help:    "Control RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"})
	durations, err = registerHistogramVec(reg, durations, "netlab_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	devices, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netlab_topology_devices",
		Help: "Current number of devices in the topology.",
	}), "netlab_topology_devices")
	if err != nil {
		return nil, err
	}
	connections, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netlab_topology_connections",
		Help: "Current number of connections in the topology.",
	}), "netlab_topology_connections")
	if err != nil {
		return nil, err
	}
	packets, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netlab_topology_packets",
		Help: "Current number of retained packets.",
	}), "netlab_topology_packets")
	if err != nil {
		return nil, err
	}

	pathHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netlab_path_computation_duration_seconds",
		Help:    "Duration of shortest-path resolutions.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "netlab_path_computation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &TopologyCollector{
		gatherer:                gatherer,
		RPCRequests:             requests,
		RPCDurations:            durations,
		TopologyDevices:         devices,
		TopologyConnections:     connections,
		TopologyPackets:         packets,
		PathComputationDuration: pathHistogram,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *TopologyCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TopologyCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetTopologyCounts lets the topology state drive gauge values directly
// from its mutators.
func (c *TopologyCollector) SetTopologyCounts(devices, connections, packets int) {
	if c == nil {
		return
	}
	if c.TopologyDevices != nil {
		c.TopologyDevices.Set(float64(devices))
	}
	if c.TopologyConnections != nil {
		c.TopologyConnections.Set(float64(connections))
	}
	if c.TopologyPackets != nil {
		c.TopologyPackets.Set(float64(packets))
	}
}

// ObservePathComputation records a path computation duration measurement.
func (c *TopologyCollector) ObservePathComputation(d time.Duration) {
	if c == nil || c.PathComputationDuration == nil {
		return
	}
	c.PathComputationDuration.Observe(d.Seconds())
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register re-uses an already registered collector of the same concrete
// type so tests and restarts can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return register(reg, gauge, name)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, hist, name)
}
