package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/lifecycle"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/nbi"
	"github.com/signalsfoundry/netlab-simulator/internal/observability"
	"github.com/signalsfoundry/netlab-simulator/internal/sched"
	sim "github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"github.com/signalsfoundry/netlab-simulator/kb"
	"github.com/signalsfoundry/netlab-simulator/timectrl"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
)

// Config holds the server's command-line configuration.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	LogLevel       string
	LogFormat      string
	TopologyPath   string
	TickInterval   time.Duration
	Accelerated    bool
	Lifecycle      lifecycle.Config
}

func (c Config) clockMode() timectrl.Mode {
	if c.Accelerated {
		return timectrl.Accelerated
	}
	return timectrl.RealTime
}

func main() {
	cfg := Config{Lifecycle: lifecycle.DefaultConfig()}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the control gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", os.Getenv("LOG_FORMAT"), "log format: text or json")
	flag.StringVar(&cfg.TopologyPath, "topology", "", "optional JSON topology preset to load at startup")
	flag.DurationVar(&cfg.TickInterval, "tick", 100*time.Millisecond, "simulation clock tick")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "advance simulation time as fast as possible")
	flag.Func("ping-success-ratio", "probability in [0,1] that a ping succeeds (default 0.9)", func(raw string) error {
		ratio, err := lifecycle.ParseRatio(raw)
		if err != nil {
			return err
		}
		cfg.Lifecycle.PingSuccessRatio = ratio
		return nil
	})
	flag.Parse()

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, AddSource: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := observability.LoadTracingConfig(nil)
	tracingCfg.Attributes = []attribute.KeyValue{
		attribute.String("netlab.clock_mode", cfg.clockMode().String()),
		attribute.String("netlab.tick", cfg.TickInterval.String()),
	}
	tracing, err := observability.StartTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer tracing.Shutdown(context.Background())

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run wires the engine, serves gRPC on lis and blocks until ctx is done.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	reg := prometheus.NewRegistry()
	topoMetrics, err := observability.NewTopologyCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	lcMetrics, err := observability.NewLifecycleCollector(reg)
	if err != nil {
		return fmt.Errorf("lifecycle metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddress, topoMetrics, log)

	mode := cfg.clockMode()
	clock := timectrl.NewTimeController(time.Now().UTC(), cfg.TickInterval, mode)
	events := sched.NewEventScheduler(clock)

	state := sim.NewTopologyState(
		kb.NewKnowledgeBase(),
		core.NewKnowledgeBase(),
		log,
		sim.WithMetricsRecorder(topoMetrics),
		sim.WithClock(clock),
	)
	packets := lifecycle.NewScheduler(state, events, log,
		lifecycle.WithConfig(cfg.Lifecycle),
		lifecycle.WithMetrics(lcMetrics),
	)

	if cfg.TopologyPath != "" {
		if err := loadTopology(ctx, state, cfg.TopologyPath, log); err != nil {
			return err
		}
	}

	clock.AddListener(func(time.Time) {
		events.RunDue()
	})
	clockCtx, stopClock := context.WithCancel(ctx)
	defer stopClock()
	clockDone := clock.Start(clockCtx, 0)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			nbi.RequestIDUnaryServerInterceptor(log),
			nbi.TracingUnaryServerInterceptor(),
			topoMetrics.UnaryServerInterceptor(),
		),
	)
	nbi.RegisterTopologyService(server, nbi.NewTopologyService(state, packets, log))

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting control gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.String("clock_mode", mode.String()),
	)
	go func() {
		serveErr <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
	}

	log.Info(context.Background(), "shutting down control server")
	server.GracefulStop()
	stopClock()
	<-clockDone

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func loadTopology(ctx context.Context, state *sim.TopologyState, path string, log logging.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()

	preset, err := core.LoadTopology(f)
	if err != nil {
		return err
	}
	ids, err := state.ApplyTopology(ctx, preset)
	if err != nil {
		// Partially applied presets are still usable; report and continue.
		log.Warn(ctx, "topology applied with errors", logging.String("path", path), logging.Err(err))
	}
	log.Info(ctx, "loaded topology preset", logging.String("path", path), logging.Int("devices", len(ids)))
	return nil
}

func serveMetrics(addr string, collector *observability.TopologyCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
