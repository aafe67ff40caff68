// Package lifecycle moves injected packets to a terminal status after a
// delay. Every packet gets exactly one timer on an EventScheduler; stopping
// or resetting the simulation does not cancel it, and a timer whose packet
// has since been cleared is a no-op.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/sched"
	"github.com/signalsfoundry/netlab-simulator/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidOutcome indicates an action request named no known outcome.
	ErrInvalidOutcome = errors.New("invalid outcome")
	// ErrNoDNSServer indicates no reachable server offers DNS.
	ErrNoDNSServer = errors.New("no reachable DNS server")
	// ErrSameEndpoint indicates an action needs two distinct devices.
	ErrSameEndpoint = errors.New("source and destination are the same device")
)

// Outcome is the result class an action picks before its packet is sent.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeTimeout:
		return true
	}
	return false
}

// Status is the terminal packet status the outcome resolves to.
func (o Outcome) Status() model.PacketStatus {
	if o == OutcomeSuccess {
		return model.PacketReceived
	}
	return model.PacketDropped
}

// Action labels for logs and metrics.
const (
	ActionInject     = "inject"
	ActionPing       = "ping"
	ActionDNS        = "dns"
	ActionTraceroute = "traceroute"
	ActionAnimate    = "animate"
)

// PacketStore is the subset of the topology state the scheduler drives.
type PacketStore interface {
	AddPacket(ctx context.Context, spec model.PacketSpec) (*model.Packet, error)
	UpdatePacket(ctx context.Context, id string, patch model.PacketPatch) bool
	ListDevices() []*model.Device
	ShortestPath(sourceID, destinationID string) []string
	FindPath(sourceID, destinationID string) ([]string, bool)
}

// MetricsRecorder receives packet scheduling and resolution counts.
type MetricsRecorder interface {
	RecordPacketScheduled(action string, delay time.Duration)
	RecordPacketResolved(status model.PacketStatus)
}

// ActionRequest describes one action-triggered packet.
type ActionRequest struct {
	Source      string
	Destination string
	Protocol    model.Protocol
	Outcome     Outcome
	// Action labels the request in logs and metrics. Empty means inject.
	Action string
}

// Scheduled is a packet that has been stored and given its timer.
type Scheduled struct {
	Packet  *model.Packet
	Outcome Outcome
	DueAt   time.Time
	EventID string
}

// Scheduler turns injected packets into delayed terminal transitions.
type Scheduler struct {
	store  PacketStore
	events sched.EventScheduler
	cfg    Config

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithConfig overrides the default timings. Zero fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		cfg.ApplyDefaults()
		s.cfg = cfg
	}
}

// WithRandSource sets the source used to decide ping outcomes.
func WithRandSource(src rand.Source) Option {
	return func(s *Scheduler) {
		if src != nil {
			s.rng = rand.New(src)
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewScheduler binds a packet store to an event scheduler.
func NewScheduler(store PacketStore, events sched.EventScheduler, log logging.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logging.Noop()
	}
	s := &Scheduler{
		store:  store,
		events: events,
		cfg:    DefaultConfig(),
		log:    log.With(logging.String("component", "lifecycle")),
		tracer: otel.Tracer("github.com/signalsfoundry/netlab-simulator/internal/lifecycle"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Config returns the effective timings.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Inject stores an action-triggered packet routed along the current
// shortest path and schedules its outcome-determined terminal transition.
func (s *Scheduler) Inject(ctx context.Context, req ActionRequest) (*Scheduled, error) {
	if !req.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, req.Outcome)
	}
	if req.Action == "" {
		req.Action = ActionInject
	}
	path := s.store.ShortestPath(req.Source, req.Destination)
	return s.send(ctx, req.Action, model.PacketSpec{
		Source:      req.Source,
		Destination: req.Destination,
		Protocol:    req.Protocol,
		Path:        path,
	}, req.Outcome, s.cfg.DelayFor(req.Outcome))
}

// Ping sends an ICMP packet whose outcome is success with probability
// PingSuccessRatio and failure otherwise.
func (s *Scheduler) Ping(ctx context.Context, sourceID, destinationID string) (*Scheduled, error) {
	outcome := OutcomeFailure
	if s.roll() < s.cfg.SuccessRatio() {
		outcome = OutcomeSuccess
	}
	return s.Inject(ctx, ActionRequest{
		Source:      sourceID,
		Destination: destinationID,
		Protocol:    model.ProtocolICMP,
		Outcome:     outcome,
		Action:      ActionPing,
	})
}

// DNSLookup resolves hostname against the first server, in device order,
// that offers DNS and is reachable from sourceID. Without one nothing is
// injected and ErrNoDNSServer is returned.
func (s *Scheduler) DNSLookup(ctx context.Context, sourceID, hostname string) (*Scheduled, error) {
	serverID, path, ok := s.findDNSServer(sourceID)
	if !ok {
		s.log.Info(ctx, "dns lookup blocked",
			logging.String("source", sourceID),
			logging.String("hostname", hostname),
		)
		return nil, fmt.Errorf("%w from %q", ErrNoDNSServer, sourceID)
	}
	return s.send(ctx, ActionDNS, model.PacketSpec{
		Source:      sourceID,
		Destination: serverID,
		Protocol:    model.ProtocolDNS,
		Path:        path,
	}, OutcomeSuccess, s.cfg.DelayFor(OutcomeSuccess))
}

// Traceroute sends a UDP probe along the shortest path. Source and
// destination must differ.
func (s *Scheduler) Traceroute(ctx context.Context, sourceID, destinationID string) (*Scheduled, error) {
	if sourceID == destinationID {
		return nil, fmt.Errorf("%w: %q", ErrSameEndpoint, sourceID)
	}
	return s.Inject(ctx, ActionRequest{
		Source:      sourceID,
		Destination: destinationID,
		Protocol:    model.ProtocolUDP,
		Outcome:     OutcomeSuccess,
		Action:      ActionTraceroute,
	})
}

// Animate sends a packet along the resolved path. It is received after
// max(len(path)*HopDelay, MinAnimationDelay) regardless of topology.
func (s *Scheduler) Animate(ctx context.Context, sourceID, destinationID string, protocol model.Protocol) (*Scheduled, error) {
	path := s.store.ShortestPath(sourceID, destinationID)
	return s.send(ctx, ActionAnimate, model.PacketSpec{
		Source:      sourceID,
		Destination: destinationID,
		Protocol:    protocol,
		Path:        path,
	}, OutcomeSuccess, s.cfg.AnimationDelay(len(path)))
}

func (s *Scheduler) send(ctx context.Context, action string, spec model.PacketSpec, outcome Outcome, delay time.Duration) (*Scheduled, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle."+action, trace.WithAttributes(
		attribute.String("packet.source", spec.Source),
		attribute.String("packet.destination", spec.Destination),
		attribute.String("packet.outcome", string(outcome)),
	))
	defer span.End()

	p, err := s.store.AddPacket(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	due := s.events.Now().Add(delay)
	status := outcome.Status()
	id := p.ID
	eventID := s.events.Schedule(due, func() {
		s.resolve(id, status)
	})

	span.SetAttributes(attribute.String("packet.id", p.ID), attribute.Int64("packet.delay_ms", delay.Milliseconds()))
	if s.metrics != nil {
		s.metrics.RecordPacketScheduled(action, delay)
	}
	s.log.Debug(ctx, "packet scheduled",
		logging.String("action", action),
		logging.String("packet_id", p.ID),
		logging.String("outcome", string(outcome)),
		logging.Duration("delay", delay),
	)
	return &Scheduled{Packet: p, Outcome: outcome, DueAt: due, EventID: eventID}, nil
}

// resolve runs on the scheduler's goroutine once the packet's timer fires.
func (s *Scheduler) resolve(packetID string, status model.PacketStatus) {
	ctx := context.Background()
	if !s.store.UpdatePacket(ctx, packetID, model.PacketPatch{Status: &status}) {
		s.log.Debug(ctx, "packet gone before its timer fired", logging.String("packet_id", packetID))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPacketResolved(status)
	}
	s.log.Debug(ctx, "packet resolved",
		logging.String("packet_id", packetID),
		logging.String("status", string(status)),
	)
}

func (s *Scheduler) findDNSServer(sourceID string) (string, []string, bool) {
	for _, d := range s.store.ListDevices() {
		if d.Type != model.DeviceServer {
			continue
		}
		cfg, ok := d.Config.(*model.ServerConfig)
		if !ok || !cfg.Offers(model.ServiceDNS) {
			continue
		}
		if path, ok := s.store.FindPath(sourceID, d.ID); ok {
			return d.ID, path, true
		}
	}
	return "", nil, false
}

func (s *Scheduler) roll() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}
