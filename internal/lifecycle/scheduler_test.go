package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/sched"
	"github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"github.com/signalsfoundry/netlab-simulator/model"
)

var t0 = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

// fixedSource always yields the same value, pinning Float64.
type fixedSource int64

func (f fixedSource) Int63() int64 { return int64(f) }
func (fixedSource) Seed(int64)     {}

// rollBelow yields Float64() == 0, rollAbove yields Float64() == 0.9375.
const (
	rollBelow fixedSource = 0
	rollAbove fixedSource = 1<<63 - 1<<59
)

type fakeLifecycleMetrics struct {
	mu        sync.Mutex
	scheduled map[string]int
	resolved  map[model.PacketStatus]int
}

func (f *fakeLifecycleMetrics) RecordPacketScheduled(action string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduled == nil {
		f.scheduled = map[string]int{}
	}
	f.scheduled[action]++
}

func (f *fakeLifecycleMetrics) RecordPacketResolved(status model.PacketStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved == nil {
		f.resolved = map[model.PacketStatus]int{}
	}
	f.resolved[status]++
}

type fixture struct {
	st     *state.TopologyState
	events *sched.FakeEventScheduler
	sched  *Scheduler
	ids    map[string]string
}

// newFixture builds PC1 - R1 - PC2 plus an isolated PC3.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	events := sched.NewFakeEventScheduler(t0)
	st := state.NewTopologyState(nil, nil, logging.Noop(), state.WithClock(events.Clock()))

	ids := map[string]string{}
	for _, d := range []struct {
		name string
		typ  model.DeviceType
	}{
		{"R1", model.DeviceRouter},
		{"PC1", model.DevicePC},
		{"PC2", model.DevicePC},
		{"PC3", model.DevicePC},
	} {
		dev, err := st.AddDevice(ctx, model.DeviceSpec{Type: d.typ, Name: d.name})
		if err != nil {
			t.Fatalf("AddDevice(%s): %v", d.name, err)
		}
		ids[d.name] = dev.ID
	}
	for _, l := range [][2]string{{"PC1", "R1"}, {"R1", "PC2"}} {
		if _, err := st.Connect(ctx, ids[l[0]], ids[l[1]]); err != nil {
			t.Fatalf("Connect(%s, %s): %v", l[0], l[1], err)
		}
	}

	return &fixture{
		st:     st,
		events: events,
		sched:  NewScheduler(st, events, logging.Noop(), opts...),
		ids:    ids,
	}
}

func (f *fixture) status(t *testing.T, id string) model.PacketStatus {
	t.Helper()
	p, ok := f.st.GetPacket(id)
	if !ok {
		t.Fatalf("packet %q missing", id)
	}
	return p.Status
}

func TestInjectOutcomeDelays(t *testing.T) {
	tests := []struct {
		outcome Outcome
		delay   time.Duration
		want    model.PacketStatus
	}{
		{OutcomeSuccess, 4000 * time.Millisecond, model.PacketReceived},
		{OutcomeFailure, 2000 * time.Millisecond, model.PacketDropped},
		{OutcomeTimeout, 6000 * time.Millisecond, model.PacketDropped},
	}
	for _, tc := range tests {
		t.Run(string(tc.outcome), func(t *testing.T) {
			f := newFixture(t)
			got, err := f.sched.Inject(context.Background(), ActionRequest{
				Source:      f.ids["PC1"],
				Destination: f.ids["PC2"],
				Protocol:    model.ProtocolTCP,
				Outcome:     tc.outcome,
			})
			if err != nil {
				t.Fatalf("Inject error: %v", err)
			}
			if !got.DueAt.Equal(t0.Add(tc.delay)) {
				t.Fatalf("DueAt = %v, want %v", got.DueAt, t0.Add(tc.delay))
			}
			if got.Packet.Status != model.PacketTransmitted {
				t.Fatalf("initial status = %q, want transmitted", got.Packet.Status)
			}
			wantPath := []string{f.ids["PC1"], f.ids["R1"], f.ids["PC2"]}
			if !reflect.DeepEqual(got.Packet.Path, wantPath) {
				t.Fatalf("path = %v, want %v", got.Packet.Path, wantPath)
			}

			f.events.AdvanceBy(tc.delay - time.Millisecond)
			if s := f.status(t, got.Packet.ID); s != model.PacketTransmitted {
				t.Fatalf("status 1ms early = %q, want transmitted", s)
			}
			f.events.AdvanceBy(time.Millisecond)
			if s := f.status(t, got.Packet.ID); s != tc.want {
				t.Fatalf("status at deadline = %q, want %q", s, tc.want)
			}
		})
	}
}

func TestScenarioDFailureDropsAfterTwoSeconds(t *testing.T) {
	f := newFixture(t)
	got, err := f.sched.Inject(context.Background(), ActionRequest{
		Source: f.ids["PC1"], Destination: f.ids["PC2"], Outcome: OutcomeFailure,
	})
	if err != nil {
		t.Fatalf("Inject error: %v", err)
	}

	f.events.AdvanceBy(1999 * time.Millisecond)
	if s := f.status(t, got.Packet.ID); s != model.PacketTransmitted {
		t.Fatalf("status at 1999ms = %q, want transmitted", s)
	}
	f.events.AdvanceBy(time.Millisecond)
	if s := f.status(t, got.Packet.ID); s != model.PacketDropped {
		t.Fatalf("status at 2000ms = %q, want dropped", s)
	}
}

func TestInjectRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.Inject(context.Background(), ActionRequest{Source: f.ids["PC1"], Destination: f.ids["PC2"], Outcome: "lost"})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("error = %v, want ErrInvalidOutcome", err)
	}
	if len(f.st.ListPackets()) != 0 || f.events.Pending() != 0 {
		t.Fatalf("rejected inject left a packet or timer behind")
	}
}

func TestPingOutcomeFollowsRandomSource(t *testing.T) {
	tests := []struct {
		name string
		src  fixedSource
		want Outcome
	}{
		{"success", rollBelow, OutcomeSuccess},
		{"failure", rollAbove, OutcomeFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &fakeLifecycleMetrics{}
			f := newFixture(t, WithRandSource(tc.src), WithMetrics(m))
			got, err := f.sched.Ping(context.Background(), f.ids["PC1"], f.ids["PC2"])
			if err != nil {
				t.Fatalf("Ping error: %v", err)
			}
			if got.Outcome != tc.want {
				t.Fatalf("outcome = %q, want %q", got.Outcome, tc.want)
			}
			if got.Packet.Protocol != model.ProtocolICMP {
				t.Fatalf("protocol = %q, want ICMP", got.Packet.Protocol)
			}
			f.events.AdvanceBy(6 * time.Second)
			if s := f.status(t, got.Packet.ID); s != tc.want.Status() {
				t.Fatalf("status = %q, want %q", s, tc.want.Status())
			}
			if m.scheduled[ActionPing] != 1 || m.resolved[tc.want.Status()] != 1 {
				t.Fatalf("metrics = %+v / %+v", m.scheduled, m.resolved)
			}
		})
	}
}

func TestPingSuccessRatioBounds(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		src   fixedSource
		want  Outcome
	}{
		{"zero always fails", 0, rollBelow, OutcomeFailure},
		{"one always succeeds", 1, rollAbove, OutcomeSuccess},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, WithRandSource(tc.src), WithConfig(Config{PingSuccessRatio: Ratio(tc.ratio)}))
			for i := 0; i < 3; i++ {
				got, err := f.sched.Ping(context.Background(), f.ids["PC1"], f.ids["PC2"])
				if err != nil {
					t.Fatalf("Ping error: %v", err)
				}
				if got.Outcome != tc.want {
					t.Fatalf("ping %d outcome = %q, want %q", i, got.Outcome, tc.want)
				}
			}
		})
	}
}

func TestDNSLookupRequiresReachableServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sched.DNSLookup(ctx, f.ids["PC1"], "example.com"); !errors.Is(err, ErrNoDNSServer) {
		t.Fatalf("error = %v, want ErrNoDNSServer", err)
	}
	if len(f.st.ListPackets()) != 0 || f.events.Pending() != 0 {
		t.Fatalf("blocked lookup left a packet or timer behind")
	}

	// A DNS server that is not connected still blocks the lookup.
	srv, err := f.st.AddDevice(ctx, model.DeviceSpec{
		Type: model.DeviceServer,
		Name: "DNS1",
		Config: &model.ServerConfig{Services: []model.ServiceListener{
			{Name: model.ServiceDNS, Protocol: model.ProtocolDNS, Port: 53, Enabled: true},
		}},
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if _, err := f.sched.DNSLookup(ctx, f.ids["PC1"], "example.com"); !errors.Is(err, ErrNoDNSServer) {
		t.Fatalf("unreachable server: error = %v, want ErrNoDNSServer", err)
	}

	if _, err := f.st.Connect(ctx, f.ids["R1"], srv.ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	got, err := f.sched.DNSLookup(ctx, f.ids["PC1"], "example.com")
	if err != nil {
		t.Fatalf("DNSLookup error: %v", err)
	}
	if got.Packet.Destination != srv.ID || got.Packet.Protocol != model.ProtocolDNS {
		t.Fatalf("packet = %+v", got.Packet)
	}
	if want := []string{f.ids["PC1"], f.ids["R1"], srv.ID}; !reflect.DeepEqual(got.Packet.Path, want) {
		t.Fatalf("path = %v, want %v", got.Packet.Path, want)
	}
	f.events.AdvanceBy(4 * time.Second)
	if s := f.status(t, got.Packet.ID); s != model.PacketReceived {
		t.Fatalf("status = %q, want received", s)
	}
}

func TestDNSLookupIgnoresDisabledListener(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv, err := f.st.AddDevice(ctx, model.DeviceSpec{
		Type: model.DeviceServer,
		Name: "DNS1",
		Config: &model.ServerConfig{Services: []model.ServiceListener{
			{Name: model.ServiceDNS, Port: 53, Enabled: false},
		}},
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if _, err := f.st.Connect(ctx, f.ids["R1"], srv.ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := f.sched.DNSLookup(ctx, f.ids["PC1"], "example.com"); !errors.Is(err, ErrNoDNSServer) {
		t.Fatalf("error = %v, want ErrNoDNSServer", err)
	}
}

func TestTracerouteRejectsSameEndpoint(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sched.Traceroute(context.Background(), f.ids["PC1"], f.ids["PC1"]); !errors.Is(err, ErrSameEndpoint) {
		t.Fatalf("error = %v, want ErrSameEndpoint", err)
	}
	if len(f.st.ListPackets()) != 0 || f.events.Pending() != 0 {
		t.Fatalf("blocked traceroute left a packet or timer behind")
	}

	got, err := f.sched.Traceroute(context.Background(), f.ids["PC1"], f.ids["PC3"])
	if err != nil {
		t.Fatalf("Traceroute error: %v", err)
	}
	// PC3 is isolated, so the path falls back to the direct hop.
	if want := []string{f.ids["PC1"], f.ids["PC3"]}; !reflect.DeepEqual(got.Packet.Path, want) {
		t.Fatalf("path = %v, want %v", got.Packet.Path, want)
	}
	if got.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want success", got.Outcome)
	}
}

func TestAnimateDelayScalesWithPath(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		dst   string
		delay time.Duration
	}{
		{"three hops", "PC1", "PC2", 6 * time.Second},
		{"fallback two hops", "PC1", "PC3", 4 * time.Second},
		{"single waypoint floors at minimum", "PC1", "PC1", 2 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			got, err := f.sched.Animate(context.Background(), f.ids[tc.src], f.ids[tc.dst], model.ProtocolTCP)
			if err != nil {
				t.Fatalf("Animate error: %v", err)
			}
			if d := got.DueAt.Sub(t0); d != tc.delay {
				t.Fatalf("delay = %v, want %v", d, tc.delay)
			}
			f.events.AdvanceBy(tc.delay)
			if s := f.status(t, got.Packet.ID); s != model.PacketReceived {
				t.Fatalf("status = %q, want received", s)
			}
		})
	}
}

func TestTimerAfterResetIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.sched.Inject(ctx, ActionRequest{Source: f.ids["PC1"], Destination: f.ids["PC2"], Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Inject error: %v", err)
	}
	f.st.ResetSimulation(ctx)
	if f.events.Pending() != 1 {
		t.Fatalf("reset cancelled the timer: pending = %d", f.events.Pending())
	}

	f.events.AdvanceBy(4 * time.Second)
	if f.events.Pending() != 0 {
		t.Fatalf("timer did not fire")
	}
	if n := len(f.st.ListPackets()); n != 0 {
		t.Fatalf("timer resurrected a cleared packet: %d packets", n)
	}
}

func TestStopDoesNotCancelTimers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.st.StartSimulation(ctx)
	got, err := f.sched.Inject(ctx, ActionRequest{Source: f.ids["PC1"], Destination: f.ids["PC2"], Outcome: OutcomeTimeout})
	if err != nil {
		t.Fatalf("Inject error: %v", err)
	}
	f.st.StopSimulation(ctx)

	f.events.AdvanceBy(6 * time.Second)
	if s := f.status(t, got.Packet.ID); s != model.PacketDropped {
		t.Fatalf("status after stop = %q, want dropped", s)
	}
}

func TestEachPacketGetsOneTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for range 3 {
		if _, err := f.sched.Traceroute(ctx, f.ids["PC1"], f.ids["PC2"]); err != nil {
			t.Fatalf("Traceroute error: %v", err)
		}
	}
	if p := f.events.Pending(); p != 3 {
		t.Fatalf("pending timers = %d, want 3", p)
	}
	f.events.AdvanceBy(10 * time.Second)
	for _, p := range f.st.ListPackets() {
		if !p.Status.Terminal() {
			t.Fatalf("packet %s not terminal: %q", p.ID, p.Status)
		}
	}
	if p := f.events.Pending(); p != 0 {
		t.Fatalf("pending timers after drain = %d", p)
	}
}
