package main

import (
	"bytes"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/lifecycle"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/internal/sched"
	sim "github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"github.com/signalsfoundry/netlab-simulator/model"
	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

//go:embed topology.json
var defaultTopology []byte

var demoStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

type demoConfig struct {
	Duration     time.Duration
	Tick         time.Duration
	PingEvery    time.Duration
	Seed         int64
	TopologyPath string
}

type demoSummary struct {
	Sent     int
	ByStatus map[model.PacketStatus]int
	Blocked  int
}

func main() {
	cfg := demoConfig{}
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "total simulated duration")
	flag.DurationVar(&cfg.Tick, "tick", 100*time.Millisecond, "tick interval")
	flag.DurationVar(&cfg.PingEvery, "ping-every", 5*time.Second, "simulated time between pings")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "seed for ping outcomes")
	flag.StringVar(&cfg.TopologyPath, "topology", "", "JSON topology preset (defaults to the built-in demo network)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := runDemo(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "demo failed", logging.Err(err))
		os.Exit(1)
	}

	statuses := make([]string, 0, len(summary.ByStatus))
	for st := range summary.ByStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	fmt.Printf("packets sent: %d (blocked actions: %d)\n", summary.Sent, summary.Blocked)
	for _, st := range statuses {
		fmt.Printf("  %-12s %d\n", st, summary.ByStatus[model.PacketStatus(st)])
	}
}

// runDemo builds the preset network, then pings round-robin between its
// PCs on an accelerated clock, with one DNS lookup, traceroute and
// animated packet at the start.
func runDemo(ctx context.Context, cfg demoConfig, log logging.Logger) (*demoSummary, error) {
	if cfg.PingEvery <= 0 {
		cfg.PingEvery = 5 * time.Second
	}

	var src io.Reader = bytes.NewReader(defaultTopology)
	if cfg.TopologyPath != "" {
		f, err := os.Open(cfg.TopologyPath)
		if err != nil {
			return nil, fmt.Errorf("open topology: %w", err)
		}
		defer f.Close()
		src = f
	}
	preset, err := core.LoadTopology(src)
	if err != nil {
		return nil, err
	}

	clock := timectrl.NewTimeController(demoStart, cfg.Tick, timectrl.Accelerated)
	events := sched.NewEventScheduler(clock)
	state := sim.NewTopologyState(nil, nil, log, sim.WithClock(clock))
	packets := lifecycle.NewScheduler(state, events, log, lifecycle.WithRandSource(rand.NewSource(cfg.Seed)))

	ids, err := state.ApplyTopology(ctx, preset)
	if err != nil {
		return nil, err
	}

	var pcs []string
	for _, d := range state.ListDevices() {
		if d.Type == model.DevicePC {
			pcs = append(pcs, d.ID)
		}
	}
	if len(pcs) < 2 {
		return nil, fmt.Errorf("demo topology needs at least two PCs, got %d", len(pcs))
	}

	summary := &demoSummary{ByStatus: map[model.PacketStatus]int{}}
	record := func(action string, _ *lifecycle.Scheduled, err error) {
		if err != nil {
			summary.Blocked++
			log.Info(ctx, "action blocked", logging.String("action", action), logging.Err(err))
			return
		}
		summary.Sent++
	}

	state.StartSimulation(ctx)

	first := pcs[0]
	last := pcs[len(pcs)-1]
	sc, err := packets.DNSLookup(ctx, first, "example.com")
	record(lifecycle.ActionDNS, sc, err)
	sc, err = packets.Traceroute(ctx, first, last)
	record(lifecycle.ActionTraceroute, sc, err)
	if dns, ok := ids["DNS1"]; ok {
		sc, err = packets.Animate(ctx, pcs[1], dns, model.ProtocolUDP)
		record(lifecycle.ActionAnimate, sc, err)
	}

	next := demoStart.Add(cfg.PingEvery)
	turn := 0
	clock.AddListener(func(now time.Time) {
		events.RunDue()
		for !now.Before(next) {
			from := pcs[turn%len(pcs)]
			to := pcs[(turn+1)%len(pcs)]
			turn++
			sc, err := packets.Ping(ctx, from, to)
			record(lifecycle.ActionPing, sc, err)
			next = next.Add(cfg.PingEvery)
		}
	})

	<-clock.Start(ctx, cfg.Duration)
	state.StopSimulation(ctx)

	for _, p := range state.ListPackets() {
		summary.ByStatus[p.Status]++
	}
	log.Info(ctx, "demo finished",
		logging.Int("sent", summary.Sent),
		logging.Int("pending_timers", events.Pending()),
		logging.String("sim_time", clock.Now().Sub(demoStart).String()),
	)
	return summary, nil
}
