package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/netlab-simulator/model"
)

// LifecycleCollector exposes packet lifecycle metrics.
type LifecycleCollector struct {
	PacketsScheduled *prometheus.CounterVec
	PacketsResolved  *prometheus.CounterVec
	PacketDelay      *prometheus.HistogramVec
}

// NewLifecycleCollector registers lifecycle metrics against the provided registerer.
func NewLifecycleCollector(reg prometheus.Registerer) (*LifecycleCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	scheduled, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_packets_scheduled_total",
		Help: "Packets given a lifecycle timer, labeled by triggering action.",
	}, []string{"action"}), "netlab_packets_scheduled_total")
	if err != nil {
		return nil, err
	}

	resolved, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_packets_resolved_total",
		Help: "Packets moved to a terminal status, labeled by status.",
	}, []string{"status"}), "netlab_packets_resolved_total")
	if err != nil {
		return nil, err
	}

	delay, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netlab_packet_delay_seconds",
		Help:    "Simulated in-flight time assigned to packets.",
		Buckets: []float64{1, 2, 4, 6, 8, 12, 20},
	}, []string{"action"}), "netlab_packet_delay_seconds")
	if err != nil {
		return nil, err
	}

	return &LifecycleCollector{
		PacketsScheduled: scheduled,
		PacketsResolved:  resolved,
		PacketDelay:      delay,
	}, nil
}

// RecordPacketScheduled counts a scheduled packet and its delay.
func (c *LifecycleCollector) RecordPacketScheduled(action string, delay time.Duration) {
	if c == nil {
		return
	}
	if c.PacketsScheduled != nil {
		c.PacketsScheduled.WithLabelValues(action).Inc()
	}
	if c.PacketDelay != nil {
		c.PacketDelay.WithLabelValues(action).Observe(delay.Seconds())
	}
}

// RecordPacketResolved counts a terminal transition.
func (c *LifecycleCollector) RecordPacketResolved(status model.PacketStatus) {
	if c == nil || c.PacketsResolved == nil {
		return
	}
	c.PacketsResolved.WithLabelValues(string(status)).Inc()
}
