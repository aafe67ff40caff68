package lifecycle

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds the delays and odds the scheduler applies to packets.
type Config struct {
	// SuccessDelay is how long an action packet with a success outcome
	// stays in flight before it is received.
	// Default: 4s
	SuccessDelay time.Duration

	// FailureDelay is how long a failing action packet stays in flight
	// before it is dropped.
	// Default: 2s
	FailureDelay time.Duration

	// TimeoutDelay is how long a timed-out action packet stays in flight
	// before it is dropped.
	// Default: 6s
	TimeoutDelay time.Duration

	// HopDelay is the per-waypoint travel time of an animated packet.
	// Default: 2s
	HopDelay time.Duration

	// MinAnimationDelay bounds the total animation time from below.
	// Default: 2s
	MinAnimationDelay time.Duration

	// PingSuccessRatio is the probability in [0, 1] that a ping
	// succeeds. Zero makes every ping fail; nil or out-of-range values
	// are replaced by the default.
	// Default: 0.9
	PingSuccessRatio *float64
}

// Ratio returns a pointer to p for use as PingSuccessRatio.
func Ratio(p float64) *float64 { return &p }

// ParseRatio parses a probability in [0, 1].
func ParseRatio(raw string) (*float64, error) {
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if !validRatio(p) {
		return nil, fmt.Errorf("ratio %v outside [0, 1]", p)
	}
	return Ratio(p), nil
}

// SuccessRatio returns the effective ping success probability.
func (c Config) SuccessRatio() float64 {
	if c.PingSuccessRatio == nil || !validRatio(*c.PingSuccessRatio) {
		return *DefaultConfig().PingSuccessRatio
	}
	return *c.PingSuccessRatio
}

func validRatio(p float64) bool {
	return p >= 0 && p <= 1
}

// DefaultConfig returns a Config with the standard lifecycle timings.
func DefaultConfig() Config {
	return Config{
		SuccessDelay:      4 * time.Second,
		FailureDelay:      2 * time.Second,
		TimeoutDelay:      6 * time.Second,
		HopDelay:          2 * time.Second,
		MinAnimationDelay: 2 * time.Second,
		PingSuccessRatio:  Ratio(0.9),
	}
}

// ApplyDefaults fills zero or out-of-range fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.SuccessDelay <= 0 {
		c.SuccessDelay = def.SuccessDelay
	}
	if c.FailureDelay <= 0 {
		c.FailureDelay = def.FailureDelay
	}
	if c.TimeoutDelay <= 0 {
		c.TimeoutDelay = def.TimeoutDelay
	}
	if c.HopDelay <= 0 {
		c.HopDelay = def.HopDelay
	}
	if c.MinAnimationDelay <= 0 {
		c.MinAnimationDelay = def.MinAnimationDelay
	}
	c.PingSuccessRatio = Ratio(c.SuccessRatio())
}

// DelayFor maps an outcome class to its in-flight time.
func (c Config) DelayFor(o Outcome) time.Duration {
	switch o {
	case OutcomeFailure:
		return c.FailureDelay
	case OutcomeTimeout:
		return c.TimeoutDelay
	default:
		return c.SuccessDelay
	}
}

// AnimationDelay returns max(hops*HopDelay, MinAnimationDelay).
func (c Config) AnimationDelay(hops int) time.Duration {
	d := time.Duration(hops) * c.HopDelay
	if d < c.MinAnimationDelay {
		return c.MinAnimationDelay
	}
	return d
}
