package lifecycle

import (
	"testing"
	"time"
)

func TestApplyDefaultsKeepsOverrides(t *testing.T) {
	cfg := Config{FailureDelay: 500 * time.Millisecond, PingSuccessRatio: Ratio(1.5)}
	cfg.ApplyDefaults()

	if cfg.FailureDelay != 500*time.Millisecond {
		t.Fatalf("FailureDelay = %v, want override kept", cfg.FailureDelay)
	}
	if cfg.SuccessDelay != 4*time.Second || cfg.TimeoutDelay != 6*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if got := cfg.SuccessRatio(); got != 0.9 {
		t.Fatalf("SuccessRatio = %v, want 0.9", got)
	}
}

func TestPingSuccessRatioZeroIsKept(t *testing.T) {
	tests := []struct {
		name  string
		ratio *float64
		want  float64
	}{
		{"unset", nil, 0.9},
		{"zero", Ratio(0), 0},
		{"one", Ratio(1), 1},
		{"half", Ratio(0.5), 0.5},
		{"negative", Ratio(-0.1), 0.9},
		{"above one", Ratio(1.5), 0.9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{PingSuccessRatio: tc.ratio}
			cfg.ApplyDefaults()
			if got := cfg.SuccessRatio(); got != tc.want {
				t.Fatalf("SuccessRatio = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseRatio(t *testing.T) {
	got, err := ParseRatio("0")
	if err != nil || *got != 0 {
		t.Fatalf("ParseRatio(0) = %v, %v", got, err)
	}
	for _, raw := range []string{"1.2", "-1", "often", "NaN"} {
		if _, err := ParseRatio(raw); err == nil {
			t.Fatalf("ParseRatio(%q) accepted", raw)
		}
	}
}

func TestAnimationDelay(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		hops int
		want time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 10 * time.Second},
	}
	for _, tc := range tests {
		if got := cfg.AnimationDelay(tc.hops); got != tc.want {
			t.Fatalf("AnimationDelay(%d) = %v, want %v", tc.hops, got, tc.want)
		}
	}
}
