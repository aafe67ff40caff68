package nbi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/lifecycle"
	sim "github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("wrap: %w", sim.ErrDeviceNotFound), codes.NotFound},
		{core.ErrConnectionNotFound, codes.NotFound},
		{fmt.Errorf("%w: empty name", sim.ErrDeviceInvalid), codes.InvalidArgument},
		{sim.ErrSelfConnection, codes.InvalidArgument},
		{lifecycle.ErrSameEndpoint, codes.InvalidArgument},
		{sim.ErrNoAvailableInterface, codes.FailedPrecondition},
		{lifecycle.ErrNoDNSServer, codes.FailedPrecondition},
		{core.ErrConnectionExists, codes.AlreadyExists},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range tests {
		if got := status.Code(ToStatusError(tc.err)); got != tc.code {
			t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, got, tc.code)
		}
	}

	if ToStatusError(nil) != nil {
		t.Fatalf("ToStatusError(nil) should be nil")
	}
	already := status.Error(codes.Unavailable, "down")
	if ToStatusError(already) != already {
		t.Fatalf("existing status error should pass through")
	}
}
