package nbi

import (
	"errors"

	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/lifecycle"
	sim "github.com/signalsfoundry/netlab-simulator/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidRequest is used for request payloads the service cannot decode
// or that carry out-of-range values.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps engine errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, sim.ErrDeviceNotFound),
		errors.Is(err, core.ErrConnectionNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, sim.ErrDeviceInvalid),
		errors.Is(err, sim.ErrConnectionInvalid),
		errors.Is(err, sim.ErrPacketInvalid),
		errors.Is(err, sim.ErrSelfConnection),
		errors.Is(err, lifecycle.ErrInvalidOutcome),
		errors.Is(err, lifecycle.ErrSameEndpoint):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, sim.ErrNoAvailableInterface),
		errors.Is(err, lifecycle.ErrNoDNSServer):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, core.ErrConnectionExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
