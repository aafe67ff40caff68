package state

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/model"
)

// Connect wires two devices the way an interactive caller does: it picks a
// free interface on each side from a snapshot, adds the connection, then
// brings both chosen interfaces up with two further UpdateDevice calls.
//
// The steps are separate store operations. Two Connect calls racing on the
// same device can both pick the same interface; the store accepts both.
// The status flip touches only the chosen interface, so addressing edits
// made concurrently through UpdateDevice survive.
func (s *TopologyState) Connect(ctx context.Context, sourceID, targetID string) (*model.Connection, error) {
	src, ok := s.GetDevice(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, sourceID)
	}
	dst, ok := s.GetDevice(targetID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, targetID)
	}

	srcIface, dstIface, err := core.ValidateConnection(src, dst)
	if err != nil {
		logging.FromContext(ctx, s.log).Info(ctx, "connection refused",
			logging.String("source", sourceID),
			logging.String("target", targetID),
			logging.String("reason", err.Error()),
		)
		return nil, err
	}

	conn, err := s.AddConnection(ctx, model.ConnectionSpec{
		Source:          src.ID,
		Target:          dst.ID,
		SourceInterface: srcIface.ID,
		TargetInterface: dstIface.ID,
	})
	if err != nil {
		return nil, err
	}

	s.UpdateDevice(ctx, src.ID, interfaceUp(srcIface.ID))
	s.UpdateDevice(ctx, dst.ID, interfaceUp(dstIface.ID))
	return conn, nil
}

func interfaceUp(ifaceID string) model.DevicePatch {
	return model.DevicePatch{InterfaceStatus: map[string]model.InterfaceStatus{ifaceID: model.InterfaceUp}}
}
