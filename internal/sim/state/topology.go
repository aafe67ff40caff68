package state

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/model"
)

// ApplyTopology creates the devices of preset and connects its links
// through Connect, so interfaces are chosen and brought up exactly as for
// interactive wiring. It keeps going past failed links and returns the
// device IDs by name together with every error it met.
func (s *TopologyState) ApplyTopology(ctx context.Context, preset *core.TopologyPreset) (map[string]string, error) {
	if preset == nil {
		return nil, fmt.Errorf("nil topology preset")
	}

	ids := make(map[string]string, len(preset.Devices))
	var result *multierror.Error

	for _, pd := range preset.Devices {
		d, err := s.AddDevice(ctx, model.DeviceSpec{
			Type:     pd.Type,
			Name:     pd.Name,
			Position: pd.Position,
			Status:   pd.Status,
			Config:   pd.Config,
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("device %q: %w", pd.Name, err))
			continue
		}
		ids[pd.Name] = d.ID
	}

	for _, pl := range preset.Links {
		srcID, okSrc := ids[pl.Source]
		dstID, okDst := ids[pl.Target]
		if !okSrc || !okDst {
			result = multierror.Append(result, fmt.Errorf("link %s-%s: endpoint was not created", pl.Source, pl.Target))
			continue
		}
		conn, err := s.Connect(ctx, srcID, dstID)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("link %s-%s: %w", pl.Source, pl.Target, err))
			continue
		}
		if pl.Disconnected {
			s.SetConnectionStatus(ctx, conn.ID, model.ConnectionDisconnected)
		}
	}

	logging.FromContext(ctx, s.log).Info(ctx, "topology applied",
		logging.Int("devices", len(ids)),
		logging.Int("links", len(preset.Links)),
	)
	return ids, result.ErrorOrNil()
}
