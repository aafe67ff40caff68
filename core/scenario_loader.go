// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/signalsfoundry/netlab-simulator/model"
)

// TopologyPreset is a validated topology read from JSON. Links refer to
// devices by name because IDs are assigned by the store at creation time.
type TopologyPreset struct {
	Devices []PresetDevice
	Links   []PresetLink
}

// PresetDevice describes one device of a preset.
type PresetDevice struct {
	Name     string
	Type     model.DeviceType
	Position model.Position
	Status   model.DeviceStatus
	Config   model.DeviceConfig
}

// PresetLink connects two preset devices by name.
type PresetLink struct {
	Source string
	Target string
	// Disconnected creates the link with status disconnected.
	Disconnected bool
}

// internal JSON shapes – keep them unexported so we're free to evolve them.
type topologyJSON struct {
	Devices []deviceJSON `json:"devices"`
	Links   []linkJSON   `json:"links"`
}

type deviceJSON struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Position model.Position  `json:"position"`
	Status   string          `json:"status"`
	Config   json.RawMessage `json:"config"`
}

type linkJSON struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Status string `json:"status"` // "connected" (default) | "disconnected"
}

// LoadTopology decodes a JSON topology preset from r. Structural problems
// (unknown device types, duplicate names, links to unknown devices) are
// collected and returned together.
func LoadTopology(r io.Reader) (*TopologyPreset, error) {
	var payload topologyJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadTopology: decode failed: %w", err)
	}

	var result *multierror.Error
	preset := &TopologyPreset{
		Devices: make([]PresetDevice, 0, len(payload.Devices)),
		Links:   make([]PresetLink, 0, len(payload.Links)),
	}

	names := make(map[string]struct{}, len(payload.Devices))
	for i, jsD := range payload.Devices {
		name := strings.TrimSpace(jsD.Name)
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("device %d: empty name", i))
			continue
		}
		if _, dup := names[name]; dup {
			result = multierror.Append(result, fmt.Errorf("device %q: duplicate name", name))
			continue
		}
		names[name] = struct{}{}

		typ := model.DeviceType(strings.ToLower(strings.TrimSpace(jsD.Type)))
		if !typ.Valid() {
			result = multierror.Append(result, fmt.Errorf("device %q: unknown type %q", name, jsD.Type))
			continue
		}

		status, err := deviceStatusFromString(jsD.Status)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("device %q: %w", name, err))
			continue
		}

		pd := PresetDevice{
			Name:     name,
			Type:     typ,
			Position: jsD.Position,
			Status:   status,
		}
		if len(jsD.Config) > 0 && string(jsD.Config) != "null" {
			cfg, err := model.DecodeConfig(typ, jsD.Config)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("device %q: %w", name, err))
				continue
			}
			pd.Config = cfg
		}
		preset.Devices = append(preset.Devices, pd)
	}

	for i, jsL := range payload.Links {
		if _, ok := names[jsL.Source]; !ok {
			result = multierror.Append(result, fmt.Errorf("link %d: unknown source device %q", i, jsL.Source))
			continue
		}
		if _, ok := names[jsL.Target]; !ok {
			result = multierror.Append(result, fmt.Errorf("link %d: unknown target device %q", i, jsL.Target))
			continue
		}
		if jsL.Source == jsL.Target {
			result = multierror.Append(result, fmt.Errorf("link %d: %w", i, ErrSelfConnection))
			continue
		}
		var disconnected bool
		switch strings.ToLower(strings.TrimSpace(jsL.Status)) {
		case "", string(model.ConnectionConnected):
		case string(model.ConnectionDisconnected):
			disconnected = true
		default:
			result = multierror.Append(result, fmt.Errorf("link %d: unknown status %q", i, jsL.Status))
			continue
		}
		preset.Links = append(preset.Links, PresetLink{
			Source:       jsL.Source,
			Target:       jsL.Target,
			Disconnected: disconnected,
		})
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("LoadTopology: %w", err)
	}
	return preset, nil
}

// deviceStatusFromString maps the JSON "status" string; empty means the
// store default (offline).
func deviceStatusFromString(s string) (model.DeviceStatus, error) {
	switch v := model.DeviceStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return "", nil
	case model.DeviceOnline, model.DeviceOffline, model.DeviceError:
		return v, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}
