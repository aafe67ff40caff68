package model

import (
	"encoding/json"
	"fmt"
)

// DeviceType identifies the kind of simulated network node.
type DeviceType string

const (
	DeviceRouter DeviceType = "router"
	DeviceSwitch DeviceType = "switch"
	DevicePC     DeviceType = "pc"
	DeviceServer DeviceType = "server"
)

// Valid reports whether t is one of the known device types.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceRouter, DeviceSwitch, DevicePC, DeviceServer:
		return true
	}
	return false
}

// DeviceStatus is the administrative state of a device.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceError   DeviceStatus = "error"
)

// Position is a 2D canvas coordinate. The engine stores it but never
// interprets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Device represents a simulated router, switch, PC or server.
type Device struct {
	ID         string       `json:"id"`
	Type       DeviceType   `json:"type"`
	Name       string       `json:"name"`
	Position   Position     `json:"position"`
	Status     DeviceStatus `json:"status"`
	Interfaces []Interface  `json:"interfaces"`
	Config     DeviceConfig `json:"config,omitempty"`
}

// Clone returns a deep copy of d so callers can hand it out without
// exposing store-owned memory.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	out := *d
	if d.Interfaces != nil {
		out.Interfaces = make([]Interface, len(d.Interfaces))
		copy(out.Interfaces, d.Interfaces)
	}
	if d.Config != nil {
		out.Config = d.Config.cloneConfig()
	}
	return &out
}

// Interface returns a pointer to the interface with the given ID, or nil.
func (d *Device) Interface(id string) *Interface {
	if d == nil {
		return nil
	}
	for i := range d.Interfaces {
		if d.Interfaces[i].ID == id {
			return &d.Interfaces[i]
		}
	}
	return nil
}

// UnmarshalJSON decodes the config payload into the variant matching the
// device type.
func (d *Device) UnmarshalJSON(data []byte) error {
	type alias Device
	aux := struct {
		*alias
		Config json.RawMessage `json:"config,omitempty"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Config = nil
	if len(aux.Config) == 0 || string(aux.Config) == "null" {
		return nil
	}
	cfg, err := DecodeConfig(d.Type, aux.Config)
	if err != nil {
		return fmt.Errorf("device %q: %w", d.ID, err)
	}
	d.Config = cfg
	return nil
}

// DeviceSpec carries the fields a caller supplies when adding a device.
// Interfaces and Config are optional; the store fills type defaults.
type DeviceSpec struct {
	Type       DeviceType
	Name       string
	Position   Position
	Status     DeviceStatus
	Interfaces []Interface
	Config     DeviceConfig
}

// DevicePatch is a shallow merge patch. Nil fields, including a typed nil
// Config, are left untouched.
type DevicePatch struct {
	Name       *string
	Position   *Position
	Status     *DeviceStatus
	Interfaces []Interface
	Config     DeviceConfig

	// InterfaceStatus sets the status of individual interfaces by ID,
	// leaving every other interface field as stored. Unknown IDs are
	// ignored. It applies after Interfaces.
	InterfaceStatus map[string]InterfaceStatus
}

// Apply merges p into d.
func (p DevicePatch) Apply(d *Device) {
	if d == nil {
		return
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Position != nil {
		d.Position = *p.Position
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Interfaces != nil {
		d.Interfaces = make([]Interface, len(p.Interfaces))
		copy(d.Interfaces, p.Interfaces)
	}
	if !IsNilConfig(p.Config) {
		d.Config = p.Config.cloneConfig()
	}
	for id, status := range p.InterfaceStatus {
		if iface := d.Interface(id); iface != nil {
			iface.Status = status
		}
	}
}
