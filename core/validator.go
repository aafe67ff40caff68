package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/netlab-simulator/model"
)

var (
	// ErrNoAvailableInterface indicates an endpoint has no interface in the
	// down state.
	ErrNoAvailableInterface = errors.New("no available interface")
	// ErrSelfConnection indicates both endpoints name the same device.
	ErrSelfConnection = errors.New("cannot connect a device to itself")
)

// FindAvailableInterface returns the first interface on d whose status is
// down. Down is the only signal of availability: an interface referenced by
// a connection but still marked down is reported as available.
func FindAvailableInterface(d *model.Device) (*model.Interface, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Interfaces {
		if d.Interfaces[i].Status == model.InterfaceDown {
			return &d.Interfaces[i], true
		}
	}
	return nil, false
}

// ValidateConnection checks whether source and target may be connected and
// returns the interfaces a caller should use. The check is advisory; the
// store does not repeat it.
func ValidateConnection(source, target *model.Device) (*model.Interface, *model.Interface, error) {
	if source == nil || target == nil {
		return nil, nil, fmt.Errorf("%w: missing endpoint", ErrNoAvailableInterface)
	}
	if source.ID == target.ID {
		return nil, nil, fmt.Errorf("%w: %q", ErrSelfConnection, source.ID)
	}
	srcIface, ok := FindAvailableInterface(source)
	if !ok {
		return nil, nil, fmt.Errorf("%w on %q", ErrNoAvailableInterface, source.Name)
	}
	dstIface, ok := FindAvailableInterface(target)
	if !ok {
		return nil, nil, fmt.Errorf("%w on %q", ErrNoAvailableInterface, target.Name)
	}
	return srcIface, dstIface, nil
}
