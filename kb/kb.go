package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/netlab-simulator/model"
)

var (
	// ErrDeviceExists indicates a device ID is already taken.
	ErrDeviceExists = errors.New("device already exists")
	// ErrDeviceNotFound indicates a requested device was not found.
	ErrDeviceNotFound = errors.New("device not found")
)

// KnowledgeBase is an in-memory, thread-safe store for devices. Devices are
// kept in insertion order so that listings are stable across calls.
type KnowledgeBase struct {
	mu sync.RWMutex

	order   []string
	devices map[string]*model.Device
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		devices: make(map[string]*model.Device),
	}
}

// AddDevice appends a device. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddDevice(d *model.Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("nil device or empty device ID")
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.devices[d.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDeviceExists, d.ID)
	}
	kb.devices[d.ID] = d
	kb.order = append(kb.order, d.ID)
	return nil
}

// GetDevice returns the device with the given ID, or nil if not found.
// The returned pointer is owned by the KB.
func (kb *KnowledgeBase) GetDevice(id string) *model.Device {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.devices[id]
}

// ListDevices returns the devices in insertion order.
func (kb *KnowledgeBase) ListDevices() []*model.Device {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.Device, 0, len(kb.order))
	for _, id := range kb.order {
		res = append(res, kb.devices[id])
	}
	return res
}

// Len returns the number of stored devices.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.order)
}

// UpdateDevice applies fn to the stored device under the write lock.
func (kb *KnowledgeBase) UpdateDevice(id string, fn func(*model.Device)) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	d, ok := kb.devices[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	if fn != nil {
		fn(d)
	}
	return nil
}

// ForEach calls fn for every device in insertion order under the write
// lock.
func (kb *KnowledgeBase) ForEach(fn func(*model.Device)) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, id := range kb.order {
		fn(kb.devices[id])
	}
}

// DeleteDevice removes a device by ID.
func (kb *KnowledgeBase) DeleteDevice(id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, ok := kb.devices[id]; !ok {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	delete(kb.devices, id)
	for i, existing := range kb.order {
		if existing == id {
			kb.order = append(kb.order[:i], kb.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all devices.
func (kb *KnowledgeBase) Clear() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.order = nil
	kb.devices = make(map[string]*model.Device)
}
