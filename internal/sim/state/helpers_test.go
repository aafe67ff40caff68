package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/signalsfoundry/netlab-simulator/internal/logging"
	"github.com/signalsfoundry/netlab-simulator/model"
	"github.com/signalsfoundry/netlab-simulator/timectrl"
)

var testStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestState(t *testing.T, opts ...TopologyStateOption) *TopologyState {
	t.Helper()
	n := 0
	base := []TopologyStateOption{
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithClock(timectrl.NewManualClock(testStart)),
	}
	return NewTopologyState(nil, nil, logging.Noop(), append(base, opts...)...)
}

func mustAddDevice(t *testing.T, s *TopologyState, typ model.DeviceType, name string) *model.Device {
	t.Helper()
	d, err := s.AddDevice(context.Background(), model.DeviceSpec{Type: typ, Name: name})
	if err != nil {
		t.Fatalf("AddDevice(%s) error: %v", name, err)
	}
	return d
}

func mustConnect(t *testing.T, s *TopologyState, a, b *model.Device) *model.Connection {
	t.Helper()
	c, err := s.Connect(context.Background(), a.ID, b.ID)
	if err != nil {
		t.Fatalf("Connect(%s, %s) error: %v", a.Name, b.Name, err)
	}
	return c
}

func ifaceStatus(t *testing.T, s *TopologyState, deviceID, ifaceID string) model.InterfaceStatus {
	t.Helper()
	d, ok := s.GetDevice(deviceID)
	if !ok {
		t.Fatalf("device %q missing", deviceID)
	}
	iface := d.Interface(ifaceID)
	if iface == nil {
		t.Fatalf("interface %q missing on %q", ifaceID, deviceID)
	}
	return iface.Status
}
