package state

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/signalsfoundry/netlab-simulator/core"
	"github.com/signalsfoundry/netlab-simulator/model"
)

func TestAddConnectionLeavesInterfacesAlone(t *testing.T) {
	s := newTestState(t)
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")

	c, err := s.AddConnection(context.Background(), model.ConnectionSpec{
		Source: pc1.ID, Target: pc2.ID, SourceInterface: "eth0", TargetInterface: "eth0",
	})
	if err != nil {
		t.Fatalf("AddConnection error: %v", err)
	}
	if c.Status != model.ConnectionConnected {
		t.Fatalf("status = %q, want connected", c.Status)
	}
	if got := ifaceStatus(t, s, pc1.ID, "eth0"); got != model.InterfaceDown {
		t.Fatalf("AddConnection flipped interface to %q", got)
	}
}

func TestAddConnectionValidatesEndpoints(t *testing.T) {
	s := newTestState(t)
	pc := mustAddDevice(t, s, model.DevicePC, "PC1")

	tests := []struct {
		name string
		spec model.ConnectionSpec
	}{
		{"self", model.ConnectionSpec{Source: pc.ID, Target: pc.ID}},
		{"missing target", model.ConnectionSpec{Source: pc.ID, Target: "nope"}},
		{"missing source", model.ConnectionSpec{Source: "nope", Target: pc.ID}},
		{"empty", model.ConnectionSpec{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.AddConnection(context.Background(), tc.spec); !errors.Is(err, ErrConnectionInvalid) {
				t.Fatalf("error = %v, want ErrConnectionInvalid", err)
			}
		})
	}
	if n := len(s.ListConnections()); n != 0 {
		t.Fatalf("connections = %d, want 0", n)
	}
}

func TestConnectBringsChosenInterfacesUp(t *testing.T) {
	s := newTestState(t)
	r1 := mustAddDevice(t, s, model.DeviceRouter, "R1")
	pc := mustAddDevice(t, s, model.DevicePC, "PC1")

	c := mustConnect(t, s, pc, r1)
	if c.SourceInterface != "eth0" || c.TargetInterface != "gi0/0" {
		t.Fatalf("interfaces = %q/%q, want eth0/gi0/0", c.SourceInterface, c.TargetInterface)
	}
	if got := ifaceStatus(t, s, pc.ID, "eth0"); got != model.InterfaceUp {
		t.Fatalf("pc eth0 = %q, want up", got)
	}
	if got := ifaceStatus(t, s, r1.ID, "gi0/0"); got != model.InterfaceUp {
		t.Fatalf("router gi0/0 = %q, want up", got)
	}
	if got := ifaceStatus(t, s, r1.ID, "gi0/1"); got != model.InterfaceDown {
		t.Fatalf("router gi0/1 = %q, want down", got)
	}

	// The router's next connection takes its next free interface.
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")
	c2 := mustConnect(t, s, r1, pc2)
	if c2.SourceInterface != "gi0/1" {
		t.Fatalf("second router interface = %q, want gi0/1", c2.SourceInterface)
	}
}

func TestConnectKeepsConcurrentAddressingEdits(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	r1 := mustAddDevice(t, s, model.DeviceRouter, "R1")

	// Address the router while Connect sits between AddConnection and the
	// interface flips, working from a device snapshot taken before the
	// edit.
	edited := false
	unsubscribe := s.Subscribe(func(ev Event) {
		if ev.Type != EventConnectionAdded || edited {
			return
		}
		edited = true
		d, _ := s.GetDevice(r1.ID)
		ifaces := append([]model.Interface(nil), d.Interfaces...)
		ifaces[0].IPAddress = "192.168.1.1"
		ifaces[0].SubnetMask = "255.255.255.0"
		s.UpdateDevice(ctx, r1.ID, model.DevicePatch{Interfaces: ifaces})
	})
	defer unsubscribe()

	c := mustConnect(t, s, pc1, r1)
	if !edited {
		t.Fatalf("subscriber never ran")
	}

	got, _ := s.GetDevice(r1.ID)
	iface := got.Interface(c.TargetInterface)
	if iface.Status != model.InterfaceUp {
		t.Fatalf("%s status = %q, want up", c.TargetInterface, iface.Status)
	}
	if iface.IPAddress != "192.168.1.1" || iface.SubnetMask != "255.255.255.0" {
		t.Fatalf("addressing lost by interface flip: %+v", iface)
	}
}

func TestConnectRefusedWithoutFreeInterface(t *testing.T) {
	s := newTestState(t)
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")
	pc3 := mustAddDevice(t, s, model.DevicePC, "PC3")

	mustConnect(t, s, pc1, pc2)
	if _, err := s.Connect(context.Background(), pc1.ID, pc3.ID); !errors.Is(err, ErrNoAvailableInterface) {
		t.Fatalf("Connect error = %v, want ErrNoAvailableInterface", err)
	}
	if n := len(s.ListConnections()); n != 1 {
		t.Fatalf("connections = %d, want 1", n)
	}
	if got := ifaceStatus(t, s, pc3.ID, "eth0"); got != model.InterfaceDown {
		t.Fatalf("refused connect touched pc3 interface: %q", got)
	}

	if _, err := s.Connect(context.Background(), pc3.ID, pc3.ID); !errors.Is(err, ErrSelfConnection) {
		t.Fatalf("self Connect error = %v, want ErrSelfConnection", err)
	}
	if _, err := s.Connect(context.Background(), pc3.ID, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Connect to missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestStaleAvailabilityCheckDoubleBooksInterface(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	pc := mustAddDevice(t, s, model.DevicePC, "PC1")
	r1 := mustAddDevice(t, s, model.DeviceRouter, "R1")
	r2 := mustAddDevice(t, s, model.DeviceRouter, "R2")

	// Both requests read availability before either lands.
	stale := s.Snapshot()
	byID := map[string]*model.Device{}
	for _, d := range stale.Devices {
		byID[d.ID] = d
	}

	var conns []*model.Connection
	for _, peer := range []*model.Device{r1, r2} {
		srcIface, dstIface, err := core.ValidateConnection(byID[pc.ID], byID[peer.ID])
		if err != nil {
			t.Fatalf("ValidateConnection error: %v", err)
		}
		c, err := s.AddConnection(ctx, model.ConnectionSpec{
			Source: pc.ID, Target: peer.ID,
			SourceInterface: srcIface.ID, TargetInterface: dstIface.ID,
		})
		if err != nil {
			t.Fatalf("AddConnection error: %v", err)
		}
		conns = append(conns, c)
	}

	if conns[0].SourceInterface != "eth0" || conns[1].SourceInterface != "eth0" {
		t.Fatalf("expected both connections on eth0, got %q and %q", conns[0].SourceInterface, conns[1].SourceInterface)
	}
}

func TestRemoveConnectionKeepsInterfaceStatus(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")
	c := mustConnect(t, s, pc1, pc2)

	if !s.RemoveConnection(ctx, c.ID) {
		t.Fatalf("RemoveConnection returned false")
	}
	if s.RemoveConnection(ctx, c.ID) {
		t.Fatalf("second RemoveConnection returned true")
	}
	if got := ifaceStatus(t, s, pc1.ID, "eth0"); got != model.InterfaceUp {
		t.Fatalf("interface status = %q, want up (left as is)", got)
	}
	// The stale "up" blocks a fresh connection from that interface.
	if _, err := s.Connect(ctx, pc1.ID, pc2.ID); !errors.Is(err, ErrNoAvailableInterface) {
		t.Fatalf("Connect error = %v, want ErrNoAvailableInterface", err)
	}
}

func TestShortestPathThroughState(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	r1 := mustAddDevice(t, s, model.DeviceRouter, "R1")
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")

	mustConnect(t, s, pc1, r1)
	c2 := mustConnect(t, s, r1, pc2)

	want := []string{pc1.ID, r1.ID, pc2.ID}
	if got := s.ShortestPath(pc1.ID, pc2.ID); !reflect.DeepEqual(got, want) {
		t.Fatalf("ShortestPath = %v, want %v", got, want)
	}

	s.SetConnectionStatus(ctx, c2.ID, model.ConnectionDisconnected)
	if got := s.ShortestPath(pc1.ID, pc2.ID); !reflect.DeepEqual(got, []string{pc1.ID, pc2.ID}) {
		t.Fatalf("ShortestPath over disconnected link = %v, want fallback", got)
	}
	if _, ok := s.FindPath(pc1.ID, pc2.ID); ok {
		t.Fatalf("FindPath found a route over a disconnected link")
	}
}

func TestSetConnectionStatusSkipsUnchanged(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	pc1 := mustAddDevice(t, s, model.DevicePC, "PC1")
	pc2 := mustAddDevice(t, s, model.DevicePC, "PC2")
	c := mustConnect(t, s, pc1, pc2)

	var events []EventType
	s.Subscribe(func(ev Event) { events = append(events, ev.Type) })

	if !s.SetConnectionStatus(ctx, c.ID, model.ConnectionConnected) {
		t.Fatalf("SetConnectionStatus(unchanged) = false")
	}
	if len(events) != 0 {
		t.Fatalf("unchanged status emitted %v", events)
	}
	if !s.SetConnectionStatus(ctx, c.ID, model.ConnectionDisconnected) {
		t.Fatalf("SetConnectionStatus(disconnected) = false")
	}
	if !reflect.DeepEqual(events, []EventType{EventConnectionUpdated}) {
		t.Fatalf("events = %v, want [connection_updated]", events)
	}
	if s.SetConnectionStatus(ctx, "missing", model.ConnectionDisconnected) {
		t.Fatalf("SetConnectionStatus(missing) = true")
	}
}
