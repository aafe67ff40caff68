package core

import (
	"fmt"

	"github.com/signalsfoundry/netlab-simulator/model"
)

// SwitchPortCount is the number of FastEthernet ports on a default switch.
const SwitchPortCount = 8

// DefaultInterfaces returns the interface set a freshly created device of
// type t starts with. Every interface starts down.
//
//	router      GigabitEthernet0/0, GigabitEthernet0/1, Serial0/0/0
//	switch      FastEthernet0/1 .. FastEthernet0/8
//	pc, server  Ethernet0
func DefaultInterfaces(t model.DeviceType) []model.Interface {
	switch t {
	case model.DeviceRouter:
		return []model.Interface{
			newInterface("gi0/0", "GigabitEthernet0/0"),
			newInterface("gi0/1", "GigabitEthernet0/1"),
			newInterface("se0/0/0", "Serial0/0/0"),
		}
	case model.DeviceSwitch:
		out := make([]model.Interface, 0, SwitchPortCount)
		for i := 1; i <= SwitchPortCount; i++ {
			iface := newInterface(fmt.Sprintf("fa0/%d", i), fmt.Sprintf("FastEthernet0/%d", i))
			iface.Mode = model.PortAccess
			iface.VLAN = 1
			iface.Speed = "auto"
			out = append(out, iface)
		}
		return out
	case model.DevicePC, model.DeviceServer:
		return []model.Interface{newInterface("eth0", "Ethernet0")}
	}
	return nil
}

func newInterface(id, name string) model.Interface {
	return model.Interface{
		ID:     id,
		Name:   name,
		Status: model.InterfaceDown,
	}
}
