package model

// InterfaceStatus is the link-layer state of a device interface.
type InterfaceStatus string

const (
	InterfaceUp   InterfaceStatus = "up"
	InterfaceDown InterfaceStatus = "down"
)

// PortMode is the switching mode of a switch port.
type PortMode string

const (
	PortAccess PortMode = "access"
	PortTrunk  PortMode = "trunk"
)

// Interface is a named attachment point on a device. IDs are unique within
// their device only.
//
// A "down" interface is treated as free for new connections; nothing keeps
// Status in sync with the connections that reference the interface.
type Interface struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status InterfaceStatus `json:"status"`

	IPAddress  string `json:"ipAddress,omitempty"`
	SubnetMask string `json:"subnetMask,omitempty"`
	MACAddress string `json:"macAddress,omitempty"`

	// Switch port fields.
	Mode  PortMode `json:"mode,omitempty"`
	VLAN  int      `json:"vlan,omitempty"`
	Speed string   `json:"speed,omitempty"`
}
