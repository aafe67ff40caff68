package model

import (
	"encoding/json"
	"fmt"
)

// DeviceConfig is the type-specific configuration of a device. Exactly one
// variant exists per DeviceType; the interface is sealed to this package.
type DeviceConfig interface {
	DeviceType() DeviceType
	cloneConfig() DeviceConfig
}

// RouteEntry is one row of a router's static routing table.
type RouteEntry struct {
	Destination string `json:"destination"`
	Mask        string `json:"mask"`
	NextHop     string `json:"nextHop"`
	Interface   string `json:"interface,omitempty"`
	Metric      int    `json:"metric,omitempty"`
}

// RouterConfig configures a router.
type RouterConfig struct {
	Hostname      string       `json:"hostname"`
	Routes        []RouteEntry `json:"routes,omitempty"`
	SNMPCommunity string       `json:"snmpCommunity,omitempty"`
	NTPServer     string       `json:"ntpServer,omitempty"`
	LogLevel      string       `json:"logLevel,omitempty"`
}

func (*RouterConfig) DeviceType() DeviceType { return DeviceRouter }

func (c *RouterConfig) cloneConfig() DeviceConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Routes = append([]RouteEntry(nil), c.Routes...)
	return &out
}

// VLAN is a switch VLAN definition.
type VLAN struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SwitchPort is the per-port configuration of a switch.
type SwitchPort struct {
	Interface string   `json:"interface"`
	Mode      PortMode `json:"mode"`
	VLAN      int      `json:"vlan"`
	Speed     string   `json:"speed,omitempty"`
}

// SwitchConfig configures a switch.
type SwitchConfig struct {
	Hostname string       `json:"hostname"`
	VLANs    []VLAN       `json:"vlans,omitempty"`
	Ports    []SwitchPort `json:"ports,omitempty"`
}

func (*SwitchConfig) DeviceType() DeviceType { return DeviceSwitch }

func (c *SwitchConfig) cloneConfig() DeviceConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.VLANs = append([]VLAN(nil), c.VLANs...)
	out.Ports = append([]SwitchPort(nil), c.Ports...)
	return &out
}

// IPConfig is host addressing shared by PCs and servers.
type IPConfig struct {
	IPAddress  string `json:"ipAddress,omitempty"`
	SubnetMask string `json:"subnetMask,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	DHCP       bool   `json:"dhcp,omitempty"`
}

// PCConfig configures an end host.
type PCConfig struct {
	IP         IPConfig `json:"ip"`
	DNSServers []string `json:"dnsServers,omitempty"`
}

func (*PCConfig) DeviceType() DeviceType { return DevicePC }

func (c *PCConfig) cloneConfig() DeviceConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.DNSServers = append([]string(nil), c.DNSServers...)
	return &out
}

// Well-known service names a server can listen for.
const (
	ServiceDNS  = "dns"
	ServiceHTTP = "http"
	ServiceFTP  = "ftp"
)

// ServiceListener is one service a server offers.
type ServiceListener struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Port     int      `json:"port"`
	Enabled  bool     `json:"enabled"`
}

// ServerConfig configures a server.
type ServerConfig struct {
	IP         IPConfig          `json:"ip"`
	DNSServers []string          `json:"dnsServers,omitempty"`
	Services   []ServiceListener `json:"services,omitempty"`
}

func (*ServerConfig) DeviceType() DeviceType { return DeviceServer }

func (c *ServerConfig) cloneConfig() DeviceConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.DNSServers = append([]string(nil), c.DNSServers...)
	out.Services = append([]ServiceListener(nil), c.Services...)
	return &out
}

// Offers reports whether the server has an enabled listener for service.
func (c *ServerConfig) Offers(service string) bool {
	if c == nil {
		return false
	}
	for _, svc := range c.Services {
		if svc.Enabled && svc.Name == service {
			return true
		}
	}
	return false
}

// IsNilConfig reports whether cfg is absent, either a nil interface or a
// typed nil pointer such as (*ServerConfig)(nil).
func IsNilConfig(cfg DeviceConfig) bool {
	return cfg == nil || cfg.cloneConfig() == nil
}

// DefaultConfig returns the empty config variant for t, or nil for an
// unknown type.
func DefaultConfig(t DeviceType, name string) DeviceConfig {
	switch t {
	case DeviceRouter:
		return &RouterConfig{Hostname: name, LogLevel: "informational"}
	case DeviceSwitch:
		return &SwitchConfig{Hostname: name, VLANs: []VLAN{{ID: 1, Name: "default"}}}
	case DevicePC:
		return &PCConfig{IP: IPConfig{DHCP: true}}
	case DeviceServer:
		return &ServerConfig{}
	}
	return nil
}

// DecodeConfig unmarshals raw into the config variant for t.
func DecodeConfig(t DeviceType, raw []byte) (DeviceConfig, error) {
	var cfg DeviceConfig
	switch t {
	case DeviceRouter:
		cfg = &RouterConfig{}
	case DeviceSwitch:
		cfg = &SwitchConfig{}
	case DevicePC:
		cfg = &PCConfig{}
	case DeviceServer:
		cfg = &ServerConfig{}
	default:
		return nil, fmt.Errorf("no config variant for device type %q", t)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", t, err)
	}
	return cfg, nil
}
