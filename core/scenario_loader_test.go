// core/scenario_loader_test.go
package core

import (
	"strings"
	"testing"

	"github.com/signalsfoundry/netlab-simulator/model"
)

func TestLoadTopology_ParsesDevicesAndLinks(t *testing.T) {
	jsonData := `
{
  "devices": [
    {"name": "R1", "type": "router", "position": {"x": 100, "y": 50},
     "config": {"hostname": "edge", "routes": [{"destination": "0.0.0.0", "mask": "0.0.0.0", "nextHop": "10.0.0.254"}]}},
    {"name": "PC1", "type": "pc", "status": "online"},
    {"name": "DNS1", "type": "server",
     "config": {"services": [{"name": "dns", "protocol": "UDP", "port": 53, "enabled": true}]}}
  ],
  "links": [
    {"source": "PC1", "target": "R1"},
    {"source": "R1", "target": "DNS1", "status": "disconnected"}
  ]
}
`
	preset, err := LoadTopology(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadTopology returned error: %v", err)
	}
	if len(preset.Devices) != 3 || len(preset.Links) != 2 {
		t.Fatalf("preset = %d devices / %d links, want 3/2", len(preset.Devices), len(preset.Links))
	}

	r1 := preset.Devices[0]
	cfg, ok := r1.Config.(*model.RouterConfig)
	if !ok {
		t.Fatalf("R1 config type = %T, want *model.RouterConfig", r1.Config)
	}
	if cfg.Hostname != "edge" || len(cfg.Routes) != 1 {
		t.Fatalf("R1 config = %+v", cfg)
	}
	if preset.Devices[1].Status != model.DeviceOnline {
		t.Fatalf("PC1 status = %q, want online", preset.Devices[1].Status)
	}
	srv, ok := preset.Devices[2].Config.(*model.ServerConfig)
	if !ok || !srv.Offers(model.ServiceDNS) {
		t.Fatalf("DNS1 config = %#v, want a server offering dns", preset.Devices[2].Config)
	}
	if preset.Links[0].Disconnected || !preset.Links[1].Disconnected {
		t.Fatalf("link statuses = %+v", preset.Links)
	}
}

func TestLoadTopology_CollectsAllErrors(t *testing.T) {
	jsonData := `
{
  "devices": [
    {"name": "A", "type": "router"},
    {"name": "A", "type": "pc"},
    {"name": "B", "type": "mainframe"}
  ],
  "links": [
    {"source": "A", "target": "ghost"},
    {"source": "A", "target": "A"}
  ]
}
`
	_, err := LoadTopology(strings.NewReader(jsonData))
	if err == nil {
		t.Fatalf("expected error for invalid preset")
	}
	msg := err.Error()
	for _, want := range []string{"duplicate name", "unknown type", "unknown target device", "itself"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestLoadTopology_RejectsMalformedJSON(t *testing.T) {
	if _, err := LoadTopology(strings.NewReader(`{"devices": [`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := LoadTopology(strings.NewReader(`{"nodes": []}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
