package model

import "time"

// Protocol is a label carried by a simulated packet. It has no wire
// semantics.
type Protocol string

const (
	ProtocolICMP Protocol = "ICMP"
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolARP  Protocol = "ARP"
	ProtocolDNS  Protocol = "DNS"
)

// Valid reports whether p is a known protocol label.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolICMP, ProtocolTCP, ProtocolUDP, ProtocolARP, ProtocolDNS:
		return true
	}
	return false
}

// PacketStatus tracks a packet through pending -> transmitted ->
// received|dropped. Nothing produces PacketPending today; it remains a legal
// value.
type PacketStatus string

const (
	PacketPending     PacketStatus = "pending"
	PacketTransmitted PacketStatus = "transmitted"
	PacketReceived    PacketStatus = "received"
	PacketDropped     PacketStatus = "dropped"
)

// Valid reports whether s is one of the four lifecycle states.
func (s PacketStatus) Valid() bool {
	switch s {
	case PacketPending, PacketTransmitted, PacketReceived, PacketDropped:
		return true
	}
	return false
}

// Terminal reports whether s is a settled state.
func (s PacketStatus) Terminal() bool {
	return s == PacketReceived || s == PacketDropped
}

// Packet is a synthetic unit of simulated traffic.
type Packet struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Protocol    Protocol     `json:"protocol"`
	Status      PacketStatus `json:"status"`
	Path        []string     `json:"path"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Clone returns a deep copy of p.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	out := *p
	out.Path = append([]string(nil), p.Path...)
	return &out
}

// PacketSpec carries the caller-supplied fields for a new packet.
type PacketSpec struct {
	Source      string
	Destination string
	Protocol    Protocol
	Status      PacketStatus
	Path        []string
	Timestamp   time.Time
}

// PacketPatch is a shallow merge patch for packets.
type PacketPatch struct {
	Status *PacketStatus
	Path   []string
}

// Apply merges patch into p.
func (patch PacketPatch) Apply(p *Packet) {
	if p == nil {
		return
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Path != nil {
		p.Path = append([]string(nil), patch.Path...)
	}
}
