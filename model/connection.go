package model

// ConnectionStatus tells the path resolver whether a link carries traffic.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// Connection links one interface on Source to one interface on Target.
type Connection struct {
	ID              string           `json:"id"`
	Source          string           `json:"source"`
	Target          string           `json:"target"`
	SourceInterface string           `json:"sourceInterface"`
	TargetInterface string           `json:"targetInterface"`
	Status          ConnectionStatus `json:"status"`
}

// Touches reports whether deviceID is either endpoint of c.
func (c *Connection) Touches(deviceID string) bool {
	return c != nil && (c.Source == deviceID || c.Target == deviceID)
}

// ConnectionSpec carries the caller-supplied fields for a new connection.
type ConnectionSpec struct {
	Source          string
	Target          string
	SourceInterface string
	TargetInterface string
}
