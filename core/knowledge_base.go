package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/netlab-simulator/model"
)

var (
	ErrConnectionExists   = errors.New("connection already exists")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrEmptyConnectionID  = errors.New("empty connection ID")
)

// KnowledgeBase is the network KB: it stores connections between devices.
//
// Connections are kept in insertion order because the path resolver breaks
// BFS ties by that order.
type KnowledgeBase struct {
	mu sync.RWMutex

	order       []string
	connections map[string]*model.Connection
}

// NewKnowledgeBase creates an empty network knowledge base.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		connections: make(map[string]*model.Connection),
	}
}

// AddConnection appends a connection.
func (kb *KnowledgeBase) AddConnection(c *model.Connection) error {
	if c == nil || c.ID == "" {
		return ErrEmptyConnectionID
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.connections[c.ID]; exists {
		return fmt.Errorf("%w: %q", ErrConnectionExists, c.ID)
	}
	kb.connections[c.ID] = c
	kb.order = append(kb.order, c.ID)
	return nil
}

// GetConnection returns a connection by ID, or nil if not found.
func (kb *KnowledgeBase) GetConnection(id string) *model.Connection {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.connections[id]
}

// GetAllConnections returns every connection in insertion order.
func (kb *KnowledgeBase) GetAllConnections() []*model.Connection {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]*model.Connection, 0, len(kb.order))
	for _, id := range kb.order {
		out = append(out, kb.connections[id])
	}
	return out
}

// Len returns the number of stored connections.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.order)
}

// SetConnectionStatus flips a connection between connected and
// disconnected.
func (kb *KnowledgeBase) SetConnectionStatus(id string, status model.ConnectionStatus) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	c, ok := kb.connections[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrConnectionNotFound, id)
	}
	c.Status = status
	return nil
}

// DeleteConnection removes a connection by ID.
func (kb *KnowledgeBase) DeleteConnection(id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, ok := kb.connections[id]; !ok {
		return fmt.Errorf("%w: %q", ErrConnectionNotFound, id)
	}
	kb.deleteLocked(id)
	return nil
}

// DeleteConnectionsForDevice removes every connection that names deviceID
// as source or target and returns the removed IDs.
func (kb *KnowledgeBase) DeleteConnectionsForDevice(deviceID string) []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	var removed []string
	for _, id := range kb.order {
		if kb.connections[id].Touches(deviceID) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		kb.deleteLocked(id)
	}
	return removed
}

func (kb *KnowledgeBase) deleteLocked(id string) {
	delete(kb.connections, id)
	for i, existing := range kb.order {
		if existing == id {
			kb.order = append(kb.order[:i], kb.order[i+1:]...)
			return
		}
	}
}

// Clear removes all connections.
func (kb *KnowledgeBase) Clear() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.order = nil
	kb.connections = make(map[string]*model.Connection)
}
