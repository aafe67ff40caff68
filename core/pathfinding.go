package core

import "github.com/signalsfoundry/netlab-simulator/model"

// Graph is an undirected adjacency list over connected links. Neighbor
// order follows connection insertion order, source side first.
type Graph map[string][]string

// BuildGraph builds the adjacency list used for routing. Only connections
// with status connected contribute edges. When devices is non-nil,
// connections whose endpoints are not among devices are skipped.
func BuildGraph(devices []*model.Device, connections []*model.Connection) Graph {
	var known map[string]struct{}
	if devices != nil {
		known = make(map[string]struct{}, len(devices))
		for _, d := range devices {
			if d != nil {
				known[d.ID] = struct{}{}
			}
		}
	}

	g := make(Graph)
	for _, c := range connections {
		if c == nil || c.Status != model.ConnectionConnected {
			continue
		}
		if known != nil {
			if _, ok := known[c.Source]; !ok {
				continue
			}
			if _, ok := known[c.Target]; !ok {
				continue
			}
		}
		g[c.Source] = append(g[c.Source], c.Target)
		g[c.Target] = append(g[c.Target], c.Source)
	}
	return g
}

// FindPath runs a breadth-first search from sourceID and returns the first
// path that reaches destinationID. The boolean is false when the two are in
// different components.
func FindPath(sourceID, destinationID string, devices []*model.Device, connections []*model.Connection) ([]string, bool) {
	if sourceID == destinationID {
		return []string{sourceID}, true
	}
	return BuildGraph(devices, connections).bfs(sourceID, destinationID)
}

// ShortestPath returns an unweighted shortest path between two devices. Ties
// are broken by connection insertion order, so repeated calls against the
// same collections return identical paths.
//
// If no path exists the result is [sourceID, destinationID]. Callers never
// receive an empty path or an error.
func ShortestPath(sourceID, destinationID string, devices []*model.Device, connections []*model.Connection) []string {
	if path, ok := FindPath(sourceID, destinationID, devices, connections); ok {
		return path
	}
	return []string{sourceID, destinationID}
}

func (g Graph) bfs(sourceID, destinationID string) ([]string, bool) {
	parent := map[string]string{sourceID: sourceID}
	queue := []string{sourceID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g[current] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == destinationID {
				return walkBack(parent, sourceID, destinationID), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func walkBack(parent map[string]string, sourceID, destinationID string) []string {
	var rev []string
	for at := destinationID; at != sourceID; at = parent[at] {
		rev = append(rev, at)
	}
	rev = append(rev, sourceID)

	path := make([]string, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}
