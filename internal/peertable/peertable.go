// Package peertable holds the router's in-memory directory of known peers.
// It has no eviction policy: once full, Add silently refuses admission,
// per the deliberately left-open question of whether an LRU scheme would be
// preferable.
package peertable

import "sync"

// Entry is one peer's directory record, keyed by NodeID.
type Entry struct {
	NodeID      string `json:"node_id"`
	Role        string `json:"role"`
	NetworkID   string `json:"network_id"`
	LatestIndex int64  `json:"latest_index"`
	Address     string `json:"address"`
}

// Table is a capacity-bounded, concurrency-safe peer directory.
type Table struct {
	mu           sync.RWMutex
	maxNeighbors int
	peers        map[string]Entry
}

// New returns a Table capped at maxNeighbors entries. A non-positive value
// means unbounded.
func New(maxNeighbors int) *Table {
	return &Table{
		maxNeighbors: maxNeighbors,
		peers:        make(map[string]Entry),
	}
}

// Add inserts or updates peer. It returns false, without mutating the table,
// when the table is at capacity and peer.NodeID is not already present.
func (t *Table) Add(peer Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.peers[peer.NodeID]; !exists {
		if t.maxNeighbors > 0 && len(t.peers) >= t.maxNeighbors {
			return false
		}
	}
	t.peers[peer.NodeID] = peer
	return true
}

// Remove deletes a peer by node id. Removing an absent id is a no-op.
func (t *Table) Remove(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, nodeID)
}

// Get returns the peer entry for nodeID, if present.
func (t *Table) Get(nodeID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.peers[nodeID]
	return e, ok
}

// List returns a snapshot of all peers in the table.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.peers))
	for _, e := range t.peers {
		out = append(out, e)
	}
	return out
}

// SelectByRole returns a snapshot of peers whose Role matches role.
func (t *Table) SelectByRole(role string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range t.peers {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the current peer count.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}
