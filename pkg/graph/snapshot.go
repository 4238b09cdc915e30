package graph

import (
	"encoding/json"
	"fmt"

	"github.com/litigraph/backend/pkg/extract"
)

// Snapshot is the serializable state of a Builder. Facts are carried along
// with nodes and edges so a restored graph can keep scoring new documents
// against historical ones.
type Snapshot struct {
	Nodes []Node                       `json:"nodes"`
	Edges []Edge                       `json:"edges"`
	Facts map[string]extract.CaseFacts `json:"facts"`
}

// Export produces a deterministic snapshot of the current graph.
func (b *Builder) Export() Snapshot {
	b.mu.RLock()
	facts := make(map[string]extract.CaseFacts, len(b.facts))
	for id, f := range b.facts {
		facts[id] = f
	}
	b.mu.RUnlock()

	return Snapshot{
		Nodes: b.Nodes(),
		Edges: b.Edges(),
		Facts: facts,
	}
}

// ExportJSON serializes the graph snapshot.
func (b *Builder) ExportJSON() ([]byte, error) {
	data, err := json.Marshal(b.Export())
	if err != nil {
		return nil, fmt.Errorf("graph: marshal snapshot: %w", err)
	}
	return data, nil
}

// Restore loads a snapshot into the builder, merging with any existing
// state. Node and edge identity dedups across the merge.
func (b *Builder) Restore(snapshot Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, node := range snapshot.Nodes {
		if _, exists := b.nodes[node.ID]; !exists {
			b.nodes[node.ID] = node
		}
	}
	for _, edge := range snapshot.Edges {
		if _, exists := b.edges[edge.key()]; !exists {
			b.edges[edge.key()] = edge
		}
	}
	for id, facts := range snapshot.Facts {
		if _, exists := b.facts[id]; !exists {
			b.facts[id] = facts
		}
	}
}

// RestoreJSON loads a serialized snapshot.
func (b *Builder) RestoreJSON(data []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("graph: unmarshal snapshot: %w", err)
	}
	b.Restore(snapshot)
	return nil
}
