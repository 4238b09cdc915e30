// Package graph accumulates case facts from many documents into a
// cross-case knowledge graph and scores how much of a prior case's content
// is reusable for a new one.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/litigraph/backend/pkg/extract"
)

type NodeType string

const (
	NodeDocument NodeType = "document"
	NodeParty    NodeType = "party"
	NodeDate     NodeType = "date"
	NodeClaim    NodeType = "claim"
)

type EdgeType string

const (
	EdgeDocumentOf EdgeType = "document_of"
	EdgePartyIn    EdgeType = "party_in"
	EdgeDateIn     EdgeType = "date_in"
	EdgeClaimIn    EdgeType = "claim_in"
	EdgeSimilarTo  EdgeType = "similar_to"
)

// Node is one graph vertex. ID is content-derived so the same real-world
// entity resolves to one node across documents; Label keeps the first-seen
// display form.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`
}

// Edge is a typed relationship between two node IDs. Confidence is set only
// on similar_to edges and lies in [0,1].
type Edge struct {
	Type       EdgeType `json:"type"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Confidence float64  `json:"confidence,omitempty"`
}

func (e Edge) key() string {
	return string(e.Type) + "|" + e.From + "|" + e.To
}

// Builder maintains the accumulating knowledge graph. Writes are serialized;
// reads may run concurrently with other reads.
type Builder struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string]Edge

	// facts holds the extraction behind each document node so later
	// documents can be scored against it.
	facts map[string]extract.CaseFacts
}

// NewBuilder creates an empty graph Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
		facts: make(map[string]extract.CaseFacts),
	}
}

// Normalize maps textually different mentions of one entity to a single key:
// lowercased, whitespace collapsed, trailing punctuation dropped.
func Normalize(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	joined := strings.Join(fields, " ")
	return strings.TrimRight(joined, ".,;")
}

func nodeID(t NodeType, key string) string {
	return string(t) + ":" + key
}

// AddDocument inserts one document's facts into the graph and returns only
// the edges created by this call. Re-adding the same facts yields no new
// nodes and no new edges except that similar_to scoring still runs against
// documents added since.
func (b *Builder) AddDocument(caseID string, facts extract.CaseFacts) ([]Edge, error) {
	docKey := Normalize(facts.CaseNumber)
	if docKey == "" {
		docKey = Normalize(caseID)
	}
	if docKey == "" {
		return nil, fmt.Errorf("graph: document has no case identifier")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var newEdges []Edge
	addEdge := func(edge Edge) {
		if _, exists := b.edges[edge.key()]; exists {
			return
		}
		b.edges[edge.key()] = edge
		newEdges = append(newEdges, edge)
	}

	docLabel := facts.CaseNumber
	if docLabel == "" {
		docLabel = caseID
	}
	docID := b.ensureNode(NodeDocument, docKey, docLabel)

	// A file submitted under one case identifier but naming another case
	// number links the two documents.
	if fileKey := Normalize(caseID); fileKey != "" && fileKey != docKey {
		fileID := b.ensureNode(NodeDocument, fileKey, caseID)
		addEdge(Edge{Type: EdgeDocumentOf, From: fileID, To: docID})
	}

	for _, party := range append(append([]string{}, facts.Plaintiffs...), facts.Defendants...) {
		key := Normalize(party)
		if key == "" {
			continue
		}
		partyID := b.ensureNode(NodeParty, key, party)
		addEdge(Edge{Type: EdgePartyIn, From: partyID, To: docID})
	}

	for _, kd := range facts.KeyDates {
		if kd.Date == "" {
			continue
		}
		dateID := b.ensureNode(NodeDate, kd.Date, kd.Date)
		addEdge(Edge{Type: EdgeDateIn, From: dateID, To: docID})
	}

	for _, claim := range facts.ClaimTypes {
		key := Normalize(claim)
		if key == "" {
			continue
		}
		claimID := b.ensureNode(NodeClaim, key, claim)
		addEdge(Edge{Type: EdgeClaimIn, From: claimID, To: docID})
	}

	// Score against every other known document, in key order so runs over
	// identical input produce identical edge lists.
	otherIDs := make([]string, 0, len(b.facts))
	for id := range b.facts {
		if id != docID {
			otherIDs = append(otherIDs, id)
		}
	}
	sort.Strings(otherIDs)
	for _, otherID := range otherIDs {
		score := ReuseConfidence(facts, b.facts[otherID])
		if score <= 0 {
			continue
		}
		addEdge(Edge{Type: EdgeSimilarTo, From: docID, To: otherID, Confidence: score})
	}

	b.facts[docID] = facts

	return newEdges, nil
}

// ensureNode returns the node ID for (type, key), inserting the node on
// first sight. Callers hold the write lock.
func (b *Builder) ensureNode(t NodeType, key string, label string) string {
	id := nodeID(t, key)
	if _, exists := b.nodes[id]; !exists {
		b.nodes[id] = Node{ID: id, Type: t, Label: strings.TrimSpace(label)}
	}
	return id
}

// Nodes returns all nodes sorted by ID.
func (b *Builder) Nodes() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	nodes := make([]Node, 0, len(b.nodes))
	for _, node := range b.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges sorted by (type, from, to).
func (b *Builder) Edges() []Edge {
	b.mu.RLock()
	defer b.mu.RUnlock()

	edges := make([]Edge, 0, len(b.edges))
	for _, edge := range b.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].key() < edges[j].key() })
	return edges
}
