package graph

import (
	"reflect"
	"testing"

	"github.com/litigraph/backend/pkg/extract"
)

func countNodes(t *testing.T, b *Builder, nodeType NodeType) int {
	t.Helper()
	count := 0
	for _, node := range b.Nodes() {
		if node.Type == nodeType {
			count++
		}
	}
	return count
}

func TestAddDocumentBuildsEdges(t *testing.T) {
	b := NewBuilder()
	facts := extract.CaseFacts{
		CaseNumber: "23-cv-100",
		Plaintiffs: []string{"ABC Corp"},
		Defendants: []string{"XYZ Industries, Inc."},
		ClaimTypes: []string{"negligence"},
		KeyDates:   []extract.KeyDate{{Date: "2023-01-05", Label: "filed"}},
	}

	edges, err := b.AddDocument("23-cv-100", facts)
	if err != nil {
		t.Fatalf("add document: %v", err)
	}

	byType := map[EdgeType]int{}
	for _, edge := range edges {
		byType[edge.Type]++
	}
	if byType[EdgePartyIn] != 2 || byType[EdgeDateIn] != 1 || byType[EdgeClaimIn] != 1 {
		t.Fatalf("unexpected edge mix: %v", byType)
	}
}

func TestPartyNormalizationDedup(t *testing.T) {
	b := NewBuilder()

	first := extract.CaseFacts{CaseNumber: "21-cv-1", Plaintiffs: []string{"ABC Corp"}}
	second := extract.CaseFacts{CaseNumber: "22-cv-2", Plaintiffs: []string{"ABC  corp."}}

	if _, err := b.AddDocument("21-cv-1", first); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := b.AddDocument("22-cv-2", second); err != nil {
		t.Fatalf("second add: %v", err)
	}

	if got := countNodes(t, b, NodeParty); got != 1 {
		t.Fatalf("expected 1 party node, got %d: %v", got, b.Nodes())
	}
}

func TestAddDocumentIdempotent(t *testing.T) {
	b := NewBuilder()
	facts := extract.CaseFacts{
		CaseNumber: "23-cv-100",
		Plaintiffs: []string{"ABC Corp"},
		ClaimTypes: []string{"fraud"},
	}

	first, err := b.AddDocument("23-cv-100", facts)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if len(first) == 0 {
		t.Fatalf("expected edges on first add")
	}

	nodesBefore := len(b.Nodes())
	second, err := b.AddDocument("23-cv-100", facts)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no new edges on re-add, got %v", second)
	}
	if len(b.Nodes()) != nodesBefore {
		t.Fatalf("re-add changed node count: %d -> %d", nodesBefore, len(b.Nodes()))
	}
}

func TestPartialClaimOverlapSimilarity(t *testing.T) {
	b := NewBuilder()

	dismissed := extract.CaseFacts{
		CaseNumber: "20-cv-555",
		ClaimTypes: []string{"negligence", "fraud"},
	}
	fresh := extract.CaseFacts{
		CaseNumber: "23-cv-777",
		ClaimTypes: []string{"negligence"},
	}

	if _, err := b.AddDocument("20-cv-555", dismissed); err != nil {
		t.Fatalf("add dismissed: %v", err)
	}
	edges, err := b.AddDocument("23-cv-777", fresh)
	if err != nil {
		t.Fatalf("add fresh: %v", err)
	}

	var similar *Edge
	for i, edge := range edges {
		if edge.Type == EdgeSimilarTo {
			similar = &edges[i]
		}
	}
	if similar == nil {
		t.Fatalf("expected a similar_to edge, got %v", edges)
	}
	if similar.Confidence <= 0 || similar.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", similar.Confidence)
	}
}

func TestReuseConfidenceMonotonic(t *testing.T) {
	base := extract.CaseFacts{ClaimTypes: []string{"negligence"}}
	partial := extract.CaseFacts{ClaimTypes: []string{"negligence", "fraud"}}
	full := extract.CaseFacts{ClaimTypes: []string{"negligence"}}

	partialScore := ReuseConfidence(base, partial)
	fullScore := ReuseConfidence(base, full)
	if partialScore <= 0 {
		t.Fatalf("partial overlap should score > 0, got %v", partialScore)
	}
	if fullScore <= partialScore {
		t.Fatalf("full overlap should outscore partial: %v <= %v", fullScore, partialScore)
	}
}

func TestReuseConfidenceEmptySides(t *testing.T) {
	empty := extract.CaseFacts{}
	rich := extract.CaseFacts{
		Plaintiffs:   []string{"ABC Corp"},
		ClaimTypes:   []string{"fraud"},
		KeyDates:     []extract.KeyDate{{Date: "2023-01-01", Label: "filed"}},
		ReliefAmount: &extract.Money{Amount: 1000, Currency: "USD"},
	}
	if got := ReuseConfidence(empty, rich); got != 0 {
		t.Fatalf("expected 0 against empty facts, got %v", got)
	}
}

func TestReuseConfidenceDeterministic(t *testing.T) {
	a := extract.CaseFacts{
		Plaintiffs:   []string{"ABC Corp"},
		Defendants:   []string{"XYZ Inc."},
		ClaimTypes:   []string{"negligence", "fraud"},
		KeyDates:     []extract.KeyDate{{Date: "2022-01-01", Label: "filed"}, {Date: "2022-06-01", Label: "dismissed"}},
		ReliefAmount: &extract.Money{Amount: 50000, Currency: "USD"},
	}
	b := extract.CaseFacts{
		Plaintiffs:   []string{"abc corp"},
		ClaimTypes:   []string{"negligence"},
		KeyDates:     []extract.KeyDate{{Date: "2022-03-01", Label: "filed"}},
		ReliefAmount: &extract.Money{Amount: 60000, Currency: "USD"},
	}

	first := ReuseConfidence(a, b)
	second := ReuseConfidence(a, b)
	if first != second {
		t.Fatalf("score not deterministic: %v vs %v", first, second)
	}
	if first != ReuseConfidence(b, a) {
		t.Fatalf("score not symmetric: %v vs %v", first, ReuseConfidence(b, a))
	}
	if first <= 0 || first >= 1 {
		t.Fatalf("expected partial-overlap score in (0,1), got %v", first)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := NewBuilder()
	facts := extract.CaseFacts{
		CaseNumber: "20-cv-555",
		Plaintiffs: []string{"ABC Corp"},
		ClaimTypes: []string{"negligence", "fraud"},
	}
	if _, err := b.AddDocument("20-cv-555", facts); err != nil {
		t.Fatalf("add: %v", err)
	}

	data, err := b.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	restored := NewBuilder()
	if err := restored.RestoreJSON(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(restored.Nodes(), b.Nodes()) {
		t.Fatalf("nodes differ after round trip")
	}
	if !reflect.DeepEqual(restored.Edges(), b.Edges()) {
		t.Fatalf("edges differ after round trip")
	}

	// The restored graph still scores new documents against history.
	edges, err := restored.AddDocument("23-cv-777", extract.CaseFacts{
		CaseNumber: "23-cv-777",
		ClaimTypes: []string{"negligence"},
	})
	if err != nil {
		t.Fatalf("add after restore: %v", err)
	}
	found := false
	for _, edge := range edges {
		if edge.Type == EdgeSimilarTo {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected similar_to edge from restored history, got %v", edges)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC Corp", "abc corp"},
		{"ABC  corp.", "abc corp"},
		{"  Superior   Court  ", "superior court"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
