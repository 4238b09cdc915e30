// Package workflow sequences loading, fact extraction, and graph building
// over one document batch with continue-on-error semantics.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/litigraph/backend/pkg/extract"
	"github.com/litigraph/backend/pkg/graph"
	"github.com/litigraph/backend/pkg/loader"
	"github.com/litigraph/backend/pkg/logger"
)

// HashFunc is the external integrity collaborator: it streams a file and
// returns a 64-hex-char digest.
type HashFunc func(path string) (string, error)

// ReportStore persists finished batch reports. The pipeline only emits the
// report shape; the store owns its schema.
type ReportStore interface {
	SaveReport(ctx context.Context, caseID string, report *BatchReport) error
}

// Counts tallies per-file outcomes for one batch.
type Counts struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Timeout int `json:"timeout"`
}

// BatchReport is the aggregate outcome of one workflow invocation. Results
// and Facts are aligned by input position; Facts entries are nil for files
// that did not load or yielded nothing. The report is never mutated after
// Run returns.
type BatchReport struct {
	Results         []loader.LoadResult  `json:"results"`
	Facts           []*extract.CaseFacts `json:"facts"`
	GraphDeltas     []graph.Edge         `json:"graph_deltas"`
	Counts          Counts               `json:"counts"`
	DurationSeconds float64              `json:"duration_seconds"`
	Digests         map[string]string    `json:"digests,omitempty"`
}

// Workflow runs Loader -> Extractor -> GraphBuilder over a batch. A file
// that fails or times out contributes its LoadResult and nothing else; the
// batch always runs to completion.
type Workflow struct {
	caseID         string
	loader         *loader.Loader
	extractor      *extract.Extractor
	graph          *graph.Builder
	hashFile       HashFunc
	store          ReportStore
	maxConcurrent  int
	timeoutPerFile time.Duration
}

// NewWorkflowParams contains configuration for creating a Workflow.
type NewWorkflowParams struct {
	// CaseID identifies the case this batch belongs to. Documents naming
	// their own case number are keyed by it instead.
	CaseID    string
	Loader    *loader.Loader
	Extractor *extract.Extractor
	Graph     *graph.Builder

	// HashFile is optional; when set, loaded files are digested for the
	// persistence collaborator.
	HashFile HashFunc

	// Store is optional; when set, the finished report is persisted.
	Store ReportStore

	MaxConcurrent  int
	TimeoutPerFile time.Duration
}

// NewWorkflow creates a new Workflow.
func NewWorkflow(params NewWorkflowParams) *Workflow {
	return &Workflow{
		caseID:         params.CaseID,
		loader:         params.Loader,
		extractor:      params.Extractor,
		graph:          params.Graph,
		hashFile:       params.HashFile,
		store:          params.Store,
		maxConcurrent:  params.MaxConcurrent,
		timeoutPerFile: params.TimeoutPerFile,
	}
}

// Run processes the batch and returns its report. Per-file failures are
// recorded in the report; only contract violations and persistence failures
// surface as errors.
func (w *Workflow) Run(ctx context.Context, paths []string) (*BatchReport, error) {
	start := time.Now()

	results, err := w.loader.LoadBatch(ctx, paths, w.maxConcurrent, w.timeoutPerFile)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		Results:     results,
		Facts:       make([]*extract.CaseFacts, len(results)),
		GraphDeltas: []graph.Edge{},
	}

	// Extraction and graph insertion run sequentially in input order so a
	// fixed batch always produces the same deltas.
	for i, result := range results {
		report.Counts.tally(result.Status)
		if result.Status != loader.StatusLoaded {
			continue
		}

		if w.hashFile != nil {
			digest, err := w.hashFile(result.Path)
			if err != nil {
				logger.Warn("[Workflow] Hashing failed", "path", result.Path, "err", err)
			} else {
				if report.Digests == nil {
					report.Digests = make(map[string]string)
				}
				report.Digests[result.Path] = digest
			}
		}

		facts := w.extractor.Extract(result.Text)
		if facts.Empty() {
			continue
		}
		report.Facts[i] = &facts

		caseID := w.caseID
		if caseID == "" {
			caseID = result.Path
		}
		deltas, err := w.graph.AddDocument(caseID, facts)
		if err != nil {
			logger.Warn("[Workflow] Graph insert failed", "path", result.Path, "err", err)
			continue
		}
		report.GraphDeltas = append(report.GraphDeltas, deltas...)
	}

	report.DurationSeconds = time.Since(start).Seconds()

	logger.Info("[Workflow] Batch complete",
		"case", w.caseID,
		"files", len(paths),
		"loaded", report.Counts.Loaded,
		"failed", report.Counts.Failed,
		"timeout", report.Counts.Timeout,
		"deltas", len(report.GraphDeltas),
	)

	if w.store != nil {
		if err := w.store.SaveReport(ctx, w.caseID, report); err != nil {
			return report, fmt.Errorf("workflow: persist report: %w", err)
		}
	}

	return report, nil
}

func (c *Counts) tally(status loader.Status) {
	switch status {
	case loader.StatusLoaded:
		c.Loaded++
	case loader.StatusSkipped:
		c.Skipped++
	case loader.StatusFailed:
		c.Failed++
	case loader.StatusTimeout:
		c.Timeout++
	}
}
