package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/litigraph/backend/internal/storage"
	"github.com/litigraph/backend/internal/util"
	"github.com/litigraph/backend/pkg/extract"
	"github.com/litigraph/backend/pkg/graph"
	"github.com/litigraph/backend/pkg/loader"
	"github.com/litigraph/backend/pkg/logger"
	"github.com/litigraph/backend/pkg/ocr"
	"github.com/litigraph/backend/pkg/workflow"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestBatchMsg is one batch ingestion job. Keys name objects in the case
// bucket, Prefix selects every object under it, Paths name files already on
// the worker's filesystem. At least one of the three must be set.
type IngestBatchMsg struct {
	CaseID         string   `json:"case_id"`
	CorrelationID  string   `json:"correlation_id"`
	Keys           []string `json:"keys,omitempty"`
	Prefix         string   `json:"prefix,omitempty"`
	Paths          []string `json:"paths,omitempty"`
	MaxConcurrent  int      `json:"max_concurrent"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	SkipErrors     *bool    `json:"skip_errors,omitempty"`
}

// SkipErrorsValue reports whether the batch tolerates per-file failures.
// Omitted means tolerant; strict mode must be requested explicitly.
func (m IngestBatchMsg) SkipErrorsValue() bool {
	return m.SkipErrors == nil || *m.SkipErrors
}

// Processor runs ingestion jobs pulled from the ingest queue.
type Processor struct {
	s3Client  *s3.Client
	pool      *pgxpool.Pool
	ocrEngine *ocr.Engine
	hashFile  workflow.HashFunc
	encoder   string
}

// NewProcessorParams contains configuration for creating a Processor.
type NewProcessorParams struct {
	S3Client     *s3.Client
	Pool         *pgxpool.Pool
	OCR          *ocr.Engine
	HashFile     workflow.HashFunc
	TokenEncoder string
}

// NewProcessor creates a new Processor.
func NewProcessor(params NewProcessorParams) *Processor {
	return &Processor{
		s3Client:  params.S3Client,
		pool:      params.Pool,
		ocrEngine: params.OCR,
		hashFile:  params.HashFile,
		encoder:   params.TokenEncoder,
	}
}

// ProcessIngest handles one ingest message: stage the documents, restore the
// graph snapshot, run the batch workflow, persist the report and the updated
// snapshot. A returned error sends the message through retry handling.
func (p *Processor) ProcessIngest(ctx context.Context, msgBody string) error {
	var msg IngestBatchMsg
	if err := json.Unmarshal([]byte(msgBody), &msg); err != nil {
		return fmt.Errorf("unmarshal ingest message: %w", err)
	}
	if msg.CaseID == "" {
		return fmt.Errorf("ingest message missing case_id")
	}

	maxConcurrent := msg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	keys := msg.Keys
	if msg.Prefix != "" {
		listed, err := storage.ListFilesWithPrefix(ctx, p.s3Client, msg.Prefix)
		if err != nil {
			return fmt.Errorf("list prefix %s: %w", msg.Prefix, err)
		}
		keys = append(keys, listed...)
	}

	paths := msg.Paths
	if len(keys) > 0 {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("nanoid: %w", err)
		}
		stageDir := filepath.Join(os.TempDir(), "litigraph-batch-"+id)
		if err := os.MkdirAll(stageDir, 0o700); err != nil {
			return fmt.Errorf("mkdir stage dir: %w", err)
		}
		defer os.RemoveAll(stageDir)

		staged, err := storage.DownloadBatch(ctx, p.s3Client, keys, stageDir)
		if err != nil {
			return fmt.Errorf("stage batch: %w", err)
		}
		paths = append(paths, staged...)
	}

	store := storage.NewReportStore(p.pool)

	builder := graph.NewBuilder()
	snapshot, err := store.LoadLatestSnapshot(ctx)
	if err != nil {
		logger.Warn("[Ingest] Could not restore graph snapshot, starting empty", "err", err)
	} else {
		builder.Restore(snapshot)
	}

	docLoader := loader.NewLoader(loader.NewLoaderParams{
		OCR:          p.ocrEngine,
		TokenEncoder: p.encoder,
		SkipErrors:   msg.SkipErrorsValue(),
	})

	w := workflow.NewWorkflow(workflow.NewWorkflowParams{
		CaseID:         msg.CaseID,
		Loader:         docLoader,
		Extractor:      extract.NewExtractor(extract.NewExtractorParams{}),
		Graph:          builder,
		HashFile:       p.hashFile,
		Store:          store,
		MaxConcurrent:  maxConcurrent,
		TimeoutPerFile: time.Duration(msg.TimeoutSeconds) * time.Second,
	})

	report, err := w.Run(ctx, paths)
	if err != nil {
		return fmt.Errorf("run batch for case %s: %w", msg.CaseID, err)
	}

	if err := store.SaveSnapshot(ctx, builder.Export()); err != nil {
		return fmt.Errorf("persist graph snapshot: %w", err)
	}

	if p.s3Client != nil {
		if err := p.archiveReport(ctx, msg, report); err != nil {
			logger.Warn("[Ingest] Could not archive report to object store", "case", msg.CaseID, "err", err)
		}
	}

	logger.Info("[Ingest] Batch processed",
		"case", msg.CaseID,
		"correlation", msg.CorrelationID,
		"loaded", report.Counts.Loaded,
		"failed", report.Counts.Failed,
		"timeout", report.Counts.Timeout,
		"deltas", len(report.GraphDeltas),
	)

	return nil
}

// archiveReport uploads the finished report next to the case documents so a
// batch can be audited without database access.
func (p *Processor) archiveReport(ctx context.Context, msg IngestBatchMsg, report *workflow.BatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	archiveID := msg.CorrelationID
	if archiveID == "" {
		if archiveID, err = gonanoid.New(); err != nil {
			return fmt.Errorf("nanoid: %w", err)
		}
	}

	return util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		_, putErr := storage.PutFile(ctx, p.s3Client, msg.CaseID, "report.json", "report-"+archiveID, bytes.NewReader(body))
		return putErr
	})
}
