package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/litigraph/backend/pkg/graph"
	"github.com/litigraph/backend/pkg/workflow"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies pending schema migrations from sourceURL (file://...)
// against databaseURL.
func Migrate(sourceURL string, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// StoredReport is one persisted batch report row.
type StoredReport struct {
	ID        int64                 `json:"id"`
	CaseID    string                `json:"case_id"`
	Report    *workflow.BatchReport `json:"report"`
	CreatedAt time.Time             `json:"created_at"`
}

// ReportStore persists batch reports and graph snapshots. It implements
// workflow.ReportStore.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a ReportStore on an existing pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// SaveReport inserts one batch report keyed by case.
func (s *ReportStore) SaveReport(ctx context.Context, caseID string, report *workflow.BatchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO batch_reports (case_id, report, loaded, skipped, failed, timed_out, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		caseID,
		payload,
		report.Counts.Loaded,
		report.Counts.Skipped,
		report.Counts.Failed,
		report.Counts.Timeout,
		report.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReports returns all reports for a case, newest first.
func (s *ReportStore) GetReports(ctx context.Context, caseID string) ([]StoredReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, case_id, report, created_at
		FROM batch_reports
		WHERE case_id = $1
		ORDER BY created_at DESC`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []StoredReport
	for rows.Next() {
		var stored StoredReport
		var payload []byte
		if err := rows.Scan(&stored.ID, &stored.CaseID, &payload, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(payload, &stored.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report %d: %w", stored.ID, err)
		}
		reports = append(reports, stored)
	}
	return reports, rows.Err()
}

// SaveSnapshot stores the current knowledge graph. Older snapshots stay for
// audit; LoadLatestSnapshot reads the newest.
func (s *ReportStore) SaveSnapshot(ctx context.Context, snapshot graph.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO graph_snapshots (snapshot) VALUES ($1)`, payload)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LoadLatestSnapshot restores the newest stored graph snapshot. A store with
// no snapshots yet returns an empty snapshot and no error.
func (s *ReportStore) LoadLatestSnapshot(ctx context.Context) (graph.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot FROM graph_snapshots
		ORDER BY created_at DESC
		LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return graph.Snapshot{}, nil
	}
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var snapshot graph.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return graph.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}
