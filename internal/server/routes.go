package server

import (
	"encoding/json"
	"net/http"

	"github.com/litigraph/backend/internal/queue"
	"github.com/litigraph/backend/internal/storage"
	"github.com/litigraph/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// AppContext carries the shared dependencies route handlers need.
type AppContext struct {
	Channel *amqp091.Channel
	Store   *storage.ReportStore
}

func RegisterRoutes(e *echo.Echo, app *AppContext) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api")
	apiRoutes.POST("/batches", app.CreateBatchHandler)
	apiRoutes.GET("/cases/:id/reports", app.GetCaseReportsHandler)
}

type createBatchRequest struct {
	CaseID         string   `json:"case_id" validate:"required"`
	Keys           []string `json:"keys"`
	Prefix         string   `json:"prefix"`
	Paths          []string `json:"paths"`
	MaxConcurrent  int      `json:"max_concurrent" validate:"gte=0"`
	TimeoutSeconds int      `json:"timeout_seconds" validate:"gte=0"`
	SkipErrors     *bool    `json:"skip_errors"`
}

// newIngestMsg maps a validated batch submission onto the queue message.
// SkipErrors passes through as given; the worker treats an omitted value as
// tolerant.
func newIngestMsg(req createBatchRequest, correlationID string) queue.IngestBatchMsg {
	return queue.IngestBatchMsg{
		CaseID:         req.CaseID,
		CorrelationID:  correlationID,
		Keys:           req.Keys,
		Prefix:         req.Prefix,
		Paths:          req.Paths,
		MaxConcurrent:  req.MaxConcurrent,
		TimeoutSeconds: req.TimeoutSeconds,
		SkipErrors:     req.SkipErrors,
	}
}

type createBatchResponse struct {
	CorrelationID string `json:"correlation_id"`
}

// CreateBatchHandler accepts a batch submission and enqueues it for the
// ingest worker. Files are referenced either by object key or worker-local
// path.
func (app *AppContext) CreateBatchHandler(c echo.Context) error {
	var req createBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Keys) == 0 && len(req.Paths) == 0 && req.Prefix == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "batch needs keys, paths, or a prefix")
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create correlation id")
	}

	msgBytes, err := json.Marshal(newIngestMsg(req, correlationID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to marshal message")
	}

	if err := queue.PublishFIFO(app.Channel, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("[Server] Failed to enqueue batch", "case", req.CaseID, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue batch")
	}

	logger.Info("[Server] Batch enqueued", "case", req.CaseID, "correlation", correlationID, "files", len(req.Keys)+len(req.Paths))
	return c.JSON(http.StatusAccepted, createBatchResponse{CorrelationID: correlationID})
}

// GetCaseReportsHandler returns every stored batch report for a case,
// newest first.
func (app *AppContext) GetCaseReportsHandler(c echo.Context) error {
	caseID := c.Param("id")
	if caseID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing case id")
	}

	reports, err := app.Store.GetReports(c.Request().Context(), caseID)
	if err != nil {
		logger.Error("[Server] Failed to fetch reports", "case", caseID, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch reports")
	}
	if reports == nil {
		reports = []storage.StoredReport{}
	}

	return c.JSON(http.StatusOK, reports)
}
