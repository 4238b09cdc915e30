package ai

import (
	"context"
)

// ImagePayload carries a base64-encoded page image together with its data-URL
// prefix (e.g. "data:image/png;base64,").
type ImagePayload struct {
	Base64   string `json:"base64"`
	FileType string `json:"file_type"`
}

// ModelMetrics contains accumulated performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// VisionClient defines the interface for AI vision backends used by the OCR
// engine. The model is passed per call so a single client can serve both the
// primary and the fallback recognition model.
type VisionClient interface {
	DescribeImage(
		ctx context.Context,
		model string,
		prompt string,
		image ImagePayload,
	) (string, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
