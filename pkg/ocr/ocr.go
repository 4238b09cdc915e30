package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/litigraph/backend/pkg/ai"
	"github.com/litigraph/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ErrRecognitionFailed is returned when both the primary and the fallback
// model fail to produce text for a page. Callers record it on the page result
// instead of aborting the batch.
var ErrRecognitionFailed = errors.New("ocr: primary and fallback recognition failed")

// Engine extracts text from page images using a vision model with a
// configured fallback model. It is stateless per call; the same engine can be
// shared across concurrent loads.
type Engine struct {
	client        ai.VisionClient
	primaryModel  string
	fallbackModel string
	preprocess    bool
	parallel      int
}

// NewEngineParams contains configuration for creating an Engine.
type NewEngineParams struct {
	Client        ai.VisionClient
	PrimaryModel  string
	FallbackModel string

	// Preprocess applies deskew/denoise to page images before recognition.
	Preprocess bool

	// Parallel bounds concurrent page recognitions in ProcessImages.
	Parallel int
}

// NewEngine creates a new OCR engine.
func NewEngine(params NewEngineParams) *Engine {
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	return &Engine{
		client:        params.Client,
		primaryModel:  params.PrimaryModel,
		fallbackModel: params.FallbackModel,
		preprocess:    params.Preprocess,
		parallel:      parallel,
	}
}

// Recognize transcribes a single page image. The primary model is tried
// first; on error or empty output the fallback model is attempted once. When
// both fail the returned text is empty and the error wraps
// ErrRecognitionFailed.
func (e *Engine) Recognize(ctx context.Context, pageImage []byte) (string, error) {
	img := pageImage
	if e.preprocess {
		cleaned, err := preprocessImage(pageImage)
		if err != nil {
			logger.Debug("[OCR] Preprocessing failed, using raw image", "err", err)
		} else {
			img = cleaned
		}
	}

	payload := ai.ImagePayload{
		Base64:   base64.StdEncoding.EncodeToString(img),
		FileType: "data:image/png;base64,",
	}

	text, primaryErr := e.recognizeWithModel(ctx, e.primaryModel, payload)
	if primaryErr == nil && text != "" {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if primaryErr != nil {
		logger.Debug("[OCR] Primary model failed, trying fallback", "model", e.primaryModel, "err", primaryErr)
	} else {
		logger.Debug("[OCR] Primary model returned empty output, trying fallback", "model", e.primaryModel)
	}

	if e.fallbackModel == "" || e.fallbackModel == e.primaryModel {
		return "", fmt.Errorf("%w: %s: %v", ErrRecognitionFailed, e.primaryModel, primaryErr)
	}

	text, fallbackErr := e.recognizeWithModel(ctx, e.fallbackModel, payload)
	if fallbackErr == nil && text != "" {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	return "", fmt.Errorf("%w: %s: %v; %s: %v",
		ErrRecognitionFailed, e.primaryModel, primaryErr, e.fallbackModel, fallbackErr)
}

func (e *Engine) recognizeWithModel(ctx context.Context, model string, payload ai.ImagePayload) (string, error) {
	text, err := e.client.DescribeImage(ctx, model, ai.TranscribePrompt, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ProcessImages transcribes a slice of page images in parallel, preserving
// page order. A page whose recognition fails (both models) yields an empty
// string at its index; the error for the last failing page is returned so
// callers can annotate the result, but processing never stops early.
func (e *Engine) ProcessImages(ctx context.Context, images [][]byte) ([]string, error) {
	output := make([]string, len(images))
	var failMu sync.Mutex
	var lastFailure error

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)

	for i, img := range images {
		idx := i
		image := img
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			logger.Debug("[OCR] Processing page image", "number", idx+1, "total", len(images))
			text, err := e.Recognize(gCtx, image)
			if err != nil {
				if errors.Is(err, ErrRecognitionFailed) {
					failMu.Lock()
					lastFailure = err
					failMu.Unlock()
					return nil
				}
				return err
			}
			output[idx] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return output, lastFailure
}
