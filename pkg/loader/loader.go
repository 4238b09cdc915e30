package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/litigraph/backend/pkg/logger"
	"github.com/litigraph/backend/pkg/ocr"

	"github.com/pkoukk/tiktoken-go"
)

// Status is the terminal outcome of loading one source file.
type Status string

const (
	StatusLoaded  Status = "loaded"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Sentinel errors for per-file load outcomes. They are recorded on the
// LoadResult, never raised across the batch boundary.
var (
	ErrNotFound     = errors.New("loader: file not found")
	ErrParseFailure = errors.New("loader: unreadable or corrupt content")
	ErrTimeout      = errors.New("loader: per-file time budget exceeded")
)

// SourceFile describes one input document at batch submission. Source files
// are read-only; the pipeline never mutates them.
type SourceFile struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

// LoadResult is the immutable outcome of loading one source file. Exactly one
// LoadResult exists per input path, in input order.
type LoadResult struct {
	Path       string   `json:"path"`
	Status     Status   `json:"status"`
	Pages      int      `json:"pages"`
	Size       int64    `json:"size"`
	Text       string   `json:"text,omitempty"`
	TokenCount int      `json:"token_count"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Loader loads and parses legal-case source documents. PDF text extraction
// falls back to OCR for pages whose embedded text layer is below the density
// threshold. A Loader is safe for concurrent use.
type Loader struct {
	ocr            *ocr.Engine
	minTextDensity int
	tokenEncoder   string
	skipErrors     bool
}

// NewLoaderParams contains configuration for creating a Loader.
type NewLoaderParams struct {
	// OCR is optional; without it low-density pages keep their embedded text.
	OCR *ocr.Engine

	// MinTextDensity is the minimum number of embedded-text characters a PDF
	// page must carry before OCR is attempted for it. Zero uses the default.
	MinTextDensity int

	// TokenEncoder names the tiktoken encoding used for per-document token
	// counts. Empty disables counting.
	TokenEncoder string

	// SkipErrors keeps per-file failures out of the batch error return.
	// Defaults to true via NewLoader when left unset in entrypoints.
	SkipErrors bool
}

const defaultMinTextDensity = 64

// NewLoader creates a new Loader.
func NewLoader(params NewLoaderParams) *Loader {
	density := params.MinTextDensity
	if density <= 0 {
		density = defaultMinTextDensity
	}
	return &Loader{
		ocr:            params.OCR,
		minTextDensity: density,
		tokenEncoder:   params.TokenEncoder,
		skipErrors:     params.SkipErrors,
	}
}

// LoadSingle loads one source document and returns its LoadResult. All
// errors, including cancellation of ctx, are captured in the result.
func (l *Loader) LoadSingle(ctx context.Context, path string) LoadResult {
	result := LoadResult{Path: path}

	if err := ctx.Err(); err != nil {
		return l.finish(result, "", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l.finish(result, "", fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		return l.finish(result, "", fmt.Errorf("%w: stat %s: %v", ErrParseFailure, path, err))
	}
	if info.IsDir() {
		return l.finish(result, "", fmt.Errorf("%w: %s is a directory", ErrParseFailure, path))
	}
	result.Size = info.Size()

	content, err := os.ReadFile(path)
	if err != nil {
		return l.finish(result, "", fmt.Errorf("%w: read %s: %v", ErrParseFailure, path, err))
	}
	if err := ctx.Err(); err != nil {
		return l.finish(result, "", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf":
		text, pages, warnings, err := l.loadPDF(ctx, content)
		result.Pages = pages
		result.Warnings = warnings
		return l.finish(result, text, err)
	case "txt", "md":
		result.Pages = 1
		return l.finish(result, string(content), nil)
	case "docx":
		text, err := parseDocx(content)
		result.Pages = 1
		return l.finish(result, text, err)
	default:
		result.Status = StatusSkipped
		result.Error = fmt.Sprintf("unsupported file type %q", ext)
		return result
	}
}

// finish classifies err into the result status and fills the remaining
// fields. Results are immutable once returned.
func (l *Loader) finish(result LoadResult, text string, err error) LoadResult {
	if err != nil {
		result.Error = err.Error()
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout):
			result.Status = StatusTimeout
		case errors.Is(err, context.Canceled):
			result.Status = StatusFailed
		default:
			result.Status = StatusFailed
		}
		return result
	}

	result.Status = StatusLoaded
	result.Text = text
	result.TokenCount = l.countTokens(text)
	return result
}

func (l *Loader) countTokens(text string) int {
	if l.tokenEncoder == "" || text == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding(l.tokenEncoder)
	if err != nil {
		logger.Warn("[Loader] Token encoder unavailable", "encoder", l.tokenEncoder, "err", err)
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}
