package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/litigraph/backend/pkg/ocr"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const pdfRenderDPI = 200

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// pdfDocument is a PDF staged into a private temp directory so the poppler
// tools can work on it. Close releases the directory.
type pdfDocument struct {
	tmpDir string
	path   string
}

func openPDF(content []byte) (*pdfDocument, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "litigraph-pdf-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, content, 0o600); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return &pdfDocument{tmpDir: tmpDir, path: pdfPath}, nil
}

func (d *pdfDocument) Close() {
	os.RemoveAll(d.tmpDir)
}

// pageCount reads the page count via pdfinfo.
func (d *pdfDocument) pageCount(ctx context.Context) (int, error) {
	if _, err := exec.LookPath("pdfinfo"); err != nil {
		return 0, fmt.Errorf("pdfinfo not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdfinfo", d.path)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return 0, fmt.Errorf("%w: pdfinfo", ErrTimeout)
	}
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if pages, err := strconv.Atoi(fields[1]); err == nil {
				return pages, nil
			}
		}
	}

	return 0, fmt.Errorf("pdfinfo output missing page count")
}

// pageText extracts the embedded text layer of one page via pdftotext.
func (d *pdfDocument) pageText(ctx context.Context, pageNum int) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(
		ctx,
		"pdftotext",
		"-enc", "UTF-8",
		"-eol", "unix",
		"-nopgbrk",
		"-q",
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		d.path,
		"-",
	)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")

	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: pdftotext page %d", ErrTimeout, pageNum)
	}
	if err != nil {
		return "", fmt.Errorf("pdftotext failed on page %d: %w: %s", pageNum, err, strings.TrimSpace(string(out)))
	}

	text := strings.TrimSpace(string(out))
	text = collapseNewlines.ReplaceAllString(text, "\n\n")

	return text, nil
}

// renderPage renders one page as a PNG via pdftoppm for the OCR fallback.
func (d *pdfDocument) renderPage(ctx context.Context, pageNum int) ([]byte, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}

	prefix := filepath.Join(d.tmpDir, fmt.Sprintf("page-%04d", pageNum))
	cmd := exec.CommandContext(
		ctx,
		"pdftoppm",
		"-png",
		"-r", strconv.Itoa(pdfRenderDPI),
		"-q",
		"-singlefile",
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		d.path,
		prefix,
	)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")

	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: pdftoppm page %d", ErrTimeout, pageNum)
	}
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w: %s", pageNum, err, strings.TrimSpace(string(out)))
	}

	b, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}

	return b, nil
}

// loadPDF extracts document text page by page. Pages whose embedded text
// layer falls below the density threshold are rendered and batched through
// OCR; OCR failures keep the embedded text and surface as warnings, never as
// a document-level error.
func (l *Loader) loadPDF(ctx context.Context, content []byte) (string, int, []string, error) {
	doc, err := openPDF(content)
	if err != nil {
		return "", 0, nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer doc.Close()

	pages, err := doc.pageCount(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, nil, err
		}
		return "", 0, nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if pages <= 0 {
		return "", 0, nil, fmt.Errorf("%w: document has no pages", ErrParseFailure)
	}

	var warnings []string
	var ocrPageNums []int
	var ocrImages [][]byte
	pageTexts := make([]string, pages)
	for i := 1; i <= pages; i++ {
		text, err := doc.pageText(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return "", pages, warnings, err
			}
			return "", pages, warnings, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		pageTexts[i-1] = text

		if len(strings.TrimSpace(text)) >= l.minTextDensity || l.ocr == nil {
			continue
		}

		img, err := doc.renderPage(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return "", pages, warnings, err
			}
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		ocrPageNums = append(ocrPageNums, i)
		ocrImages = append(ocrImages, img)
	}

	if len(ocrImages) > 0 {
		recognized, ocrWarnings, err := l.ocrPages(ctx, ocrPageNums, ocrImages)
		if err != nil {
			return "", pages, warnings, err
		}
		warnings = append(warnings, ocrWarnings...)
		for j, text := range recognized {
			if text != "" {
				pageTexts[ocrPageNums[j]-1] = text
			}
		}
	}

	return strings.TrimSpace(strings.Join(pageTexts, "\n\n")), pages, warnings, nil
}

// ocrPages runs rendered page images through the recognition engine's bounded
// fan-out, preserving page order. A page that fails recognition yields an
// empty string at its index plus a warning; the caller keeps its embedded
// text. Cancellation and transport errors abort the document.
func (l *Loader) ocrPages(ctx context.Context, pageNums []int, images [][]byte) ([]string, []string, error) {
	texts, err := l.ocr.ProcessImages(ctx, images)
	if err != nil && !errors.Is(err, ocr.ErrRecognitionFailed) {
		return nil, nil, err
	}

	var warnings []string
	for i, text := range texts {
		if text == "" {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", pageNums[i], ocr.ErrRecognitionFailed))
		}
	}
	return texts, warnings, nil
}
