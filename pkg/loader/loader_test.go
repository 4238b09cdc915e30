package loader

import (
	"archive/zip"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/litigraph/backend/pkg/ai"
	"github.com/litigraph/backend/pkg/ocr"
)

func newTestLoader() *Loader {
	return NewLoader(NewLoaderParams{SkipErrors: true})
}

func writeTestFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSingleText(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "complaint.txt", "Case No. 23-cv-01234\nPlaintiff: ABC Corp\n")

	result := newTestLoader().LoadSingle(context.Background(), path)
	if result.Status != StatusLoaded {
		t.Fatalf("expected status %q, got %q (err: %s)", StatusLoaded, result.Status, result.Error)
	}
	if result.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", result.Pages)
	}
	if !strings.Contains(result.Text, "ABC Corp") {
		t.Fatalf("text missing expected content: %q", result.Text)
	}
	if result.Size == 0 {
		t.Fatalf("expected non-zero size")
	}
}

func TestLoadSingleMissing(t *testing.T) {
	result := newTestLoader().LoadSingle(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	if result.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, result.Status)
	}
	if !strings.Contains(result.Error, "not found") {
		t.Fatalf("expected not-found error, got %q", result.Error)
	}
}

func TestLoadSingleUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "scan.tiff", "binary")

	result := newTestLoader().LoadSingle(context.Background(), path)
	if result.Status != StatusSkipped {
		t.Fatalf("expected status %q, got %q", StatusSkipped, result.Status)
	}
	if result.Error == "" {
		t.Fatalf("expected skip reason on result")
	}
}

func TestLoadSingleDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motion.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	docXML := `<?xml version="1.0"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:r><w:t>Motion to Dismiss</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Superior Court of California</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(docXML)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	result := newTestLoader().LoadSingle(context.Background(), path)
	if result.Status != StatusLoaded {
		t.Fatalf("expected status %q, got %q (err: %s)", StatusLoaded, result.Status, result.Error)
	}
	if !strings.Contains(result.Text, "Motion to Dismiss") || !strings.Contains(result.Text, "Superior Court") {
		t.Fatalf("docx text missing paragraphs: %q", result.Text)
	}
}

func TestLoadSingleCorruptDocx(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "broken.docx", "this is not a zip archive")

	result := newTestLoader().LoadSingle(context.Background(), path)
	if result.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, result.Status)
	}
}

func TestLoadBatchInvalidConcurrency(t *testing.T) {
	for _, maxConcurrent := range []int{0, -1} {
		_, err := newTestLoader().LoadBatch(context.Background(), []string{"a.txt"}, maxConcurrent, 0)
		if err == nil {
			t.Fatalf("expected error for maxConcurrent=%d", maxConcurrent)
		}
	}
}

func TestLoadBatchEmpty(t *testing.T) {
	results, err := newTestLoader().LoadBatch(context.Background(), nil, 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestLoadBatchOrderPreserved(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 20)
	for i := range paths {
		name := "doc-" + strings.Repeat("x", i) + ".txt"
		paths[i] = writeTestFile(t, dir, name, name)
	}

	results, err := newTestLoader().LoadBatch(context.Background(), paths, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, result := range results {
		if result.Path != paths[i] {
			t.Fatalf("result %d out of order: got %s, want %s", i, result.Path, paths[i])
		}
		if result.Status != StatusLoaded {
			t.Fatalf("result %d: expected loaded, got %q", i, result.Status)
		}
	}
}

func TestLoadBatchMixedOutcomes(t *testing.T) {
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.txt", "Case No. 23-cv-100")
	unsupported := writeTestFile(t, dir, "scan.bmp", "x")
	missing := filepath.Join(dir, "missing.txt")

	results, err := newTestLoader().LoadBatch(context.Background(), []string{good, unsupported, missing}, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := CountStatuses(results)
	if counts[StatusLoaded] != 1 || counts[StatusSkipped] != 1 || counts[StatusFailed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestLoadBatchPerFileTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "slow.txt", "content")

	results, err := newTestLoader().LoadBatch(context.Background(), []string{path}, 1, time.Nanosecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != StatusTimeout {
		t.Fatalf("expected status %q, got %q", StatusTimeout, results[0].Status)
	}
}

func TestLoadBatchFailFast(t *testing.T) {
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.txt", "content")
	missing := filepath.Join(dir, "missing.txt")

	strict := NewLoader(NewLoaderParams{SkipErrors: false})
	results, err := strict.LoadBatch(context.Background(), []string{good, missing}, 2, 0)
	if err == nil {
		t.Fatalf("expected batch error for failed file")
	}
	if len(results) != 2 {
		t.Fatalf("expected complete results even on error, got %d", len(results))
	}
}

func TestLoadBatchConcurrencyEquivalence(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 12)
	for i := range paths {
		paths[i] = writeTestFile(t, dir, "doc-"+strings.Repeat("a", i)+".txt", strings.Repeat("text ", i+1))
	}
	paths = append(paths, filepath.Join(dir, "missing.txt"))

	sequential, err := newTestLoader().LoadBatch(context.Background(), paths, 1, 0)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	concurrent, err := newTestLoader().LoadBatch(context.Background(), paths, 8, 0)
	if err != nil {
		t.Fatalf("concurrent: %v", err)
	}

	for i := range sequential {
		if sequential[i].Status != concurrent[i].Status {
			t.Fatalf("result %d: status differs: %q vs %q", i, sequential[i].Status, concurrent[i].Status)
		}
		if sequential[i].Text != concurrent[i].Text {
			t.Fatalf("result %d: text differs", i)
		}
	}
}

func TestParseDocxRejectsGarbage(t *testing.T) {
	if _, err := parseDocx([]byte("not a docx")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

type stubVisionClient struct {
	texts map[string]string
}

func (c *stubVisionClient) DescribeImage(_ context.Context, _ string, _ string, image ai.ImagePayload) (string, error) {
	text, ok := c.texts[image.Base64]
	if !ok {
		return "", errors.New("model unavailable")
	}
	return text, nil
}

func (c *stubVisionClient) ResetMetrics()               {}
func (c *stubVisionClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newOCRTestLoader(stub *stubVisionClient) *Loader {
	return NewLoader(NewLoaderParams{
		OCR: ocr.NewEngine(ocr.NewEngineParams{
			Client:       stub,
			PrimaryModel: "vision-primary",
			Parallel:     2,
		}),
		SkipErrors: true,
	})
}

func TestOCRPagesKeepsOrderAndWarnsOnFailure(t *testing.T) {
	imgGood := []byte("rendered-page-two")
	imgBad := []byte("rendered-page-five")
	stub := &stubVisionClient{texts: map[string]string{
		base64.StdEncoding.EncodeToString(imgGood): "RECOGNIZED PAGE TWO",
	}}

	texts, warnings, err := newOCRTestLoader(stub).ocrPages(context.Background(), []int{2, 5}, [][]byte{imgGood, imgBad})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("expected 2 page texts, got %d", len(texts))
	}
	if texts[0] != "RECOGNIZED PAGE TWO" {
		t.Fatalf("page 2 text: got %q", texts[0])
	}
	if texts[1] != "" {
		t.Fatalf("failed page must yield empty text, got %q", texts[1])
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "page 5") {
		t.Fatalf("expected one warning for page 5, got %v", warnings)
	}
}

func TestOCRPagesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubVisionClient{texts: map[string]string{}}
	_, _, err := newOCRTestLoader(stub).ocrPages(ctx, []int{1}, [][]byte{[]byte("page")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
