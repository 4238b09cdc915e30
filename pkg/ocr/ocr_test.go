package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/litigraph/backend/pkg/ai"
)

type fakeVisionClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (c *fakeVisionClient) DescribeImage(_ context.Context, model string, _ string, _ ai.ImagePayload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, model)
	if err := c.errs[model]; err != nil {
		return "", err
	}
	return c.responses[model], nil
}

func (c *fakeVisionClient) ResetMetrics()               {}
func (c *fakeVisionClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (c *fakeVisionClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestEngine(client ai.VisionClient) *Engine {
	return NewEngine(NewEngineParams{
		Client:        client,
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		Parallel:      2,
	})
}

func TestRecognizePrimarySucceeds(t *testing.T) {
	client := &fakeVisionClient{responses: map[string]string{"primary": "page text"}}
	text, err := newTestEngine(client).Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "page text" {
		t.Fatalf("got %q", text)
	}
	if client.callCount() != 1 {
		t.Fatalf("expected 1 call, got %d", client.callCount())
	}
}

func TestRecognizeFallbackOnPrimaryError(t *testing.T) {
	client := &fakeVisionClient{
		responses: map[string]string{"fallback": "recovered text"},
		errs:      map[string]error{"primary": errors.New("model unavailable")},
	}
	text, err := newTestEngine(client).Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "recovered text" {
		t.Fatalf("got %q", text)
	}
}

func TestRecognizeFallbackOnEmptyPrimary(t *testing.T) {
	client := &fakeVisionClient{
		responses: map[string]string{"primary": "   ", "fallback": "recovered text"},
	}
	text, err := newTestEngine(client).Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "recovered text" {
		t.Fatalf("got %q", text)
	}
}

func TestRecognizeBothModelsFail(t *testing.T) {
	client := &fakeVisionClient{
		errs: map[string]error{
			"primary":  errors.New("down"),
			"fallback": errors.New("also down"),
		},
	}
	text, err := newTestEngine(client).Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestRecognizeNoFallbackConfigured(t *testing.T) {
	client := &fakeVisionClient{errs: map[string]error{"primary": errors.New("down")}}
	engine := NewEngine(NewEngineParams{Client: client, PrimaryModel: "primary"})
	_, err := engine.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("expected 1 call, got %d", client.callCount())
	}
}

func TestRecognizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeVisionClient{errs: map[string]error{"primary": ctx.Err()}}
	_, err := newTestEngine(client).Recognize(ctx, []byte("img"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type indexedVisionClient struct {
	fakeVisionClient
	byPayload map[string]string
	failOn    string
}

func (c *indexedVisionClient) DescribeImage(_ context.Context, model string, _ string, img ai.ImagePayload) (string, error) {
	if img.Base64 == c.failOn {
		return "", errors.New("unreadable page")
	}
	return c.byPayload[img.Base64], nil
}

func TestProcessImagesPreservesOrder(t *testing.T) {
	pages := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	client := &indexedVisionClient{
		byPayload: map[string]string{
			payloadKey(pages[0]): "first",
			payloadKey(pages[1]): "second",
			payloadKey(pages[2]): "third",
		},
	}

	texts, err := newTestEngine(client).ProcessImages(context.Background(), pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("page %d: got %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestProcessImagesFailedPageLeavesGap(t *testing.T) {
	pages := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	client := &indexedVisionClient{
		byPayload: map[string]string{
			payloadKey(pages[0]): "first",
			payloadKey(pages[2]): "third",
		},
	}
	// Both models hit the same failing payload.
	client.failOn = payloadKey(pages[1])

	texts, err := newTestEngine(client).ProcessImages(context.Background(), pages)
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed annotation, got %v", err)
	}
	if texts[0] != "first" || texts[1] != "" || texts[2] != "third" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}

func payloadKey(img []byte) string {
	return base64.StdEncoding.EncodeToString(img)
}

func TestPreprocessImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	cleaned, err := preprocessImage(buf.Bytes())
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(cleaned))
	if err != nil {
		t.Fatalf("decode cleaned image: %v", err)
	}
	if decoded.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v vs %v", decoded.Bounds(), src.Bounds())
	}
}

func TestPreprocessImageRejectsGarbage(t *testing.T) {
	if _, err := preprocessImage([]byte("not a png")); err == nil {
		t.Fatalf("expected error for invalid image data")
	}
}
