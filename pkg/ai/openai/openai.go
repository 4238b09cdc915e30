package openai

import (
	"math"
	"sync"

	"github.com/litigraph/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// VisionOpenAIClient implements ai.VisionClient against any OpenAI-compatible
// endpoint. Concurrent requests are gated by a weighted semaphore so a large
// OCR batch cannot exhaust the provider's rate limit.
type VisionOpenAIClient struct {
	baseURL string
	apiKey  string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *openai.Client
}

// NewVisionOpenAIClientParams contains configuration for creating a VisionOpenAIClient.
type NewVisionOpenAIClientParams struct {
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

// NewVisionOpenAIClient creates a new OpenAI-backed vision client.
func NewVisionOpenAIClient(params NewVisionOpenAIClientParams) *VisionOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &VisionOpenAIClient{
		baseURL: params.BaseURL,
		apiKey:  params.ApiKey,
		reqLock: semaphore.NewWeighted(maxConcurrent),
		metrics: ai.ModelMetrics{},
		Client:  &client,
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *VisionOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *VisionOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *VisionOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}
