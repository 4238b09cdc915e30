package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/litigraph/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// DescribeImage sends a vision request with a base64-encoded page image and
// returns the model's transcription based on the provided prompt.
func (c *VisionOpenAIClient) DescribeImage(
	ctx context.Context,
	model string,
	prompt string,
	image ai.ImagePayload,
) (string, error) {
	url := fmt.Sprintf("%s%s", image.FileType, image.Base64)
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: url,
				}),
			}),
		},
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.Client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	duration := time.Since(start).Milliseconds()

	metrics := ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	}
	c.modifyMetrics(metrics)

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("vision response contained no choices for model %s", model)
	}

	return response.Choices[0].Message.Content, nil
}
