package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the OpenAI chat completions API through the official
// community SDK. Attachments are sent as data-URL image parts, so only
// image types are supported.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// OpenAIOptions configures an OpenAIClient
type OpenAIOptions struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// NewOpenAIClient creates an OpenAI-backed client
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}

	var client *openai.Client
	if opts.APIKey != "" {
		client = openai.NewClient(opts.APIKey)
	}

	return &OpenAIClient{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// SupportsMimeType reports the attachment types the vision endpoint accepts
func (c *OpenAIClient) SupportsMimeType(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}

// GenerateJSON sends the request to OpenAI and returns the model's JSON text
func (c *OpenAIClient) GenerateJSON(ctx context.Context, r Request) ([]byte, error) {
	text, err := c.complete(ctx, r, true)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// GenerateText sends the request to OpenAI and returns plain prose
func (c *OpenAIClient) GenerateText(ctx context.Context, r Request) (string, error) {
	return c.complete(ctx, r, false)
}

func (c *OpenAIClient) complete(ctx context.Context, r Request, jsonMode bool) (string, error) {
	if c.client == nil {
		return "", ErrNoAPIKey
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.System,
		},
	}

	if len(r.FileData) > 0 {
		if !c.SupportsMimeType(r.MimeType) {
			return "", fmt.Errorf("openai: unsupported attachment type %s", r.MimeType)
		}
		dataURL := "data:" + r.MimeType + ";base64," + base64.StdEncoding.EncodeToString(r.FileData)
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: r.Prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: r.Prompt,
		})
	}

	completionReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    messages,
	}
	if jsonMode {
		completionReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		return "", fmt.Errorf("openai: completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai: empty completion")
	}

	return text, nil
}
