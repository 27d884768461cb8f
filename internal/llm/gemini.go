package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiClient calls the Google Gemini REST API. Using
// responseMimeType=application/json forces the model to return plain JSON,
// so no markdown fence stripping is needed.
type GeminiClient struct {
	apiKey          string
	model           string
	baseURL         string
	maxOutputTokens int
	temperature     float32
	httpClient      *http.Client
}

// GeminiOptions configures a GeminiClient
type GeminiOptions struct {
	APIKey          string
	Model           string
	BaseURL         string // e.g. https://generativelanguage.googleapis.com/v1beta
	MaxOutputTokens int
	Temperature     float32
	Timeout         time.Duration
}

// NewGeminiClient creates a Gemini-backed client
func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
	}

	return &GeminiClient{
		apiKey:          opts.APIKey,
		model:           opts.Model,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		maxOutputTokens: opts.MaxOutputTokens,
		temperature:     opts.Temperature,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

// SupportsMimeType reports the attachment types the Gemini API accepts inline
func (c *GeminiClient) SupportsMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  genConfig       `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type genConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	Temperature      float32 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateJSON sends the request to Gemini and returns the model's JSON text
func (c *GeminiClient) GenerateJSON(ctx context.Context, r Request) ([]byte, error) {
	return c.generate(ctx, r, "application/json")
}

// GenerateText sends the request to Gemini and returns plain prose
func (c *GeminiClient) GenerateText(ctx context.Context, r Request) (string, error) {
	text, err := c.generate(ctx, r, "text/plain")
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func (c *GeminiClient) generate(ctx context.Context, r Request, responseMimeType string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	parts := []geminiPart{{Text: r.Prompt}}
	if len(r.FileData) > 0 {
		parts = append(parts, geminiPart{
			InlineData: &geminiBlob{
				MimeType: r.MimeType,
				Data:     base64.StdEncoding.EncodeToString(r.FileData),
			},
		})
	}

	payload := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: parts,
			},
		},
		GenerationConfig: genConfig{
			ResponseMIMEType: responseMimeType,
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxOutputTokens,
		},
	}
	if r.System != "" {
		payload.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: r.System}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gemini: request canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiResponse
		if jsonErr := json.Unmarshal(rawBody, &errResp); jsonErr == nil && errResp.Error != nil {
			return nil, fmt.Errorf("gemini: error %d: %s", errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("gemini: HTTP %d", resp.StatusCode)
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(rawBody, &gemResp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: empty response")
	}

	text := strings.TrimSpace(gemResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, fmt.Errorf("gemini: empty candidate text")
	}

	return []byte(text), nil
}
