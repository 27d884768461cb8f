package llm

import (
	"context"
	"errors"
)

// ErrNoAPIKey is returned when a client is constructed without credentials
var ErrNoAPIKey = errors.New("llm: no API key configured")

// Request carries the prompt and an optional inline document for a
// structured completion.
type Request struct {
	System   string
	Prompt   string
	FileData []byte // optional inline attachment, never retained by the client
	MimeType string
}

// Client generates a structured JSON completion for a request.
// Implementations must return the raw JSON text produced by the model
// so the caller can validate it against a schema.
type Client interface {
	// Name returns the provider name for logging and audit
	Name() string

	// GenerateJSON sends the request and returns the model's JSON output
	GenerateJSON(ctx context.Context, req Request) ([]byte, error)

	// SupportsMimeType reports whether the provider accepts the given
	// attachment type
	SupportsMimeType(mimeType string) bool
}

// TextGenerator is the free-form counterpart of Client. Both provider
// clients implement it; callers that want prose accept this interface
// instead of Client.
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, req Request) (string, error)
}
