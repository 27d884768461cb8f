package extractor

import (
	"context"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
)

// Extractor defines the interface for pulling invoice records out of an
// uploaded document. Implementations wrap different model providers and
// can be swapped without changing the service or handler layer.
type Extractor interface {
	// CanExtract returns true if this extractor handles the given MIME type
	CanExtract(mimeType string) bool

	// Extract returns the invoice records found in the document bytes.
	// The document data should NOT be retained after extraction.
	Extract(ctx context.Context, data []byte, filename, mimeType string) ([]domain.Record, error)

	// Name returns the extractor name for logging/audit
	Name() string
}

// Registry holds all registered extractors and dispatches to the right one
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new extractor registry
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// FindExtractor returns the first extractor that can handle the given MIME type
func (r *Registry) FindExtractor(mimeType string) Extractor {
	for _, e := range r.extractors {
		if e.CanExtract(mimeType) {
			return e
		}
	}
	return nil
}

// FindExtractors returns all extractors that can handle the given MIME type,
// in registration order. This supports fallback: if the first provider fails
// or returns malformed output, the next one can try.
func (r *Registry) FindExtractors(mimeType string) []Extractor {
	var result []Extractor
	for _, e := range r.extractors {
		if e.CanExtract(mimeType) {
			result = append(result, e)
		}
	}
	return result
}
