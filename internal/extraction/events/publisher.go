package events

import (
	"context"

	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
)

// Publisher is the transport extraction events are published through
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// ExtractionEventPublisher publishes extraction lifecycle events
type ExtractionEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewExtractionEventPublisher creates a new extraction event publisher
func NewExtractionEventPublisher(publisher Publisher, log *logger.Logger) *ExtractionEventPublisher {
	return &ExtractionEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishExtractionCompleted publishes an extraction completed event.
// No-op when messaging is disabled.
func (p *ExtractionEventPublisher) PublishExtractionCompleted(ctx context.Context, jobID, workspaceID string, fileCount, recordCount int, providers []string, durationMs int64) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.ExtractionCompletedEvent{
		JobID:       jobID,
		WorkspaceID: workspaceID,
		FileCount:   fileCount,
		RecordCount: recordCount,
		Providers:   providers,
		DurationMs:  durationMs,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExtractionCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish extraction completed event")
	}
}

// PublishExtractionFailed publishes an extraction failed event.
// No-op when messaging is disabled.
func (p *ExtractionEventPublisher) PublishExtractionFailed(ctx context.Context, jobID, workspaceID string, fileCount int, errMsg string) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.ExtractionFailedEvent{
		JobID:       jobID,
		WorkspaceID: workspaceID,
		FileCount:   fileCount,
		Error:       errMsg,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExtractionFailed, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish extraction failed event")
	}
}
