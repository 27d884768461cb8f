package events

import (
	"context"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/domain"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
)

// Publisher is the transport export events are published through
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// ExportEventPublisher publishes export lifecycle events
type ExportEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewExportEventPublisher creates a new export event publisher
func NewExportEventPublisher(publisher Publisher, log *logger.Logger) *ExportEventPublisher {
	return &ExportEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishExportCompleted publishes an event for a delivered export.
// No-op when messaging is disabled.
func (p *ExportEventPublisher) PublishExportCompleted(ctx context.Context, job *domain.ExportJob) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.ExportCompletedEvent{
		ExportID:    job.ExportID,
		WorkspaceID: job.WorkspaceID,
		Filename:    job.Filename,
		Format:      string(job.Format),
		Scope:       string(job.Scope),
		RecordCount: job.RecordCount,
		Tier:        job.Tier,
		Path:        job.Path,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("export_id", job.ExportID).Msg("failed to publish export completed event")
	}
}

// PublishExportFailed publishes an event for an export that settled
// without delivery; the outcome field distinguishes canceled, unsupported
// and failed. No-op when messaging is disabled.
func (p *ExportEventPublisher) PublishExportFailed(ctx context.Context, job *domain.ExportJob) {
	if p == nil || p.publisher == nil {
		return
	}

	data := messaging.ExportFailedEvent{
		ExportID:    job.ExportID,
		WorkspaceID: job.WorkspaceID,
		Filename:    job.Filename,
		Format:      string(job.Format),
		Outcome:     string(job.Status),
		Error:       job.Error,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportFailed, data); err != nil {
		p.logger.Error().Err(err).Str("export_id", job.ExportID).Msg("failed to publish export failed event")
	}
}
