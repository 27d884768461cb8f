package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/events"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/extractor"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/storage"
	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
)

// UploadedFile is one document received for extraction
type UploadedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// RecordSink receives extracted records for a workspace
type RecordSink interface {
	AppendRecords(workspaceID string, records []domain.Record) error
}

// AuditRepository persists extraction audit entries
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.ExtractionAuditEntry) error
}

// Service orchestrates extraction: dispatch files to providers in parallel,
// collect settled results, append records to the workspace
type Service struct {
	registry *extractor.Registry
	jobs     *storage.JobStore
	sink     RecordSink
	notifier *notify.Center
	audits   AuditRepository
	events   *events.ExtractionEventPublisher
	workers  int
	log      *logger.Logger
}

// NewService creates a new extraction service. notifier, audits and
// eventPublisher may be nil when the matching backend is disabled.
func NewService(
	registry *extractor.Registry,
	jobs *storage.JobStore,
	sink RecordSink,
	notifier *notify.Center,
	audits AuditRepository,
	eventPublisher *events.ExtractionEventPublisher,
	workers int,
	log *logger.Logger,
) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		registry: registry,
		jobs:     jobs,
		sink:     sink,
		notifier: notifier,
		audits:   audits,
		events:   eventPublisher,
		workers:  workers,
		log:      log,
	}
}

// StartExtraction creates a new extraction job and processes the uploaded
// files asynchronously. Returns the job immediately so the caller can poll
// for results. Document bytes are zeroed after each file is processed.
func (s *Service) StartExtraction(ctx context.Context, workspaceID string, files []UploadedFile) (*domain.ExtractionJob, error) {
	jobID := storage.GenerateJobID()

	job := &domain.ExtractionJob{
		JobID:       jobID,
		WorkspaceID: workspaceID,
		Status:      domain.StatusProcessing,
		CreatedAt:   time.Now(),
	}
	s.jobs.StoreJob(job)

	// Process asynchronously with a detached context so request
	// cancellation doesn't kill in-flight provider calls. Only the
	// request ID crosses over, for event correlation.
	go s.processAsync(httputil.GetRequestID(ctx), jobID, workspaceID, files)

	return s.jobs.GetJob(jobID), nil
}

// GetJob retrieves an extraction job by ID
func (s *Service) GetJob(jobID string) *domain.ExtractionJob {
	return s.jobs.GetJob(jobID)
}

// SupportedMimeType reports whether any registered extractor handles the type
func (s *Service) SupportedMimeType(mimeType string) bool {
	return s.registry.FindExtractor(mimeType) != nil
}

func (s *Service) processAsync(correlationID, jobID, workspaceID string, files []UploadedFile) {
	ctx := messaging.WithCorrelationID(context.Background(), correlationID)
	start := time.Now()

	// Fan out over a bounded worker pool; results keep input order
	results := make([]domain.FileResult, len(files))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f UploadedFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.processFile(ctx, jobID, f)
		}(i, f)
	}
	wg.Wait()

	var records []domain.Record
	var providers []string
	seen := make(map[string]bool)
	failed := 0
	for _, r := range results {
		if r.Status == domain.FileFailed {
			failed++
			s.notifier.Push(workspaceID, notify.LevelError, "notifications.extraction_failed", map[string]string{
				"file":  r.FileName,
				"error": r.Error,
			})
			continue
		}
		records = append(records, r.Records...)
		if r.Provider != "" && !seen[r.Provider] {
			seen[r.Provider] = true
			providers = append(providers, r.Provider)
		}
	}

	if len(records) > 0 {
		if err := s.sink.AppendRecords(workspaceID, records); err != nil {
			s.log.Error().Err(err).
				Str("job_id", jobID).
				Str("workspace_id", workspaceID).
				Msg("failed to append extracted records to workspace")
			s.events.PublishExtractionFailed(ctx, jobID, workspaceID, len(files), err.Error())
			s.jobs.UpdateJob(jobID, func(j *domain.ExtractionJob) {
				j.Status = domain.StatusFailed
				j.Files = results
				j.Error = err.Error()
			})
			return
		}
	}

	status := domain.StatusCompleted
	var jobErr string
	if len(files) > 0 && failed == len(files) {
		status = domain.StatusFailed
		jobErr = fmt.Sprintf("extraction failed for all %d file(s)", len(files))
	}

	durationMs := time.Since(start).Milliseconds()

	if status == domain.StatusFailed {
		s.log.Error().
			Str("job_id", jobID).
			Int("file_count", len(files)).
			Msg("extraction failed for every file")
		s.events.PublishExtractionFailed(ctx, jobID, workspaceID, len(files), jobErr)
	} else {
		// Write audit log (async, non-blocking)
		go s.writeAuditEntry(ctx, jobID, workspaceID, len(files), len(records), providers, durationMs)

		s.notifier.Push(workspaceID, notify.LevelSuccess, "notifications.extraction_completed", map[string]string{
			"count": strconv.Itoa(len(records)),
			"files": strconv.Itoa(len(files) - failed),
		})
		s.events.PublishExtractionCompleted(ctx, jobID, workspaceID, len(files), len(records), providers, durationMs)

		s.log.Info().
			Str("job_id", jobID).
			Int("file_count", len(files)).
			Int("failed_files", failed).
			Int("record_count", len(records)).
			Int64("duration_ms", durationMs).
			Msg("extraction completed")
	}

	// The job store update comes last so a terminal status is only
	// observable once the notifications and events are out.
	s.jobs.UpdateJob(jobID, func(j *domain.ExtractionJob) {
		j.Status = status
		j.Files = results
		j.RecordCount = len(records)
		j.Error = jobErr
	})
}

// processFile runs one file through the capable extractors in order,
// falling through to the next provider on failure.
func (s *Service) processFile(ctx context.Context, jobID string, f UploadedFile) domain.FileResult {
	start := time.Now()
	defer storage.ZeroBytes(f.Data)

	extractors := s.registry.FindExtractors(f.MimeType)
	if len(extractors) == 0 {
		return domain.FileResult{
			FileName:   f.Name,
			Status:     domain.FileFailed,
			Error:      fmt.Sprintf("no extractor available for %s", f.MimeType),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	var lastErr error
	for _, ex := range extractors {
		s.log.Info().
			Str("job_id", jobID).
			Str("file", f.Name).
			Str("extractor", ex.Name()).
			Msg("trying extraction")

		records, err := ex.Extract(ctx, f.Data, f.Name, f.MimeType)
		if err == nil {
			return domain.FileResult{
				FileName:   f.Name,
				Status:     domain.FileCompleted,
				Provider:   ex.Name(),
				Records:    records,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
		lastErr = err
		s.log.Warn().Err(err).
			Str("job_id", jobID).
			Str("file", f.Name).
			Str("extractor", ex.Name()).
			Msg("extractor failed, trying next")
	}

	return domain.FileResult{
		FileName:   f.Name,
		Status:     domain.FileFailed,
		Error:      lastErr.Error(),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// writeAuditEntry records the extraction run in the audit table
func (s *Service) writeAuditEntry(ctx context.Context, jobID, workspaceID string, fileCount, recordCount int, providers []string, durationMs int64) {
	if s.audits == nil {
		return
	}

	entry := &domain.ExtractionAuditEntry{
		JobID:       jobID,
		WorkspaceID: workspaceID,
		FileCount:   fileCount,
		RecordCount: recordCount,
		Providers:   strings.Join(providers, ","),
		DurationMs:  durationMs,
	}

	if err := s.audits.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("failed to write extraction audit entry")
	}
}
