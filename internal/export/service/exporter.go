package service

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/delivery"
	exportdomain "github.com/ledgerscan/ledgerscan-backend/internal/export/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/events"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/format"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/storage"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
)

// RecordSource yields the ordered records of a workspace
type RecordSource interface {
	ListRecords(workspaceID string) ([]domain.Record, error)
}

// AuditRepository persists export audit rows. Optional; nil disables
// auditing.
type AuditRepository interface {
	Create(ctx context.Context, entry *exportdomain.ExportAuditEntry) error
	List(ctx context.Context, workspaceID string, limit, offset int) ([]exportdomain.ExportAuditEntry, error)
}

// ExportService renders workspace records into a file and walks the
// prioritized delivery chain. Delivery never returns an error to the
// caller: every outcome is reported through the job status, the
// notification feed, logs, and the optional audit row and event.
type ExportService struct {
	records  RecordSource
	exports  *storage.ExportStore
	savers   []delivery.Saver
	notifier *notify.Center
	audits   AuditRepository
	events   *events.ExportEventPublisher
	logger   *logger.Logger
}

// NewExportService creates a new export service. The saver slice is the
// delivery chain in priority order; notifier, audits and eventPublisher
// may be nil.
func NewExportService(
	records RecordSource,
	exports *storage.ExportStore,
	savers []delivery.Saver,
	notifier *notify.Center,
	audits AuditRepository,
	eventPublisher *events.ExportEventPublisher,
	log *logger.Logger,
) *ExportService {
	return &ExportService{
		records:  records,
		exports:  exports,
		savers:   savers,
		notifier: notifier,
		audits:   audits,
		events:   eventPublisher,
		logger:   log,
	}
}

// StartExport snapshots the workspace's records and starts delivery in
// the background. Empty input is not an error: no job is created, no file
// is produced, and the caller gets (nil, nil) alongside a warning in the
// notification feed.
func (s *ExportService) StartExport(ctx context.Context, workspaceID, filename string, f exportdomain.Format, scope exportdomain.Scope) (*exportdomain.ExportJob, error) {
	records, err := s.records.ListRecords(workspaceID)
	if err != nil {
		return nil, err
	}
	records = filterByScope(records, scope)
	filename = normalizeFilename(filename, f)

	if len(records) == 0 {
		s.logger.Warn().
			Str("workspace_id", workspaceID).
			Str("scope", string(scope)).
			Msg("nothing to export")
		s.notifier.Push(workspaceID, notify.LevelWarning, "notifications.export_empty", nil)
		return nil, nil
	}

	job := &exportdomain.ExportJob{
		ExportID:    uuid.New().String(),
		WorkspaceID: workspaceID,
		Filename:    filename,
		Format:      f,
		Scope:       scope,
		Status:      exportdomain.StatusPending,
		RecordCount: len(records),
		CreatedAt:   time.Now(),
	}
	s.exports.Store(job)

	s.logger.Info().
		Str("export_id", job.ExportID).
		Str("workspace_id", workspaceID).
		Str("filename", filename).
		Str("format", string(f)).
		Int("records", len(records)).
		Msg("export started")

	go s.deliver(httputil.GetRequestID(ctx), *job, records)

	snapshot := *job
	return &snapshot, nil
}

// GetExport returns an export job scoped to its workspace
func (s *ExportService) GetExport(workspaceID, exportID string) (*exportdomain.ExportJob, error) {
	job := s.exports.Get(exportID)
	if job == nil || job.WorkspaceID != workspaceID {
		return nil, errors.ExportNotFound()
	}
	return job, nil
}

// ListAuditEntries returns the workspace's export audit rows, newest
// first. Only routed when auditing is configured.
func (s *ExportService) ListAuditEntries(ctx context.Context, workspaceID string, limit, offset int) ([]exportdomain.ExportAuditEntry, error) {
	return s.audits.List(ctx, workspaceID, limit, offset)
}

// deliver walks the chain until a tier settles the export. It runs on a
// detached context so a closed client connection never aborts a save in
// progress, and no timeout is imposed on any tier.
func (s *ExportService) deliver(correlationID string, job exportdomain.ExportJob, records []domain.Record) {
	ctx := messaging.WithCorrelationID(context.Background(), correlationID)

	content, err := buildContent(job.Format, records)
	if err != nil {
		s.logger.Error().Err(err).Str("export_id", job.ExportID).Msg("failed to build export content")
		job.Status = exportdomain.StatusFailed
		job.Error = err.Error()
		s.settle(ctx, &job)
		return
	}

	req := delivery.SaveRequest{
		Filename: job.Filename,
		Content:  content,
		MimeType: job.Format.MimeType(),
	}

	// Report formats skip the interactive tiers and go straight to the
	// download store. Only CSV walks the full chain.
	chain := s.savers
	if job.Format != exportdomain.FormatCSV {
		chain = stagingTiers(s.savers)
	}

	attempted := false
	var lastErr error
	for _, saver := range chain {
		if !saver.Available() {
			s.logger.Debug().Str("export_id", job.ExportID).Str("tier", saver.Name()).Msg("delivery tier not available")
			continue
		}
		attempted = true

		outcome, err := saver.AttemptSave(ctx, req)
		if err == nil {
			job.Status = exportdomain.StatusDelivered
			job.Tier = saver.Name()
			job.Path = outcome.Path
			s.settle(ctx, &job)
			return
		}
		if stderrors.Is(err, delivery.ErrCanceled) {
			job.Status = exportdomain.StatusCanceled
			job.Tier = saver.Name()
			s.settle(ctx, &job)
			return
		}

		s.logger.Warn().Err(err).
			Str("export_id", job.ExportID).
			Str("tier", saver.Name()).
			Msg("delivery tier failed, trying next")
		lastErr = err
	}

	if !attempted {
		job.Status = exportdomain.StatusUnsupported
		job.Error = "no delivery method is configured in this environment"
	} else {
		job.Status = exportdomain.StatusFailed
		job.Error = lastErr.Error()
	}

	s.retainContent(&job, content)
	s.settle(ctx, &job)
}

// settle records the terminal state everywhere it is reported:
// notification feed, structured log, optional event and audit row, and
// finally the job store. The store update comes last so a terminal
// status is only observable once the notification and event are out.
func (s *ExportService) settle(ctx context.Context, job *exportdomain.ExportJob) {
	switch job.Status {
	case exportdomain.StatusDelivered:
		s.logger.Info().
			Str("export_id", job.ExportID).
			Str("tier", job.Tier).
			Str("path", job.Path).
			Msg("export delivered")
		s.notifier.Push(job.WorkspaceID, notify.LevelSuccess, deliveredMessageKey(job), deliveredMessageParams(job))
		s.events.PublishExportCompleted(ctx, job)
	case exportdomain.StatusCanceled:
		s.logger.Info().
			Str("export_id", job.ExportID).
			Str("tier", job.Tier).
			Msg("export canceled by user")
		s.notifier.Push(job.WorkspaceID, notify.LevelWarning, "notifications.export_canceled", nil)
		s.events.PublishExportFailed(ctx, job)
	case exportdomain.StatusUnsupported:
		s.notifier.Push(job.WorkspaceID, notify.LevelError, "notifications.export_unsupported", map[string]string{
			"error": job.Error,
		})
		s.events.PublishExportFailed(ctx, job)
	default:
		s.notifier.Push(job.WorkspaceID, notify.LevelError, "notifications.export_failed", map[string]string{
			"filename": job.Filename,
			"error":    job.Error,
		})
		s.events.PublishExportFailed(ctx, job)
	}

	if s.audits != nil {
		go s.writeAuditEntry(*job)
	}

	s.exports.Update(job.ExportID, func(stored *exportdomain.ExportJob) {
		stored.Status = job.Status
		stored.Tier = job.Tier
		stored.Path = job.Path
		stored.Error = job.Error
	})
}

func deliveredMessageKey(job *exportdomain.ExportJob) string {
	switch {
	case job.Tier == delivery.TierDownload:
		return "notifications.export_download_ready"
	case job.Path != "":
		return "notifications.export_delivered_path"
	default:
		return "notifications.export_delivered"
	}
}

func deliveredMessageParams(job *exportdomain.ExportJob) map[string]string {
	params := map[string]string{"filename": job.Filename}
	if job.Tier != delivery.TierDownload && job.Path != "" {
		params["path"] = job.Path
	}
	return params
}

func stagingTiers(savers []delivery.Saver) []delivery.Saver {
	staged := make([]delivery.Saver, 0, 1)
	for _, s := range savers {
		if s.Name() == delivery.TierDownload {
			staged = append(staged, s)
		}
	}
	return staged
}

// retainContent writes the undelivered file into the diagnostic log so
// the rows are recoverable by hand.
func (s *ExportService) retainContent(job *exportdomain.ExportJob, content []byte) {
	ev := s.logger.Error().
		Str("export_id", job.ExportID).
		Str("filename", job.Filename).
		Str("error", job.Error)
	if job.Format == exportdomain.FormatCSV {
		ev = ev.Str("content", string(content))
	} else {
		ev = ev.Str("content_base64", base64.StdEncoding.EncodeToString(content))
	}
	ev.Msg("export not delivered, content retained for manual recovery")
}

func (s *ExportService) writeAuditEntry(job exportdomain.ExportJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &exportdomain.ExportAuditEntry{
		WorkspaceID: job.WorkspaceID,
		Filename:    job.Filename,
		Format:      string(job.Format),
		Scope:       string(job.Scope),
		RecordCount: job.RecordCount,
		Tier:        job.Tier,
		Outcome:     string(job.Status),
		Error:       job.Error,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("export_id", job.ExportID).Msg("failed to write export audit entry")
	}
}

func buildContent(f exportdomain.Format, records []domain.Record) ([]byte, error) {
	switch f {
	case exportdomain.FormatXLSX:
		return format.BuildXLSX(records)
	case exportdomain.FormatPDF:
		return format.BuildPDF(records)
	default:
		return format.BuildCSV(records), nil
	}
}

func filterByScope(records []domain.Record, scope exportdomain.Scope) []domain.Record {
	if scope != exportdomain.ScopeFlagged {
		return records
	}
	flagged := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if r.TaxCreditFlag {
			flagged = append(flagged, r)
		}
	}
	return flagged
}

func normalizeFilename(name string, f exportdomain.Format) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "export"
	}
	if !strings.HasSuffix(strings.ToLower(name), f.Extension()) {
		name += f.Extension()
	}
	return name
}
