package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/events"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/extractor"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/service"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/storage"
	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
	"github.com/ledgerscan/ledgerscan-backend/pkg/testutil"
)

// fakeExtractor returns canned records, or an error for file names listed
// in failFiles.
type fakeExtractor struct {
	name      string
	mimes     map[string]bool
	perFile   int
	failFiles map[string]bool
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) CanExtract(mimeType string) bool { return f.mimes[mimeType] }

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, filename, _ string) ([]domain.Record, error) {
	if f.failFiles[filename] {
		return nil, fmt.Errorf("%s: provider rejected %s", f.name, filename)
	}
	records := make([]domain.Record, f.perFile)
	for i := range records {
		records[i] = domain.Record{
			ID:            fmt.Sprintf("%s-%s-%d", f.name, filename, i),
			Date:          "2024-07-20",
			InvoiceNumber: fmt.Sprintf("INV-%d", i),
			PartyName:     "Test Party",
			Particulars:   "Services",
			SourceFile:    filename,
		}
	}
	return records, nil
}

// memorySink collects appended records, optionally failing
type memorySink struct {
	mu      sync.Mutex
	records map[string][]domain.Record
	err     error
}

func newMemorySink() *memorySink {
	return &memorySink{records: make(map[string][]domain.Record)}
}

func (s *memorySink) AppendRecords(workspaceID string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[workspaceID] = append(s.records[workspaceID], records...)
	return nil
}

func (s *memorySink) get(workspaceID string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[workspaceID]
}

type capturingAudits struct {
	mu      sync.Mutex
	entries []*domain.ExtractionAuditEntry
}

func (c *capturingAudits) Create(_ context.Context, entry *domain.ExtractionAuditEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func (c *capturingAudits) all() []*domain.ExtractionAuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.ExtractionAuditEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func pdfFile(name string) service.UploadedFile {
	return service.UploadedFile{Name: name, MimeType: "application/pdf", Data: []byte("%PDF-1.4 " + name)}
}

func waitForJob(t *testing.T, svc *service.Service, jobID string) *domain.ExtractionJob {
	t.Helper()
	testutil.RequireEventually(t, func() bool {
		job := svc.GetJob(jobID)
		return job != nil && job.Status != domain.StatusProcessing
	}, 2*time.Second, 5*time.Millisecond, "extraction job did not settle")
	return svc.GetJob(jobID)
}

func TestStartExtraction_AuditJoinsDistinctProviders(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(
		&fakeExtractor{
			name:    "gemini",
			mimes:   map[string]bool{"application/pdf": true},
			perFile: 1,
		},
		&fakeExtractor{
			name:    "openai",
			mimes:   map[string]bool{"image/png": true},
			perFile: 1,
		},
	)
	jobs := storage.NewJobStore(time.Minute)
	audits := &capturingAudits{}

	svc := service.NewService(registry, jobs, newMemorySink(), nil, audits, nil, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{
		pdfFile("a.pdf"),
		{Name: "b.png", MimeType: "image/png", Data: []byte("png " + "b.png")},
	})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	testutil.RequireEventually(t, func() bool {
		return len(audits.all()) == 1
	}, 2*time.Second, 5*time.Millisecond, "audit entry was not written")
	assert.Equal(t, "gemini,openai", audits.all()[0].Providers)
}

func TestStartExtraction_CompletesAndAppendsRecords(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:    "gemini",
		mimes:   map[string]bool{"application/pdf": true},
		perFile: 2,
	})
	jobs := storage.NewJobStore(time.Minute)
	sink := newMemorySink()
	notifier := notify.NewCenter(time.Minute)
	audits := &capturingAudits{}
	mockPub := testutil.NewMockPublisher()
	pub := events.NewExtractionEventPublisher(mockPub, log)

	svc := service.NewService(registry, jobs, sink, notifier, audits, pub, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{
		pdfFile("a.pdf"),
		pdfFile("b.pdf"),
		pdfFile("c.pdf"),
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.NotEmpty(t, job.JobID)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 6, done.RecordCount)
	require.Len(t, done.Files, 3)

	// results keep upload order
	assert.Equal(t, "a.pdf", done.Files[0].FileName)
	assert.Equal(t, "b.pdf", done.Files[1].FileName)
	assert.Equal(t, "c.pdf", done.Files[2].FileName)
	for _, f := range done.Files {
		assert.Equal(t, domain.FileCompleted, f.Status)
		assert.Equal(t, "gemini", f.Provider)
		assert.Len(t, f.Records, 2)
	}

	assert.Len(t, sink.get("ws-1"), 6)

	testutil.RequireEventually(t, func() bool {
		return len(audits.all()) == 1
	}, 2*time.Second, 5*time.Millisecond, "audit entry was not written")
	entry := audits.all()[0]
	assert.Equal(t, done.JobID, entry.JobID)
	assert.Equal(t, "ws-1", entry.WorkspaceID)
	assert.Equal(t, 3, entry.FileCount)
	assert.Equal(t, 6, entry.RecordCount)
	assert.Equal(t, "gemini", entry.Providers)

	mockPub.AssertEventPublished(t, messaging.EventExtractionCompleted)

	feed := notifier.Drain("ws-1")
	require.Len(t, feed, 1)
	assert.Equal(t, notify.LevelSuccess, feed[0].Level)
	assert.Equal(t, "notifications.extraction_completed", feed[0].MessageKey)
	assert.Equal(t, map[string]string{"count": "6", "files": "3"}, feed[0].Params)
}

func TestStartExtraction_FallsBackToNextProvider(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(
		&fakeExtractor{
			name:      "gemini",
			mimes:     map[string]bool{"application/pdf": true},
			perFile:   1,
			failFiles: map[string]bool{"a.pdf": true},
		},
		&fakeExtractor{
			name:    "openai",
			mimes:   map[string]bool{"application/pdf": true},
			perFile: 1,
		},
	)
	jobs := storage.NewJobStore(time.Minute)
	sink := newMemorySink()

	svc := service.NewService(registry, jobs, sink, nil, nil, nil, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.Len(t, done.Files, 1)
	assert.Equal(t, domain.FileCompleted, done.Files[0].Status)
	assert.Equal(t, "openai", done.Files[0].Provider)
}

func TestStartExtraction_PartialFailureStillCompletes(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:      "gemini",
		mimes:     map[string]bool{"application/pdf": true},
		perFile:   2,
		failFiles: map[string]bool{"bad.pdf": true},
	})
	jobs := storage.NewJobStore(time.Minute)
	sink := newMemorySink()
	notifier := notify.NewCenter(time.Minute)

	svc := service.NewService(registry, jobs, sink, notifier, nil, nil, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{
		pdfFile("good.pdf"),
		pdfFile("bad.pdf"),
	})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, 2, done.RecordCount)
	assert.Equal(t, domain.FileCompleted, done.Files[0].Status)
	assert.Equal(t, domain.FileFailed, done.Files[1].Status)
	assert.Contains(t, done.Files[1].Error, "provider rejected")
	assert.Len(t, sink.get("ws-1"), 2)

	// one failure notice for the bad file, then the summary
	feed := notifier.Drain("ws-1")
	require.Len(t, feed, 2)
	assert.Equal(t, notify.LevelError, feed[0].Level)
	assert.Equal(t, "notifications.extraction_failed", feed[0].MessageKey)
	assert.Equal(t, "bad.pdf", feed[0].Params["file"])
	assert.Contains(t, feed[0].Params["error"], "provider rejected")
	assert.Equal(t, "notifications.extraction_completed", feed[1].MessageKey)
	assert.Equal(t, map[string]string{"count": "2", "files": "1"}, feed[1].Params)
}

func TestStartExtraction_AllFilesFailed(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:      "gemini",
		mimes:     map[string]bool{"application/pdf": true},
		failFiles: map[string]bool{"a.pdf": true, "b.pdf": true},
	})
	jobs := storage.NewJobStore(time.Minute)
	sink := newMemorySink()
	notifier := notify.NewCenter(time.Minute)
	mockPub := testutil.NewMockPublisher()
	pub := events.NewExtractionEventPublisher(mockPub, log)

	svc := service.NewService(registry, jobs, sink, notifier, nil, pub, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{
		pdfFile("a.pdf"),
		pdfFile("b.pdf"),
	})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "all 2 file(s)")
	assert.Empty(t, sink.get("ws-1"))

	mockPub.AssertEventPublished(t, messaging.EventExtractionFailed)

	// each file pushes its own failure notice, no summary when nothing succeeded
	feed := notifier.Drain("ws-1")
	require.Len(t, feed, 2)
	for _, n := range feed {
		assert.Equal(t, notify.LevelError, n.Level)
		assert.Equal(t, "notifications.extraction_failed", n.MessageKey)
	}
}

func TestStartExtraction_NoExtractorForType(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:  "openai",
		mimes: map[string]bool{"image/png": true},
	})
	jobs := storage.NewJobStore(time.Minute)

	svc := service.NewService(registry, jobs, newMemorySink(), nil, nil, nil, 2, log)

	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusFailed, done.Status)
	require.Len(t, done.Files, 1)
	assert.Contains(t, done.Files[0].Error, "no extractor available")
}

func TestStartExtraction_WorkspaceGone(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:    "gemini",
		mimes:   map[string]bool{"application/pdf": true},
		perFile: 1,
	})
	jobs := storage.NewJobStore(time.Minute)
	sink := newMemorySink()
	sink.err = errors.New("workspace not found")

	svc := service.NewService(registry, jobs, sink, nil, nil, nil, 2, log)

	job, err := svc.StartExtraction(context.Background(), "gone", []service.UploadedFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "workspace not found")
}

func TestStartExtraction_ZeroesDocumentBytes(t *testing.T) {
	log := logger.New("test", "test")
	registry := extractor.NewRegistry(&fakeExtractor{
		name:    "gemini",
		mimes:   map[string]bool{"application/pdf": true},
		perFile: 1,
	})
	jobs := storage.NewJobStore(time.Minute)

	svc := service.NewService(registry, jobs, newMemorySink(), nil, nil, nil, 2, log)

	data := []byte("%PDF-1.4 sensitive content")
	job, err := svc.StartExtraction(context.Background(), "ws-1", []service.UploadedFile{
		{Name: "a.pdf", MimeType: "application/pdf", Data: data},
	})
	require.NoError(t, err)

	waitForJob(t, svc, job.JobID)

	zeroed := make([]byte, len(data))
	assert.Equal(t, zeroed, data)
}
