package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ExtractionAuditFixture represents a row in the extraction_audit table
type ExtractionAuditFixture struct {
	ID          string
	JobID       string
	WorkspaceID string
	FileCount   int
	RecordCount int
	Providers   string
	DurationMs  int64
	CreatedAt   time.Time
}

// ExportAuditFixture represents a row in the export_audit table
type ExportAuditFixture struct {
	ID          string
	WorkspaceID string
	Filename    string
	Format      string
	Scope       string
	RecordCount int
	Tier        string
	Outcome     string
	Error       string
	CreatedAt   time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// ExtractionAudit creates an extraction audit fixture with defaults
func (f *FixtureFactory) ExtractionAudit(opts ...func(*ExtractionAuditFixture)) ExtractionAuditFixture {
	seq := f.nextSeq()

	audit := ExtractionAuditFixture{
		ID:          uuid.New().String(),
		JobID:       uuid.New().String(),
		WorkspaceID: uuid.New().String(),
		FileCount:   seq,
		RecordCount: seq * 2,
		Providers:   "gemini",
		DurationMs:  1200,
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&audit)
	}

	return audit
}

// WithJobID sets the extraction audit job ID
func WithJobID(jobID string) func(*ExtractionAuditFixture) {
	return func(a *ExtractionAuditFixture) {
		a.JobID = jobID
	}
}

// WithProviders sets the extraction audit provider list
func WithProviders(providers string) func(*ExtractionAuditFixture) {
	return func(a *ExtractionAuditFixture) {
		a.Providers = providers
	}
}

// WithExtractionWorkspace sets the extraction audit workspace ID
func WithExtractionWorkspace(workspaceID string) func(*ExtractionAuditFixture) {
	return func(a *ExtractionAuditFixture) {
		a.WorkspaceID = workspaceID
	}
}

// ExportAudit creates an export audit fixture with defaults
func (f *FixtureFactory) ExportAudit(opts ...func(*ExportAuditFixture)) ExportAuditFixture {
	seq := f.nextSeq()

	audit := ExportAuditFixture{
		ID:          uuid.New().String(),
		WorkspaceID: uuid.New().String(),
		Filename:    fmt.Sprintf("invoices-%d.csv", seq),
		Format:      "csv",
		Scope:       "all",
		RecordCount: seq,
		Tier:        "bridge",
		Outcome:     "delivered",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&audit)
	}

	return audit
}

// WithFilename sets the export audit filename
func WithFilename(filename string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Filename = filename
	}
}

// WithFormat sets the export audit format
func WithFormat(format string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Format = format
	}
}

// WithScope sets the export audit scope
func WithScope(scope string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Scope = scope
	}
}

// WithOutcome sets the export audit outcome and clears the tier for
// non-delivered outcomes
func WithOutcome(outcome string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Outcome = outcome
		if outcome != "delivered" {
			a.Tier = ""
		}
	}
}

// WithTier sets the export audit delivery tier
func WithTier(tier string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Tier = tier
	}
}

// WithExportError sets the export audit error message
func WithExportError(msg string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.Error = msg
	}
}

// WithExportWorkspace sets the export audit workspace ID
func WithExportWorkspace(workspaceID string) func(*ExportAuditFixture) {
	return func(a *ExportAuditFixture) {
		a.WorkspaceID = workspaceID
	}
}

// BridgeSecret generates a shared secret and its bcrypt hash for bridge
// callback tests
func BridgeSecret() (secret string, hash string) {
	secret = uuid.New().String()
	h, _ := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	return secret, string(h)
}

// DefaultExportAudits returns a standard set of export audit rows covering
// every outcome
func DefaultExportAudits(factory *FixtureFactory) []ExportAuditFixture {
	return []ExportAuditFixture{
		factory.ExportAudit(WithFilename("invoices.csv")),
		factory.ExportAudit(WithFilename("flagged.csv"), WithScope("flagged"), WithTier("download")),
		factory.ExportAudit(WithFilename("canceled.csv"), WithOutcome("canceled")),
		factory.ExportAudit(WithFilename("failed.csv"), WithOutcome("failed"), WithExportError("bridge unreachable")),
	}
}
