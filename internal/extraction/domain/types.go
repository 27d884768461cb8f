package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus represents the processing state of an extraction job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// FileStatus represents the outcome for a single uploaded file
type FileStatus string

const (
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// Record is a single invoice line extracted from a source document.
// String fields hold "" when the source document did not contain the
// value; amounts are null-aware so a missing amount stays distinguishable
// from zero.
type Record struct {
	ID            string              `json:"id"`
	Date          string              `json:"date"`
	InvoiceNumber string              `json:"invoiceNumber"`
	PartyName     string              `json:"partyName"`
	TaxIDNumber   string              `json:"taxIdNumber"`
	Particulars   string              `json:"particulars"`
	TaxableAmount decimal.NullDecimal `json:"taxableAmount"`
	TaxAmount     decimal.NullDecimal `json:"taxAmount"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	SourceFile    string              `json:"sourceFileName"`
	TaxCreditFlag bool                `json:"taxCreditFlag"`
}

// FileResult represents the extraction outcome for one uploaded file
type FileResult struct {
	FileName   string     `json:"file_name"`
	Status     FileStatus `json:"status"`
	Provider   string     `json:"provider,omitempty"`
	Records    []Record   `json:"records,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// ExtractionJob represents a complete extraction job over a batch of files
type ExtractionJob struct {
	JobID       string       `json:"job_id"`
	WorkspaceID string       `json:"workspace_id"`
	Status      JobStatus    `json:"status"`
	Files       []FileResult `json:"files,omitempty"`
	RecordCount int          `json:"record_count"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ExtractionAuditEntry records a completed extraction run
type ExtractionAuditEntry struct {
	ID          string    `db:"id"`
	JobID       string    `db:"job_id"`
	WorkspaceID string    `db:"workspace_id"`
	FileCount   int       `db:"file_count"`
	RecordCount int       `db:"record_count"`
	Providers   string    `db:"providers"`
	DurationMs  int64     `db:"duration_ms"`
	CreatedAt   time.Time `db:"created_at"`
}
