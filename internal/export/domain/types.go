package domain

import "time"

// Status of an export job. Every job settles in exactly one of the four
// terminal states; "pending" only exists while the delivery chain runs.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDelivered   Status = "delivered"
	StatusCanceled    Status = "canceled"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// Format of the produced file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Valid reports whether the format is one the service can produce
func (f Format) Valid() bool {
	switch f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return true
	}
	return false
}

// MimeType returns the content type the file is delivered with
func (f Format) MimeType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv;charset=utf-8"
	}
}

// Extension returns the canonical filename extension including the dot
func (f Format) Extension() string {
	switch f {
	case FormatXLSX:
		return ".xlsx"
	case FormatPDF:
		return ".pdf"
	default:
		return ".csv"
	}
}

// Scope selects which workspace records are exported
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeFlagged Scope = "flagged"
)

// Valid reports whether the scope is known
func (s Scope) Valid() bool {
	return s == ScopeAll || s == ScopeFlagged
}

// ExportJob tracks one export through the delivery chain
type ExportJob struct {
	ExportID    string    `json:"export_id"`
	WorkspaceID string    `json:"workspace_id"`
	Filename    string    `json:"filename"`
	Format      Format    `json:"format"`
	Scope       Scope     `json:"scope"`
	Status      Status    `json:"status"`
	RecordCount int       `json:"record_count"`
	Tier        string    `json:"tier,omitempty"`
	Path        string    `json:"path,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportAuditEntry represents a row in the export_audit table
type ExportAuditEntry struct {
	ID          string    `db:"id" json:"id"`
	WorkspaceID string    `db:"workspace_id" json:"workspace_id"`
	Filename    string    `db:"filename" json:"filename"`
	Format      string    `db:"format" json:"format"`
	Scope       string    `db:"scope" json:"scope"`
	RecordCount int       `db:"record_count" json:"record_count"`
	Tier        string    `db:"tier" json:"tier,omitempty"`
	Outcome     string    `db:"outcome" json:"outcome"`
	Error       string    `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
