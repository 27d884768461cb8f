package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/pkg/database"
)

// AuditRepository handles extraction audit persistence
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new extraction audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *domain.ExtractionAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO extraction_audit (id, job_id, workspace_id, file_count, record_count, providers, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID,
		entry.JobID,
		entry.WorkspaceID,
		entry.FileCount,
		entry.RecordCount,
		entry.Providers,
		entry.DurationMs,
	).Scan(&entry.CreatedAt)
}
