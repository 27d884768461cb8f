package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/domain"
	"github.com/ledgerscan/ledgerscan-backend/pkg/database"
)

// ExportAuditRepository handles export audit persistence
type ExportAuditRepository struct {
	db *database.DB
}

// NewExportAuditRepository creates a new export audit repository
func NewExportAuditRepository(db *database.DB) *ExportAuditRepository {
	return &ExportAuditRepository{db: db}
}

// Create creates a new export audit entry
func (r *ExportAuditRepository) Create(ctx context.Context, entry *domain.ExportAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO export_audit (id, workspace_id, filename, format, scope, record_count, tier, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID,
		entry.WorkspaceID,
		entry.Filename,
		entry.Format,
		entry.Scope,
		entry.RecordCount,
		entry.Tier,
		entry.Outcome,
		entry.Error,
	).Scan(&entry.CreatedAt)
}

// List lists a workspace's export audit entries, newest first
func (r *ExportAuditRepository) List(ctx context.Context, workspaceID string, limit, offset int) ([]domain.ExportAuditEntry, error) {
	query := `
		SELECT id, workspace_id, filename, format, scope, record_count,
		       COALESCE(tier, '') as tier, outcome, COALESCE(error, '') as error, created_at
		FROM export_audit
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryxContext(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.ExportAuditEntry{}
	for rows.Next() {
		var entry domain.ExportAuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.WorkspaceID, &entry.Filename, &entry.Format,
			&entry.Scope, &entry.RecordCount, &entry.Tier, &entry.Outcome,
			&entry.Error, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
