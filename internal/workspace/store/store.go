package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
)

// Workspace describes one record collection
type Workspace struct {
	ID          string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	RecordCount int       `json:"record_count"`
}

type entry struct {
	createdAt time.Time
	touched   time.Time
	records   []domain.Record
}

// RecordStore holds per-workspace record collections in memory. Workspaces
// expire after a TTL measured from their last mutation; records keep
// insertion order, which is also the export row order.
type RecordStore struct {
	mu         sync.RWMutex
	workspaces map[string]*entry
	ttl        time.Duration
	maxRecords int
}

// NewRecordStore creates a new in-memory record store
func NewRecordStore(ttl time.Duration, maxRecords int) *RecordStore {
	s := &RecordStore{
		workspaces: make(map[string]*entry),
		ttl:        ttl,
		maxRecords: maxRecords,
	}
	go s.cleanupLoop()
	return s
}

// CreateWorkspace allocates a new empty workspace
func (s *RecordStore) CreateWorkspace() *Workspace {
	id := uuid.New().String()
	now := time.Now()

	s.mu.Lock()
	s.workspaces[id] = &entry{createdAt: now, touched: now}
	s.mu.Unlock()

	return &Workspace{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
}

// Get returns workspace metadata
func (s *RecordStore) Get(workspaceID string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, errors.WorkspaceNotFound()
	}
	return &Workspace{
		ID:          workspaceID,
		CreatedAt:   e.createdAt,
		ExpiresAt:   e.touched.Add(s.ttl),
		RecordCount: len(e.records),
	}, nil
}

// AppendRecords adds records to the workspace, preserving input order
func (s *RecordStore) AppendRecords(workspaceID string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workspaces[workspaceID]
	if !ok {
		return errors.WorkspaceNotFound()
	}
	if len(e.records)+len(records) > s.maxRecords {
		return errors.Conflict(fmt.Sprintf("workspace record limit of %d exceeded", s.maxRecords))
	}

	e.records = append(e.records, records...)
	e.touched = time.Now()
	return nil
}

// ListRecords returns a copy of the workspace's records in insertion order
func (s *RecordStore) ListRecords(workspaceID string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, errors.WorkspaceNotFound()
	}

	out := make([]domain.Record, len(e.records))
	copy(out, e.records)
	return out, nil
}

// UpdateTaxCreditFlag sets the tax credit marker on one record and returns
// the updated record
func (s *RecordStore) UpdateTaxCreditFlag(workspaceID, recordID string, flag bool) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, errors.WorkspaceNotFound()
	}

	for i := range e.records {
		if e.records[i].ID == recordID {
			e.records[i].TaxCreditFlag = flag
			e.touched = time.Now()
			rec := e.records[i]
			return &rec, nil
		}
	}
	return nil, errors.NotFoundWithKey("record")
}

// DeleteRecord removes one record, keeping the order of the remaining ones
func (s *RecordStore) DeleteRecord(workspaceID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workspaces[workspaceID]
	if !ok {
		return errors.WorkspaceNotFound()
	}

	for i := range e.records {
		if e.records[i].ID == recordID {
			e.records = append(e.records[:i], e.records[i+1:]...)
			e.touched = time.Now()
			return nil
		}
	}
	return errors.NotFoundWithKey("record")
}

// DeleteWorkspace drops the workspace and all its records
func (s *RecordStore) DeleteWorkspace(workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[workspaceID]; !ok {
		return errors.WorkspaceNotFound()
	}
	delete(s.workspaces, workspaceID)
	return nil
}

// cleanupLoop periodically removes workspaces idle past their TTL
func (s *RecordStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		s.cleanup()
	}
}

func (s *RecordStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, e := range s.workspaces {
		if e.touched.Before(cutoff) {
			delete(s.workspaces, id)
		}
	}
}
