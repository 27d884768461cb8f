package storage

import (
	"sync"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/domain"
)

// ExportStore provides in-memory storage for export jobs. Finished jobs
// are kept for polling until their TTL runs out.
type ExportStore struct {
	mu      sync.RWMutex
	exports map[string]*domain.ExportJob
	ttl     time.Duration
}

// NewExportStore creates a new in-memory export store with the given TTL
func NewExportStore(ttl time.Duration) *ExportStore {
	s := &ExportStore{
		exports: make(map[string]*domain.ExportJob),
		ttl:     ttl,
	}
	go s.cleanupLoop()
	return s
}

// Store saves an export job
func (s *ExportStore) Store(job *domain.ExportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[job.ExportID] = job
}

// Get retrieves an export job by ID. It returns a copy so callers never
// read fields the delivery goroutine is still updating.
func (s *ExportStore) Get(exportID string) *domain.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.exports[exportID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// Update applies a mutation to a stored export job
func (s *ExportStore) Update(exportID string, update func(*domain.ExportJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.exports[exportID]; ok {
		update(job)
	}
}

func (s *ExportStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		s.cleanup()
	}
}

func (s *ExportStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, job := range s.exports {
		if job.CreatedAt.Before(cutoff) {
			delete(s.exports, id)
		}
	}
}
