package delivery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// StagedDownload is one exported file parked for a single browser fetch
type StagedDownload struct {
	Filename  string
	Content   []byte
	MimeType  string
	CreatedAt time.Time
}

// DownloadStore keeps staged downloads in memory until they are fetched
// once or their TTL runs out, the server-side analog of a transient
// object URL the frontend clicks.
type DownloadStore struct {
	mu    sync.Mutex
	files map[string]*StagedDownload
	ttl   time.Duration
}

// NewDownloadStore creates a download store and starts its cleanup loop
func NewDownloadStore(ttl time.Duration) *DownloadStore {
	s := &DownloadStore{
		files: make(map[string]*StagedDownload),
		ttl:   ttl,
	}
	go s.cleanupLoop()
	return s
}

// Stage parks content under a fresh random token and returns the token.
// The token doubles as the fetch credential, so it is generated from
// crypto/rand, not a counter.
func (s *DownloadStore) Stage(filename string, content []byte, mimeType string) string {
	token := generateDownloadToken()

	s.mu.Lock()
	s.files[token] = &StagedDownload{
		Filename:  filename,
		Content:   content,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	return token
}

// Take removes and returns a staged download. Each token works once.
// A nil store (downloads disabled) has nothing to take.
func (s *DownloadStore) Take(token string) (*StagedDownload, bool) {
	if s == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.files[token]
	if !ok {
		return nil, false
	}
	delete(s.files, token)
	return d, true
}

func (s *DownloadStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *DownloadStore) cleanup() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, d := range s.files {
		if d.CreatedAt.Before(cutoff) {
			delete(s.files, token)
		}
	}
}

func generateDownloadToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// DownloadSaver stages the file for a one-shot browser fetch, the last
// tier in the chain.
type DownloadSaver struct {
	store *DownloadStore
}

// NewDownloadSaver creates the staged download tier. A nil store means
// downloads are disabled by configuration.
func NewDownloadSaver(store *DownloadStore) *DownloadSaver {
	return &DownloadSaver{store: store}
}

// Name identifies the tier in job status and logs
func (s *DownloadSaver) Name() string {
	return TierDownload
}

// Available reports whether the download store is enabled
func (s *DownloadSaver) Available() bool {
	return s.store != nil
}

// AttemptSave stages the content; the outcome path is the fetch URL the
// frontend follows.
func (s *DownloadSaver) AttemptSave(ctx context.Context, req SaveRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	token := s.store.Stage(req.Filename, req.Content, req.MimeType)
	return Outcome{Success: true, Path: "/api/v1/exports/downloads/" + token}, nil
}
