package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirectorySaver writes exports into a configured directory, the
// writable-sink tier for deployments with a mounted export volume.
type DirectorySaver struct {
	dir string
}

// NewDirectorySaver creates the local directory tier
func NewDirectorySaver(dir string) *DirectorySaver {
	return &DirectorySaver{dir: dir}
}

// Name identifies the tier in job status and logs
func (s *DirectorySaver) Name() string {
	return TierDirectory
}

// Available reports whether an export directory is configured
func (s *DirectorySaver) Available() bool {
	return s.dir != ""
}

// AttemptSave writes the file into the export directory. The filename is
// reduced to its base so a crafted name cannot escape the directory.
func (s *DirectorySaver) AttemptSave(ctx context.Context, req SaveRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(req.Filename))
	f, err := os.Create(path)
	if err != nil {
		return Outcome{}, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(req.Content); err != nil {
		f.Close()
		return Outcome{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return Outcome{}, fmt.Errorf("close %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Outcome{Success: true, Path: abs}, nil
}
