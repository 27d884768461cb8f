// Package delivery implements the prioritized save chain for exported
// files: host bridge, local directory, staged browser download. Tiers are
// plain values behind the Saver interface so the chain order is wiring,
// not logic.
package delivery

import (
	"context"
	"errors"
)

// ErrCanceled reports that the user canceled an interactive save. The
// chain treats it as a terminal outcome, not as a failure to recover from.
var ErrCanceled = errors.New("save canceled by user")

// Tier names as they appear in job status, notifications and audit rows
const (
	TierBridge    = "bridge"
	TierDirectory = "directory"
	TierDownload  = "download"
)

// SaveRequest carries everything a tier needs to persist one exported file
type SaveRequest struct {
	Filename string
	Content  []byte
	MimeType string
}

// Outcome is the result of a completed save. For the bridge tier it is
// also the wire shape of both completion paths, so the callback handler
// decodes straight into it.
type Outcome struct {
	Success  bool   `json:"success"`
	Canceled bool   `json:"canceled,omitempty"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Saver is one delivery tier. A nil error means the file was delivered;
// ErrCanceled means the user declined; any other error sends the chain to
// the next tier.
type Saver interface {
	Name() string
	Available() bool
	AttemptSave(ctx context.Context, req SaveRequest) (Outcome, error)
}
