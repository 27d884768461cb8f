package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/pkg/config"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
)

// BridgeSaver hands the file to a wrapping desktop shell over HTTP. The
// shell answers either synchronously (200 with the outcome body) or
// asynchronously (202 now, outcome posted later to the callback URL);
// exactly one of the two resolves the pending save.
type BridgeSaver struct {
	url             string
	authToken       string
	callbackBaseURL string
	pending         *PendingSaves
	client          *http.Client
	logger          *logger.Logger
}

// bridgeSaveRequest is the wire shape of POST {bridge.url}/save
type bridgeSaveRequest struct {
	Filename         string `json:"filename"`
	ContentBase64    string `json:"content_base64"`
	MimeType         string `json:"mime_type"`
	CorrelationToken string `json:"correlation_token"`
	CallbackURL      string `json:"callback_url"`
}

// NewBridgeSaver creates the host bridge tier. The http client carries no
// timeout: a hung bridge blocks only the export goroutine that called it.
func NewBridgeSaver(cfg config.BridgeConfig, pending *PendingSaves, log *logger.Logger) *BridgeSaver {
	return &BridgeSaver{
		url:             strings.TrimRight(cfg.URL, "/"),
		authToken:       cfg.AuthToken,
		callbackBaseURL: strings.TrimRight(cfg.CallbackBaseURL, "/"),
		pending:         pending,
		client:          &http.Client{},
		logger:          log,
	}
}

// Name identifies the tier in job status and logs
func (s *BridgeSaver) Name() string {
	return TierBridge
}

// Available reports whether a bridge URL is configured
func (s *BridgeSaver) Available() bool {
	return s.url != ""
}

// AttemptSave posts the file to the shell and waits for the outcome from
// whichever completion path arrives first.
func (s *BridgeSaver) AttemptSave(ctx context.Context, req SaveRequest) (Outcome, error) {
	token, done := s.pending.Register()

	body, err := json.Marshal(bridgeSaveRequest{
		Filename:         req.Filename,
		ContentBase64:    base64.StdEncoding.EncodeToString(req.Content),
		MimeType:         req.MimeType,
		CorrelationToken: token,
		CallbackURL:      s.callbackBaseURL + "/api/v1/exports/bridge/callbacks/" + token,
	})
	if err != nil {
		s.pending.Cancel(token)
		return Outcome{}, fmt.Errorf("encode bridge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/save", bytes.NewReader(body))
	if err != nil {
		s.pending.Cancel(token)
		return Outcome{}, fmt.Errorf("build bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.pending.Cancel(token)
		return Outcome{}, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Synchronous completion. Resolve through the registry so a
		// callback that raced us in is not handled twice; the channel
		// holds whichever outcome won.
		var outcome Outcome
		if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
			s.pending.Cancel(token)
			return Outcome{}, fmt.Errorf("decode bridge response: %w", err)
		}
		if !s.pending.Complete(token, outcome) {
			s.logger.Debug().Str("correlation_token", token).
				Msg("bridge callback arrived before synchronous response")
		}
	case http.StatusAccepted:
		// Asynchronous completion; the shell will post the outcome to
		// the callback URL. No timeout here.
	default:
		s.pending.Cancel(token)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{}, fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	select {
	case outcome := <-done:
		return s.resolve(outcome)
	case <-ctx.Done():
		s.pending.Cancel(token)
		return Outcome{}, ctx.Err()
	}
}

func (s *BridgeSaver) resolve(outcome Outcome) (Outcome, error) {
	if outcome.Canceled {
		return Outcome{}, ErrCanceled
	}
	if !outcome.Success {
		msg := outcome.Error
		if msg == "" {
			msg = "bridge reported an unspecified failure"
		}
		return Outcome{}, fmt.Errorf("bridge save failed: %s", msg)
	}
	return outcome, nil
}
