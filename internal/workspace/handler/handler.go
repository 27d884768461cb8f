package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/store"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/token"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
)

// WorkspaceHandler handles workspace and record endpoints
type WorkspaceHandler struct {
	records *store.RecordStore
	tokens  *token.Manager
	logger  *logger.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(records *store.RecordStore, tokens *token.Manager, log *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		records: records,
		tokens:  tokens,
		logger:  log,
	}
}

// CreateWorkspaceResponse is returned when a browser session starts
type CreateWorkspaceResponse struct {
	WorkspaceID string    `json:"workspace_id"`
	Token       string    `json:"token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Create handles POST /workspaces. It is the only unauthenticated endpoint:
// it allocates an empty workspace and issues the session token for it.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws := h.records.CreateWorkspace()

	signed, expiresAt, err := h.tokens.Issue(ws.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue workspace token")
		httputil.ErrorLocalized(w, r, errors.Internal("failed to create workspace"))
		return
	}

	h.logger.Info().Str("workspace_id", ws.ID).Msg("workspace created")

	httputil.Created(w, CreateWorkspaceResponse{
		WorkspaceID: ws.ID,
		Token:       signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}

// Get handles GET /workspaces/current
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, err := h.records.Get(httputil.GetWorkspaceID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ws)
}

// Delete handles DELETE /workspaces/current
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())
	if err := h.records.DeleteWorkspace(workspaceID); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	h.logger.Info().Str("workspace_id", workspaceID).Msg("workspace deleted")
	httputil.NoContent(w)
}

// ListRecords handles GET /records
func (h *WorkspaceHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListRecords(httputil.GetWorkspaceID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// UpdateRecord handles PATCH /records/{recordID}.
// Only the tax credit flag is mutable; everything else is extraction output.
func (h *WorkspaceHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")

	var req struct {
		TaxCreditFlag *bool `json:"taxCreditFlag" validate:"required"`
	}
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	rec, err := h.records.UpdateTaxCreditFlag(httputil.GetWorkspaceID(r.Context()), recordID, *req.TaxCreditFlag)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /records/{recordID}
func (h *WorkspaceHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")

	if err := h.records.DeleteRecord(httputil.GetWorkspaceID(r.Context()), recordID); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}
