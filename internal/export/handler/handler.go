package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/delivery"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/export/service"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/i18n"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// Handler handles export HTTP requests
type Handler struct {
	exports            *service.ExportService
	downloads          *delivery.DownloadStore
	pending            *delivery.PendingSaves
	callbackSecretHash string
	logger             *logger.Logger
}

// NewHandler creates a new export handler. callbackSecretHash is the
// bcrypt hash the bridge callback secret is checked against; when empty,
// all callbacks are rejected.
func NewHandler(exports *service.ExportService, downloads *delivery.DownloadStore, pending *delivery.PendingSaves, callbackSecretHash string, log *logger.Logger) *Handler {
	return &Handler{
		exports:            exports,
		downloads:          downloads,
		pending:            pending,
		callbackSecretHash: callbackSecretHash,
		logger:             log,
	}
}

type createExportRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Format   string `json:"format" validate:"omitempty,oneof=csv xlsx pdf"`
	Scope    string `json:"scope" validate:"omitempty,oneof=all flagged"`
}

// Create starts an export of the workspace's records. An empty workspace
// is not an error: the response reports that nothing was queued.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())

	var req createExportRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if req.Format == "" {
		req.Format = string(domain.FormatCSV)
	}
	if req.Scope == "" {
		req.Scope = string(domain.ScopeAll)
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	job, err := h.exports.StartExport(r.Context(), workspaceID, req.Filename, domain.Format(req.Format), domain.Scope(req.Scope))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if job == nil {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"queued":  false,
			"message": i18n.TFromContext(r.Context(), "notifications.export_empty"),
		})
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// Get returns the state of one export job
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())

	job, err := h.exports.GetExport(workspaceID, chi.URLParam(r, "exportID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// Download serves a staged export. The token is single use: the file is
// gone after the first fetch.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	staged, ok := h.downloads.Take(chi.URLParam(r, "token"))
	if !ok {
		httputil.ErrorLocalized(w, r, errors.DownloadNotFound())
		return
	}

	w.Header().Set("Content-Type", staged.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", staged.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(staged.Content)))
	w.Write(staged.Content)
}

// BridgeCallback resolves an asynchronous bridge save. The caller is the
// host shell, not a workspace client, so it authenticates with the shared
// bridge secret instead of a session token.
func (h *Handler) BridgeCallback(w http.ResponseWriter, r *http.Request) {
	if !h.authorizedBridge(r) {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid bridge credentials"))
		return
	}

	var outcome delivery.Outcome
	if err := httputil.DecodeJSONLocalized(r, &outcome); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	token := chi.URLParam(r, "token")
	if !h.pending.Complete(token, outcome) {
		httputil.ErrorLocalized(w, r, errors.NotFound("pending save"))
		return
	}

	h.logger.Info().
		Str("token", token).
		Bool("success", outcome.Success).
		Bool("canceled", outcome.Canceled).
		Msg("bridge callback resolved pending save")
	httputil.NoContent(w)
}

func (h *Handler) authorizedBridge(r *http.Request) bool {
	if h.callbackSecretHash == "" {
		return false
	}
	secret := r.Header.Get("X-Bridge-Secret")
	if secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.callbackSecretHash), []byte(secret)) == nil
}

// ListAudit returns the workspace's export audit trail, newest first
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())
	limit, offset := paginationParams(r)

	entries, err := h.exports.ListAuditEntries(r.Context(), workspaceID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("failed to list export audit entries")
		httputil.ErrorLocalized(w, r, errors.Internal("failed to list export audit entries"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
