package handler

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/service"
	"github.com/ledgerscan/ledgerscan-backend/pkg/config"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
)

const (
	defaultMaxUploadBytes = 50 << 20 // whole multipart body
	defaultMaxFileBytes   = 20 << 20 // per document
	defaultMaxFiles       = 10
)

// Handler handles HTTP requests for invoice extraction
type Handler struct {
	service        *service.Service
	maxUploadBytes int64
	maxFileBytes   int64
	maxFiles       int
	log            *logger.Logger
}

// NewHandler creates a new extraction handler with the configured upload
// limits; zero limits fall back to the defaults
func NewHandler(svc *service.Service, cfg config.ExtractionConfig, log *logger.Logger) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	return &Handler{
		service:        svc,
		maxUploadBytes: cfg.MaxUploadBytes,
		maxFileBytes:   cfg.MaxFileBytes,
		maxFiles:       cfg.MaxFiles,
		log:            log,
	}
}

// StartExtraction handles POST /extractions
// Accepts a multipart form with one or more documents under the "files"
// field. Returns the extraction job so the caller can poll for results.
func (h *Handler) StartExtraction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequest("invalid multipart form or request too large"))
		return
	}

	workspaceID := httputil.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("missing workspace token"))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httputil.ErrorLocalized(w, r, errors.BadRequest("no files in request"))
		return
	}
	if len(headers) > h.maxFiles {
		httputil.ErrorLocalized(w, r, errors.TooManyFiles(h.maxFiles))
		return
	}

	// Validate and buffer all files before starting the job so a bad file
	// rejects the whole batch up front
	files := make([]service.UploadedFile, 0, len(headers))
	for _, header := range headers {
		if header.Size > h.maxFileBytes {
			httputil.ErrorLocalized(w, r, errors.FileTooLarge(header.Filename, h.maxFileBytes))
			return
		}

		f, err := header.Open()
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.Internal("failed to read uploaded file"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.Internal("failed to read uploaded file"))
			return
		}

		mimeType := detectMimeType(header, data)
		if !h.service.SupportedMimeType(mimeType) {
			httputil.ErrorLocalized(w, r, errors.UnsupportedFileType(header.Filename, mimeType))
			return
		}

		files = append(files, service.UploadedFile{
			Name:     header.Filename,
			MimeType: mimeType,
			Data:     data,
		})
	}

	job, err := h.service.StartExtraction(r.Context(), workspaceID, files)
	if err != nil {
		h.log.Error().Err(err).Str("workspace_id", workspaceID).Msg("failed to start extraction")
		httputil.ErrorLocalized(w, r, errors.Internal("failed to start extraction"))
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// GetJob handles GET /extractions/{jobID}
// Returns the extraction job status and results for polling
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		httputil.ErrorLocalized(w, r, errors.BadRequest("missing jobID parameter"))
		return
	}

	job := h.service.GetJob(jobID)
	if job == nil || job.WorkspaceID != httputil.GetWorkspaceID(r.Context()) {
		httputil.ErrorLocalized(w, r, errors.NotFoundWithKey("extraction_job"))
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// detectMimeType prefers the declared part content type and falls back to
// sniffing the payload when the client did not declare one
func detectMimeType(header *multipart.FileHeader, data []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return http.DetectContentType(data)
}
