package handler

import (
	"net/http"
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/internal/insights/service"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
)

// Handler handles insights HTTP requests
type Handler struct {
	insights *service.Service
	logger   *logger.Logger
}

// NewHandler creates a new insights handler
func NewHandler(insights *service.Service, log *logger.Logger) *Handler {
	return &Handler{insights: insights, logger: log}
}

type insightsRequest struct {
	Question string `json:"question" validate:"omitempty,max=500"`
}

// Generate answers a question about the workspace's records. The body is
// optional; without a question the model produces a general summary.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())

	var req insightsRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
		if err := httputil.Validate(&req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	answer, err := h.insights.Generate(r.Context(), workspaceID, strings.TrimSpace(req.Question))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"insights": answer})
}
