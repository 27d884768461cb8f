package handler

import (
	"net/http"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/i18n"
)

// NotificationHandler serves the per-workspace notification feed
type NotificationHandler struct {
	center *notify.Center
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(center *notify.Center) *NotificationHandler {
	return &NotificationHandler{center: center}
}

// NotificationResponse is one localized feed entry
type NotificationResponse struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// List handles GET /notifications. Reading the feed drains it: each
// notification is delivered once, localized per the request's locale.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := httputil.GetWorkspaceID(r.Context())
	localizer := i18n.LocalizerFromContext(r.Context())

	pending := h.center.Drain(workspaceID)
	out := make([]NotificationResponse, 0, len(pending))
	for _, n := range pending {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Level:     string(n.Level),
			Message:   localizer.T(n.MessageKey, n.Params),
			CreatedAt: n.CreatedAt,
		})
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"notifications": out,
		"count":         len(out),
	})
}
