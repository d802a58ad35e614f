package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"swimdesk/internal/lib/sl"
	"swimdesk/internal/services"
)

// NotificationHandlers expose the outbound notification queue to admins.
type NotificationHandlers struct {
	notificationSvc services.NotificationService
	log             *slog.Logger
}

// NewNotificationHandlers creates a new notification handlers instance
func NewNotificationHandlers(notificationSvc services.NotificationService, log *slog.Logger) *NotificationHandlers {
	return &NotificationHandlers{
		notificationSvc: notificationSvc,
		log:             log,
	}
}

// ListPendingRequest represents query parameters for listing queued notifications
type ListPendingRequest struct {
	Limit int64 `query:"limit"`
}

// ListPending returns the oldest queued notifications and the queue length.
func (h *NotificationHandlers) ListPending(c echo.Context) error {
	const op = "handlers.NotificationHandlers.ListPending"

	ctx := c.Request().Context()

	var req ListPendingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	// Set defaults
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	pending, err := h.notificationSvc.Pending(ctx, req.Limit)
	if err != nil {
		h.log.Error("failed to read notification queue", slog.String("op", op), sl.Err(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list notifications")
	}
	backlog, err := h.notificationSvc.Backlog(ctx)
	if err != nil {
		h.log.Error("failed to read notification backlog", slog.String("op", op), sl.Err(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list notifications")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": pending,
		"backlog":       backlog,
		"limit":         req.Limit,
	})
}
