package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"swimdesk/internal/common"
	"swimdesk/internal/directory"
	"swimdesk/internal/lib/sl"
	"swimdesk/internal/middleware"
	"swimdesk/internal/repositories"
	"swimdesk/internal/services"
)

// BusinessHandlers serve the admin business directory.
type BusinessHandlers struct {
	svc services.BusinessService
	log *slog.Logger
}

func NewBusinessHandlers(svc services.BusinessService, log *slog.Logger) *BusinessHandlers {
	return &BusinessHandlers{
		svc: svc,
		log: log,
	}
}

// businessError maps service errors to responses. Unknown errors are logged
// and reported as 500.
func (h *BusinessHandlers) businessError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, services.ErrBusinessNotFound):
		return common.SendNotFoundError(c, "Business")
	case errors.Is(err, repositories.ErrStaleChange):
		return common.SendConflictError(c, "Business was modified by someone else; reload and try again")
	case errors.Is(err, services.ErrInvalidCriteria):
		return common.SendClientError(c, "Invalid status or tier filter")
	case errors.Is(err, directory.ErrInvalidStatus):
		return common.SendValidationError(c, "status", "unknown status")
	case errors.Is(err, directory.ErrInvalidTier):
		return common.SendValidationError(c, "tier", "unknown tier")
	case errors.Is(err, services.ErrConfirmationRequired):
		return echo.NewHTTPError(http.StatusForbidden, "A valid confirmation token is required")
	case errors.Is(err, services.ErrResetRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many owner reset requests, try again later")
	}

	h.log.Error("business request failed", slog.String("op", op), sl.Err(err))
	return common.SendServerError(c, "Internal server error")
}

func businessID(c echo.Context) (uuid.UUID, error) {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}

// ListBusinesses filters the directory by ?search=&status=&tier=.
func (h *BusinessHandlers) ListBusinesses(c echo.Context) error {
	const op = "handlers.BusinessHandlers.ListBusinesses"

	var criteria directory.Criteria
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &criteria); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}

	businesses, err := h.svc.List(c.Request().Context(), criteria)
	if err != nil {
		return h.businessError(c, op, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"businesses": businesses,
		"total":      len(businesses),
		"criteria":   criteria,
	})
}

func (h *BusinessHandlers) GetBusiness(c echo.Context) error {
	const op = "handlers.BusinessHandlers.GetBusiness"

	id, err := businessID(c)
	if err != nil {
		return err
	}

	b, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.businessError(c, op, err)
	}
	return c.JSON(http.StatusOK, b)
}

// SubmitChange applies a status and/or tier change. The stored record is
// returned and replaces the caller's copy.
func (h *BusinessHandlers) SubmitChange(c echo.Context) error {
	const op = "handlers.BusinessHandlers.SubmitChange"

	id, err := businessID(c)
	if err != nil {
		return err
	}

	var req services.ChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		if details := middleware.ValidationDetails(err); details != nil {
			return common.SendValidationErrors(c, details)
		}
		return common.SendClientError(c, err.Error())
	}

	b, err := h.svc.UpdateBusiness(c.Request().Context(), id, req)
	if err != nil {
		return h.businessError(c, op, err)
	}
	return c.JSON(http.StatusOK, b)
}

// RequestOwnerReset issues the confirmation token for an owner reset.
func (h *BusinessHandlers) RequestOwnerReset(c echo.Context) error {
	const op = "handlers.BusinessHandlers.RequestOwnerReset"

	id, err := businessID(c)
	if err != nil {
		return err
	}

	req, err := h.svc.RequestOwnerReset(c.Request().Context(), id)
	if err != nil {
		return h.businessError(c, op, err)
	}
	return c.JSON(http.StatusAccepted, req)
}

// OwnerResetTokenRequest carries the token from RequestOwnerReset.
type OwnerResetTokenRequest struct {
	Token string `json:"token" query:"token" validate:"required,uuid"`
}

func (h *BusinessHandlers) bindToken(c echo.Context) (string, error) {
	var req OwnerResetTokenRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "A confirmation token is required")
	}
	return req.Token, nil
}

// ConfirmOwnerReset consumes the token and notifies the owner.
func (h *BusinessHandlers) ConfirmOwnerReset(c echo.Context) error {
	const op = "handlers.BusinessHandlers.ConfirmOwnerReset"

	id, err := businessID(c)
	if err != nil {
		return err
	}
	token, err := h.bindToken(c)
	if err != nil {
		return err
	}

	res, err := h.svc.ConfirmOwnerReset(c.Request().Context(), id, token)
	if err != nil {
		return h.businessError(c, op, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CancelOwnerReset discards a pending owner reset.
func (h *BusinessHandlers) CancelOwnerReset(c echo.Context) error {
	const op = "handlers.BusinessHandlers.CancelOwnerReset"

	id, err := businessID(c)
	if err != nil {
		return err
	}
	token, err := h.bindToken(c)
	if err != nil {
		return err
	}

	if err := h.svc.CancelOwnerReset(c.Request().Context(), id, token); err != nil {
		return h.businessError(c, op, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportDirectory writes the filtered directory to object storage and
// returns a download link.
func (h *BusinessHandlers) ExportDirectory(c echo.Context) error {
	const op = "handlers.BusinessHandlers.ExportDirectory"

	var criteria directory.Criteria
	if err := c.Bind(&criteria); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	res, err := h.svc.ExportDirectory(c.Request().Context(), criteria)
	if err != nil {
		return h.businessError(c, op, err)
	}
	return c.JSON(http.StatusCreated, res)
}
