package notification

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/igabay/care/internal/platform/auth"
	"github.com/igabay/care/pkg/pagination"
)

type Handler struct {
	svc *Dispatcher
}

func NewHandler(svc *Dispatcher) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.POST("/notifications/:id/read", h.MarkRead)
	api.DELETE("/notifications/:id", h.Dismiss)
}

// List returns the authenticated actor's own notifications.
func (h *Handler) List(c echo.Context) error {
	recipientID := auth.ActorIDFromContext(c.Request().Context())
	unreadOnly := c.QueryParam("unread") == "true"
	p := pagination.FromContext(c)

	notifs, total, err := h.svc.ListForRecipient(c.Request().Context(), recipientID, unreadOnly, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if notifs == nil {
		notifs = []*Notification{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(notifs, total, p.Limit, p.Offset))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	recipientID := auth.ActorIDFromContext(c.Request().Context())
	count, err := h.svc.UnreadCount(c.Request().Context(), recipientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	recipientID := auth.ActorIDFromContext(c.Request().Context())

	n, err := h.svc.MarkRead(c.Request().Context(), id, recipientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Dismiss(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	recipientID := auth.ActorIDFromContext(c.Request().Context())

	if err := h.svc.Dismiss(c.Request().Context(), id, recipientID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, "not your notification")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
