package assignment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/appointment"
	"github.com/igabay/care/internal/platform/auth"
	"github.com/igabay/care/pkg/pagination"
)

type Handler struct {
	svc *Coordinator
}

func NewHandler(svc *Coordinator) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments/:id/assignments", h.Assign, auth.RequireActorType(actor.Clinic))
	api.GET("/appointments/:id/assignments", h.ListByAppointment)
	api.POST("/appointments/:id/give-up", h.GiveUp, auth.RequireActorType(actor.Clinic))
	api.GET("/assignments/:id", h.Get)
	api.POST("/assignments/:id/respond", h.Respond, auth.RequireActorType(actor.Doctor))
	api.GET("/doctors/:id/assignments", h.ListByDoctor, auth.RequireActorType(actor.Doctor, actor.Clinic))
}

type assignRequest struct {
	ClinicID uuid.UUID `json:"clinic_id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Notes    *string   `json:"notes,omitempty"`
}

func (h *Handler) Assign(c echo.Context) error {
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	asg, err := h.svc.Assign(c.Request().Context(), apptID, req.ClinicID, req.DoctorID, by, req.Notes)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, asg)
}

type respondRequest struct {
	Accept        bool    `json:"accept"`
	ResponseNotes *string `json:"response_notes,omitempty"`
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	asg, err := h.svc.Respond(c.Request().Context(), id, by.ID, req.Accept, req.ResponseNotes)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, asg)
}

type giveUpRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) GiveUp(c echo.Context) error {
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req giveUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.GiveUp(c.Request().Context(), apptID, by, req.Reason); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	asg, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, asg)
}

func (h *Handler) ListByAppointment(c echo.Context) error {
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	asgs, err := h.svc.ListByAppointment(c.Request().Context(), apptID)
	if err != nil {
		return mapError(err)
	}
	if asgs == nil {
		asgs = []*Assignment{}
	}
	return c.JSON(http.StatusOK, asgs)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pendingOnly := c.QueryParam("pending") == "true"
	p := pagination.FromContext(c)
	asgs, total, err := h.svc.ListByDoctor(c.Request().Context(), doctorID, pendingOnly, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	if asgs == nil {
		asgs = []*Assignment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(asgs, total, p.Limit, p.Offset))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, appointment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrValidation), errors.Is(err, appointment.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicatePendingAssignment), errors.Is(err, ErrAlreadyResponded),
		errors.Is(err, appointment.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, appointment.ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable, retry later")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
