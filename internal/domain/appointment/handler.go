package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/platform/auth"
	"github.com/igabay/care/internal/platform/lock"
	"github.com/igabay/care/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Create, auth.RequireActorType(actor.Patient))
	api.GET("/appointments/:id", h.Get)
	api.PATCH("/appointments/:id/status", h.Transition)
	api.POST("/appointments/:id/cancel", h.Cancel)
	api.POST("/appointments/:id/start", h.Start, auth.RequireActorType(actor.Clinic, actor.Doctor))
	api.POST("/appointments/:id/complete", h.Complete, auth.RequireActorType(actor.Doctor))
	api.POST("/appointments/:id/no-show", h.NoShow, auth.RequireActorType(actor.Clinic, actor.Doctor))
	api.POST("/appointments/:id/prescription", h.IssuePrescription, auth.RequireActorType(actor.Doctor))
	api.POST("/appointments/:id/rating", h.Rate, auth.RequireActorType(actor.Patient))
	api.PATCH("/appointments/:id/payment-status", h.SetPaymentStatus)

	api.GET("/patients/:id/appointments", h.ListByPatient)
	api.GET("/clinics/:id/appointments", h.ListByClinic, auth.RequireActorType(actor.Clinic))
	api.GET("/doctors/:id/appointments", h.ListByDoctor, auth.RequireActorType(actor.Doctor, actor.Clinic))
}

type createRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	ClinicID  uuid.UUID  `json:"clinic_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	Date      string     `json:"appointment_date"`
	Time      string     `json:"appointment_time"`
	Type      string     `json:"appointment_type"`
	Notes     *string    `json:"notes,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_date must be YYYY-MM-DD")
	}

	a := &Appointment{
		PatientID: req.PatientID,
		ClinicID:  req.ClinicID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      req.Time,
		Type:      req.Type,
		Notes:     req.Notes,
	}
	by := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), a, by); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type transitionRequest struct {
	Status Status  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Transition(c.Request().Context(), id, req.Status, by, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Cancel(c.Request().Context(), id, by, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Start(c echo.Context) error {
	return h.simpleTransition(c, StatusInProgress)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.simpleTransition(c, StatusCompleted)
}

func (h *Handler) NoShow(c echo.Context) error {
	return h.simpleTransition(c, StatusNoShow)
}

func (h *Handler) simpleTransition(c echo.Context, target Status) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Transition(c.Request().Context(), id, target, by, nil)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type prescriptionRequest struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
}

func (h *Handler) IssuePrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req prescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.IssuePrescription(c.Request().Context(), id, req.PrescriptionID, by)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type ratingRequest struct {
	ClinicRating *int    `json:"clinic_rating,omitempty"`
	DoctorRating *int    `json:"doctor_rating,omitempty"`
	Feedback     *string `json:"feedback,omitempty"`
}

func (h *Handler) Rate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Rate(c.Request().Context(), id, req.ClinicRating, req.DoctorRating, req.Feedback, by)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type paymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func (h *Handler) SetPaymentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	by := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.SetPaymentStatus(c.Request().Context(), id, req.PaymentStatus, by)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	return h.list(c, func(id uuid.UUID, p pagination.Params) ([]*Appointment, int, error) {
		return h.svc.ListByPatient(c.Request().Context(), id, p.Limit, p.Offset)
	})
}

func (h *Handler) ListByClinic(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	return h.list(c, func(id uuid.UUID, p pagination.Params) ([]*Appointment, int, error) {
		return h.svc.ListByClinic(c.Request().Context(), id, status, p.Limit, p.Offset)
	})
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	return h.list(c, func(id uuid.UUID, p pagination.Params) ([]*Appointment, int, error) {
		return h.svc.ListByDoctor(c.Request().Context(), id, p.Limit, p.Offset)
	})
}

func (h *Handler) list(c echo.Context, fetch func(uuid.UUID, pagination.Params) ([]*Appointment, int, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	appts, total, err := fetch(id, p)
	if err != nil {
		return mapError(err)
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSlotUnavailable), errors.Is(err, lock.ErrSlotLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable, retry later")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
