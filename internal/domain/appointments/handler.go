package appointments

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Book, auth.RequireAuthenticated())
	api.GET("/appointments/:id", h.Get, auth.RequireAuthenticated())
	api.PUT("/appointments/:id/reschedule", h.Reschedule, auth.RequireAuthenticated())

	api.GET("/patients/:id/appointments", h.ListForPatient, auth.RequireAuthenticated())
	api.GET("/staff/:id/appointments", h.ListForStaff, auth.RequireRole("admin", "doctor", "nurse", "receptionist"))

	clinicians := api.Group("", auth.RequireRole("doctor", "nurse"))
	clinicians.POST("/appointments/:id/vitals", h.RecordVitals)
	clinicians.GET("/appointments/:id/vitals", h.VitalsForAppointment)
	clinicians.GET("/patients/:id/vitals/latest", h.LatestVitals)

	api.POST("/appointments/:id/rating", h.Rate, auth.RequirePatient())
	api.GET("/staff/:id/rating", h.StaffRating, auth.RequireAuthenticated())
}

type bookRequest struct {
	PatientID            uuid.UUID `json:"patient_id"`
	StaffID              uuid.UUID `json:"staff_id"`
	SlotID               uuid.UUID `json:"slot_id"`
	Date                 string    `json:"date"`
	Reason               string    `json:"reason"`
	TransactionReference string    `json:"transaction_reference,omitempty"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.IsPatient() {
		// Patients book for themselves regardless of the supplied id.
		req.PatientID = principal.ID
	}

	booking := &BookingRequest{
		PatientID:            req.PatientID,
		StaffID:              req.StaffID,
		SlotID:               req.SlotID,
		Date:                 date,
		Reason:               req.Reason,
		TransactionReference: req.TransactionReference,
	}

	if req.TransactionReference == "" {
		a, err := h.svc.Book(c.Request().Context(), booking)
		if err != nil {
			return bookingError(err)
		}
		return c.JSON(http.StatusCreated, BookingResult{Appointment: a})
	}

	result, err := h.svc.BookWithPayment(c.Request().Context(), booking)
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func bookingError(err error) error {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrReferenceUsed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrNoActiveCharge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.IsPatient() && principal.ID != a.PatientID {
		return echo.NewHTTPError(http.StatusForbidden, ErrNotYourAppointment.Error())
	}
	return c.JSON(http.StatusOK, a)
}

type rescheduleRequest struct {
	SlotID uuid.UUID `json:"slot_id"`
	Date   string    `json:"date"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}

	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.IsPatient() {
		existing, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if existing.PatientID != principal.ID {
			return echo.NewHTTPError(http.StatusForbidden, ErrNotYourAppointment.Error())
		}
	}

	a, err := h.svc.Reschedule(c.Request().Context(), id, req.SlotID, date)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotUpcoming):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.IsPatient() && principal.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own appointments")
	}
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) ListForStaff(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	date, err := time.Parse(dateLayout, c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListForStaff(c.Request().Context(), staffID, date, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) RecordVitals(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var v PatientVitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v.AppointmentID = appointmentID
	if err := h.svc.RecordVitals(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) VitalsForAppointment(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	vitals, err := h.svc.VitalsForAppointment(c.Request().Context(), appointmentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, vitals)
}

func (h *Handler) LatestVitals(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	v, err := h.svc.LatestVitals(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, v)
}

type ratingRequest struct {
	Rating   int     `json:"rating"`
	Comments *string `json:"comments,omitempty"`
}

func (h *Handler) Rate(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())

	rating, err := h.svc.Rate(c.Request().Context(), principal.ID, appointmentID, req.Rating, req.Comments)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotYourAppointment):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrAlreadyRated):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rating)
}

func (h *Handler) StaffRating(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	avg, count, err := h.svc.StaffRating(c.Request().Context(), staffID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"staff_id": staffID,
		"average":  avg,
		"count":    count,
	})
}
