package clinical

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctors := api.Group("", auth.RequireRole("doctor"))
	doctors.POST("/diagnoses", h.CreateDiagnosis)
	doctors.POST("/diagnoses/:id/prescriptions", h.Prescribe)

	api.GET("/diagnoses/:id", h.GetDiagnosis, auth.RequireAuthenticated())
	api.GET("/appointments/:id/diagnoses", h.DiagnosesForAppointment, auth.RequireAuthenticated())
	api.GET("/diagnoses/:id/prescriptions", h.PrescriptionsForDiagnosis, auth.RequireAuthenticated())

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/medicines", h.AddMedicine)
	admin.POST("/target-organs", h.AddTargetOrgan)

	api.GET("/medicines", h.ListMedicines, auth.RequireRole("doctor", "nurse", "admin"))
	api.GET("/target-organs", h.ListTargetOrgans, auth.RequireRole("doctor", "nurse", "admin"))
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	d.StaffID = principal.ID

	if err := h.svc.CreateDiagnosis(c.Request().Context(), &d); err != nil {
		if errors.Is(err, ErrAppointmentClosed) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosis id")
	}
	d, err := h.svc.GetDiagnosis(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DiagnosesForAppointment(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	items, err := h.svc.DiagnosesForAppointment(c.Request().Context(), appointmentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Prescribe(c echo.Context) error {
	diagnosisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosis id")
	}
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.DiagnosisID = diagnosisID
	if err := h.svc.Prescribe(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) PrescriptionsForDiagnosis(c echo.Context) error {
	diagnosisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosis id")
	}
	items, err := h.svc.PrescriptionsForDiagnosis(c.Request().Context(), diagnosisID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddMedicine(c echo.Context) error {
	var m Medicine
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddMedicine(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedicines(c echo.Context) error {
	items, err := h.svc.ListMedicines(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddTargetOrgan(c echo.Context) error {
	var o TargetOrgan
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddTargetOrgan(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListTargetOrgans(c echo.Context) error {
	items, err := h.svc.ListTargetOrgans(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
