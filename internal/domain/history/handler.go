package history

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/history", h.GetPatientHistory, auth.RequireAuthenticated())
}

// GetPatientHistory returns the consolidated medical history for a patient.
// Patients may only read their own record; staff may read any.
func (h *Handler) GetPatientHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if p.IsPatient() && p.ID != id {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own history")
	}

	record, err := h.svc.GetForPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no history recorded for this patient")
	}
	return c.JSON(http.StatusOK, record)
}
