package labs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/lab-types", h.CreateLabType)
	admin.POST("/labs", h.CreateLab)
	admin.PUT("/labs/:id/functional", h.SetLabFunctional)
	admin.POST("/lab-test-types", h.CreateLabTestType)

	api.GET("/lab-types", h.ListLabTypes, auth.RequireAuthenticated())
	api.GET("/labs", h.ListLabs, auth.RequireAuthenticated())
	api.GET("/lab-test-types", h.ListLabTestTypes, auth.RequireAuthenticated())

	api.POST("/lab-tests", h.RouteTests, auth.RequireRole("doctor"))
	api.GET("/lab-tests/:id", h.GetLabTest, auth.RequireAuthenticated())
	api.GET("/appointments/:id/lab-tests", h.TestsForAppointment, auth.RequireAuthenticated())
	api.GET("/patients/:id/lab-tests", h.TestsForPatient, auth.RequireAuthenticated())
	api.GET("/labs/:id/lab-tests", h.TestsForLab, auth.RequireRole("admin", "lab_technician"))

	api.POST("/lab-tests/pay", h.PayForLabTests, auth.RequireAuthenticated())
	api.PUT("/lab-tests/:id/results", h.AddResults, auth.RequireRole("lab_technician", "admin"))
}

func (h *Handler) RouteTests(c echo.Context) error {
	var req RouteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tests, err := h.svc.RouteTests(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrNoFunctionalLab) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, tests)
}

func (h *Handler) GetLabTest(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	t, err := h.svc.GetLabTest(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) TestsForAppointment(c echo.Context) error {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	tests, err := h.svc.TestsForAppointment(c.Request().Context(), appointmentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) TestsForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if p.IsPatient() && p.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own lab tests")
	}
	tests, err := h.svc.TestsForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) TestsForLab(c echo.Context) error {
	labID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab id")
	}
	params := pagination.FromContext(c)
	tests, total, err := h.svc.TestsForLab(c.Request().Context(), labID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, params.Limit, params.Offset))
}

type payRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	LabTestIDs []int64   `json:"lab_test_ids"`
	Reference  string    `json:"reference"`
}

func (h *Handler) PayForLabTests(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.Kind == auth.KindPatient {
		req.PatientID = principal.ID
	}

	result, err := h.svc.PayForLabTests(c.Request().Context(), req.PatientID, req.LabTestIDs, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrReferenceUsed), errors.Is(err, ErrAlreadyPaid):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, billing.ErrNoActiveCharge):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, result)
}

type resultsRequest struct {
	TestResult      map[string]string `json:"test_result"`
	ResultImagePath *string           `json:"result_image_path,omitempty"`
}

func (h *Handler) AddResults(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	var req resultsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.AddLabTestResults(c.Request().Context(), id, req.TestResult, req.ResultImagePath)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateLabType(c echo.Context) error {
	var t LabType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddLabType(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListLabTypes(c echo.Context) error {
	items, err := h.svc.ListLabTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateLab(c echo.Context) error {
	var l Lab
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddLab(c.Request().Context(), &l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLabs(c echo.Context) error {
	items, err := h.svc.ListLabs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

type functionalRequest struct {
	Functional bool `json:"functional"`
}

func (h *Handler) SetLabFunctional(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab id")
	}
	var req functionalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetLabFunctional(c.Request().Context(), id, req.Functional); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateLabTestType(c echo.Context) error {
	var t LabTestType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddLabTestType(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListLabTestTypes(c echo.Context) error {
	items, err := h.svc.ListLabTestTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
