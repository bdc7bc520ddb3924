package billing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	billing := api.Group("", auth.RequireRole("admin", "receptionist"))
	billing.POST("/charges/appointment", h.SetAppointmentCharge)
	billing.GET("/staff/:id/charges", h.ListAppointmentCharges)
	billing.POST("/charges/lab-test", h.SetLabTestCharge)
	billing.GET("/patients/:id/transactions", h.ListTransactions)
	billing.GET("/patients/:id/invoices", h.ListInvoices)
	billing.PUT("/invoices/:id/status", h.UpdateInvoiceStatus)

	api.GET("/staff/:id/charge", h.GetActiveAppointmentCharge, auth.RequireAuthenticated())
	api.GET("/invoices/:id", h.GetInvoice, auth.RequireAuthenticated())
}

type chargeRequest struct {
	StaffID    uuid.UUID `json:"staff_id"`
	TestTypeID int64     `json:"test_type_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
}

func (h *Handler) SetAppointmentCharge(c echo.Context) error {
	var req chargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	charge, err := h.svc.SetAppointmentCharge(c.Request().Context(), req.StaffID, req.Amount, req.Currency)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, charge)
}

func (h *Handler) GetActiveAppointmentCharge(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	charge, err := h.svc.ActiveAppointmentCharge(c.Request().Context(), staffID)
	if err != nil {
		if errors.Is(err, ErrNoActiveCharge) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, charge)
}

func (h *Handler) ListAppointmentCharges(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	charges, err := h.svc.ListAppointmentCharges(c.Request().Context(), staffID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, charges)
}

func (h *Handler) SetLabTestCharge(c echo.Context) error {
	var req chargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	charge, err := h.svc.SetLabTestCharge(c.Request().Context(), req.TestTypeID, req.Amount, req.Currency)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, charge)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListTransactions(c.Request().Context(), patientID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	if principal.IsPatient() && principal.ID != inv.PatientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own invoices")
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListInvoices(c.Request().Context(), patientID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

type invoiceStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateInvoiceStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	var req invoiceStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdateInvoiceStatus(c.Request().Context(), id, req.Status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": req.Status})
}
