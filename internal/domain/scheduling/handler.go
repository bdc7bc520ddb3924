package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/shifts", h.CreateShift)
	admin.PUT("/shifts/:id", h.UpdateShift)

	api.GET("/shifts", h.ListShifts, auth.RequireAuthenticated())
	api.GET("/shifts/:id/slots", h.ListShiftSlots, auth.RequireAuthenticated())

	desk := api.Group("", auth.RequireRole("admin", "receptionist"))
	desk.POST("/schedules", h.Assign)
	desk.GET("/schedules", h.SchedulesForDate)

	api.GET("/staff/:id/available-slots", h.AvailableSlots, auth.RequireAuthenticated())
	api.GET("/staff/:id/schedules", h.ScheduleRange, auth.RequireAuthenticated())
}

type shiftRequest struct {
	Name        string `json:"name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SlotMinutes int    `json:"slot_minutes"`
}

func (h *Handler) CreateShift(c echo.Context) error {
	var req shiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	shift := &Shift{Name: req.Name, StartTime: req.StartTime, EndTime: req.EndTime}
	if err := h.svc.CreateShift(c.Request().Context(), shift, req.SlotMinutes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, shift)
}

func (h *Handler) UpdateShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shift id")
	}
	shift, err := h.svc.GetShift(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	var req shiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != "" {
		shift.Name = req.Name
	}
	if req.StartTime != "" {
		shift.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		shift.EndTime = req.EndTime
	}
	if err := h.svc.UpdateShift(c.Request().Context(), shift, req.SlotMinutes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, shift)
}

func (h *Handler) ListShifts(c echo.Context) error {
	shifts, err := h.svc.ListShifts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, shifts)
}

func (h *Handler) ListShiftSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shift id")
	}
	slots, err := h.svc.SlotsForShift(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, slots)
}

type assignRequest struct {
	StaffID uuid.UUID `json:"staff_id"`
	ShiftID uuid.UUID `json:"shift_id"`
	Date    string    `json:"date"`
}

func (h *Handler) Assign(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}
	sched, err := h.svc.Assign(c.Request().Context(), req.StaffID, req.ShiftID, date)
	if err != nil {
		if errors.Is(err, ErrScheduleExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	date, err := time.Parse(dateLayout, c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}
	day, err := h.svc.AvailableSlots(c.Request().Context(), staffID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) ScheduleRange(c echo.Context) error {
	staffID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	from, err := time.Parse(dateLayout, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date: expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date: expected YYYY-MM-DD")
	}
	days, err := h.svc.ScheduleRange(c.Request().Context(), staffID, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) SchedulesForDate(c echo.Context) error {
	date, err := time.Parse(dateLayout, c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
	}
	days, err := h.svc.SchedulesForDate(c.Request().Context(), date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, days)
}
