// Package reporting exposes operational measures over the hospital schema:
// predefined SQL aggregates evaluated on demand, returned as JSON or as an
// XLSX download for the front desk.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Total number of registered patients",
		SQL:         `SELECT COUNT(*) AS total FROM patients`,
		Parameters:  []string{},
	},
	{
		ID:          "appointment-volume-by-status",
		Name:        "Appointment Volume by Status",
		Description: "Number of appointments grouped by status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "daily-revenue",
		Name:        "Daily Revenue",
		Description: "Completed transaction revenue per day over the last 30 days",
		SQL:         `SELECT created_at::date AS day, SUM(amount) AS revenue FROM transactions WHERE status = 'completed' AND created_at >= NOW() - INTERVAL '30 days' GROUP BY day ORDER BY day DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "lab-test-volume-by-lab",
		Name:        "Lab Test Volume by Lab",
		Description: "Number of ordered lab tests per lab, split by result state",
		SQL:         `SELECT l.name AS lab, COUNT(*) AS total, COUNT(t.test_result) AS with_results FROM lab_tests t JOIN labs l ON l.id = t.lab_id GROUP BY l.name ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "staff-appointment-load",
		Name:        "Staff Appointment Load",
		Description: "Appointments per staff member with the missed share",
		SQL:         `SELECT s.name AS staff, COUNT(*) AS appointments, SUM(CASE WHEN a.status = 'missed' THEN 1 ELSE 0 END) AS missed FROM appointments a JOIN staff s ON s.id = a.staff_id GROUP BY s.name ORDER BY appointments DESC`,
		Parameters:  []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("admin"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
	reportGroup.GET("/measures/:id/export", h.ExportMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	report, err := h.evaluate(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// ExportMeasure executes a measure and returns the results as an XLSX
// attachment.
func (h *Handler) ExportMeasure(c echo.Context) error {
	report, err := h.evaluate(c)
	if err != nil {
		return err
	}

	data, err := ExportXLSX(report)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("export failed: %v", err))
	}

	filename := fmt.Sprintf("%s-%s.xlsx", report.MeasureID, report.GeneratedAt.Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) evaluate(c echo.Context) (*MeasureReport, error) {
	measureID := c.Param("id")
	measure := FindMeasure(measureID)
	if measure == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return &MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}, nil
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
