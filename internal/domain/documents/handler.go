package documents

import (
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
	api.POST("/patients/:id/documents", h.Upload, auth.RequireAuthenticated())
	api.GET("/patients/:id/documents", h.List, auth.RequireAuthenticated())
	api.GET("/patients/:id/documents/status", h.Status, auth.RequireAuthenticated())
	api.POST("/patients/:id/documents/process", h.Process,
		auth.RequireRole("admin", "doctor", "nurse"))
}

// patientScope resolves the target patient and enforces that patients only
// touch their own documents.
func patientScope(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if p.IsPatient() && p.ID != id {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "patients may only access their own documents")
	}
	return id, nil
}

func (h *Handler) Upload(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}
	// "document_types" pairs with "files" by position; a single
	// "document_type" still applies to the whole batch.
	perFileTypes := form.Value["document_types"]
	batchType := c.FormValue("document_type")

	var files []UploadFile
	var opened []interface{ Close() error }
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for i, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable file: "+hdr.Filename)
		}
		opened = append(opened, f)
		declaredType := batchType
		if i < len(perFileTypes) {
			declaredType = perFileTypes[i]
		}
		files = append(files, UploadFile{
			Name:         hdr.Filename,
			ContentType:  hdr.Header.Get("Content-Type"),
			DeclaredType: declaredType,
			Content:      f,
		})
	}

	summary, err := h.svc.UploadDocuments(c.Request().Context(), patientID, files)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := http.StatusCreated
	if summary.Uploaded == 0 {
		status = http.StatusBadRequest
	}
	return c.JSON(status, summary)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.ListDocuments(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) Status(c echo.Context) error {
	patientID, err := patientScope(c)
	if err != nil {
		return err
	}
	status, err := h.svc.Status(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) Process(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	report, err := h.svc.ProcessPatientDocuments(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
