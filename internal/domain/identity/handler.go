package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/otp"
	"github.com/medicore/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the public auth endpoints on the unauthenticated
// group and account management on the authenticated one.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/patients/register", h.RegisterPatient)
	public.POST("/auth/login/request-otp", h.RequestLoginCode)
	public.POST("/auth/login/verify", h.VerifyLoginCode)

	api.GET("/patients/me", h.GetOwnProfile, auth.RequirePatient())
	api.PUT("/patients/me", h.UpdateOwnProfile, auth.RequirePatient())

	staff := api.Group("", auth.RequireRole("receptionist", "doctor", "nurse"))
	staff.GET("/patients", h.ListPatients)
	staff.GET("/patients/:id", h.GetPatient)

	api.GET("/doctors", h.ListDoctors, auth.RequireAuthenticated())

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/staff", h.CreateStaff)
	admin.GET("/staff", h.ListStaff)
	admin.GET("/staff/:id", h.GetStaff)
	admin.PUT("/staff/:id", h.UpdateStaff)
	admin.POST("/roles", h.CreateRole)
	admin.GET("/roles", h.ListRoles)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

type loginRequest struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

func (r loginRequest) principalKind() (auth.PrincipalKind, error) {
	switch r.Kind {
	case "patient":
		return auth.KindPatient, nil
	case "staff":
		return auth.KindStaff, nil
	default:
		return "", errors.New("kind must be \"patient\" or \"staff\"")
	}
}

func (h *Handler) RequestLoginCode(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := req.principalKind()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RequestLoginCode(c.Request().Context(), kind, req.Email); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (h *Handler) VerifyLoginCode(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := req.principalKind()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, principal, err := h.svc.VerifyLoginCode(c.Request().Context(), kind, req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrNotRequested):
			return echo.NewHTTPError(http.StatusUnauthorized, "no verification code requested or code expired")
		case errors.Is(err, otp.ErrCodeMismatch):
			return echo.NewHTTPError(http.StatusUnauthorized, "incorrect verification code")
		case errors.Is(err, ErrAccountNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":     token,
		"principal": principal,
	})
}

func (h *Handler) GetOwnProfile(c echo.Context) error {
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	p, err := h.svc.GetPatient(c.Request().Context(), principal.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateOwnProfile(c echo.Context) error {
	principal, _ := auth.PrincipalFromContext(c.Request().Context())
	p, err := h.svc.GetPatient(c.Request().Context(), principal.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := c.Bind(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = principal.ID
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListStaffByRole(c.Request().Context(), RoleDoctor, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var m Staff
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateStaff(c.Request().Context(), &m); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	m, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}
	m, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := c.Bind(m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m.ID = id
	if err := h.svc.UpdateStaff(c.Request().Context(), m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListStaff(c echo.Context) error {
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListStaff(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) CreateRole(c echo.Context) error {
	var role Role
	if err := c.Bind(&role); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateRole(c.Request().Context(), &role); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, role)
}

func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.svc.ListRoles(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, roles)
}
