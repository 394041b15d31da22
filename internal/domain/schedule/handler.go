package schedule

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleAuxiliary))
	staff.GET("/patients/:id/schedule", h.GetDaySchedule)
	staff.POST("/schedule/administer", h.QuickAdminister)
}

// GetDaySchedule serves ?date=YYYY-MM-DD, defaulting to today in the clinic
// time zone.
func (h *Handler) GetDaySchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	date := h.svc.Today()
	if v := c.QueryParam("date"); v != "" {
		if date, err = time.ParseInLocation(time.DateOnly, v, h.svc.Location()); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
	}
	d, err := h.svc.DaySchedule(c.Request().Context(), id, date)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) QuickAdminister(c echo.Context) error {
	var req QuickAdministerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.svc.QuickAdminister(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}
