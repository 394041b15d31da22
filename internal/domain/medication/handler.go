package medication

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read and administration endpoints – all clinical staff
	staff := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleAuxiliary))
	staff.GET("/medications", h.ListMedications)
	staff.GET("/medications/:id", h.GetMedication)
	staff.GET("/medications/:id/cost", h.GetCost)
	staff.GET("/administrations", h.ListAdministrations)
	staff.GET("/administrations/:id", h.GetAdministration)
	staff.POST("/administrations", h.RecordAdministration)
	staff.PUT("/administrations/:id", h.UpdateAdministration)

	// Prescribing – veterinarians
	vet := api.Group("", auth.RequireRole(auth.RoleVeterinarian))
	vet.POST("/medications", h.CreateMedication)
	vet.PUT("/medications/:id", h.UpdateMedication)
	vet.DELETE("/medications/:id", h.DeleteMedication)
	vet.POST("/medications/:id/status", h.ChangeStatus)
	vet.PUT("/medications/:id/cost", h.SetCost)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseOptionalUUID(c echo.Context, name string) (uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// parseOptionalTime accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func parseOptionalTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, v); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
	}
	return &t, nil
}

// -- Prescriptions --

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	patientID, err := parseOptionalUUID(c, "patient_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := MedicationFilter{PatientID: patientID, Status: Status(c.QueryParam("status"))}
	items, total, err := h.svc.ListMedications(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

type statusRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.ChangeStatus(c.Request().Context(), id, req.Status, req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Costs --

func (h *Handler) GetCost(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cost, err := h.svc.GetCost(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cost)
}

type costRequest struct {
	UnitCost decimal.Decimal `json:"unit_cost"`
	Currency string          `json:"currency"`
}

func (h *Handler) SetCost(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req costRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cost := Cost{MedicationID: id, UnitCost: req.UnitCost, Currency: req.Currency}
	if err := h.svc.SetCost(c.Request().Context(), &cost); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cost)
}

// -- Administrations --

func (h *Handler) RecordAdministration(c echo.Context) error {
	var a Administration
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordAdministration(c.Request().Context(), &a); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAdministration(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAdministration(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAdministrations(c echo.Context) error {
	var (
		f   AdministrationFilter
		err error
	)
	if f.PatientID, err = parseOptionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.MedicationID, err = parseOptionalUUID(c, "medication_id"); err != nil {
		return err
	}
	if f.From, err = parseOptionalTime(c, "from"); err != nil {
		return err
	}
	if f.To, err = parseOptionalTime(c, "to"); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAdministrations(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAdministration(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Administration
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.UpdateAdministration(c.Request().Context(), &a); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}
