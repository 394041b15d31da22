package budget

import (
	"net/http"

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
	staff := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleAuxiliary))
	staff.GET("/patients/:id/budget", h.GetSummary)
	staff.GET("/patients/:id/budget/transactions", h.ListTransactions)
	staff.POST("/patients/:id/budget/transactions", h.CreateTransaction)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTransactions(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type transactionRequest struct {
	Type        Type            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handler) CreateTransaction(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.svc.ApplyTransaction(c.Request().Context(), id, req.Type, req.Amount, req.Description)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, tx)
}
