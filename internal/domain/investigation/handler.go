package investigation

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chartd/chartd/internal/platform/apperror"
	"github.com/chartd/chartd/internal/platform/auth"
	"github.com/chartd/chartd/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/investigations/results", h.ListResults, auth.RequireCapability(auth.CapInvestigationRead))
	api.GET("/investigations/results/:id", h.GetResult, auth.RequireCapability(auth.CapInvestigationRead))
	api.PATCH("/investigations/results/:id/review", h.ReviewResult, auth.RequireCapability(auth.CapInvestigationReview))
}

func (h *Handler) ListResults(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var f ListFilter
	if v := c.QueryParam("orderId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "orderId", Message: "must be a uuid"})
		}
		f.OrderID = &id
	}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "patientId", Message: "must be a uuid"})
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("reviewed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "reviewed", Message: "must be a boolean"})
		}
		f.Reviewed = &b
	}

	pg := pagination.FromContext(c)
	results, total, err := h.svc.ListResults(ctx, actor.ID, f, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	if results == nil {
		results = []*Result{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, total, pg))
}

func (h *Handler) GetResult(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation(apperror.Issue{Field: "id", Message: "must be a uuid"})
	}

	res, err := h.svc.GetResult(ctx, actor.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ReviewResult(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation(apperror.Issue{Field: "id", Message: "must be a uuid"})
	}

	var in ReviewInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	res, err := h.svc.Review(ctx, actor.ID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
