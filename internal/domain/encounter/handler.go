package encounter

import (
	"net/http"
	"time"

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
	api.GET("/encounters", h.ListEncounters, auth.RequireCapability(auth.CapEncounterRead))
	api.POST("/encounters", h.CreateEncounter, auth.RequireCapability(auth.CapEncounterCreate))
	api.PUT("/encounters", h.UpdateEncounter, auth.RequireCapability(auth.CapEncounterUpdate))
}

func (h *Handler) ListEncounters(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	f, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, actor.ID, f, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*ListItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateEncounter(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	res, err := h.svc.Create(ctx, actor.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateEncounter(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var patch UpdatePatch
	if err := c.Bind(&patch); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	res, err := h.svc.Update(ctx, actor.ID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func listFilterFromQuery(c echo.Context) (ListFilter, error) {
	var f ListFilter
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperror.Validation(apperror.Issue{Field: "patientId", Message: "must be a uuid"})
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("providerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperror.Validation(apperror.Issue{Field: "providerId", Message: "must be a uuid"})
		}
		f.ProviderID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		if !validStatuses[v] {
			return f, apperror.Validation(apperror.Issue{Field: "status", Message: "unknown status"})
		}
		f.Status = &v
	}
	if v := c.QueryParam("dateFrom"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, apperror.Validation(apperror.Issue{Field: "dateFrom", Message: "must be RFC 3339"})
		}
		f.DateFrom = &t
	}
	if v := c.QueryParam("dateTo"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, apperror.Validation(apperror.Issue{Field: "dateTo", Message: "must be RFC 3339"})
		}
		f.DateTo = &t
	}
	return f, nil
}
