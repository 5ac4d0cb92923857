package provenance

import (
	"net/http"

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
	api.GET("/audit-events", h.ListAuditEvents, auth.RequireCapability(auth.CapAuditRead))
}

func (h *Handler) ListAuditEvents(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f ListFilter
	if v := c.QueryParam("actorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "actorId", Message: "must be a uuid"})
		}
		f.ActorID = &id
	}
	if v := c.QueryParam("action"); v != "" {
		f.Action = &v
	}
	if v := c.QueryParam("entityType"); v != "" {
		f.EntityType = &v
	}
	if v := c.QueryParam("entityId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "entityId", Message: "must be a uuid"})
		}
		f.EntityID = &id
	}

	items, total, err := h.svc.ListRecords(c.Request().Context(), f, pg.Limit(), pg.Offset())
	if err != nil {
		return apperror.Unexpected(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
