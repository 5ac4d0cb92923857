package progressnote

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
	api.GET("/progress-notes", h.ListNotes, auth.RequireCapability(auth.CapNoteRead))
	api.GET("/progress-notes/:id", h.GetNote, auth.RequireCapability(auth.CapNoteRead))
	api.POST("/progress-notes", h.CreateNote, auth.RequireCapability(auth.CapNoteCreate))
	api.PUT("/progress-notes", h.UpdateNote, auth.RequireCapability(auth.CapNoteUpdate))
	api.POST("/progress-notes/finalize", h.FinalizeNote, auth.RequireCapability(auth.CapNoteFinalize))
}

func (h *Handler) ListNotes(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var f ListFilter
	if v := c.QueryParam("encounterId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "encounterId", Message: "must be a uuid"})
		}
		f.EncounterID = &id
	}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation(apperror.Issue{Field: "patientId", Message: "must be a uuid"})
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		if !validStatuses[v] {
			return apperror.Validation(apperror.Issue{Field: "status", Message: "unknown status"})
		}
		f.Status = &v
	}

	pg := pagination.FromContext(c)
	notes, total, err := h.svc.List(ctx, actor.ID, f, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}
	if notes == nil {
		notes = []*Note{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(notes, total, pg))
}

func (h *Handler) GetNote(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation(apperror.Issue{Field: "id", Message: "must be a uuid"})
	}

	n, err := h.svc.Get(ctx, actor.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) CreateNote(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	n, err := h.svc.CreateDraft(ctx, actor.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var patch UpdatePatch
	if err := c.Bind(&patch); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	n, err := h.svc.UpdateDraft(ctx, actor.ID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) FinalizeNote(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return err
	}

	var in FinalizeInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation(apperror.Issue{Field: "body", Message: "malformed request body"})
	}

	n, err := h.svc.Finalize(ctx, actor.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}
