package progressnote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chartd/chartd/internal/platform/apperror"
	"github.com/chartd/chartd/internal/platform/auth"
)

func authedContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
	actor := &auth.Actor{ID: uuid.New(), Capabilities: []string{
		auth.CapNoteRead, auth.CapNoteCreate, auth.CapNoteUpdate, auth.CapNoteFinalize,
	}}
	req = req.WithContext(auth.WithActor(req.Context(), actor))
	return e.NewContext(req, rec)
}

func TestHandler_CreateNote(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	encID, patientID := uuid.New(), uuid.New()
	dir.patients[encID] = patientID

	body := `{"encounterId":"` + encID.String() + `","patientId":"` + patientID.String() +
		`","subjective":"presents with cough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress-notes", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateNote(authedContext(e, req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var n Note
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if n.Status != StatusDraft {
		t.Errorf("expected draft status, got %s", n.Status)
	}
	if n.Subjective == nil || *n.Subjective != "presents with cough" {
		t.Error("subjective not persisted")
	}
}

func TestHandler_GetNote_BadID(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress-notes/nope", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetNote(c)
	ae := apperror.As(err)
	if ae == nil || ae.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %v", err)
	}
}

func TestHandler_UpdateNote_Locked(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	n := seedDraft(t, svc, dir)
	if _, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "abcdef0123456789",
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	body := `{"id":"` + n.ID.String() + `","plan":"late change"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/progress-notes", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.UpdateNote(authedContext(e, req, rec))
	if !apperror.IsConflict(err) {
		t.Fatalf("expected 409 editing a finalized note, got %v", err)
	}
}

func TestHandler_FinalizeNote(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	n := seedDraft(t, svc, dir)

	body := `{"id":"` + n.ID.String() + `","signatureHash":"abcdef0123456789"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress-notes/finalize", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.FinalizeNote(authedContext(e, req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var signed Note
	if err := json.Unmarshal(rec.Body.Bytes(), &signed); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if signed.Status != StatusFinalized || signed.SignatureHash == nil {
		t.Errorf("expected a signed note, got %+v", signed)
	}
}

func TestHandler_ListNotes_StatusFilter(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	seedDraft(t, svc, dir)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress-notes?status=torn_up", nil)
	rec := httptest.NewRecorder()

	err := h.ListNotes(authedContext(e, req, rec))
	ae := apperror.As(err)
	if ae == nil || ae.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/progress-notes?status=draft", nil)
	rec = httptest.NewRecorder()
	if err := h.ListNotes(authedContext(e, req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var envelope struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if envelope.Total != 1 || len(envelope.Items) != 1 {
		t.Errorf("expected 1 draft, got total=%d len=%d", envelope.Total, len(envelope.Items))
	}
}
