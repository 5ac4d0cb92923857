package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chartd/chartd/internal/platform/apperror"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	err := RequestID()(func(c echo.Context) error {
		seen = GetRequestID(c)
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if got := rec.Header().Get(echo.HeaderXRequestID); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}
}

func TestRequestID_HonorsInboundHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "corr-1234")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.Header().Get(echo.HeaderXRequestID); got != "corr-1234" {
		t.Errorf("expected inbound id echoed back, got %q", got)
	}
}

func render(t *testing.T, err error) (int, problem) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(err, c)

	var p problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("bad problem body: %v", err)
	}
	return rec.Code, p
}

func TestErrorHandler_DomainError(t *testing.T) {
	code, p := render(t, apperror.Validation(apperror.Issue{Field: "patientId", Message: "required"}))

	if code != http.StatusBadRequest || p.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got code=%d status=%d", code, p.Status)
	}
	if p.Title != "ValidationFailed" {
		t.Errorf("expected ValidationFailed, got %q", p.Title)
	}
	if len(p.Issues) != 1 || p.Issues[0].Field != "patientId" {
		t.Errorf("issues not rendered: %+v", p.Issues)
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	code, p := render(t, echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))

	if code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", code)
	}
	if p.Detail != "method not allowed" {
		t.Errorf("expected echo message carried through, got %q", p.Detail)
	}
}

func TestErrorHandler_InternalDetailStripped(t *testing.T) {
	code, p := render(t, apperror.Unexpected(errors.New("pq: connection refused to 10.0.0.4")))

	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if p.Detail != "" {
		t.Errorf("internal detail must not leak, got %q", p.Detail)
	}
	if p.Title != "Unexpected" {
		t.Errorf("expected Unexpected, got %q", p.Title)
	}
}

func TestErrorHandler_UnknownErrorIs500(t *testing.T) {
	code, p := render(t, errors.New("boom"))

	if code != http.StatusInternalServerError || p.Title != "Unexpected" {
		t.Errorf("plain errors must render as 500 Unexpected, got code=%d title=%q", code, p.Title)
	}
}

func TestErrorHandler_HeadHasNoBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(apperror.NotFound("encounter"), c)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD responses must carry no body, got %q", rec.Body.String())
	}
}
