package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chartd/chartd/internal/platform/apperror"
)

// problem is the uniform error envelope returned on every failed request.
type problem struct {
	Title  string           `json:"title"`
	Status int              `json:"status"`
	Detail string           `json:"detail,omitempty"`
	Issues []apperror.Issue `json:"issues,omitempty"`
}

// ErrorHandler converts domain and echo errors into the problem envelope.
// Internal causes are logged with the request id and never leak to callers.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := problem{Title: "Unexpected", Status: http.StatusInternalServerError}

		switch {
		case apperror.As(err) != nil:
			ae := apperror.As(err)
			p.Title = ae.Title
			p.Status = ae.Status
			p.Detail = ae.Detail
			p.Issues = ae.Issues
		default:
			if he, ok := err.(*echo.HTTPError); ok {
				p.Status = he.Code
				p.Title = http.StatusText(he.Code)
				if msg, ok := he.Message.(string); ok {
					p.Detail = msg
				}
			}
		}

		if p.Status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			p.Detail = ""
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(p.Status)
			return
		}
		_ = c.JSON(p.Status, p)
	}
}
