package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		name   string
		err    *Error
		status int
		title  string
	}{
		{"unauthenticated", Unauthenticated("missing bearer token"), http.StatusUnauthorized, "Unauthenticated"},
		{"unauthorized", Unauthorized("note.finalize"), http.StatusForbidden, "Unauthorized"},
		{"validation", Validation(Issue{Field: "patientId", Message: "required"}), http.StatusBadRequest, "ValidationFailed"},
		{"not found", NotFound("encounter"), http.StatusNotFound, "NotFound"},
		{"conflict", Conflict("note is already finalized"), http.StatusConflict, "Conflict"},
		{"unexpected", Unexpected(errors.New("boom")), http.StatusInternalServerError, "Unexpected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Status != tc.status {
				t.Errorf("status: got %d, want %d", tc.err.Status, tc.status)
			}
			if tc.err.Title != tc.title {
				t.Errorf("title: got %q, want %q", tc.err.Title, tc.title)
			}
		})
	}
}

func TestAs_UnwrapsThroughWrapping(t *testing.T) {
	inner := NotFound("progress note")
	wrapped := fmt.Errorf("load note: %w", inner)

	ae := As(wrapped)
	if ae == nil || ae.Status != http.StatusNotFound {
		t.Fatalf("expected the wrapped NotFound, got %v", ae)
	}
	if As(errors.New("plain")) != nil {
		t.Error("plain errors must not convert")
	}
	if As(nil) != nil {
		t.Error("nil must not convert")
	}
}

func TestUnexpected_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unexpected(cause)

	if !errors.Is(err, cause) {
		t.Error("cause must be reachable through Unwrap")
	}
	if err.Error() != "Unexpected" {
		t.Errorf("cause must not leak into the message, got %q", err.Error())
	}
}

func TestPredicates(t *testing.T) {
	if !IsConflict(Conflict("x")) || IsConflict(NotFound("x")) {
		t.Error("IsConflict misclassified")
	}
	if !IsNotFound(NotFound("x")) || IsNotFound(Conflict("x")) {
		t.Error("IsNotFound misclassified")
	}
	if IsConflict(nil) || IsNotFound(nil) {
		t.Error("nil must satisfy no predicate")
	}
}
