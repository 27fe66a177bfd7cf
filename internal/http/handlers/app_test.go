package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
)

func TestFailMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid", err: fmt.Errorf("%w: template_id required", domain.ErrInvalidInput), code: http.StatusBadRequest},
		{name: "tier", err: domain.ErrUnsupportedTier, code: http.StatusBadRequest},
		{name: "forbidden", err: domain.ErrForbidden, code: http.StatusForbidden},
		{name: "not found", err: domain.ErrNotFound, code: http.StatusNotFound},
		{name: "credential not found", err: domain.ErrCredentialNotFound, code: http.StatusNotFound},
		{name: "consumed", err: domain.ErrCredentialConsumed, code: http.StatusGone},
		{name: "mismatch", err: domain.ErrCredentialMismatch, code: http.StatusUnauthorized},
		{name: "quota", err: &domain.QuotaExceededError{Limit: 3}, code: http.StatusTooManyRequests},
		{name: "transition", err: fmt.Errorf("dispatch: %w", domain.ErrInvalidTransition), code: http.StatusConflict},
		{name: "internal", err: errors.New("disk on fire"), code: http.StatusInternalServerError},
	}
	app := NewApp(nil, zerolog.Nop())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.fail(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/x", nil), tc.err)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "" {
				t.Fatal("missing error code")
			}
			if tc.code == http.StatusInternalServerError && body["message"] != "internal error" {
				t.Fatalf("internal error leaked: %v", body["message"])
			}
			if tc.code == http.StatusTooManyRequests && body["limit"] != float64(3) {
				t.Fatalf("limit = %v, want 3", body["limit"])
			}
		})
	}
}

func TestDescribeInvalid(t *testing.T) {
	app := NewApp(nil, zerolog.Nop())
	err := app.validate.Struct(downloadRequest{})
	if got := describeInvalid(err); got != "password failed required" {
		t.Fatalf("describeInvalid = %q", got)
	}
	if got := describeInvalid(errors.New("x")); got != "invalid payload" {
		t.Fatalf("describeInvalid = %q", got)
	}
}
