package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/jobs"
	"github.com/aiinpocket/HomePage/internal/middleware"
)

// defaultMaxUploadBytes bounds a whole submit request, assets included.
const defaultMaxUploadBytes = 32 << 20

// Gauge reports a current value together with its bound.
type Gauge interface {
	Limit() int
	InUse() int
}

// Queue reports the in-process worker backlog.
type Queue interface {
	Pending() int
	Active() int
}

type App struct {
	Jobs   *jobs.Service
	Logger zerolog.Logger
	// Admission and Queue are nil when jobs run in a separate worker process.
	Admission      Gauge
	Queue          Queue
	MaxUploadBytes int64

	validate *validator.Validate
}

func NewApp(svc *jobs.Service, logger zerolog.Logger) *App {
	return &App{
		Jobs:           svc,
		Logger:         logger,
		MaxUploadBytes: defaultMaxUploadBytes,
		validate:       validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": errCode, "message": message})
}

func (a *App) requester(r *http.Request) string {
	return middleware.OwnerFromContext(r.Context())
}

// fail maps a service error onto a status code and logs it at a level
// matching who caused it.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	event := a.Logger.Error()
	if jobs.IsClientError(err) {
		event = a.Logger.Debug()
	}
	event.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")

	var quota *domain.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":   "quota_exceeded",
			"message": err.Error(),
			"limit":   quota.Limit,
		})
	case errors.Is(err, domain.ErrCredentialConsumed):
		a.error(w, http.StatusGone, "credential_consumed", "download password already used")
	case errors.Is(err, domain.ErrCredentialMismatch):
		a.error(w, http.StatusUnauthorized, "credential_mismatch", "incorrect download password")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedTier):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "not allowed for this job")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
