package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"adflow/internal/domain"
	"adflow/internal/infra"
	"adflow/internal/pipeline"
)

const conflictMessage = "work item is being processed, try again shortly"

// maxBodyBytes bounds JSON request bodies; page markup is the largest payload.
const maxBodyBytes = 8 << 20

// App holds what the HTTP handlers need.
type App struct {
	Service *pipeline.Service
	Logger  infra.Logger
	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

func NewApp(svc *pipeline.Service, logger infra.Logger, ready func(ctx context.Context) error) *App {
	return &App{Service: svc, Logger: logger, Ready: ready}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: kind, Message: message})
}

// fail maps a service error onto a status code and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", conflictMessage)
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		a.error(w, http.StatusBadGateway, "upstream_timeout", err.Error())
	case errors.Is(err, domain.ErrUpstream):
		a.error(w, http.StatusBadGateway, "upstream", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "request cancelled")
	default:
		a.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("http: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid payload: %v", err))
		return false
	}
	return true
}

// logger prefers the request-scoped logger installed by the middleware.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
