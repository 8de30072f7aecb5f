package handler

// Every response body is JSON. Errors share one shape:
//
//	{"status":"error","message":"username already taken","field":"username"}
//
// "details" carries the underlying cause and is only present when the
// server runs in debug mode (APP_DEBUG=true).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/usuarios-api/internal/apperror"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusResponse acknowledges an action that returns no resource.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	UUID    string `json:"uuid,omitempty"`
}

// Responder writes JSON bodies and maps errors to status codes.
type Responder struct {
	logger *slog.Logger
	debug  bool
}

func NewResponder(logger *slog.Logger, debug bool) *Responder {
	return &Responder{logger: logger, debug: debug}
}

// JSON writes data with the given status. Headers must be set before the
// first body byte, so Content-Type and the status go out first.
func (rs *Responder) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; all we can do is log.
		rs.logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// Error maps err to a status code and writes the error envelope.
//
//	ErrValidation       → 400
//	ErrUnauthorized     → 401
//	ErrForbidden        → 403
//	ErrNotFound         → 404
//	ErrMethodNotAllowed → 405
//	ErrConflict         → 409
//	anything else       → 500, generic message
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	resp := ErrorResponse{Status: "error"}

	var appErr *apperror.AppError
	if status < 500 && errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	} else {
		resp.Message = "internal server error"
		rs.logger.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", errorDetail(err)),
		)
	}

	if rs.debug {
		resp.Details = errorDetail(err)
	}

	rs.JSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail includes the cause of an AppError, which Error() omits.
func errorDetail(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Message + ": " + appErr.Cause.Error()
	}
	return err.Error()
}
