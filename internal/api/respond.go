package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/output"
	"github.com/chis/stackcheck/internal/storage"
	"github.com/chis/stackcheck/internal/workspace"
)

func writeEnvelope(w http.ResponseWriter, status int, resp output.Response) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	output.WriteJSON(w, resp)
}

// RespondError writes an error envelope with the given status.
func RespondError(w http.ResponseWriter, statusCode int, err error) {
	writeEnvelope(w, statusCode, output.ErrorResponse(err))
}

func RespondBadRequest(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusBadRequest, err)
}

func RespondNotFound(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusNotFound, err)
}

func RespondInternalError(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusInternalServerError, err)
}

// RespondServiceUnavailable is used for optional backends that are not configured
// or not reachable.
func RespondServiceUnavailable(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusServiceUnavailable, err)
}

// RespondErrorWithData writes a failed envelope that still carries data,
// such as the findings behind a failure.
func RespondErrorWithData(w http.ResponseWriter, statusCode int, err error, data any) {
	resp := output.ErrorResponse(err)
	resp.Data = data
	writeEnvelope(w, statusCode, resp)
}

func RespondSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, output.SuccessResponse(data))
}

func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps package sentinel errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, compose.ErrInvalidYAML):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, docker.ErrDaemonUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError writes err with the status its sentinel maps to.
func RespondDomainError(w http.ResponseWriter, err error) {
	RespondError(w, statusFor(err), err)
}
