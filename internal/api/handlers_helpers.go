package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Sentinel errors for missing services
var (
	errNoStorage = errors.New("report history is not enabled")
	errNoDocker  = errors.New("docker is not available")
	errNoEvents  = errors.New("event stream is not enabled")
	errEmptyBody = errors.New("request body is empty")
)

// parseIntParam parses an integer query parameter with a default value
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// parsePositiveIntParam parses a positive integer query parameter with a default value.
// Returns defaultVal if the parameter is missing, invalid, or not positive.
func parsePositiveIntParam(r *http.Request, name string, defaultVal int) int {
	n := parseIntParam(r, name, defaultVal)
	if n <= 0 {
		return defaultVal
	}
	return n
}

// parseBoolParam parses a boolean query parameter
func parseBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// validateRequired checks that a required parameter is not empty.
// Returns true if valid, false if empty (and writes error response).
func validateRequired(w http.ResponseWriter, name, value string) bool {
	if value == "" {
		RespondBadRequest(w, fmt.Errorf("%s is required", name))
		return false
	}
	return true
}

// decodeJSON reads a size-limited JSON body into v.
// Returns false after writing an error response when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			RespondBadRequest(w, errEmptyBody)
		case errors.As(err, &maxBytesErr):
			RespondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit))
		default:
			RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		}
		return false
	}
	return true
}

// requireStorage checks if storage is available and writes a 503 if not
func (s *Server) requireStorage(w http.ResponseWriter) bool {
	if s.storage == nil {
		RespondServiceUnavailable(w, errNoStorage)
		return false
	}
	return true
}

// requireDocker checks if the Docker project lister is available
func (s *Server) requireDocker(w http.ResponseWriter) bool {
	if s.docker == nil {
		RespondServiceUnavailable(w, errNoDocker)
		return false
	}
	return true
}

// requireEvents checks if the event bus is available
func (s *Server) requireEvents(w http.ResponseWriter) bool {
	if s.eventBus == nil {
		RespondServiceUnavailable(w, errNoEvents)
		return false
	}
	return true
}
