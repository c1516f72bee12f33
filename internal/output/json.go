// Package output renders command results as a JSON envelope or as
// human-readable text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Version is the stackcheck version, overridden at build time with
// -ldflags "-X github.com/chis/stackcheck/internal/output.Version=..."
var Version = "dev"

// now is replaced in tests.
var now = time.Now

// Response is the JSON envelope shared by the CLI (--json) and the API.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"` // RFC3339
	Version   string      `json:"version"`
}

func envelope(data interface{}, errMsg string) Response {
	return Response{
		Success:   errMsg == "",
		Data:      data,
		Error:     errMsg,
		Timestamp: now().Format(time.RFC3339),
		Version:   Version,
	}
}

func SuccessResponse(data interface{}) Response {
	return envelope(data, "")
}

// ErrorResponse wraps err. A nil error still yields a failed response.
func ErrorResponse(err error) Response {
	if err == nil {
		return ErrorMessageResponse("unknown error")
	}
	return ErrorMessageResponse(err.Error())
}

func ErrorMessageResponse(message string) Response {
	resp := envelope(nil, message)
	resp.Success = false
	return resp
}

// WriteJSON writes response as indented JSON.
func WriteJSON(w io.Writer, response Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func WriteJSONData(w io.Writer, data interface{}) error {
	return WriteJSON(w, SuccessResponse(data))
}

func WriteJSONError(w io.Writer, err error) error {
	return WriteJSON(w, ErrorResponse(err))
}

// WriteJSONErrorWithData writes a failed response that still carries data,
// e.g. the diagnostics that made a validation fail.
func WriteJSONErrorWithData(w io.Writer, err error, data interface{}) error {
	resp := ErrorResponse(err)
	resp.Data = data
	return WriteJSON(w, resp)
}
