package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/stackcheck/internal/validate"
)

func TestSuccessResponse(t *testing.T) {
	resp := SuccessResponse(map[string]string{"key": "value"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Error)
	assert.Equal(t, Version, resp.Version)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err, "timestamp should be RFC3339")
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(errors.New("invalid YAML syntax"))

	assert.False(t, resp.Success)
	assert.Equal(t, "invalid YAML syntax", resp.Error)
	assert.Nil(t, resp.Data)
	assert.Equal(t, Version, resp.Version)
}

func TestWriteJSONData(t *testing.T) {
	var buf bytes.Buffer
	issues := []validate.Issue{{
		Severity: validate.SeverityError,
		Entity:   validate.EntityService,
		Name:     "web",
		Message:  "Missing image or build context",
	}}

	require.NoError(t, WriteJSONData(&buf, map[string]interface{}{"issues": issues}))

	out := buf.String()
	assert.True(t, strings.Contains(out, "\n  "), "output should be indented")

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			Issues []validate.Issue `json:"issues"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.True(t, parsed.Success)
	assert.Equal(t, issues, parsed.Data.Issues)
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONError(&buf, errors.New("something went wrong")))

	var parsed Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.False(t, parsed.Success)
	assert.Equal(t, "something went wrong", parsed.Error)
	assert.NotContains(t, buf.String(), `"data"`)
}

func TestWriteJSONErrorWithData(t *testing.T) {
	var buf bytes.Buffer
	counts := validate.Counts{Errors: 2}

	require.NoError(t, WriteJSONErrorWithData(&buf, errors.New("validation failed"), counts))

	var parsed Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.False(t, parsed.Success)
	assert.Equal(t, "validation failed", parsed.Error)

	data, ok := parsed.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["errors"])
}

func TestResponseOmitsEmptyFields(t *testing.T) {
	ok, err := json.Marshal(Response{Success: true, Data: "x", Timestamp: "t", Version: "v"})
	require.NoError(t, err)
	assert.NotContains(t, string(ok), `"error"`)

	failed, err := json.Marshal(Response{Error: "boom", Timestamp: "t", Version: "v"})
	require.NoError(t, err)
	assert.NotContains(t, string(failed), `"data"`)
}

func TestEnvelopeTimestampAndNilError(t *testing.T) {
	prev := now
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	resp := ErrorResponse(nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "unknown error", resp.Error)
	assert.Equal(t, "2026-03-01T09:30:00Z", resp.Timestamp)

	assert.False(t, ErrorMessageResponse("").Success)
}
