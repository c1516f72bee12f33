package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// record is one log call after level filtering.
type record struct {
	time          time.Time
	level         Level
	msg           string
	correlationID string
	fields        Fields
}

// Entry is the JSON shape of one log line.
type Entry struct {
	Timestamp     string                 `json:"ts"`
	Level         string                 `json:"level"`
	Message       string                 `json:"msg"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

type formatter interface {
	write(w io.Writer, rec record)
}

func formatterFor(name string) formatter {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return jsonFormatter{}
	}
	return textFormatter{}
}

func message(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

type jsonFormatter struct{}

func (jsonFormatter) write(w io.Writer, rec record) {
	entry := Entry{
		Timestamp:     rec.time.UTC().Format(time.RFC3339),
		Level:         rec.level.String(),
		Message:       rec.msg,
		CorrelationID: rec.correlationID,
	}
	if len(rec.fields) > 0 {
		entry.Fields = rec.fields
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(w, "ERROR: failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')
	_, _ = w.Write(data)
}

// textFormatter writes "2006/01/02 15:04:05 [corr] [LEVEL] msg {k=v, ...}".
type textFormatter struct{}

func (textFormatter) write(w io.Writer, rec record) {
	var b strings.Builder
	b.WriteString(rec.time.Format("2006/01/02 15:04:05"))
	if rec.correlationID != "" {
		fmt.Fprintf(&b, " [%s]", shortID(rec.correlationID))
	}
	fmt.Fprintf(&b, " [%s] %s", rec.level, rec.msg)

	if len(rec.fields) > 0 {
		keys := make([]string, 0, len(rec.fields))
		for k := range rec.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, rec.fields[k])
		}
		b.WriteString("}")
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(w, b.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
