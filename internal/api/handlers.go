package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/events"
	"github.com/chis/stackcheck/internal/graph"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/output"
	"github.com/chis/stackcheck/internal/storage"
	"github.com/chis/stackcheck/internal/validate"
	"github.com/chis/stackcheck/internal/workspace"
)

// ProjectInput is one compose document posted by a client.
type ProjectInput struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ValidateResponse is returned by POST /api/validate.
type ValidateResponse struct {
	Project  string           `json:"project"`
	Issues   []validate.Issue `json:"issues"`
	Counts   validate.Counts  `json:"counts"`
	ReportID string           `json:"report_id,omitempty"`
}

// CompareRequest is the body of POST /api/compare.
type CompareRequest struct {
	Projects []ProjectInput `json:"projects"`
}

// ProjectRef identifies a compared project without its content.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompareResponse is returned by POST /api/compare.
type CompareResponse struct {
	Projects []ProjectRef     `json:"projects"`
	Results  []compare.Result `json:"results"`
	Summary  compare.Summary  `json:"summary"`
	ReportID string           `json:"report_id,omitempty"`
}

// GraphResponse is returned by POST /api/graph.
type GraphResponse struct {
	Services   []string            `json:"services"`
	StartOrder []string            `json:"start_order"`
	StopOrder  []string            `json:"stop_order"`
	Cycle      []string            `json:"cycle,omitempty"`
	Missing    map[string][]string `json:"missing,omitempty"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, map[string]any{
		"status":  "healthy",
		"version": output.Version,
		"services": map[string]bool{
			"docker":  s.docker != nil,
			"storage": s.storage != nil,
			"history": s.recorder.Enabled(),
			"events":  s.eventBus != nil,
		},
	})
}

// handleValidate checks a single compose document
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequired(w, "content", req.Content) {
		return
	}

	doc, err := compose.Parse([]byte(req.Content))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	issues := validate.Validate(doc)
	resp := ValidateResponse{
		Project: workspace.ProjectName(doc, req.Name),
		Issues:  issues,
		Counts:  validate.Count(issues),
	}
	resp.ReportID = s.record(r.Context(), func(ctx context.Context) (string, error) {
		return s.recorder.RecordValidation(ctx, resp.Project, issues)
	})

	RespondSuccess(w, resp)
}

// handleCompare checks several compose documents against each other
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Projects) > s.maxProjects {
		RespondBadRequest(w, fmt.Errorf("too many projects: got %d, max %d", len(req.Projects), s.maxProjects))
		return
	}

	ws := workspace.New(s.maxProjects)
	for i, in := range req.Projects {
		if _, err := ws.AddYAML(in.Name, []byte(in.Content)); err != nil {
			RespondDomainError(w, fmt.Errorf("project %d: %w", i+1, err))
			return
		}
	}

	projects := ws.Projects()
	refs := make([]ProjectRef, 0, len(projects))
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		refs = append(refs, ProjectRef{ID: p.ID, Name: p.Name})
		names = append(names, p.Name)
	}

	results := compare.Compare(projects)
	resp := CompareResponse{
		Projects: refs,
		Results:  results,
		Summary:  compare.Summarize(results),
	}
	resp.ReportID = s.record(r.Context(), func(ctx context.Context) (string, error) {
		return s.recorder.RecordComparison(ctx, names, results)
	})

	RespondSuccess(w, resp)
}

// handleGraph returns the dependency order of a compose document
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var req ProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := compose.Parse([]byte(req.Content))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	g := graph.BuildFromDocument(doc)
	resp := GraphResponse{
		Services:   g.IDs(),
		StartOrder: []string{},
		StopOrder:  []string{},
		Missing:    g.MissingDependencies(),
	}

	if cycle := g.FindCycle(); cycle != nil {
		resp.Cycle = cycle
	} else {
		start, err := g.StartOrder()
		if err != nil {
			RespondInternalError(w, err)
			return
		}
		stop, _ := g.StopOrder()
		resp.StartOrder = start
		resp.StopOrder = stop
	}

	RespondSuccess(w, resp)
}

// handleReports lists stored reports, newest first
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if !s.requireStorage(w) {
		return
	}

	limit := parsePositiveIntParam(r, "limit", DefaultReportLimit)
	if limit > MaxReportLimit {
		limit = MaxReportLimit
	}

	kind := storage.ReportKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", storage.KindValidate, storage.KindCompare:
	default:
		RespondBadRequest(w, fmt.Errorf("unknown report kind %q", kind))
		return
	}

	reports, err := s.storage.ListReports(r.Context(), kind, limit)
	if err != nil {
		RespondInternalError(w, err)
		return
	}

	// Payloads are only returned by the single report endpoint
	if !parseBoolParam(r, "payload") {
		for i := range reports {
			reports[i].Payload = nil
		}
	}

	RespondSuccess(w, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// handleReportByID returns one stored report with its payload
func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireStorage(w) {
		return
	}

	id := r.PathValue("id")
	if !validateRequired(w, "id", id) {
		return
	}

	report, err := s.storage.GetReport(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, report)
}

// handleProjects lists compose projects known to the Docker daemon
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !s.requireDocker(w) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DiscoveryTimeout)
	defer cancel()

	projects, err := s.docker.ComposeProjects(ctx)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, map[string]any{
		"projects": projects,
		"count":    len(projects),
	})
}

// handleEvents streams run and report events as Server-Sent Events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireEvents(w) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondInternalError(w, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Long-lived stream, lift the server write deadline
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	eventChan, unsubscribe := s.eventBus.Subscribe(events.Wildcard)
	defer unsubscribe()

	ctx := r.Context()
	s.log.DebugContext(ctx, "Event stream client connected")

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(EventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.DebugContext(ctx, "Event stream client disconnected")
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}

			data, err := events.MarshalEvent(event)
			if err != nil {
				s.log.WarnContext(ctx, "Failed to encode event %s: %v", event.Type, err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
			heartbeat.Reset(EventHeartbeat)
		}
	}
}

// record runs fn and returns the report ID. Failures are logged and never
// fail the request.
func (s *Server) record(ctx context.Context, fn func(context.Context) (string, error)) string {
	id, err := fn(ctx)
	if err != nil {
		logging.WarnContext(ctx, "Failed to record report: %v", err)
		return ""
	}
	return id
}
