package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/events"
	"github.com/chis/stackcheck/internal/storage"
)

// ============================================================================
// Test helpers
// ============================================================================

type fakeLister struct {
	projects []docker.ComposeProject
	err      error
}

func (f *fakeLister) ComposeProjects(ctx context.Context) ([]docker.ComposeProject, error) {
	return f.projects, f.err
}

// envelope mirrors output.Response with a typed data field.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.DisableRateLimit = true
	return NewServer(cfg)
}

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

const webYAML = `name: shop
services:
  web:
    image: nginx
    container_name: web
    ports: ["8080:80"]
    networks: [front]
`

const apiYAML = `name: blog
services:
  web:
    image: ghost
    container_name: web
    ports: ["8080:2368"]
`

// ============================================================================
// Response function tests
// ============================================================================

func TestRespondSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	RespondSuccess(w, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["success"].(bool))
	assert.NotNil(t, response["data"])
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
	}{
		{"400 bad request", http.StatusBadRequest, errors.New("bad request")},
		{"404 not found", http.StatusNotFound, errors.New("not found")},
		{"500 internal error", http.StatusInternalServerError, errors.New("internal error")},
		{"503 service unavailable", http.StatusServiceUnavailable, errors.New("service unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondError(w, tt.statusCode, tt.err)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.err.Error())
		})
	}
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid yaml", fmt.Errorf("project 1: %w", compose.ErrInvalidYAML), http.StatusBadRequest},
		{"missing report", fmt.Errorf("%w: abc", storage.ErrNotFound), http.StatusNotFound},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"daemon circuit open", docker.ErrDaemonUnavailable, http.StatusServiceUnavailable},
		{"discovery timeout", fmt.Errorf("list containers: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondDomainError(w, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	RespondNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

// ============================================================================
// Helper function tests
// ============================================================================

func TestParseIntParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/reports?limit=5&neg=-2&bad=x", nil)

	assert.Equal(t, 5, parseIntParam(r, "limit", 20))
	assert.Equal(t, 20, parseIntParam(r, "bad", 20))
	assert.Equal(t, 20, parseIntParam(r, "missing", 20))
	assert.Equal(t, -2, parseIntParam(r, "neg", 20))
	assert.Equal(t, 20, parsePositiveIntParam(r, "neg", 20))
	assert.Equal(t, 5, parsePositiveIntParam(r, "limit", 20))
}

func TestParseBoolParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?a=true&b=1&c=no", nil)

	assert.True(t, parseBoolParam(r, "a"))
	assert.True(t, parseBoolParam(r, "b"))
	assert.False(t, parseBoolParam(r, "c"))
	assert.False(t, parseBoolParam(r, "d"))
}

// ============================================================================
// Handler tests
// ============================================================================

func TestHandleHealth(t *testing.T) {
	t.Run("empty server", func(t *testing.T) {
		s := &Server{}
		w := httptest.NewRecorder()
		s.handleHealth(w, httptest.NewRequest("GET", "/api/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		env := decode[map[string]any](t, w)
		assert.Equal(t, "healthy", env.Data["status"])

		services := env.Data["services"].(map[string]any)
		assert.False(t, services["docker"].(bool))
		assert.False(t, services["storage"].(bool))
		assert.False(t, services["history"].(bool))
		assert.False(t, services["events"].(bool))
	})

	t.Run("with backends", func(t *testing.T) {
		s := newTestServer(t, Config{Storage: newTestStorage(t), RecordHistory: true, Docker: &fakeLister{}})
		rec := do(t, s.Handler(), "GET", "/api/health", nil)

		env := decode[map[string]any](t, rec)
		services := env.Data["services"].(map[string]any)
		assert.True(t, services["docker"].(bool))
		assert.True(t, services["storage"].(bool))
		assert.True(t, services["history"].(bool))
	})
}

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), "POST", "/api/validate", ProjectInput{
		Name: "compose.yaml",
		Content: `services:
  web:
    ports: ["80:80"]
  api:
    image: node
    depends_on: [db]
`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode[ValidateResponse](t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "compose", env.Data.Project)
	assert.Equal(t, 2, env.Data.Counts.Errors)
	require.Len(t, env.Data.Issues, 2)
	assert.Equal(t, "Missing image or build context", env.Data.Issues[0].Message)
	assert.Equal(t, `Dependency "db" not found`, env.Data.Issues[1].Message)
	assert.Empty(t, env.Data.ReportID)
}

func TestHandleValidate_BadInput(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid yaml", ProjectInput{Content: "services: [\n"}, http.StatusBadRequest},
		{"missing content", ProjectInput{Name: "x"}, http.StatusBadRequest},
		{"empty body", "", http.StatusBadRequest},
		{"not json", "{nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), "POST", "/api/validate", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			env := decode[any](t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestHandleValidate_TooLarge(t *testing.T) {
	s := newTestServer(t, Config{})
	huge := ProjectInput{Content: strings.Repeat("#", MaxRequestBodyBytes+1)}

	rec := do(t, s.Handler(), "POST", "/api/validate", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleCompare(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{
		{Content: webYAML},
		{Content: apiYAML},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode[CompareResponse](t, rec)
	require.Len(t, env.Data.Projects, 2)
	assert.Equal(t, "shop", env.Data.Projects[0].Name)
	assert.Equal(t, "blog", env.Data.Projects[1].Name)

	require.Len(t, env.Data.Results, 3)
	assert.Equal(t, "Port 8080 is bound by multiple projects", env.Data.Results[0].Message)
	assert.Equal(t, `Container name "web" is used by multiple projects`, env.Data.Results[1].Message)
	assert.Equal(t, `Service name "web" exists in multiple projects`, env.Data.Results[2].Message)
	assert.Equal(t, 2, env.Data.Summary.Errors)
	assert.Equal(t, 1, env.Data.Summary.Info)
}

func TestHandleCompare_UnnamedProjectsStayDistinct(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{
		{Content: "services:\n  web:\n    image: nginx\n    ports: [\"8080:80\"]\n"},
		{Content: "services:\n  ghost:\n    image: ghost\n    ports: [\"8080:2368\"]\n"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode[CompareResponse](t, rec)
	require.Len(t, env.Data.Projects, 2)
	assert.Equal(t, "Untitled", env.Data.Projects[0].Name)
	assert.Equal(t, "Untitled (2)", env.Data.Projects[1].Name)

	require.Len(t, env.Data.Results, 1)
	assert.Equal(t, "Port 8080 is bound by multiple projects", env.Data.Results[0].Message)
	assert.Equal(t, 1, env.Data.Summary.Errors)
}

func TestHandleCompare_Limits(t *testing.T) {
	s := newTestServer(t, Config{MaxProjects: 2})

	rec := do(t, s.Handler(), "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{
		{Content: webYAML}, {Content: apiYAML}, {Content: webYAML},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many projects")

	rec = do(t, s.Handler(), "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{
		{Content: webYAML}, {Content: "services: [\n"},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "project 2")
}

func TestHandleCompare_SingleProject(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{{Content: webYAML}}})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[CompareResponse](t, rec)
	assert.NotNil(t, env.Data.Results)
	assert.Empty(t, env.Data.Results)
}

func TestHandleGraph(t *testing.T) {
	s := newTestServer(t, Config{})

	t.Run("ordered", func(t *testing.T) {
		rec := do(t, s.Handler(), "POST", "/api/graph", ProjectInput{Content: `services:
  app:
    image: app
    depends_on: [db, cache]
  db:
    image: postgres
  cache:
    image: redis
    depends_on: [ghost]
`})
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode[GraphResponse](t, rec)
		assert.Equal(t, []string{"app", "db", "cache"}, env.Data.Services)
		assert.Equal(t, []string{"db", "cache", "app"}, env.Data.StartOrder)
		assert.Equal(t, []string{"app", "cache", "db"}, env.Data.StopOrder)
		assert.Empty(t, env.Data.Cycle)
		assert.Equal(t, map[string][]string{"cache": {"ghost"}}, env.Data.Missing)
	})

	t.Run("cycle", func(t *testing.T) {
		rec := do(t, s.Handler(), "POST", "/api/graph", ProjectInput{Content: `services:
  a: {image: x, depends_on: [b]}
  b: {image: x, depends_on: [a]}
`})
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode[GraphResponse](t, rec)
		assert.Equal(t, []string{"a", "b", "a"}, env.Data.Cycle)
		assert.Empty(t, env.Data.StartOrder)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		rec := do(t, s.Handler(), "POST", "/api/graph", ProjectInput{Content: "a: [\n"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReports_NoStorage(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s.Handler(), "GET", "/api/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s.Handler(), "GET", "/api/reports/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReports_RecordedRuns(t *testing.T) {
	s := newTestServer(t, Config{Storage: newTestStorage(t), RecordHistory: true})
	h := s.Handler()

	rec := do(t, h, "POST", "/api/validate", ProjectInput{Content: webYAML})
	require.Equal(t, http.StatusOK, rec.Code)
	validateID := decode[ValidateResponse](t, rec).Data.ReportID
	require.NotEmpty(t, validateID)

	rec = do(t, h, "POST", "/api/compare", CompareRequest{Projects: []ProjectInput{{Content: webYAML}, {Content: apiYAML}}})
	require.Equal(t, http.StatusOK, rec.Code)
	compareID := decode[CompareResponse](t, rec).Data.ReportID
	require.NotEmpty(t, compareID)

	type listData struct {
		Reports []storage.Report `json:"reports"`
		Count   int              `json:"count"`
	}

	rec = do(t, h, "GET", "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listData](t, rec).Data
	require.Equal(t, 2, list.Count)
	assert.Equal(t, compareID, list.Reports[0].ID)
	assert.Equal(t, validateID, list.Reports[1].ID)
	assert.Empty(t, list.Reports[0].Payload)

	rec = do(t, h, "GET", "/api/reports?kind=validate&limit=5", nil)
	list = decode[listData](t, rec).Data
	require.Equal(t, 1, list.Count)
	assert.Equal(t, storage.KindValidate, list.Reports[0].Kind)

	rec = do(t, h, "GET", "/api/reports?kind=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "GET", "/api/reports/"+compareID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[storage.Report](t, rec).Data
	assert.Equal(t, storage.KindCompare, report.Kind)
	assert.Equal(t, []string{"shop", "blog"}, report.Projects)
	assert.Equal(t, 2, report.Errors)
	assert.NotEmpty(t, report.Payload)

	rec = do(t, h, "GET", "/api/reports/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, Config{Storage: newTestStorage(t), RecordHistory: false})

	rec := do(t, s.Handler(), "POST", "/api/validate", ProjectInput{Content: webYAML})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ValidateResponse](t, rec).Data.ReportID)
}

func TestHandleProjects(t *testing.T) {
	t.Run("no docker", func(t *testing.T) {
		s := newTestServer(t, Config{})
		rec := do(t, s.Handler(), "GET", "/api/projects", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lists projects", func(t *testing.T) {
		lister := &fakeLister{projects: []docker.ComposeProject{
			{Name: "shop", WorkingDir: "/srv/shop", ConfigFiles: []string{"/srv/shop/compose.yaml"}, Services: []string{"web"}, Containers: 1},
		}}
		s := newTestServer(t, Config{Docker: lister})

		rec := do(t, s.Handler(), "GET", "/api/projects", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode[struct {
			Projects []docker.ComposeProject `json:"projects"`
			Count    int                     `json:"count"`
		}](t, rec)
		assert.Equal(t, 1, env.Data.Count)
		assert.Equal(t, lister.projects, env.Data.Projects)
	})

	t.Run("daemon error", func(t *testing.T) {
		s := newTestServer(t, Config{Docker: &fakeLister{err: errors.New("socket closed")}})
		rec := do(t, s.Handler(), "GET", "/api/projects", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("circuit open", func(t *testing.T) {
		guard := docker.NewGuardedLister(&fakeLister{err: errors.New("socket closed")}, docker.GuardOptions{FailureThreshold: 1})
		s := newTestServer(t, Config{Docker: guard})

		assert.Equal(t, http.StatusInternalServerError, do(t, s.Handler(), "GET", "/api/projects", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), "GET", "/api/projects", nil).Code)
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(t, Config{})

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), "GET", "/api/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s.Handler(), "GET", "/api/validate", nil).Code)
}

// readEvent scans the stream until an "event:" line and returns its name and
// data line.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var name string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && name != "":
			return name, strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended before an event")
	return "", ""
}

func TestHandleEvents_NoBus(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s.Handler(), "GET", "/api/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleEvents_Stream(t *testing.T) {
	bus := events.NewBus()
	s := newTestServer(t, Config{Events: bus, Storage: newTestStorage(t), RecordHistory: true})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	name, _ := readEvent(t, sc)
	require.Equal(t, "connected", name)

	body, err := json.Marshal(ProjectInput{Content: webYAML})
	require.NoError(t, err)
	post, err := http.Post(ts.URL+"/api/validate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	name, data := readEvent(t, sc)
	assert.Equal(t, events.EventValidationCompleted, name)
	assert.Contains(t, data, `"project":"shop"`)

	name, data = readEvent(t, sc)
	assert.Equal(t, events.EventReportRecorded, name)
	assert.Contains(t, data, `"kind":"validate"`)
}
