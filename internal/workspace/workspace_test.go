package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/compose"
)

func TestProjectName(t *testing.T) {
	named := compose.NewDocument()
	named.Name = "shop"

	tests := []struct {
		name     string
		doc      *compose.Document
		fileName string
		want     string
	}{
		{"document name wins", named, "other.yml", "shop"},
		{"yml extension stripped", compose.NewDocument(), "billing.yml", "billing"},
		{"yaml extension stripped", nil, "/srv/stacks/media.YAML", "media"},
		{"conventional file uses directory", nil, "stacks/docker-compose.yaml", "stacks"},
		{"conventional file case-insensitive", nil, "/srv/blog/Compose.YML", "blog"},
		{"conventional file without directory", nil, "compose.yaml", "compose"},
		{"other file keeps its own name", nil, "stacks/media.yml", "media"},
		{"no name", compose.NewDocument(), "", UntitledName},
		{"only extension", nil, ".yml", UntitledName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectName(tt.doc, tt.fileName))
		})
	}
}

func TestWorkspace_AddAssignsIDs(t *testing.T) {
	ws := New(0)

	a := ws.Add("a.yml", compose.NewDocument())
	b := ws.Add("b.yml", compose.NewDocument())

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "a", a.Name)

	active, ok := ws.Active()
	require.True(t, ok)
	assert.Equal(t, b.ID, active.ID)
}

func TestWorkspace_AddSuffixesCollidingNames(t *testing.T) {
	ws := New(0)

	shop, err := ws.AddYAML("compose.yaml", []byte("services:\n  web:\n    image: nginx\n    ports: [\"8080:80\"]\n"))
	require.NoError(t, err)
	blog, err := ws.AddYAML("compose.yaml", []byte("services:\n  ghost:\n    image: ghost\n    ports: [\"8080:2368\"]\n"))
	require.NoError(t, err)

	assert.Equal(t, "compose", shop.Name)
	assert.Equal(t, "compose (2)", blog.Name)

	results := ws.Compare()
	require.Len(t, results, 1)
	assert.Equal(t, compare.SeverityError, results[0].Severity)
	assert.ElementsMatch(t, []string{"compose", "compose (2)"}, results[0].Projects)

	third := ws.Add("", nil)
	fourth := ws.Add("", nil)
	assert.Equal(t, UntitledName, third.Name)
	assert.Equal(t, UntitledName+" (2)", fourth.Name)
}

func TestWorkspace_UpdateKeepsNamesUnique(t *testing.T) {
	ws := New(0)
	a := ws.Add("a.yml", nil)
	ws.Add("b.yml", nil)

	renamed := compose.NewDocument()
	renamed.Name = "b"
	updated, err := ws.Update(a.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, "b (2)", updated.Name)

	renamed.Name = "a"
	updated, err = ws.Update(a.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, "a", updated.Name, "a project does not collide with itself")
}

func TestWorkspace_EvictsOldest(t *testing.T) {
	ws := New(DefaultMaxProjects)

	first := ws.Add("one.yml", nil)
	ws.Add("two.yml", nil)
	ws.Add("three.yml", nil)
	ws.Add("four.yml", nil)

	projects := ws.Projects()
	require.Len(t, projects, 3)
	assert.Equal(t, []string{"two", "three", "four"}, names(projects))

	_, err := ws.Get(first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWorkspace_RemoveResetsActive(t *testing.T) {
	ws := New(3)
	a := ws.Add("a.yml", nil)
	b := ws.Add("b.yml", nil)

	require.NoError(t, ws.Remove(b.ID))

	active, ok := ws.Active()
	require.True(t, ok)
	assert.Equal(t, a.ID, active.ID)

	require.NoError(t, ws.Remove(a.ID))
	_, ok = ws.Active()
	assert.False(t, ok)

	assert.True(t, errors.Is(ws.Remove("missing"), ErrNotFound))
}

func TestWorkspace_Update(t *testing.T) {
	ws := New(3)
	p := ws.Add("a.yml", nil)

	doc := compose.NewDocument()
	doc.Name = "renamed"
	doc.Services.Set("web", &compose.Service{Image: "nginx"})

	updated, err := ws.Update(p.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, p.ID, updated.ID)

	got, err := ws.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Content.Services.Len())

	_, err = ws.Update("nope", doc)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWorkspace_SetActive(t *testing.T) {
	ws := New(3)
	a := ws.Add("a.yml", nil)
	ws.Add("b.yml", nil)

	require.NoError(t, ws.SetActive(a.ID))
	active, _ := ws.Active()
	assert.Equal(t, a.ID, active.ID)

	assert.True(t, errors.Is(ws.SetActive("nope"), ErrNotFound))
}

func TestWorkspace_AddYAML(t *testing.T) {
	ws := New(3)

	p, err := ws.AddYAML("stack.yml", []byte("name: api\nservices:\n  web:\n    image: x\n"))
	require.NoError(t, err)
	assert.Equal(t, "api", p.Name)

	_, err = ws.AddYAML("broken.yml", []byte("services: [\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, compose.ErrInvalidYAML))
	assert.Equal(t, 1, ws.Len())
}

func TestWorkspace_AddFileAndCompare(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	ws := New(3)
	_, err := ws.AddFile(write("front.yml", "services:\n  web:\n    image: x\n    ports: ['80:80']\n"))
	require.NoError(t, err)
	_, err = ws.AddFile(write("back.yaml", "services:\n  api:\n    image: y\n    ports: ['80:8080']\n"))
	require.NoError(t, err)

	results := ws.Compare()
	require.Len(t, results, 1)
	assert.Equal(t, compare.CategoryPort, results[0].Category)
	assert.Equal(t, []string{"front", "back"}, results[0].Projects)

	_, err = ws.AddFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestWorkspace_ProjectsIsCopy(t *testing.T) {
	ws := New(3)
	ws.Add("a.yml", nil)

	projects := ws.Projects()
	projects[0].Name = "changed"

	assert.Equal(t, "a", ws.Projects()[0].Name)
}

func TestWorkspace_Clear(t *testing.T) {
	ws := New(3)
	ws.Add("a.yml", nil)
	ws.Add("b.yml", nil)

	ws.Clear()

	assert.Equal(t, 0, ws.Len())
	_, ok := ws.Active()
	assert.False(t, ok)
}

func names(projects []compare.Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}
