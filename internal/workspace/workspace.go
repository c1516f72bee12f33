// Package workspace holds the set of compose projects loaded for comparison.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/logging"
)

// DefaultMaxProjects is how many projects are kept before the oldest is evicted.
const DefaultMaxProjects = 3

// UntitledName is used when neither the document nor the file provides a name.
const UntitledName = "Untitled"

// ErrNotFound is returned when a project id is unknown.
var ErrNotFound = errors.New("project not found")

var yamlExt = regexp.MustCompile(`(?i)\.ya?ml$`)

// conventionalFiles are the file names compose itself looks for. Projects
// loaded from one of these are named after their directory, as compose does.
var conventionalFiles = map[string]bool{
	"compose.yaml":        true,
	"compose.yml":         true,
	"docker-compose.yaml": true,
	"docker-compose.yml":  true,
}

// Workspace is an ordered, bounded set of projects. Safe for concurrent use.
type Workspace struct {
	mu       sync.RWMutex
	projects []compare.Project
	activeID string
	limit    int
}

// New creates a workspace holding at most limit projects.
// A limit below 1 uses DefaultMaxProjects.
func New(limit int) *Workspace {
	if limit < 1 {
		limit = DefaultMaxProjects
	}
	return &Workspace{limit: limit}
}

// ProjectName picks a display name: the document's own name, else the
// parent directory for conventional compose file names, else the file name
// without its YAML extension, else UntitledName.
func ProjectName(doc *compose.Document, fileName string) string {
	if doc != nil && doc.Name != "" {
		return doc.Name
	}
	if fileName == "" {
		return UntitledName
	}
	base := filepath.Base(fileName)
	if conventionalFiles[strings.ToLower(base)] {
		if dir := filepath.Base(filepath.Dir(fileName)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	if name := yamlExt.ReplaceAllString(base, ""); name != "" {
		return name
	}
	return UntitledName
}

// uniqueName suffixes name with " (2)", " (3)", ... until no project other
// than skipID uses it. Callers hold w.mu.
func (w *Workspace) uniqueName(name, skipID string) string {
	taken := make(map[string]bool, len(w.projects))
	for _, p := range w.projects {
		if p.ID != skipID {
			taken[p.Name] = true
		}
	}
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}

// Add stores doc as a new project and makes it active. When the workspace is
// full the oldest project is evicted. A name already in use gets a numeric
// suffix so two files never merge into one project.
func (w *Workspace) Add(fileName string, doc *compose.Document) compare.Project {
	if doc == nil {
		doc = compose.NewDocument()
	}

	p := compare.Project{
		ID:      uuid.New().String(),
		Name:    ProjectName(doc, fileName),
		Content: doc,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.projects) >= w.limit {
		evicted := w.projects[0]
		w.projects = w.projects[1:]
		logging.Component("workspace").Warn("Workspace full (%d projects), evicted %q", w.limit, evicted.Name)
	}
	if name := w.uniqueName(p.Name, ""); name != p.Name {
		logging.Component("workspace").Debug("Project name %q already loaded, using %q", p.Name, name)
		p.Name = name
	}
	w.projects = append(w.projects, p)
	w.activeID = p.ID

	return p
}

// AddYAML parses content and adds it as a project.
func (w *Workspace) AddYAML(fileName string, content []byte) (compare.Project, error) {
	doc, err := compose.Parse(content)
	if err != nil {
		return compare.Project{}, fmt.Errorf("failed to add %s: %w", ProjectName(nil, fileName), err)
	}
	return w.Add(fileName, doc), nil
}

// AddFile loads a compose file from disk and adds it as a project.
func (w *Workspace) AddFile(path string) (compare.Project, error) {
	doc, err := compose.LoadFile(path)
	if err != nil {
		return compare.Project{}, err
	}
	return w.Add(path, doc), nil
}

// Update replaces a project's document. A document name, if set, renames
// the project.
func (w *Workspace) Update(id string, doc *compose.Document) (compare.Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.projects {
		if w.projects[i].ID != id {
			continue
		}
		if doc == nil {
			doc = compose.NewDocument()
		}
		w.projects[i].Content = doc
		if doc.Name != "" {
			w.projects[i].Name = w.uniqueName(doc.Name, id)
		}
		return w.projects[i], nil
	}
	return compare.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Remove deletes a project. If it was active, the first remaining project
// becomes active.
func (w *Workspace) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, p := range w.projects {
		if p.ID != id {
			continue
		}
		w.projects = append(w.projects[:i:i], w.projects[i+1:]...)
		if w.activeID == id {
			w.activeID = ""
			if len(w.projects) > 0 {
				w.activeID = w.projects[0].ID
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns the project with the given id.
func (w *Workspace) Get(id string) (compare.Project, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, p := range w.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return compare.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Active returns the active project, if any.
func (w *Workspace) Active() (compare.Project, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, p := range w.projects {
		if p.ID == w.activeID {
			return p, true
		}
	}
	return compare.Project{}, false
}

// SetActive marks a project as active.
func (w *Workspace) SetActive(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.projects {
		if p.ID == id {
			w.activeID = id
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Projects returns a copy of the projects in insertion order.
func (w *Workspace) Projects() []compare.Project {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]compare.Project, len(w.projects))
	copy(out, w.projects)
	return out
}

// Len returns the number of loaded projects.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.projects)
}

// Clear removes every project.
func (w *Workspace) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.projects = nil
	w.activeID = ""
}

// Compare runs the comparator over the loaded projects.
func (w *Workspace) Compare() []compare.Result {
	return compare.Compare(w.Projects())
}
