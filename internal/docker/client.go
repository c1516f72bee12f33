package docker

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Labels set by docker compose on every container it creates.
const (
	ComposeProjectLabel     = "com.docker.compose.project"
	ComposeConfigFilesLabel = "com.docker.compose.project.config_files"
	ComposeWorkingDirLabel  = "com.docker.compose.project.working_dir"
	ComposeServiceLabel     = "com.docker.compose.service"
)

// DefaultTimeout bounds a single discovery round-trip to the daemon.
const DefaultTimeout = 10 * time.Second

// Client defines the interface for Docker operations.
// This interface allows for easy mocking in tests and follows
// the dependency injection pattern.
type Client interface {
	// ListContainers returns all containers (running and stopped)
	ListContainers(ctx context.Context) ([]Container, error)

	// Close releases resources held by the Docker client
	Close() error
}

// Container represents a Docker container with relevant metadata.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string
	Labels  map[string]string
	Created int64
}

// Project returns the compose project the container belongs to, if any.
func (c Container) Project() string {
	return strings.TrimSpace(c.Labels[ComposeProjectLabel])
}

// ComposeProject is a running (or stopped) compose project reconstructed
// from container labels.
type ComposeProject struct {
	Name        string   `json:"name"`
	WorkingDir  string   `json:"working_dir,omitempty"`
	ConfigFiles []string `json:"config_files"`
	Services    []string `json:"services"`
	Containers  int      `json:"containers"`
}

// GroupComposeProjects groups containers by compose project label.
// Containers without the label are ignored. Projects are sorted by name;
// config files keep the order compose recorded them in, services are sorted.
func GroupComposeProjects(containers []Container) []ComposeProject {
	byName := make(map[string]*ComposeProject)
	seenFiles := make(map[string]map[string]bool)
	seenServices := make(map[string]map[string]bool)

	for _, c := range containers {
		name := c.Project()
		if name == "" {
			continue
		}

		p, ok := byName[name]
		if !ok {
			p = &ComposeProject{Name: name, ConfigFiles: []string{}, Services: []string{}}
			byName[name] = p
			seenFiles[name] = make(map[string]bool)
			seenServices[name] = make(map[string]bool)
		}
		p.Containers++

		if p.WorkingDir == "" {
			p.WorkingDir = strings.TrimSpace(c.Labels[ComposeWorkingDirLabel])
		}

		for _, file := range splitConfigFiles(c.Labels[ComposeConfigFilesLabel]) {
			if !filepath.IsAbs(file) && p.WorkingDir != "" {
				file = filepath.Join(p.WorkingDir, file)
			}
			if seenFiles[name][file] {
				continue
			}
			seenFiles[name][file] = true
			p.ConfigFiles = append(p.ConfigFiles, file)
		}

		if svc := strings.TrimSpace(c.Labels[ComposeServiceLabel]); svc != "" && !seenServices[name][svc] {
			seenServices[name][svc] = true
			p.Services = append(p.Services, svc)
		}
	}

	projects := make([]ComposeProject, 0, len(byName))
	for _, p := range byName {
		sort.Strings(p.Services)
		projects = append(projects, *p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects
}

func splitConfigFiles(label string) []string {
	var files []string
	for _, part := range strings.Split(label, ",") {
		if part = strings.TrimSpace(part); part != "" {
			files = append(files, part)
		}
	}
	return files
}

// ListComposeProjects lists containers through c and groups them into
// compose projects. A zero timeout uses DefaultTimeout.
func ListComposeProjects(ctx context.Context, c Client, timeout time.Duration) ([]ComposeProject, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	containers, err := c.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	return GroupComposeProjects(containers), nil
}
