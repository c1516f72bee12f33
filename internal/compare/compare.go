// Package compare detects conflicts and shared resources across several
// compose projects that are meant to run on the same host.
package compare

import (
	"fmt"

	"github.com/chis/stackcheck/internal/compose"
)

// index maps a key to the usages that mention it, keeping first-seen key
// order.
type index struct {
	keys   []string
	usages map[string][]Usage
}

func newIndex() *index {
	return &index{usages: make(map[string][]Usage)}
}

func (ix *index) add(key string, u Usage) {
	if _, ok := ix.usages[key]; !ok {
		ix.keys = append(ix.keys, key)
	}
	ix.usages[key] = append(ix.usages[key], u)
}

// projects returns the distinct project names behind key, first seen first.
func (ix *index) projects(key string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range ix.usages[key] {
		if !seen[u.Project] {
			seen[u.Project] = true
			out = append(out, u.Project)
		}
	}
	return out
}

// Compare cross-references the projects and returns every port,
// container_name, volume, network, env_file and service_name that is used
// by two or more distinct projects, in that category order.
//
// Projects are identified by name. The same name listed twice counts as one
// project, so a document never collides with itself. Fewer than two
// projects yield an empty slice.
func Compare(projects []Project) []Result {
	results := []Result{}
	if len(projects) < 2 {
		return results
	}

	ports := newIndex()
	containerNames := newIndex()
	volumes := newIndex()
	networks := newIndex()
	envFiles := newIndex()
	serviceNames := newIndex()

	for _, p := range projects {
		if p.Content == nil {
			continue
		}

		p.Content.Services.Each(func(name string, svc *compose.Service) {
			serviceNames.add(name, Usage{Project: p.Name, Service: name})
			if svc == nil {
				return
			}

			if svc.ContainerName != "" {
				containerNames.add(svc.ContainerName, Usage{Project: p.Name, Service: name})
			}

			for _, m := range compose.NormalizeList(svc.Ports) {
				if host, ok := compose.HostPort(m); ok {
					ports.add(host, Usage{Project: p.Name, Service: name, Mapping: m})
				}
			}

			for _, m := range compose.NormalizeList(svc.Volumes) {
				if source, ok := compose.VolumeSource(m); ok {
					volumes.add(source, Usage{Project: p.Name, Service: name, Mapping: m})
				}
			}

			for _, f := range compose.NormalizeList(svc.EnvFile) {
				if f != "" {
					envFiles.add(f, Usage{Project: p.Name, Service: name})
				}
			}
		})

		for _, n := range p.Content.Networks.Keys() {
			networks.add(n, Usage{Project: p.Name})
		}
	}

	emit := func(ix *index, build func(key string, projects []string, usages []Usage) Result) {
		for _, key := range ix.keys {
			involved := ix.projects(key)
			if len(involved) < 2 {
				continue
			}
			results = append(results, build(key, involved, ix.usages[key]))
		}
	}

	emit(ports, func(port string, involved []string, usages []Usage) Result {
		return Result{
			Kind:     KindConflict,
			Category: CategoryPort,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Port %s is bound by multiple projects", port),
			Projects: involved,
			Details:  Details{Usages: usages},
		}
	})

	emit(containerNames, func(name string, involved []string, usages []Usage) Result {
		return Result{
			Kind:     KindConflict,
			Category: CategoryContainerName,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Container name %q is used by multiple projects", name),
			Projects: involved,
			Details:  Details{Usages: usages},
		}
	})

	emit(volumes, func(source string, involved []string, usages []Usage) Result {
		// Named volumes are often shared on purpose; host paths are not.
		if compose.IsHostPath(source) {
			return Result{
				Kind:     KindConflict,
				Category: CategoryVolume,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Host path %q is mounted by multiple projects", source),
				Projects: involved,
				Details:  Details{Usages: usages},
			}
		}
		return Result{
			Kind:     KindShared,
			Category: CategoryVolume,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Volume %q is used by multiple projects", source),
			Projects: involved,
			Details:  Details{Usages: usages},
		}
	})

	emit(networks, func(name string, involved []string, _ []Usage) Result {
		return Result{
			Kind:     KindShared,
			Category: CategoryNetwork,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Network %q is defined in multiple projects", name),
			Projects: involved,
			Details:  Details{Network: name},
		}
	})

	emit(envFiles, func(path string, involved []string, usages []Usage) Result {
		return Result{
			Kind:     KindShared,
			Category: CategoryEnvFile,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Env file %q is used by multiple projects", path),
			Projects: involved,
			Details:  Details{Usages: usages},
		}
	})

	emit(serviceNames, func(name string, involved []string, _ []Usage) Result {
		return Result{
			Kind:     KindShared,
			Category: CategoryServiceName,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Service name %q exists in multiple projects", name),
			Projects: involved,
			Details:  Details{Service: name},
		}
	})

	return results
}
