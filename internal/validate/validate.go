// Package validate checks a single compose document for integrity problems:
// missing image or build, duplicate container names, dangling references
// and host port collisions.
package validate

import (
	"fmt"

	"github.com/chis/stackcheck/internal/compose"
)

// Validate walks doc in service order and returns every issue found.
// Within a service, checks run in this order: image/build presence,
// container_name uniqueness, networks, depends_on, volumes, ports.
//
// Validate never fails. A nil document yields an empty slice.
func Validate(doc *compose.Document) []Issue {
	issues := []Issue{}
	if doc == nil {
		return issues
	}

	containerNames := make(map[string]bool)
	usedPorts := make(map[string]string) // host port -> first service

	doc.Services.Each(func(name string, svc *compose.Service) {
		if svc == nil {
			svc = &compose.Service{}
		}

		add := func(sev Severity, msg string) {
			issues = append(issues, Issue{
				Severity: sev,
				Entity:   EntityService,
				Name:     name,
				Message:  msg,
			})
		}

		if svc.Image == "" && svc.Build == nil {
			add(SeverityError, "Missing image or build context")
		}

		if svc.ContainerName != "" {
			if containerNames[svc.ContainerName] {
				add(SeverityError, fmt.Sprintf("Duplicate container_name %q", svc.ContainerName))
			} else {
				containerNames[svc.ContainerName] = true
			}
		}

		// Undeclared networks may still exist externally, so only warn
		for _, n := range compose.NormalizeRelation(svc.Networks) {
			if !doc.Networks.Has(n) {
				add(SeverityWarning, fmt.Sprintf("Network %q not defined", n))
			}
		}

		for _, d := range compose.NormalizeRelation(svc.DependsOn) {
			if !doc.Services.Has(d) {
				add(SeverityError, fmt.Sprintf("Dependency %q not found", d))
			}
		}

		for _, v := range compose.NormalizeList(svc.Volumes) {
			source, ok := compose.VolumeSource(v)
			if !ok || compose.IsHostPath(source) {
				continue
			}
			if !doc.Volumes.Has(source) {
				add(SeverityWarning, fmt.Sprintf("Volume %q not defined", source))
			}
		}

		for _, p := range compose.NormalizeList(svc.Ports) {
			host, ok := compose.HostPort(p)
			if !ok {
				continue
			}
			if first, taken := usedPorts[host]; taken {
				add(SeverityError, fmt.Sprintf("Port %s already used by %q", host, first))
			} else {
				usedPorts[host] = name
			}
		}
	})

	return issues
}
