package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/chis/stackcheck/internal/logging"
)

// Service talks to the Docker daemon through the SDK and implements Client.
type Service struct {
	cli     *client.Client
	paths   *PathTranslator
	timeout time.Duration
	log     *logging.Logger
}

// NewService connects using DOCKER_HOST and friends, falling back to the
// platform socket, and negotiates the API version with the daemon.
func NewService() (*Service, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Service{
		cli:     cli,
		paths:   NewPathTranslator(cli),
		timeout: DefaultTimeout,
		log:     logging.Component("docker"),
	}, nil
}

// SetTimeout changes how long discovery waits for the daemon.
func (s *Service) SetTimeout(d time.Duration) {
	s.timeout = d
}

// ListContainers returns running and stopped containers that carry a
// compose project label. Other containers are filtered out by the daemon.
func (s *Service) ListContainers(ctx context.Context) ([]Container, error) {
	summaries, err := s.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ComposeProjectLabel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	out := make([]Container, len(summaries))
	for i, c := range summaries {
		out[i] = convertContainer(c)
	}
	return out, nil
}

// ComposeProjects returns the compose projects known to the daemon with
// config file paths readable from this process.
func (s *Service) ComposeProjects(ctx context.Context) ([]ComposeProject, error) {
	projects, err := ListComposeProjects(ctx, s, s.timeout)
	if err != nil {
		return nil, err
	}

	if s.paths != nil {
		for _, p := range projects {
			for j, file := range p.ConfigFiles {
				p.ConfigFiles[j] = s.paths.TranslateToContainer(file)
			}
		}
	}

	s.log.WithField("projects", len(projects)).Debug("Discovered compose projects")
	return projects, nil
}

func (s *Service) Close() error {
	if s.cli == nil {
		return nil
	}
	return s.cli.Close()
}

func convertContainer(c container.Summary) Container {
	out := Container{
		ID:      c.ID,
		Image:   c.Image,
		State:   string(c.State),
		Labels:  c.Labels,
		Created: c.Created,
	}
	if len(c.Names) > 0 {
		out.Name = strings.TrimPrefix(c.Names[0], "/")
	}
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	return out
}
