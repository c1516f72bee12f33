package docker

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"

	"github.com/chis/stackcheck/internal/logging"
)

// selfContainerName is matched against container names when the hostname
// does not identify our own container.
const selfContainerName = "stackcheck"

// containerInspector is the part of the Docker SDK client used for mount discovery.
type containerInspector interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// bindMapping pairs a host directory with where it is mounted in our
// container. Both carry a trailing slash so /srv never matches /srv2.
type bindMapping struct {
	host      string
	container string
}

// PathTranslator rewrites compose config paths between host and container
// views. Compose labels record host paths, which are only readable from
// inside a container through its bind mounts.
type PathTranslator struct {
	client   containerInspector
	inDocker bool
	log      *logging.Logger

	mu    sync.RWMutex
	binds []bindMapping
}

// NewPathTranslator creates a translator. Inside a container it inspects
// its own mounts right away; outside one every path passes through as is.
func NewPathTranslator(client containerInspector) *PathTranslator {
	_, err := os.Stat("/.dockerenv")
	pt := newPathTranslator(client, err == nil)

	if pt.inDocker {
		pt.log.Debug("Running inside Docker - path translation enabled")
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := pt.discoverMounts(ctx); err != nil {
			pt.log.Warn("Failed to discover volume mounts: %v", err)
		}
	}
	return pt
}

func newPathTranslator(client containerInspector, inDocker bool) *PathTranslator {
	return &PathTranslator{
		client:   client,
		inDocker: inDocker,
		log:      logging.Component("paths"),
	}
}

// discoverMounts inspects our own container; the hostname is the container
// ID unless it was overridden, in which case we search by name.
func (pt *PathTranslator) discoverMounts(ctx context.Context) error {
	hostname, err := os.Hostname()
	if err != nil {
		return err
	}

	inspect, err := pt.client.ContainerInspect(ctx, hostname)
	if err == nil {
		pt.extractMounts(inspect.Mounts)
		return nil
	}
	pt.log.Debug("Failed to inspect container %s: %v", hostname, err)

	containers, err := pt.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", selfContainerName)),
	})
	if err != nil {
		return err
	}

	for _, c := range containers {
		if !hasName(c.Names, selfContainerName) {
			continue
		}
		inspect, err := pt.client.ContainerInspect(ctx, c.ID)
		if err != nil {
			continue
		}
		pt.log.Debug("Found own container by name: %s", c.ID)
		pt.extractMounts(inspect.Mounts)
		return nil
	}

	pt.log.Debug("Could not find own container for mount discovery")
	return nil
}

func hasName(names []string, want string) bool {
	for _, n := range names {
		if strings.Contains(n, want) {
			return true
		}
	}
	return false
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// extractMounts records bind mounts. Named volumes are ignored since their
// host path is not what compose labels refer to.
func (pt *PathTranslator) extractMounts(mounts []container.MountPoint) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for _, m := range mounts {
		if m.Type != mount.TypeBind || m.Source == "" || m.Destination == "" {
			continue
		}
		b := bindMapping{host: withSlash(m.Source), container: withSlash(m.Destination)}
		pt.binds = append(pt.binds, b)
		pt.log.WithFields(logging.Fields{
			"host":      b.host,
			"container": b.container,
		}).Debug("Discovered bind mount")
	}
}

// translate rewrites path using the longest matching prefix on the from side.
func (pt *PathTranslator) translate(path string, from, to func(bindMapping) string) string {
	if !pt.inDocker {
		return path
	}

	pt.mu.RLock()
	defer pt.mu.RUnlock()

	best := -1
	for i, b := range pt.binds {
		if strings.HasPrefix(path, from(b)) && (best < 0 || len(from(b)) > len(from(pt.binds[best]))) {
			best = i
		}
	}
	if best < 0 {
		return path
	}
	b := pt.binds[best]
	return to(b) + strings.TrimPrefix(path, from(b))
}

func hostSide(b bindMapping) string      { return b.host }
func containerSide(b bindMapping) string { return b.container }

// TranslateToContainer maps a host path to the path readable from here.
func (pt *PathTranslator) TranslateToContainer(hostPath string) string {
	return pt.translate(hostPath, hostSide, containerSide)
}

// TranslateToHost maps a container path back to the host path.
func (pt *PathTranslator) TranslateToHost(containerPath string) string {
	return pt.translate(containerPath, containerSide, hostSide)
}

// Mappings returns host prefix -> container prefix.
func (pt *PathTranslator) Mappings() map[string]string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make(map[string]string, len(pt.binds))
	for _, b := range pt.binds {
		out[b.host] = b.container
	}
	return out
}

func (pt *PathTranslator) IsRunningInDocker() bool {
	return pt.inDocker
}
