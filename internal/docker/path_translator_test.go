package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
)

type fakeInspector struct {
	inspect map[string]container.InspectResponse
	list    []container.Summary
}

func (f *fakeInspector) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	resp, ok := f.inspect[id]
	if !ok {
		return container.InspectResponse{}, errors.New("no such container")
	}
	return resp, nil
}

func (f *fakeInspector) ContainerList(_ context.Context, _ container.ListOptions) ([]container.Summary, error) {
	return f.list, nil
}

func bindMounts() []container.MountPoint {
	return []container.MountPoint{
		{Type: mount.TypeBind, Source: "/srv", Destination: "/host/srv"},
		{Type: mount.TypeBind, Source: "/srv/stacks", Destination: "/stacks"},
		{Type: mount.TypeVolume, Source: "/var/lib/docker/volumes/x", Destination: "/data"},
	}
}

func TestPathTranslator_OutsideDocker(t *testing.T) {
	pt := newPathTranslator(nil, false)
	pt.extractMounts(bindMounts())

	assert.Equal(t, "/srv/stacks/app/compose.yaml", pt.TranslateToContainer("/srv/stacks/app/compose.yaml"))
	assert.False(t, pt.IsRunningInDocker())
}

func TestPathTranslator_LongestPrefixWins(t *testing.T) {
	pt := newPathTranslator(nil, true)
	pt.extractMounts(bindMounts())

	assert.Equal(t, map[string]string{
		"/srv/":        "/host/srv/",
		"/srv/stacks/": "/stacks/",
	}, pt.Mappings())

	assert.Equal(t, "/stacks/app/compose.yaml", pt.TranslateToContainer("/srv/stacks/app/compose.yaml"))
	assert.Equal(t, "/host/srv/other/compose.yaml", pt.TranslateToContainer("/srv/other/compose.yaml"))
	assert.Equal(t, "/srv2/compose.yaml", pt.TranslateToContainer("/srv2/compose.yaml"))
	assert.Equal(t, "/srv/stacks/app/compose.yaml", pt.TranslateToHost("/stacks/app/compose.yaml"))
}

func TestPathTranslator_DiscoverByName(t *testing.T) {
	inspector := &fakeInspector{
		inspect: map[string]container.InspectResponse{
			"c1": {Mounts: []container.MountPoint{
				{Type: mount.TypeBind, Source: "/opt", Destination: "/mnt/opt"},
			}},
		},
		list: []container.Summary{
			{ID: "c0", Names: []string{"/postgres"}},
			{ID: "c1", Names: []string{"/stackcheck"}},
		},
	}

	pt := newPathTranslator(inspector, true)
	err := pt.discoverMounts(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "/mnt/opt/app/compose.yaml", pt.TranslateToContainer("/opt/app/compose.yaml"))
}
