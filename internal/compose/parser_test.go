package compose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stackYAML = `name: shop
services:
  web:
    image: nginx:latest
    container_name: shop-web
    ports:
      - "8080:80"
      - target: 443
        published: 8443
        protocol: tcp
    networks:
      - front
    depends_on:
      api:
        condition: service_healthy
    env_file: .env
  api:
    build: ./api
    volumes:
      - ./src:/app
      - type: volume
        source: cache
        target: /cache
        read_only: true
      - type: tmpfs
        target: /tmp
    secrets:
      - db_password
      - source: api_key
        target: key
  db:
    image: postgres:16
networks:
  front:
  back:
    driver: bridge
    external: true
volumes:
  cache:
secrets:
  db_password:
    file: ./secret.txt
`

func TestParse_Stack(t *testing.T) {
	doc, err := Parse([]byte(stackYAML))
	require.NoError(t, err)

	assert.Equal(t, "shop", doc.Name)
	assert.Equal(t, []string{"web", "api", "db"}, doc.Services.Keys())
	assert.Equal(t, []string{"front", "back"}, doc.Networks.Keys())

	web, ok := doc.Services.Get("web")
	require.True(t, ok)
	assert.Equal(t, "nginx:latest", web.Image)
	assert.Equal(t, "shop-web", web.ContainerName)
	assert.Equal(t, Sequence("8080:80", "8443:443/tcp"), web.Ports)
	assert.Equal(t, Sequence("front"), web.Networks)
	assert.Equal(t, Mapping("api"), web.DependsOn)
	assert.Equal(t, Sequence(".env"), web.EnvFile)

	api, _ := doc.Services.Get("api")
	require.NotNil(t, api.Build)
	assert.Equal(t, "./api", api.Build.Context)
	assert.Empty(t, api.Image)
	assert.Equal(t, Sequence("./src:/app", "cache:/cache:ro"), api.Volumes)
	assert.Equal(t, Sequence("db_password", "api_key"), api.Secrets)

	front, ok := doc.Networks.Get("front")
	assert.True(t, ok)
	assert.Nil(t, front)

	back, _ := doc.Networks.Get("back")
	require.NotNil(t, back)
	assert.Equal(t, "bridge", back.Driver)
	assert.True(t, back.External)

	assert.True(t, doc.Volumes.Has("cache"))

	secret, _ := doc.Secrets.Get("db_password")
	require.NotNil(t, secret)
	assert.Equal(t, "./secret.txt", secret.File)
}

func TestParse_PreservesServiceOrder(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  zeta: {image: a}
  alpha: {image: b}
  mid: {image: c}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, doc.Services.Keys())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("services:\n  web: [unclosed\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidYAML))

	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestParse_TolerantInputs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"comment only", "# nothing here\n"},
		{"top-level list", "- a\n- b\n"},
		{"top-level scalar", "hello"},
		{"services is a list", "services:\n  - web\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, 0, doc.Services.Len())
		})
	}
}

func TestParse_NullServiceBody(t *testing.T) {
	doc, err := Parse([]byte("services:\n  web:\n"))
	require.NoError(t, err)

	web, ok := doc.Services.Get("web")
	require.True(t, ok)
	require.NotNil(t, web)
	assert.Empty(t, web.Image)
	assert.Nil(t, web.Build)
	assert.True(t, web.Ports.IsAbsent())
}

func TestParse_FieldShapes(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  a:
    image: x
    ports: "80:80"
    networks:
      front:
        aliases: [a]
      back:
    volumes: {data: /d}
    depends_on: 42
`))
	require.NoError(t, err)

	a, _ := doc.Services.Get("a")
	assert.Equal(t, Scalar("80:80"), a.Ports)
	assert.Equal(t, Mapping("front", "back"), a.Networks)
	assert.Equal(t, ShapeMapping, a.Volumes.Shape)
	assert.Equal(t, Scalar("42"), a.DependsOn)
}

func TestParse_AnchorsAndMerge(t *testing.T) {
	doc, err := Parse([]byte(`
x-common: &common
  image: base:1
  networks: [shared]
services:
  one:
    <<: *common
  two:
    <<: *common
    image: override:2
`))
	require.NoError(t, err)

	one, _ := doc.Services.Get("one")
	assert.Equal(t, "base:1", one.Image)
	assert.Equal(t, Sequence("shared"), one.Networks)

	two, _ := doc.Services.Get("two")
	assert.Equal(t, "override:2", two.Image)
	assert.Equal(t, Sequence("shared"), two.Networks)
}

func TestParse_LongSyntaxPorts(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  a:
    image: x
    ports:
      - target: 80
      - target: 80
        published: "8080"
        host_ip: 127.0.0.1
      - target: 53
        protocol: udp
      - published: 9000
`))
	require.NoError(t, err)

	a, _ := doc.Services.Get("a")
	assert.Equal(t, Sequence("80", "127.0.0.1:8080:80", "53/udp"), a.Ports)
}

func TestParse_BuildForms(t *testing.T) {
	doc, err := Parse([]byte(`
services:
  short:
    build: .
  long:
    build:
      context: ./app
      dockerfile: Dockerfile.dev
  empty:
    build: {}
  unset:
    build:
`))
	require.NoError(t, err)

	short, _ := doc.Services.Get("short")
	assert.Equal(t, &Build{Context: "."}, short.Build)

	long, _ := doc.Services.Get("long")
	assert.Equal(t, &Build{Context: "./app", Dockerfile: "Dockerfile.dev"}, long.Build)

	empty, _ := doc.Services.Get("empty")
	assert.NotNil(t, empty.Build)

	unset, _ := doc.Services.Get("unset")
	assert.Nil(t, unset.Build)
}

func TestParse_Labels(t *testing.T) {
	doc, err := Parse([]byte(`
networks:
  a:
    labels:
      team: core
  b:
    labels:
      - "team=edge"
      - "tier"
`))
	require.NoError(t, err)

	a, _ := doc.Networks.Get("a")
	assert.Equal(t, map[string]string{"team": "core"}, a.Labels)

	b, _ := doc.Networks.Get("b")
	assert.Equal(t, map[string]string{"team": "edge", "tier": ""}, b.Labels)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stackYAML), 0644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Services.Len())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: [\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidYAML))
	assert.Contains(t, err.Error(), path)
}
