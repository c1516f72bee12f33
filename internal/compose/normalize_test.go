package compose

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRelation(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  []string
	}{
		{"absent", Field{}, []string{}},
		{"sequence", Sequence("db", "cache"), []string{"db", "cache"}},
		{"mapping keys", Mapping("front", "back"), []string{"front", "back"}},
		{"scalar", Scalar("db"), []string{}},
		{"other", Field{Shape: ShapeOther}, []string{}},
		{"empty sequence", Sequence(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRelation(tt.field)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  []string
	}{
		{"absent", Field{}, []string{}},
		{"sequence", Sequence("80:80", "443:443"), []string{"80:80", "443:443"}},
		{"mapping is not a list", Mapping("a", "b"), []string{}},
		{"scalar", Scalar("80:80"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeList(tt.field)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		mapping string
		want    string
		ok      bool
	}{
		{"8080:80", "8080", true},
		{"127.0.0.1:8080:80", "8080", true},
		{"127.0.0.1:8080:80/udp", "8080", true},
		{"8080:80/tcp", "8080", true},
		{"53/udp:53", "53", true},
		{"80", "", false},
		{":80", "", false},
		{"127.0.0.1::80", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mapping, func(t *testing.T) {
			got, ok := HostPort(tt.mapping)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVolumeSource(t *testing.T) {
	tests := []struct {
		mapping string
		want    string
		ok      bool
	}{
		{"data:/var/lib/data", "data", true},
		{"./src:/app:ro", "./src", true},
		{"/var/run/docker.sock:/var/run/docker.sock", "/var/run/docker.sock", true},
		{"anon", "anon", true},
		{":/x", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mapping, func(t *testing.T) {
			got, ok := VolumeSource(tt.mapping)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsHostPath(t *testing.T) {
	assert.True(t, IsHostPath("./data"))
	assert.True(t, IsHostPath("../shared"))
	assert.True(t, IsHostPath("/srv/data"))
	assert.False(t, IsHostPath("data"))
	assert.False(t, IsHostPath("~/data"))
}

func TestCollection(t *testing.T) {
	c := NewCollection[*Network]()
	c.Set("b", nil)
	c.Set("a", &Network{Driver: "bridge"})
	c.Set("b", &Network{Driver: "overlay"})

	assert.Equal(t, []string{"b", "a"}, c.Keys())
	assert.Equal(t, 2, c.Len())

	b, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "overlay", b.Driver)

	keys := c.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"b", "a"}, c.Keys())
}

func TestCollection_NilValueIsPresent(t *testing.T) {
	c := NewCollection[*Volume]()
	c.Set("data", nil)

	assert.True(t, c.Has("data"))
	assert.False(t, c.Has("other"))
}

func TestCollection_NilReceiver(t *testing.T) {
	var c *Collection[*Service]

	assert.False(t, c.Has("web"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []string{}, c.Keys())

	called := false
	c.Each(func(string, *Service) { called = true })
	assert.False(t, called)
}

func TestCollection_MarshalJSONKeepsOrder(t *testing.T) {
	c := NewCollection[int]()
	c.Set("zeta", 1)
	c.Set("alpha", 2)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":2}`, string(data))
}
