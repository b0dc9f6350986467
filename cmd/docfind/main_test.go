package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dosco/docfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigName(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"", "dev"},
		{"production", "prod"},
		{"PROD", "prod"},
		{"staging", "stage"},
		{"test", "test"},
		{"development", "dev"},
		{"qa", "qa"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("GO_ENV", tt.env)
			assert.Equal(t, tt.want, getConfigName())
		})
	}
}

func TestReadFilter(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "f.yml")
	require.NoError(t, os.WriteFile(yml, []byte(`
collection: users
fields:
  - name
include:
  posts:
    relation: hasMany
    collection: posts
    foreignKey: ownerId
`), 0o600))

	f, err := readFilter(yml)
	require.NoError(t, err)
	assert.Equal(t, "users", f.Collection)
	assert.Equal(t, []core.Field{core.BareField("name")}, f.Fields)

	rel, ok := f.Include.Get("posts")
	require.True(t, ok)
	assert.Equal(t, core.RelHasMany, rel.Kind)

	js := filepath.Join(dir, "f.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"collection": "posts", "limit": 2}`), 0o600))

	f, err = readFilter(js)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.Limit)

	_, err = readFilter(filepath.Join(dir, "f.txt"))
	assert.Error(t, err)

	txt := filepath.Join(dir, "g.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o600))
	_, err = readFilter(txt)
	assert.ErrorContains(t, err, "unsupported")
}

func TestBuildDetails(t *testing.T) {
	assert.Equal(t, "docfind dev", buildDetails())
}
