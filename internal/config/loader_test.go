package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadString(t *testing.T, content string) (*Model, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "renconstruct.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return Load(context.Background(), path)
}

func TestLoadDefaults(t *testing.T) {
	model, err := loadString(t, ``)
	require.NoError(t, err)

	assert.True(t, model.Build.PC)
	assert.True(t, model.Build.Mac)
	assert.True(t, model.Build.Android)
	assert.Equal(t, "latest", model.Renutil.Version)
	assert.Empty(t, model.Renutil.Registry)
	assert.Empty(t, model.Tasks)
}

func TestLoadFullConfig(t *testing.T) {
	model, err := loadString(t, `
build {
  pc      = true
  mac     = false
  android = true
}

renutil {
  version = "8.2.1"
}

tasks {
  patch                     = true
  set_extended_memory_limit = true
  clean                     = false
}

task "patch" {
  path = "./patches"
}
`)
	require.NoError(t, err)

	assert.False(t, model.Build.Mac)
	assert.Equal(t, "8.2.1", model.Renutil.Version)
	assert.Equal(t, map[string]bool{
		"patch":                     true,
		"set_extended_memory_limit": true,
		"clean":                     false,
	}, model.Tasks)

	body := model.TaskBody("patch")
	require.NotNil(t, body)
	var decoded struct {
		Path string `hcl:"path"`
	}
	require.False(t, gohcl.DecodeBody(body, nil, &decoded).HasErrors())
	assert.Equal(t, "./patches", decoded.Path)

	assert.Nil(t, model.TaskBody("clean"))
}

func TestLoadRejectsNonBooleanTaskFlag(t *testing.T) {
	_, err := loadString(t, `
tasks {
  patch = "yes"
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch")
	assert.Contains(t, err.Error(), "'yes'")
}

func TestLoadRejectsDuplicateTaskBlock(t *testing.T) {
	_, err := loadString(t, `
task "patch" {
  path = "a"
}

task "patch" {
  path = "b"
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task block 'patch'")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
}

func TestTaskConfigStorage(t *testing.T) {
	model := &Model{}
	assert.Nil(t, model.TaskConfig("patch"))
	model.SetTaskConfig("patch", 42)
	assert.Equal(t, 42, model.TaskConfig("patch"))
}
