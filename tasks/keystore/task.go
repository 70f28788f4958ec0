// Package keystore implements the 'overwrite_keystore' task: it replaces
// the SDK's default Android signing keystore with a user-provided one
// before the build.
package keystore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/task"
)

// EnvVar is the fallback environment variable holding the base64-encoded
// keystore when the config file does not carry it.
const EnvVar = "RC_KEYSTORE"

// keystorePath is the file this task overwrites, relative to the SDK root.
const keystorePath = "rapt/android.keystore"

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("OverwriteKeystoreTask", &task.Registration{
		New:            newTask,
		AffectedFiles:  []string{keystorePath},
		ValidateConfig: validateConfig,
	})
}

// Config is the decoded 'task "overwrite_keystore"' block. Decoded holds
// the raw keystore bytes after validation.
type Config struct {
	Keystore string `hcl:"keystore,optional"`

	Decoded []byte
}

func validateConfig(ctx context.Context, body hcl.Body) (any, error) {
	var cfg Config
	if body != nil {
		if diags := gohcl.DecodeBody(body, nil, &cfg); diags.HasErrors() {
			return nil, diags
		}
	}
	if cfg.Keystore == "" {
		cfg.Keystore = os.Getenv(EnvVar)
	}
	if cfg.Keystore == "" {
		return nil, fmt.Errorf(
			"the overwrite_keystore task is active, but no keystore was specified; "+
				"specify either the 'keystore' config option or the '%s' environment variable", EnvVar)
	}

	decoded, err := base64.StdEncoding.DecodeString(cfg.Keystore)
	if err != nil {
		return nil, fmt.Errorf("keystore is not valid base64: %w", err)
	}
	cfg.Decoded = decoded
	return &cfg, nil
}

// Task writes the custom keystore over the SDK default.
type Task struct {
	name  string
	model *config.Model
}

func newTask(name string, model *config.Model) (task.Task, error) {
	return &Task{name: name, model: model}, nil
}

// Name implements task.Task.
func (t *Task) Name() string { return t.name }

// PreBuild implements task.PreBuilder.
func (t *Task) PreBuild(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("Overwriting default keystore with custom one.")
	cfg := t.model.TaskConfig(t.name).(*Config)
	target := filepath.Join(t.model.Renutil.Path, filepath.FromSlash(keystorePath))
	return os.WriteFile(target, cfg.Decoded, 0o644)
}
