// Package patch implements the 'patch' task: it applies a directory of
// diff files onto the Ren'Py installation before the build, with full
// rollback if any patch fails.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/patch"
	"github.com/vk/renconstruct/internal/task"
)

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("PatchTask", &task.Registration{
		New: newTask,
		// Patching must happen before any other task reads or mutates the
		// installation.
		Priority:       1000,
		ValidateConfig: validateConfig,
	})
}

// Config is the decoded 'task "patch"' block.
type Config struct {
	// Path is the directory holding the patch files.
	Path string `hcl:"path"`
}

func validateConfig(ctx context.Context, body hcl.Body) (any, error) {
	if body == nil {
		return nil, fmt.Errorf("field 'path' missing, add a 'task \"patch\"' block with a 'path' attribute")
	}
	var cfg Config
	if diags := gohcl.DecodeBody(body, nil, &cfg); diags.HasErrors() {
		return nil, diags
	}

	if strings.HasPrefix(cfg.Path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.Path = filepath.Join(home, strings.TrimPrefix(cfg.Path, "~"))
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs

	info, err := os.Stat(cfg.Path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory '%s' does not exist", cfg.Path)
	}
	return &cfg, nil
}

// Task applies the configured patch directory during the pre-build stage.
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
	cfg := t.model.TaskConfig(t.name).(*Config)
	applier := &patch.Applier{
		PatchRoot:  cfg.Path,
		TargetRoot: t.model.Renutil.Path,
	}
	return applier.Apply(ctx)
}
