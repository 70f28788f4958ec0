// Package notarize implements the 'notarize' task: it hands the built mac
// package to the external renotize tool for Apple code signing and
// notarization. The task's config subtree is passed through to renotize as
// a YAML file; renconstruct does not interpret it.
package notarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/proc"
	"github.com/vk/renconstruct/internal/task"
)

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("NotarizeTask", &task.Registration{
		New:            newTask,
		ValidateConfig: validateConfig,
	})
}

// Config carries the renotize settings verbatim.
type Config struct {
	Settings map[string]any
}

func validateConfig(ctx context.Context, body hcl.Body) (any, error) {
	settings, err := config.BodyToGo(body)
	if err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return nil, fmt.Errorf("the notarize task is active, but its config section is empty")
	}
	return &Config{Settings: settings}, nil
}

// Task runs renotize over the mac package after the build.
type Task struct {
	name   string
	model  *config.Model
	runner proc.Runner
}

func newTask(name string, model *config.Model) (task.Task, error) {
	return &Task{name: name, model: model, runner: proc.NewExecRunner("renotize")}, nil
}

// Name implements task.Task.
func (t *Task) Name() string { return t.name }

// PostBuild implements task.PostBuilder.
func (t *Task) PostBuild(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	cfg := t.model.TaskConfig(t.name).(*Config)

	matches, err := filepath.Glob(filepath.Join(t.model.Output, "*-mac.zip"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no mac package found in '%s'", t.model.Output)
	}
	macZip := matches[0]

	data, err := yaml.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to serialize renotize config: %w", err)
	}
	tmp, err := os.CreateTemp("", "renotize-*.yml")
	if err != nil {
		return err
	}
	cfgPath := tmp.Name()
	defer os.Remove(cfgPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	logger.Info("Notarizing mac package.", "package", macZip)
	return t.runner.Stream(ctx, func(line string) {
		logger.Debug(line)
	}, "-c", cfgPath, macZip, "full-run")
}
