// Package clean implements the 'clean' task: after everything else has
// run, it clears the SDK's build leftovers and drops the per-ABI APK
// variants, keeping only the universal one.
package clean

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/proc"
	"github.com/vk/renconstruct/internal/renutil"
	"github.com/vk/renconstruct/internal/task"
)

// universalSuffix marks the one APK variant worth keeping.
const universalSuffix = "-universal-release.apk"

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("CleanTask", &task.Registration{
		New: newTask,
		// Cleanup runs after every other task.
		Priority: -1000,
	})
}

// Task removes build leftovers during the post-build stage.
type Task struct {
	name    string
	model   *config.Model
	renutil *renutil.Client
}

func newTask(name string, model *config.Model) (task.Task, error) {
	client := renutil.NewClient(proc.NewExecRunner("renutil"), model.Renutil.Registry)
	return &Task{name: name, model: model, renutil: client}, nil
}

// Name implements task.Task.
func (t *Task) Name() string { return t.name }

// PostBuild implements task.PostBuilder.
func (t *Task) PostBuild(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := t.renutil.Clean(ctx, t.model.Renutil.Version); err != nil {
		return err
	}

	apks, err := filepath.Glob(filepath.Join(t.model.Output, "*.apk"))
	if err != nil {
		return err
	}
	for _, apk := range apks {
		if strings.HasSuffix(apk, universalSuffix) {
			continue
		}
		logger.Debug("Removing non-universal APK.", "file", apk)
		if err := os.Remove(apk); err != nil {
			return err
		}
	}
	return nil
}
