// Package largeaddress implements the 'set_extended_memory_limit' task: it
// marks the Windows executables inside the built PC package as Large
// Address Aware, so 32-bit builds can use a 4 GB address space.
package largeaddress

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/pefile"
	"github.com/vk/renconstruct/internal/task"
	"github.com/vk/renconstruct/internal/zipmod"
)

// windowsLibDir is where the PC package keeps its 32-bit Windows binaries.
const windowsLibDir = "lib/windows-i686"

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("SetExtendedMemoryLimitTask", &task.Registration{
		New: newTask,
	})
}

// Task patches the LAA flag into the PC package's executables after the
// build has produced it.
type Task struct {
	name   string
	model  *config.Model
	active bool
}

func newTask(name string, model *config.Model) (task.Task, error) {
	return &Task{name: name, model: model, active: model.Build.PC}, nil
}

// Name implements task.Task.
func (t *Task) Name() string { return t.name }

// PostBuild implements task.PostBuilder.
func (t *Task) PostBuild(ctx context.Context) error {
	if !t.active {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	matches, err := filepath.Glob(filepath.Join(t.model.Output, "*-pc.zip"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no PC package found in '%s'", t.model.Output)
	}
	archive := matches[0]

	rw, err := zipmod.Open(archive)
	if err != nil {
		return err
	}
	defer rw.Abort()

	targets, err := findExecutables(rw.Names())
	if err != nil {
		return err
	}

	for _, name := range targets {
		already, err := t.patchEntry(rw, name)
		if err != nil {
			return err
		}
		if already {
			logger.Info("LAA flag was already set, skipping.", "entry", name)
		} else {
			logger.Info("Setting LAA flag.", "entry", name)
		}
	}
	return rw.Close()
}

// patchEntry extracts one executable entry, toggles its LAA bit and stages
// the patched bytes back into the archive when a write happened.
func (t *Task) patchEntry(rw *zipmod.Rewriter, name string) (already bool, err error) {
	data, err := rw.ReadEntry(name)
	if err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp("", "laa-*.exe")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	already, err = pefile.SetLargeAddressAware(tmpPath)
	if err != nil {
		return false, fmt.Errorf("failed to patch '%s': %w", name, err)
	}
	if already {
		return true, nil
	}

	patched, err := os.ReadFile(tmpPath)
	if err != nil {
		return false, err
	}
	return false, rw.WriteEntry(name, patched)
}

// findExecutables locates the three executables the task patches: the
// launcher at the package root, its copy under the Windows lib directory
// and the bundled pythonw.exe.
func findExecutables(names []string) ([]string, error) {
	root := rootPrefix(names)

	var mainExe string
	for _, name := range names {
		if len(strings.Split(name, "/")) == 2 && path.Ext(name) == ".exe" {
			mainExe = name
			break
		}
	}
	if mainExe == "" {
		return nil, fmt.Errorf("could not find the launcher executable to patch")
	}

	mainSubExe := path.Join(root, windowsLibDir, path.Base(mainExe))
	pythonwExe := path.Join(root, windowsLibDir, "pythonw.exe")

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	var missing []string
	for _, name := range []string{mainSubExe, pythonwExe} {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("could not find executables to patch: %s", strings.Join(missing, ", "))
	}

	return []string{mainExe, mainSubExe, pythonwExe}, nil
}

// rootPrefix returns the directory prefix shared by all entries. Ren'Py PC
// packages nest everything under a single "<name>-<version>-pc/" directory.
func rootPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		return prefix[:i]
	}
	return ""
}
