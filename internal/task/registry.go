package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
)

// Registry holds every task type compiled into the application, keyed by
// runtime name, in registration order.
type Registry struct {
	entries map[string]*Registration
	order   []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// RegisterTask registers a task type under the runtime name derived from
// typeName. Registering a name twice, or a type name without the "Task"
// suffix, is a programmer error and panics.
func (r *Registry) RegisterTask(typeName string, reg *Registration) {
	name, ok := DeriveName(typeName)
	if !ok {
		panic(fmt.Sprintf("'%s' is not a valid task type name", typeName))
	}
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("task with name '%s' already registered", name))
	}
	if reg.New == nil {
		panic(fmt.Sprintf("task '%s' registered without a constructor", name))
	}
	r.entries[name] = reg
	r.order = append(r.order, name)
}

// Names returns the runtime names of all registered tasks, in registration
// order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolved is one enabled task, ready to be scheduled.
type Resolved struct {
	Name         string
	Priority     int
	Registration *Registration
}

// Resolve produces the ordered run list for this configuration, plus the
// flattened list of all affected files declared by the enabled tasks.
//
// Registered tasks the config does not mention are assumed disabled and
// logged as such. Each enabled task's configuration subtree is validated
// (and normalized into the model) before anything runs, and two enabled
// tasks declaring the same affected file is a fatal configuration error.
// The run list is sorted by descending priority; ties keep registration
// order.
func (r *Registry) Resolve(ctx context.Context, model *config.Model) ([]Resolved, []string, error) {
	logger := ctxlog.FromContext(ctx)

	var undefined []string
	for _, name := range r.order {
		if _, ok := model.Tasks[name]; !ok {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		logger.Warn("Some tasks are not mentioned in the config, assuming they are disabled.", "tasks", undefined)
	}
	for name := range model.Tasks {
		if _, ok := r.entries[name]; !ok {
			logger.Warn("Config mentions a task that is not compiled in, ignoring.", "task", name)
		}
	}

	var resolved []Resolved
	affectedBy := make(map[string]string)
	var affected []string

	for _, name := range r.order {
		enabled := model.Tasks[name]
		logger.Info("Loaded task.", "task", name, "enabled", enabled)
		if !enabled {
			continue
		}
		reg := r.entries[name]

		if reg.ValidateConfig != nil {
			cfg, err := reg.ValidateConfig(ctx, model.TaskBody(name))
			if err != nil {
				return nil, nil, fmt.Errorf("task '%s' failed to validate its config section: %w", name, err)
			}
			model.SetTaskConfig(name, cfg)
		}

		for _, file := range reg.AffectedFiles {
			if other, taken := affectedBy[file]; taken {
				return nil, nil, fmt.Errorf(
					"task '%s' specifies an affected file '%s' which was already specified by task '%s'",
					name, file, other,
				)
			}
			affectedBy[file] = name
			affected = append(affected, file)
		}

		resolved = append(resolved, Resolved{Name: name, Priority: reg.Priority, Registration: reg})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Priority > resolved[j].Priority
	})
	return resolved, affected, nil
}
