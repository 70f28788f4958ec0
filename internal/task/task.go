package task

import (
	"context"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/renconstruct/internal/config"
)

// Task is the minimal contract every task instance satisfies. Stage
// participation is expressed through the capability interfaces below; a
// task that does not implement a stage's interface is silently skipped for
// that stage.
type Task interface {
	Name() string
}

// PreBuilder is implemented by tasks that run before the Ren'Py build.
type PreBuilder interface {
	Task
	PreBuild(ctx context.Context) error
}

// PostBuilder is implemented by tasks that run after the Ren'Py build.
type PostBuilder interface {
	Task
	PostBuild(ctx context.Context) error
}

// Registration describes one task type to the registry.
type Registration struct {
	// New constructs the task instance. It is called once per run, by the
	// scheduler, immediately before the task's first hook invocation.
	New func(name string, model *config.Model) (Task, error)

	// Priority orders enabled tasks; higher runs earlier. Zero is the
	// default for tasks that do not care.
	Priority int

	// AffectedFiles lists the paths, relative to the Ren'Py installation
	// root, this task mutates. They are backed up before the run, and no
	// two enabled tasks may claim the same path.
	AffectedFiles []string

	// ValidateConfig, if set, decodes and normalizes the task's raw config
	// subtree. The returned value is stored in the model for the task
	// instance to pick up. A nil body is passed when the config file has
	// no block for this task.
	ValidateConfig func(ctx context.Context, body hcl.Body) (any, error)
}

// Module is the interface task packages implement to be compiled into the
// application.
type Module interface {
	Register(r *Registry)
}
