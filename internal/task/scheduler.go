package task

import (
	"context"
	"fmt"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
)

// Stage identifies when a task hook runs relative to the Ren'Py build.
type Stage int

const (
	StagePreBuild Stage = iota
	StagePostBuild
)

func (s Stage) String() string {
	switch s {
	case StagePreBuild:
		return "pre-build"
	case StagePostBuild:
		return "post-build"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Scheduler runs the resolved task list through the two pipeline stages.
// Task instances are created once, immediately before their first hook
// invocation, and reused for the later stage. Execution is strictly
// sequential in resolved order: later tasks may depend on the filesystem
// side effects of earlier ones.
type Scheduler struct {
	model     *config.Model
	resolved  []Resolved
	instances map[string]Task
}

// NewScheduler creates a scheduler over an already resolved task list.
func NewScheduler(model *config.Model, resolved []Resolved) *Scheduler {
	return &Scheduler{
		model:     model,
		resolved:  resolved,
		instances: make(map[string]Task),
	}
}

// Run executes the given stage's hook of every task, in order. A
// constructor failure or a hook failure is fatal: the error names the task
// and stage, and no further task is attempted. Tasks that do not implement
// the stage's hook are skipped silently.
func (s *Scheduler) Run(ctx context.Context, stage Stage) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running stage for active tasks.", "stage", stage.String())

	for _, res := range s.resolved {
		instance, ok := s.instances[res.Name]
		if !ok {
			var err error
			instance, err = res.Registration.New(res.Name, s.model)
			if err != nil {
				return fmt.Errorf("task '%s' failed to initialize: %w", res.Name, err)
			}
			s.instances[res.Name] = instance
		}

		var hook func(context.Context) error
		switch stage {
		case StagePreBuild:
			if t, ok := instance.(PreBuilder); ok {
				hook = t.PreBuild
			}
		case StagePostBuild:
			if t, ok := instance.(PostBuilder); ok {
				hook = t.PostBuild
			}
		}
		if hook == nil {
			continue
		}

		logger.Info("Running task.", "task", res.Name, "stage", stage.String())
		if err := hook(ctx); err != nil {
			return fmt.Errorf("task '%s' failed to execute '%s': %w", res.Name, stage, err)
		}
	}
	return nil
}
