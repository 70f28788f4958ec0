package task

import (
	"context"
	"fmt"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renconstruct/internal/config"
)

type nopTask struct{ name string }

func (t *nopTask) Name() string { return t.name }

func newNop(name string, _ *config.Model) (Task, error) {
	return &nopTask{name: name}, nil
}

func modelWithTasks(enabled map[string]bool) *config.Model {
	return &config.Model{Tasks: enabled}
}

func TestRegisterTask(t *testing.T) {
	t.Run("derives runtime name", func(t *testing.T) {
		r := New()
		r.RegisterTask("FooBarTask", &Registration{New: newNop})
		assert.Equal(t, []string{"foo_bar"}, r.Names())
	})

	t.Run("panics on duplicate", func(t *testing.T) {
		r := New()
		r.RegisterTask("FooTask", &Registration{New: newNop})
		assert.Panics(t, func() {
			r.RegisterTask("FooTask", &Registration{New: newNop})
		})
	})

	t.Run("panics on invalid type name", func(t *testing.T) {
		r := New()
		assert.Panics(t, func() {
			r.RegisterTask("NotATaskType", &Registration{New: newNop})
		})
	})

	t.Run("panics without constructor", func(t *testing.T) {
		r := New()
		assert.Panics(t, func() {
			r.RegisterTask("FooTask", &Registration{})
		})
	})
}

func TestResolveOrdering(t *testing.T) {
	t.Run("priority descending", func(t *testing.T) {
		r := New()
		r.RegisterTask("CleanTask", &Registration{New: newNop, Priority: -1000})
		r.RegisterTask("PatchTask", &Registration{New: newNop, Priority: 1000})

		resolved, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{
			"clean": true,
			"patch": true,
		}))
		require.NoError(t, err)
		require.Len(t, resolved, 2)
		assert.Equal(t, "patch", resolved[0].Name)
		assert.Equal(t, "clean", resolved[1].Name)
	})

	t.Run("ties keep registration order", func(t *testing.T) {
		r := New()
		r.RegisterTask("AlphaTask", &Registration{New: newNop})
		r.RegisterTask("BetaTask", &Registration{New: newNop})
		r.RegisterTask("GammaTask", &Registration{New: newNop})

		resolved, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{
			"alpha": true,
			"beta":  true,
			"gamma": true,
		}))
		require.NoError(t, err)
		require.Len(t, resolved, 3)
		assert.Equal(t, "alpha", resolved[0].Name)
		assert.Equal(t, "beta", resolved[1].Name)
		assert.Equal(t, "gamma", resolved[2].Name)
	})

	t.Run("default priority is zero", func(t *testing.T) {
		r := New()
		r.RegisterTask("EarlyTask", &Registration{New: newNop, Priority: 1})
		r.RegisterTask("DefaultTask", &Registration{New: newNop})
		r.RegisterTask("LateTask", &Registration{New: newNop, Priority: -1})

		resolved, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{
			"early":   true,
			"default": true,
			"late":    true,
		}))
		require.NoError(t, err)
		require.Len(t, resolved, 3)
		assert.Equal(t, []int{1, 0, -1}, []int{resolved[0].Priority, resolved[1].Priority, resolved[2].Priority})
	})
}

func TestResolveEnablement(t *testing.T) {
	t.Run("unmentioned tasks are disabled, not an error", func(t *testing.T) {
		r := New()
		r.RegisterTask("FooTask", &Registration{New: newNop})
		r.RegisterTask("BarTask", &Registration{New: newNop})

		resolved, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{"foo": true}))
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, "foo", resolved[0].Name)
	})

	t.Run("disabled tasks are skipped entirely", func(t *testing.T) {
		r := New()
		validated := false
		r.RegisterTask("FooTask", &Registration{
			New: newNop,
			ValidateConfig: func(ctx context.Context, body hcl.Body) (any, error) {
				validated = true
				return nil, nil
			},
		})

		resolved, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{"foo": false}))
		require.NoError(t, err)
		assert.Empty(t, resolved)
		assert.False(t, validated, "disabled tasks must not have their config validated")
	})
}

func TestResolveAffectedFileConflict(t *testing.T) {
	r := New()
	r.RegisterTask("FooTask", &Registration{New: newNop, AffectedFiles: []string{"rapt/android.keystore"}})
	r.RegisterTask("BarTask", &Registration{New: newNop, AffectedFiles: []string{"rapt/android.keystore"}})

	t.Run("conflict between enabled tasks is fatal", func(t *testing.T) {
		_, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{
			"foo": true,
			"bar": true,
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bar")
		assert.Contains(t, err.Error(), "foo")
		assert.Contains(t, err.Error(), "rapt/android.keystore")
	})

	t.Run("no conflict when only one is enabled", func(t *testing.T) {
		resolved, affected, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{
			"foo": true,
			"bar": false,
		}))
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, []string{"rapt/android.keystore"}, affected)
	})
}

func TestResolveValidateConfig(t *testing.T) {
	t.Run("hook failure aborts resolution", func(t *testing.T) {
		r := New()
		r.RegisterTask("FooTask", &Registration{
			New: newNop,
			ValidateConfig: func(ctx context.Context, body hcl.Body) (any, error) {
				return nil, fmt.Errorf("field 'path' missing")
			},
		})

		_, _, err := r.Resolve(context.Background(), modelWithTasks(map[string]bool{"foo": true}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "foo")
		assert.Contains(t, err.Error(), "field 'path' missing")
	})

	t.Run("normalized config is stored in the model", func(t *testing.T) {
		r := New()
		r.RegisterTask("FooTask", &Registration{
			New: newNop,
			ValidateConfig: func(ctx context.Context, body hcl.Body) (any, error) {
				return "normalized", nil
			},
		})

		model := modelWithTasks(map[string]bool{"foo": true})
		_, _, err := r.Resolve(context.Background(), model)
		require.NoError(t, err)
		assert.Equal(t, "normalized", model.TaskConfig("foo"))
	})
}
