package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/proc"
	"github.com/vk/renconstruct/internal/task"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	model    *config.Model
	registry *task.Registry
	runner   proc.Runner
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and task
// registry. A config file that cannot be loaded is a fatal startup error
// and panics; main recovers and turns it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, modules ...task.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	model.Project = appConfig.Project
	model.Output = appConfig.Output
	model.Debug = appConfig.Debug
	logger.Debug("Configuration loaded into model.")

	reg := task.New()
	if len(modules) == 0 {
		modules = coreTasks
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All task modules registered.", "count", len(modules))

	return &App{
		outW:     outW,
		logger:   logger,
		model:    model,
		registry: reg,
		runner:   proc.NewExecRunner("renutil"),
	}
}

// Registry returns the application's task registry. This is primarily for testing.
func (a *App) Registry() *task.Registry {
	return a.registry
}

// Model returns the application's configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// SetRunner swaps the renutil process runner, for tests.
func (a *App) SetRunner(r proc.Runner) {
	a.runner = r
}
