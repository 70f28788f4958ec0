package app

import (
	"context"
	"errors"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vk/renconstruct/internal/backup"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/renutil"
	"github.com/vk/renconstruct/internal/task"
)

// Run executes one full build: resolve tasks, resolve the Ren'Py
// installation through renutil, back up affected files, run the pre-build
// stage, build the configured platform packages and run the post-build
// stage. Any error aborts the run and surfaces as a non-zero exit in main.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	resolved, affected, err := a.registry.Resolve(ctx, a.model)
	if err != nil {
		return err
	}
	a.printTaskSummary(resolved)

	client := renutil.NewClient(a.runner, a.model.Renutil.Registry)
	if !client.Installed(ctx) {
		return errors.New("please install 'renutil' before continuing")
	}

	version, err := a.resolveVersion(ctx, client)
	if err != nil {
		return err
	}
	a.model.Renutil.Version = version

	location, err := client.InstallLocation(ctx, version)
	if err != nil {
		return err
	}
	a.model.Renutil.Path = location
	a.logger.Debug("Resolved Ren'Py installation.", "version", version, "path", location)

	if len(affected) > 0 {
		a.logger.Info("Found affected files requiring backup.", "count", len(affected))
		if err := backup.PrepareAll(ctx, location, affected); err != nil {
			return err
		}
	}

	scheduler := task.NewScheduler(a.model, resolved)
	if err := scheduler.Run(ctx, task.StagePreBuild); err != nil {
		return err
	}

	if err := a.build(ctx, client, version); err != nil {
		return err
	}

	return scheduler.Run(ctx, task.StagePostBuild)
}

// resolveVersion picks the Ren'Py version for this run and installs it if
// it is not present locally.
func (a *App) resolveVersion(ctx context.Context, client *renutil.Client) (string, error) {
	version := a.model.Renutil.Version
	if version == "latest" {
		latest, err := client.LatestVersion(ctx)
		if err != nil {
			return "", err
		}
		version = latest
		a.logger.Debug("Resolved 'latest' Ren'Py version.", "version", version)
	}

	installed, err := client.ListInstalled(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(installed, version) {
		a.logger.Warn("Ren'Py version is not installed, installing now.", "version", version)
		if err := client.Install(ctx, version); err != nil {
			return "", err
		}
	}
	return version, nil
}

// build produces the configured platform packages through renutil, piping
// the build tool's output into the debug log.
func (a *App) build(ctx context.Context, client *renutil.Client, version string) error {
	onLine := func(line string) { a.logger.Debug(line) }

	if a.model.Build.Android {
		a.logger.Info("Building Android package.")
		if err := client.BuildAndroid(ctx, version, a.model.Project, a.model.Output, onLine); err != nil {
			return err
		}
	}

	var packages []string
	if a.model.Build.PC {
		packages = append(packages, "pc")
	}
	if a.model.Build.Mac {
		packages = append(packages, "mac")
	}
	if len(packages) > 0 {
		a.logger.Info("Building distribution packages.", "packages", packages)
		if err := client.Distribute(ctx, version, a.model.Project, a.model.Output, packages, onLine); err != nil {
			return err
		}
	}
	return nil
}

// printTaskSummary renders the resolved task pool so a run's log starts
// with what will execute, in which order.
func (a *App) printTaskSummary(resolved []task.Resolved) {
	t := table.NewWriter()
	t.SetOutputMirror(a.outW)
	t.AppendHeader(table.Row{"#", "Task", "Priority", "Enabled"})

	for i, res := range resolved {
		t.AppendRow(table.Row{i + 1, res.Name, res.Priority, "✔"})
	}
	enabled := make(map[string]bool, len(resolved))
	for _, res := range resolved {
		enabled[res.Name] = true
	}
	for _, name := range a.registry.Names() {
		if !enabled[name] {
			t.AppendRow(table.Row{"", name, "", "✘"})
		}
	}
	t.Render()
}
