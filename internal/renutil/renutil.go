// Package renutil wraps the external renutil CLI, which installs and
// launches Ren'Py SDKs. renconstruct never touches the SDK download or
// launch logic itself; it only drives this tool and parses its output.
package renutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/renconstruct/internal/proc"
)

// installLocationPrefix labels the line of `renutil show` output that
// carries the SDK install path.
const installLocationPrefix = "Install Location:"

// Client drives one renutil installation, optionally pointed at an
// alternative version registry.
type Client struct {
	runner   proc.Runner
	registry string
}

// NewClient returns a Client using the given runner. registry may be empty.
func NewClient(runner proc.Runner, registry string) *Client {
	return &Client{runner: runner, registry: registry}
}

// args prepends the registry flag, when configured, to a command line.
func (c *Client) args(rest ...string) []string {
	if c.registry == "" {
		return rest
	}
	return append([]string{"-r", c.registry}, rest...)
}

// Installed reports whether renutil is available on this system.
func (c *Client) Installed(ctx context.Context) bool {
	out, err := c.runner.Output(ctx, "--help")
	return err == nil && strings.Contains(out, "Usage: renutil")
}

// ListInstalled returns the locally installed Ren'Py versions.
func (c *Client) ListInstalled(ctx context.Context) ([]string, error) {
	out, err := c.runner.Output(ctx, c.args("list")...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed Ren'Py versions: %w", err)
	}
	return splitLines(out), nil
}

// LatestVersion returns the newest version renutil knows about.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	out, err := c.runner.Output(ctx, c.args("list", "--all")...)
	if err != nil {
		return "", fmt.Errorf("failed to list available Ren'Py versions: %w", err)
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return "", fmt.Errorf("renutil reported no available Ren'Py versions")
	}
	return lines[0], nil
}

// Install installs the given Ren'Py version.
func (c *Client) Install(ctx context.Context, version string) error {
	if _, err := c.runner.Output(ctx, c.args("install", version)...); err != nil {
		return fmt.Errorf("failed to install Ren'Py %s: %w", version, err)
	}
	return nil
}

// InstallLocation returns the installation directory of an installed
// version, parsed from `renutil show`.
func (c *Client) InstallLocation(ctx context.Context, version string) (string, error) {
	out, err := c.runner.Output(ctx, c.args("show", version)...)
	if err != nil {
		return "", fmt.Errorf("failed to inspect Ren'Py %s: %w", version, err)
	}
	for _, line := range splitLines(out) {
		if strings.HasPrefix(line, installLocationPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, installLocationPrefix)), nil
		}
	}
	return "", fmt.Errorf("renutil did not report an install location for Ren'Py %s", version)
}

// BuildAndroid launches the SDK's android_build entrypoint for the project,
// streaming tool output to onLine.
func (c *Client) BuildAndroid(ctx context.Context, version, project, destination string, onLine func(string)) error {
	args := c.args(
		"launch", version,
		"-h", "android_build",
		project,
		"assembleRelease",
		"--destination", destination,
	)
	if err := c.runner.Stream(ctx, onLine, args...); err != nil {
		return fmt.Errorf("android build failed: %w", err)
	}
	return nil
}

// Distribute launches the SDK's distribute entrypoint, producing one
// package per entry of packages ("pc", "mac").
func (c *Client) Distribute(ctx context.Context, version, project, destination string, packages []string, onLine func(string)) error {
	args := c.args(
		"launch", version,
		"-h", "distribute",
		project,
		"--destination", destination,
	)
	for _, pkg := range packages {
		args = append(args, "--package", pkg)
	}
	if err := c.runner.Stream(ctx, onLine, args...); err != nil {
		return fmt.Errorf("distribute build failed (%s): %w", strings.Join(packages, ", "), err)
	}
	return nil
}

// Clean removes the build leftovers of the given version's SDK.
func (c *Client) Clean(ctx context.Context, version string) error {
	if _, err := c.runner.Output(ctx, c.args("clean", version)...); err != nil {
		return fmt.Errorf("failed to clean Ren'Py %s: %w", version, err)
	}
	return nil
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
