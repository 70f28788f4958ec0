// Package proc runs the external command-line tools renconstruct brokers
// (renutil, renotize, image encoders). The Runner interface exists so the
// driver and tasks can be exercised in tests without spawning processes.
package proc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes one external tool.
type Runner interface {
	// Output runs the tool with the given arguments and returns its
	// captured standard output. A non-zero exit status is an error.
	Output(ctx context.Context, args ...string) (string, error)

	// Stream runs the tool and delivers its combined stdout and stderr
	// line by line to onLine as they are produced.
	Stream(ctx context.Context, onLine func(line string), args ...string) error
}

// ExecRunner is the exec-backed Runner used outside of tests.
type ExecRunner struct {
	// Name is the executable to invoke, resolved through PATH.
	Name string
}

// NewExecRunner returns a Runner for the named executable.
func NewExecRunner(name string) *ExecRunner {
	return &ExecRunner{Name: name}
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.String(), fmt.Errorf("'%s %s' failed: %w: %s", r.Name, strings.Join(args, " "), err, msg)
	}
	return stdout.String(), nil
}

// Stream implements Runner. Stdout and stderr are merged into one ordered
// line stream, matching how the wrapped tools interleave their output.
func (r *ExecRunner) Stream(ctx context.Context, onLine func(string), args ...string) error {
	cmd := exec.CommandContext(ctx, r.Name, args...)

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start '%s': %w", r.Name, err)
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			onLine(line)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("'%s %s' failed: %w", r.Name, strings.Join(args, " "), err)
	}
	return scanErr
}
