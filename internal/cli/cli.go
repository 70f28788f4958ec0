// Package cli parses renconstruct's command line into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/renconstruct/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("renconstruct", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
renconstruct - Automatically build Ren'Py applications for multiple platforms.

Usage:
  renconstruct -i PROJECT -o OUTPUT -c CONFIG [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	projectFlag := flagSet.String("input", "", "Path to the Ren'Py project to build.")
	iFlag := flagSet.String("i", "", "Path to the Ren'Py project to build (shorthand).")
	outputFlag := flagSet.String("output", "", "Directory to output build artifacts to.")
	oFlag := flagSet.String("o", "", "Directory to output build artifacts to (shorthand).")
	configFlag := flagSet.String("config", "", "Configuration file for this run.")
	cFlag := flagSet.String("c", "", "Configuration file for this run (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	debugFlag := flagSet.Bool("d", false, "Show debug information (forces log-level 'debug').")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	project := firstNonEmpty(*projectFlag, *iFlag)
	outDir := firstNonEmpty(*outputFlag, *oFlag)
	configPath := firstNonEmpty(*configFlag, *cFlag)

	if project == "" || outDir == "" || configPath == "" {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "the -i, -o and -c options are required"}
	}

	if info, err := os.Stat(project); err != nil || !info.IsDir() {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("project directory '%s' does not exist", project)}
	}
	if info, err := os.Stat(configPath); err != nil || info.IsDir() {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("config file '%s' does not exist", configPath)}
	}
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		fmt.Fprintf(output, "The output directory does not exist, creating it...\n")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("failed to create output directory: %v", err)}
		}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		Project:    project,
		Output:     outDir,
		ConfigPath: configPath,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		Debug:      *debugFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
