package app

import (
	"errors"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Project is the Ren'Py project directory to build.
	Project string
	// Output is the directory build artifacts are written to.
	Output string
	// ConfigPath is the renconstruct HCL config file.
	ConfigPath string

	LogFormat string
	LogLevel  string
	Debug     bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Project == "" {
		return nil, errors.New("Project is a required configuration field and cannot be empty")
	}
	if cfg.Output == "" {
		return nil, errors.New("Output is a required configuration field and cannot be empty")
	}
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return &cfg, nil
}
