package config

import "github.com/hashicorp/hcl/v2"

// Build selects which platform packages the run produces. All platforms
// default to enabled.
type Build struct {
	PC      bool
	Mac     bool
	Android bool
}

// Renutil describes the external Ren'Py installation manager. Path is not
// read from the config file; the driver resolves it through renutil before
// the pre-build stage runs.
type Renutil struct {
	Version  string
	Registry string
	Path     string
}

// Model is the fully loaded configuration tree for one run.
type Model struct {
	// Project is the Ren'Py project directory to build.
	Project string
	// Output is the directory build artifacts are written to.
	Output string
	// Debug enables debug logging.
	Debug bool

	Build   Build
	Renutil Renutil

	// Tasks maps task names to their enabled flag, from the tasks block.
	Tasks map[string]bool

	taskBodies  map[string]hcl.Body
	taskConfigs map[string]any
}

// TaskBody returns the raw HCL body of the task's configuration block, or
// nil if the config file has no block for that task.
func (m *Model) TaskBody(name string) hcl.Body {
	return m.taskBodies[name]
}

// SetTaskConfig stores a task's decoded and normalized configuration, as
// produced by its validation hook.
func (m *Model) SetTaskConfig(name string, cfg any) {
	if m.taskConfigs == nil {
		m.taskConfigs = make(map[string]any)
	}
	m.taskConfigs[name] = cfg
}

// TaskConfig returns the configuration previously stored by SetTaskConfig.
func (m *Model) TaskConfig(name string) any {
	return m.taskConfigs[name]
}
