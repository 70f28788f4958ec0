package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/renconstruct/internal/ctxlog"
)

// fileRoot describes the top-level block structure of a renconstruct
// config file.
type fileRoot struct {
	Build   *buildBlock        `hcl:"build,block"`
	Renutil *renutilBlock      `hcl:"renutil,block"`
	Tasks   *tasksBlock        `hcl:"tasks,block"`
	Configs []*taskConfigBlock `hcl:"task,block"`
}

type buildBlock struct {
	PC      *bool `hcl:"pc,optional"`
	Mac     *bool `hcl:"mac,optional"`
	Android *bool `hcl:"android,optional"`
}

type renutilBlock struct {
	Version  *string `hcl:"version,optional"`
	Registry *string `hcl:"registry,optional"`
}

// tasksBlock keeps its attributes raw so enablement flags can be inspected
// dynamically: the attribute names are the task names and are not known at
// compile time.
type tasksBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

type taskConfigBlock struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

// Load parses the config file at path and applies defaults. Task enablement
// flags must be boolean; any other value is a configuration error naming
// the offending task.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	model := &Model{
		Build:      Build{PC: true, Mac: true, Android: true},
		Renutil:    Renutil{Version: "latest"},
		Tasks:      make(map[string]bool),
		taskBodies: make(map[string]hcl.Body),
	}

	if root.Build != nil {
		applyBool(&model.Build.PC, root.Build.PC)
		applyBool(&model.Build.Mac, root.Build.Mac)
		applyBool(&model.Build.Android, root.Build.Android)
	}
	if root.Renutil != nil {
		applyString(&model.Renutil.Version, root.Renutil.Version)
		applyString(&model.Renutil.Registry, root.Renutil.Registry)
	}

	if root.Tasks != nil {
		attrs, diags := root.Tasks.Remain.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid tasks block: %w", diags)
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid value for task '%s': %w", name, diags)
			}
			if !val.Type().Equals(cty.Bool) {
				return nil, fmt.Errorf("'%s' must be true or false, got %s", name, renderValue(val))
			}
			model.Tasks[name] = val.True()
		}
	}

	for _, block := range root.Configs {
		if _, exists := model.taskBodies[block.Name]; exists {
			return nil, fmt.Errorf("duplicate task block '%s'", block.Name)
		}
		model.taskBodies[block.Name] = block.Remain
	}

	logger.Debug("Configuration loaded.", "path", path, "tasks", len(model.Tasks))
	return model, nil
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// renderValue formats a cty value for an error message.
func renderValue(val cty.Value) string {
	if val.IsNull() {
		return "null"
	}
	switch val.Type() {
	case cty.String:
		return fmt.Sprintf("'%s'", val.AsString())
	case cty.Number:
		return val.AsBigFloat().Text('g', -1)
	default:
		return val.GoString()
	}
}
