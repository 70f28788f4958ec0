// Package convertimages implements the 'convert_images' task: before the
// build it recompresses the project's lossless PNG assets to WebP through
// an external encoder. Files are independent, so the conversion runs over
// an unordered, bounded worker pool; this is the only parallel operation in
// the pipeline.
package convertimages

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"golang.org/x/sync/errgroup"

	"github.com/vk/renconstruct/internal/config"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/fsutil"
	"github.com/vk/renconstruct/internal/proc"
	"github.com/vk/renconstruct/internal/task"
)

// Module implements the task.Module interface for this package.
type Module struct{}

// Register registers the task with the engine.
func (Module) Register(r *task.Registry) {
	r.RegisterTask("ConvertImagesTask", &task.Registration{
		New:            newTask,
		ValidateConfig: validateConfig,
	})
}

// Config is the decoded 'task "convert_images"' block.
type Config struct {
	// Quality is the WebP quality factor, 0-100.
	Quality int `hcl:"quality,optional"`
	// Lossless selects lossless WebP encoding.
	Lossless bool `hcl:"lossless,optional"`
	// Workers bounds the conversion pool. Defaults to the CPU count.
	Workers int `hcl:"workers,optional"`
}

func validateConfig(ctx context.Context, body hcl.Body) (any, error) {
	cfg := Config{Quality: 90}
	if body != nil {
		if diags := gohcl.DecodeBody(body, nil, &cfg); diags.HasErrors() {
			return nil, diags
		}
	}
	if cfg.Quality < 0 || cfg.Quality > 100 {
		return nil, fmt.Errorf("field 'quality' must be between 0 and 100, got %d", cfg.Quality)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &cfg, nil
}

// Task converts project images during the pre-build stage.
type Task struct {
	name    string
	model   *config.Model
	encoder proc.Runner
}

func newTask(name string, model *config.Model) (task.Task, error) {
	return &Task{name: name, model: model, encoder: proc.NewExecRunner("cwebp")}, nil
}

// Name implements task.Task.
func (t *Task) Name() string { return t.name }

// PreBuild implements task.PreBuilder.
func (t *Task) PreBuild(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	cfg := t.model.TaskConfig(t.name).(*Config)

	images, err := fsutil.FindFilesByExtension(t.model.Project, ".png")
	if err != nil {
		return fmt.Errorf("failed to scan project for images: %w", err)
	}
	if len(images) == 0 {
		logger.Debug("No images to convert.")
		return nil
	}
	logger.Info("Converting images to WebP.", "count", len(images), "workers", cfg.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, src := range images {
		src := src
		g.Go(func() error {
			return t.convert(ctx, cfg, src)
		})
	}
	return g.Wait()
}

// convert encodes one image and removes the original on success. Ren'Py
// resolves images by their base name, so the extension swap is transparent
// to the project.
func (t *Task) convert(ctx context.Context, cfg *Config, src string) error {
	dst := strings.TrimSuffix(src, ".png") + ".webp"

	args := []string{"-quiet"}
	if cfg.Lossless {
		args = append(args, "-lossless")
	} else {
		args = append(args, "-q", strconv.Itoa(cfg.Quality))
	}
	args = append(args, src, "-o", dst)

	if _, err := t.encoder.Output(ctx, args...); err != nil {
		return fmt.Errorf("failed to convert '%s': %w", src, err)
	}
	return os.Remove(src)
}
