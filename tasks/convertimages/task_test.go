package convertimages

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renconstruct/internal/config"
)

func parseBody(t *testing.T, src string) hcl.Body {
	t.Helper()
	file, diags := hclparse.NewParser().ParseHCL([]byte(src), "test.hcl")
	require.False(t, diags.HasErrors(), diags.Error())
	return file.Body
}

// fakeEncoder records conversions instead of spawning cwebp; it creates the
// destination file so the task's bookkeeping can be observed.
type fakeEncoder struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeEncoder) Output(ctx context.Context, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	// Last two args are the source and "-o dest" pair's destination.
	dst := args[len(args)-1]
	return "", os.WriteFile(dst, []byte("webp"), 0o644)
}

func (f *fakeEncoder) Stream(ctx context.Context, onLine func(string), args ...string) error {
	_, err := f.Output(ctx, args...)
	return err
}

func TestValidateConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := validateConfig(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 90, cfg.(*Config).Quality)
		assert.Greater(t, cfg.(*Config).Workers, 0)
	})

	t.Run("quality bounds", func(t *testing.T) {
		_, err := validateConfig(context.Background(), parseBody(t, `quality = 101`))
		require.Error(t, err)
	})
}

func TestPreBuildConvertsAllImages(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "game", "images"), 0o755))
	pngs := []string{
		filepath.Join(project, "game", "images", "bg.png"),
		filepath.Join(project, "game", "images", "sprite.png"),
	}
	for _, p := range pngs {
		require.NoError(t, os.WriteFile(p, []byte("png"), 0o644))
	}

	model := &config.Model{Project: project}
	model.SetTaskConfig("convert_images", &Config{Quality: 90, Workers: 2})

	encoder := &fakeEncoder{}
	task := &Task{name: "convert_images", model: model, encoder: encoder}
	require.NoError(t, task.PreBuild(context.Background()))

	assert.Len(t, encoder.calls, 2)
	for _, p := range pngs {
		assert.NoFileExists(t, p, "source images are removed after conversion")
		assert.FileExists(t, p[:len(p)-4]+".webp")
	}
}

func TestPreBuildWithNoImages(t *testing.T) {
	model := &config.Model{Project: t.TempDir()}
	model.SetTaskConfig("convert_images", &Config{Quality: 90, Workers: 1})

	task := &Task{name: "convert_images", model: model, encoder: &fakeEncoder{}}
	assert.NoError(t, task.PreBuild(context.Background()))
}
