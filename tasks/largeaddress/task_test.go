package largeaddress

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renconstruct/internal/config"
)

// fakePE builds a minimal PE image with the given characteristics bits.
func fakePE(characteristics uint16) []byte {
	const peOffset = 0x80
	buf := make([]byte, 0x100)
	copy(buf, "MZ")
	binary.LittleEndian.PutUint32(buf[0x3C:], peOffset)
	copy(buf[peOffset:], "PE\x00\x00")
	binary.LittleEndian.PutUint16(buf[peOffset+4+18:], characteristics)
	return buf
}

func laaSet(t *testing.T, data []byte) bool {
	t.Helper()
	peOffset := binary.LittleEndian.Uint32(data[0x3C:])
	bits := binary.LittleEndian.Uint16(data[peOffset+4+18:])
	return bits&0x0020 != 0
}

func makePCPackage(t *testing.T, dir string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, "mygame-1.0-pc.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	// Fixed entry order keeps the test deterministic.
	for _, name := range []string{
		"mygame-1.0-pc/mygame.exe",
		"mygame-1.0-pc/lib/windows-i686/mygame.exe",
		"mygame-1.0-pc/lib/windows-i686/pythonw.exe",
		"mygame-1.0-pc/game/script.rpy",
	} {
		data, ok := entries[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func readEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	rc, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer rc.Close()
	out := make(map[string][]byte)
	for _, f := range rc.File {
		r, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		r.Close()
		out[f.Name] = data
	}
	return out
}

func TestPostBuildPatchesAllExecutables(t *testing.T) {
	output := t.TempDir()
	script := []byte("label start:\n    return\n")
	makePCPackage(t, output, map[string][]byte{
		"mygame-1.0-pc/mygame.exe":                  fakePE(0x0102),
		"mygame-1.0-pc/lib/windows-i686/mygame.exe": fakePE(0x0102),
		"mygame-1.0-pc/lib/windows-i686/pythonw.exe": fakePE(0x0102),
		"mygame-1.0-pc/game/script.rpy":             script,
	})

	model := &config.Model{Output: output, Build: config.Build{PC: true}}
	instance, err := newTask("set_extended_memory_limit", model)
	require.NoError(t, err)

	require.NoError(t, instance.(*Task).PostBuild(context.Background()))

	entries := readEntries(t, filepath.Join(output, "mygame-1.0-pc.zip"))
	assert.True(t, laaSet(t, entries["mygame-1.0-pc/mygame.exe"]))
	assert.True(t, laaSet(t, entries["mygame-1.0-pc/lib/windows-i686/mygame.exe"]))
	assert.True(t, laaSet(t, entries["mygame-1.0-pc/lib/windows-i686/pythonw.exe"]))
	assert.Equal(t, script, entries["mygame-1.0-pc/game/script.rpy"], "non-executable entries stay byte-identical")
}

func TestPostBuildIsIdempotent(t *testing.T) {
	output := t.TempDir()
	makePCPackage(t, output, map[string][]byte{
		"mygame-1.0-pc/mygame.exe":                  fakePE(0x0122), // LAA already set
		"mygame-1.0-pc/lib/windows-i686/mygame.exe": fakePE(0x0122),
		"mygame-1.0-pc/lib/windows-i686/pythonw.exe": fakePE(0x0122),
	})
	archive := filepath.Join(output, "mygame-1.0-pc.zip")
	before, err := os.ReadFile(archive)
	require.NoError(t, err)

	model := &config.Model{Output: output, Build: config.Build{PC: true}}
	instance, err := newTask("set_extended_memory_limit", model)
	require.NoError(t, err)
	require.NoError(t, instance.(*Task).PostBuild(context.Background()))

	after, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, before, after, "flags already set means the archive is not rewritten at all")
}

func TestPostBuildSkipsWhenPCDisabled(t *testing.T) {
	model := &config.Model{Output: t.TempDir(), Build: config.Build{PC: false}}
	instance, err := newTask("set_extended_memory_limit", model)
	require.NoError(t, err)
	assert.NoError(t, instance.(*Task).PostBuild(context.Background()))
}

func TestPostBuildFailsWithoutPackage(t *testing.T) {
	model := &config.Model{Output: t.TempDir(), Build: config.Build{PC: true}}
	instance, err := newTask("set_extended_memory_limit", model)
	require.NoError(t, err)
	require.Error(t, instance.(*Task).PostBuild(context.Background()))
}

func TestPostBuildFailsWithMissingExecutables(t *testing.T) {
	output := t.TempDir()
	makePCPackage(t, output, map[string][]byte{
		"mygame-1.0-pc/mygame.exe":      fakePE(0),
		"mygame-1.0-pc/game/script.rpy": []byte("x"),
	})

	model := &config.Model{Output: output, Build: config.Build{PC: true}}
	instance, err := newTask("set_extended_memory_limit", model)
	require.NoError(t, err)

	err = instance.(*Task).PostBuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pythonw.exe")
}

func TestRootPrefix(t *testing.T) {
	assert.Equal(t, "mygame-1.0-pc", rootPrefix([]string{
		"mygame-1.0-pc/mygame.exe",
		"mygame-1.0-pc/game/script.rpy",
	}))
	assert.Equal(t, "", rootPrefix(nil))
	assert.Equal(t, "", rootPrefix([]string{"a/x", "b/y"}))
}
