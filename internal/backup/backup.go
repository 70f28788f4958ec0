// Package backup implements the pristine-copy protocol used to make repeated
// mutation of the shared Ren'Py installation safe. The first time a file is
// touched, a sibling copy with the ".original" suffix is created; every later
// run restores from that copy before re-applying its own changes, so reruns
// are deterministic rather than cumulative.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vk/renconstruct/internal/ctxlog"
)

// Suffix is appended to a file's path to form its backup path.
const Suffix = ".original"

// ErrSourceMissing is returned by Ensure when the file to back up does not
// exist. Callers treat this as a warning: the file may simply not be present
// on this platform or Ren'Py version.
var ErrSourceMissing = errors.New("backup source file does not exist")

// Path returns the backup path for the given file.
func Path(path string) string {
	return path + Suffix
}

// Has reports whether a backup exists for the given file.
func Has(path string) bool {
	info, err := os.Stat(Path(path))
	return err == nil && info.Mode().IsRegular()
}

// Ensure creates a backup of path if one does not already exist. An existing
// backup is never overwritten, so the pristine copy survives any number of
// runs. Returns ErrSourceMissing if path itself is absent.
func Ensure(path string) error {
	if Has(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	return copyFile(path, Path(path), info.Mode())
}

// Restore overwrites path with the contents of its backup. It is a no-op if
// no backup exists.
func Restore(path string) error {
	if !Has(path) {
		return nil
	}
	info, err := os.Stat(Path(path))
	if err != nil {
		return err
	}
	return copyFile(Path(path), path, info.Mode())
}

// PrepareAll runs the per-run backup policy for every affected file declared
// by the enabled tasks: files that already have a backup are restored to
// their pristine state, files seen for the first time are backed up, and
// files that do not exist are skipped with a warning.
func PrepareAll(ctx context.Context, root string, files []string) error {
	logger := ctxlog.FromContext(ctx)
	for _, file := range files {
		full := filepath.Join(root, file)
		if err := Ensure(full); err != nil {
			if errors.Is(err, ErrSourceMissing) {
				logger.Warn("Affected file could not be found, skipping backup.", "file", file)
				continue
			}
			return fmt.Errorf("failed to back up '%s': %w", file, err)
		}
		// Ensure is idempotent, so a pre-existing backup means this file was
		// mutated by an earlier run and must be restored first.
		if err := Restore(full); err != nil {
			return fmt.Errorf("failed to restore '%s' from backup: %w", file, err)
		}
		logger.Info("Affected file prepared.", "file", file)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
