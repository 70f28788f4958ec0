// Package patch applies a directory tree of diff-match-patch patch files
// onto the matching tree of files under the Ren'Py installation, with an
// all-or-nothing guarantee across the whole batch.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vk/renconstruct/internal/backup"
	"github.com/vk/renconstruct/internal/ctxlog"
	"github.com/vk/renconstruct/internal/fsutil"
)

// BatchError reports the patch files that failed to parse or apply. The
// batch as a whole failed and every touched target was rolled back.
type BatchError struct {
	Failed []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf(
		"some errors occurred while patching, rolled back all changes (failed: %s)",
		strings.Join(e.Failed, ", "),
	)
}

// Applier maps patch files under PatchRoot to targets under TargetRoot by
// relative path and applies them as one transaction.
type Applier struct {
	// PatchRoot is the directory containing patch files.
	PatchRoot string
	// TargetRoot is the Ren'Py installation directory the patches apply to.
	TargetRoot string
}

// Apply runs the whole batch. Each patch is applied against the pristine
// (backup) version of its target, so reruns are idempotent. Parse and apply
// failures are collected rather than raised; if any occurred, every target
// touched in this batch is reverted to its backup and a BatchError naming
// the offending patch files is returned.
func (a *Applier) Apply(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	patchFiles, err := fsutil.FindFiles(a.PatchRoot)
	if err != nil {
		return fmt.Errorf("failed to scan patch directory '%s': %w", a.PatchRoot, err)
	}
	logger.Debug("Discovered patch files.", "count", len(patchFiles))

	dmp := diffmatchpatch.New()
	failed := make(map[string]struct{})
	var touched []string

	for _, patchFile := range patchFiles {
		rel, err := filepath.Rel(a.PatchRoot, patchFile)
		if err != nil {
			return err
		}

		text, err := os.ReadFile(patchFile)
		if err != nil {
			logger.Error("Failed to read patch file.", "patch", patchFile, "error", err)
			failed[rel] = struct{}{}
			continue
		}

		patches, err := dmp.PatchFromText(string(text))
		if err != nil {
			logger.Error("Failed to parse patch file.", "patch", patchFile, "error", err)
			failed[rel] = struct{}{}
			continue
		}

		target := filepath.Join(a.TargetRoot, rel)
		if backup.Has(target) {
			// A backup means an earlier run already patched this file;
			// start over from the pristine copy.
			if err := backup.Restore(target); err != nil {
				return fmt.Errorf("failed to restore '%s' before patching: %w", target, err)
			}
		} else if err := backup.Ensure(target); err != nil {
			logger.Error("Failed to back up patch target.", "target", target, "error", err)
			failed[rel] = struct{}{}
			continue
		}
		touched = append(touched, target)

		content, err := os.ReadFile(target)
		if err != nil {
			logger.Error("Failed to read patch target.", "target", target, "error", err)
			failed[rel] = struct{}{}
			continue
		}

		patched, results := dmp.PatchApply(patches, string(content))
		if !allApplied(results) {
			logger.Error("Failed to apply patch, one or more hunks did not match.", "patch", patchFile, "target", target)
			failed[rel] = struct{}{}
			continue
		}

		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(patched), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to write patched file '%s': %w", target, err)
		}
		logger.Debug("Patch applied.", "target", target)
	}

	if len(failed) == 0 {
		return nil
	}

	// All green or fully reverted: a single failure rolls back every target
	// of the batch, including those whose own patch succeeded.
	for _, target := range touched {
		if err := rollback(target); err != nil {
			return fmt.Errorf("rollback of '%s' failed: %w", target, err)
		}
		logger.Info("Rolled back patch target.", "target", target)
	}

	batchErr := &BatchError{Failed: make([]string, 0, len(failed))}
	for rel := range failed {
		batchErr.Failed = append(batchErr.Failed, rel)
	}
	sort.Strings(batchErr.Failed)
	return batchErr
}

// rollback discards the mutated target and moves its backup into place.
func rollback(target string) error {
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(backup.Path(target), target)
}

func allApplied(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
