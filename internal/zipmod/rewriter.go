// Package zipmod mutates entries of an existing zip archive transactionally.
//
// Replacements and deletions are staged in temporary files while the
// archive is open; Close rebuilds the archive into a sibling temp file and
// atomically renames it over the original. A crash at any point before the
// rename leaves the original archive fully intact.
package zipmod

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrClosed is returned when the rewriter is used after Close.
var ErrClosed = errors.New("zipmod: rewriter is closed")

// staged holds one pending change for an entry name: either replacement
// bytes spooled to a temp file, or a deletion marker.
type staged struct {
	file   *os.File
	delete bool
}

// Rewriter stages entry writes, overwrites and deletions against an
// existing archive and commits them atomically on Close. It is a
// single-writer primitive; nothing else may touch the archive while a
// rewrite is in flight.
type Rewriter struct {
	path    string
	rc      *zip.ReadCloser
	index   map[string]*zip.File
	staged  map[string]*staged // keyed by existing entry name
	appends []string           // new entry names, in write order
	closed  bool
}

// Open reads the entry index of the archive at path and returns a Rewriter
// ready to stage changes against it.
func Open(path string) (*Rewriter, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive '%s': %w", path, err)
	}
	index := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		index[f.Name] = f
	}
	return &Rewriter{
		path:   path,
		rc:     rc,
		index:  index,
		staged: make(map[string]*staged),
	}, nil
}

// Names returns the entry names of the original archive, in archive order.
func (rw *Rewriter) Names() []string {
	names := make([]string, 0, len(rw.rc.File))
	for _, f := range rw.rc.File {
		names = append(names, f.Name)
	}
	return names
}

// Has reports whether the original archive contains an entry with the name.
func (rw *Rewriter) Has(name string) bool {
	_, ok := rw.index[name]
	return ok
}

// ReadEntry returns the decompressed contents of an existing entry.
func (rw *Rewriter) ReadEntry(name string) ([]byte, error) {
	if rw.closed {
		return nil, ErrClosed
	}
	f, ok := rw.index[name]
	if !ok {
		return nil, fmt.Errorf("archive '%s' has no entry '%s'", rw.path, name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteEntry stages data as the new contents of the named entry. Writes to
// names that already exist in the archive are buffered and substituted
// during the rebuild; writes to new names are appended to the rebuilt
// archive. Writing the same name twice replaces the previously staged data.
func (rw *Rewriter) WriteEntry(name string, data []byte) error {
	if rw.closed {
		return ErrClosed
	}
	st, ok := rw.staged[name]
	if !ok {
		st = &staged{}
		rw.staged[name] = st
		if !rw.Has(name) {
			rw.appends = append(rw.appends, name)
		}
	}
	if st.file == nil {
		tmp, err := os.CreateTemp("", "zipmod-entry-*")
		if err != nil {
			return fmt.Errorf("failed to create staging file for '%s': %w", name, err)
		}
		st.file = tmp
	}
	st.delete = false
	if err := st.file.Truncate(0); err != nil {
		return err
	}
	if _, err := st.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to stage entry '%s': %w", name, err)
	}
	return nil
}

// Remove stages a deletion of an existing entry.
func (rw *Rewriter) Remove(name string) error {
	if rw.closed {
		return ErrClosed
	}
	if !rw.Has(name) {
		return fmt.Errorf("archive '%s' has no entry '%s'", rw.path, name)
	}
	st, ok := rw.staged[name]
	if !ok {
		st = &staged{}
		rw.staged[name] = st
	}
	st.delete = true
	return nil
}

// Close commits all staged changes. With nothing staged the archive is left
// byte-for-byte untouched. Otherwise the archive is rebuilt: original
// entries are copied verbatim in their original order (compression method
// and compressed bytes preserved), staged replacements are substituted,
// deletions are omitted and new entries are appended at the end. The
// rebuilt file replaces the original only after it was written completely.
func (rw *Rewriter) Close() error {
	if rw.closed {
		return ErrClosed
	}
	rw.closed = true
	defer rw.releaseStaging()
	defer rw.rc.Close()

	if len(rw.staged) == 0 {
		return nil
	}
	return rw.rebuild()
}

// Abort releases all staged changes without committing them and leaves the
// archive untouched. Calling Abort after Close is a no-op, which makes it
// safe to defer as a failure guard.
func (rw *Rewriter) Abort() {
	if rw.closed {
		return
	}
	rw.closed = true
	rw.releaseStaging()
	rw.rc.Close()
}

// releaseStaging closes and deletes every staging temp file. It runs whether
// or not the rebuild succeeded.
func (rw *Rewriter) releaseStaging() {
	for _, st := range rw.staged {
		if st.file != nil {
			name := st.file.Name()
			st.file.Close()
			os.Remove(name)
		}
	}
}

func (rw *Rewriter) rebuild() (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(rw.path), ".rebuild-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create rebuild target: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, f := range rw.rc.File {
		st := rw.staged[f.Name]
		switch {
		case st != nil && st.delete:
			continue
		case st != nil:
			if err = rw.writeStaged(zw, f.Name, f.Method, st); err != nil {
				return err
			}
		default:
			if err = copyRaw(zw, f); err != nil {
				return err
			}
		}
	}
	for _, name := range rw.appends {
		st := rw.staged[name]
		if st == nil || st.delete {
			continue
		}
		if err = rw.writeStaged(zw, name, zip.Deflate, st); err != nil {
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize rebuilt archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	// The rebuild target lives in the same directory as the original, so
	// the rename is atomic and can never expose a half-written archive.
	if err = os.Rename(tmpPath, rw.path); err != nil {
		return fmt.Errorf("failed to move rebuilt archive into place: %w", err)
	}
	return nil
}

// writeStaged adds one staged entry to the rebuilt archive, recompressing
// the spooled bytes with the given method.
func (rw *Rewriter) writeStaged(zw *zip.Writer, name string, method uint16, st *staged) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return err
	}
	if _, err := st.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(w, st.file); err != nil {
		return fmt.Errorf("failed to write staged entry '%s': %w", name, err)
	}
	return nil
}

// copyRaw copies an untouched entry verbatim, without a decompression round
// trip, so unmodified entry contents stay byte-identical.
func copyRaw(zw *zip.Writer, f *zip.File) error {
	r, err := f.OpenRaw()
	if err != nil {
		return err
	}
	header := f.FileHeader
	w, err := zw.CreateRaw(&header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to copy entry '%s': %w", f.Name, err)
	}
	return nil
}

// MissingEntries returns, sorted, the subset of names not present in the
// original archive. Callers use it to report all absent entries at once.
func (rw *Rewriter) MissingEntries(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !rw.Has(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
