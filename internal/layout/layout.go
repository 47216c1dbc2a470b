// Package layout assembles the generated package on disk.
package layout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSError reports a directory creation, copy or write failure.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// Writer writes files below one library root directory.
type Writer struct {
	root string
}

// NewWriter returns a writer rooted at <out>/<name>.
func NewWriter(out, name string) *Writer {
	return &Writer{root: filepath.Join(out, name)}
}

// Root returns the library root directory.
func (w *Writer) Root() string { return w.root }

// Path joins rel onto the root.
func (w *Writer) Path(rel ...string) string {
	return filepath.Join(append([]string{w.root}, rel...)...)
}

// MkdirAll creates the directory rel below the root, and the root itself.
// An existing directory is not an error.
func (w *Writer) MkdirAll(rel ...string) error {
	dir := w.Path(rel...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FSError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// WriteFile writes data to rel, creating parent directories.
func (w *Writer) WriteFile(rel string, data []byte) error {
	path := w.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &FSError{Op: "create directory", Path: filepath.Dir(path), Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &FSError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// CopyFile copies src to rel.
func (w *Writer) CopyFile(src, rel string) error {
	dst := w.Path(rel)
	in, err := os.Open(src)
	if err != nil {
		return &FSError{Op: "copy", Path: src, Err: err}
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &FSError{Op: "create directory", Path: filepath.Dir(dst), Err: err}
	}
	out, err := os.Create(dst)
	if err != nil {
		return &FSError{Op: "copy", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &FSError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &FSError{Op: "copy", Path: dst, Err: err}
	}
	return nil
}
