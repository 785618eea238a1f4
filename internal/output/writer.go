package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samvad-hq/soupchef/internal/domain"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer persists recipes below the resolver's root.
type Writer struct {
	paths PathResolver
}

// NewWriter builds a writer for the given path conventions.
func NewWriter(paths PathResolver) *Writer {
	if paths.Format == "" {
		paths.Format = FormatJSON
	}
	return &Writer{paths: paths}
}

// Paths exposes the resolver in use.
func (w *Writer) Paths() PathResolver { return w.paths }

// Write encodes the recipe and replaces the target file atomically. An
// existing file for the same recipe is overwritten.
func (w *Writer) Write(r domain.Recipe) (string, error) {
	data, err := Encode(w.paths.Format, r)
	if err != nil {
		return "", fmt.Errorf("encode recipe %s: %w", r.ID, err)
	}

	path := w.paths.Path(r)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", domain.ErrFilesystem, path, err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// ProbeWritable verifies the output root exists (creating it) and accepts new
// files.
func ProbeWritable(root string) error {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return fmt.Errorf("%w: create output folder %s: %v", domain.ErrFilesystem, root, err)
	}
	f, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: output folder %s is not writable: %v", domain.ErrFilesystem, root, err)
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: clean probe file in %s: %v", domain.ErrFilesystem, root, err)
	}
	return nil
}
