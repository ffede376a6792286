// ABOUTME: Project file enumeration confined to a single root directory
// ABOUTME: Walks through an afero base-path filesystem so nothing above the root is reachable

package fsindex

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Index lists files under its root.
type Index struct {
	fs afero.Fs
}

// New confines an Index to root on the host filesystem.
func New(root string) (*Index, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	return NewWithFs(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// NewWithFs wraps an already-rooted filesystem.
func NewWithFs(fsys afero.Fs) *Index {
	return &Index{fs: fsys}
}

// FilesWithExtension returns slash-separated paths relative to the root of every
// regular file whose extension matches ext (with or without the leading dot).
// Unreadable entries are skipped.
func (i *Index) FilesWithExtension(ext string) ([]string, error) {
	want := strings.TrimPrefix(ext, ".")
	if want == "" {
		return nil, fmt.Errorf("extension must not be empty")
	}

	var files []string
	err := afero.Walk(i.fs, string(filepath.Separator), func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if strings.TrimPrefix(filepath.Ext(p), ".") != want {
			return nil
		}

		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		files = append(files, path.Clean(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project root: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
