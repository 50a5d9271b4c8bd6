// Package archive handles the filesystem trees bundled inside content
// archives. The container format itself is produced elsewhere; this package
// only consumes extracted trees (as fs.FS values), flattens them according
// to the extraction policy and copies them onto the host filesystem.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ExtractionPolicy controls how the archive root is treated during
// extraction.
type ExtractionPolicy int

const (
	// ExtractFull keeps the tree as stored in the archive.
	ExtractFull ExtractionPolicy = iota

	// ExtractSingleDiscard drops the single top-level directory wrapping
	// the content, so its children become the extraction root. Archives
	// whose root does not consist of exactly one directory are left
	// untouched.
	ExtractSingleDiscard
)

// ErrEmptyArchive is returned when an archive holds no entries at all.
var ErrEmptyArchive = errors.New("archive: tree has no entries")

// Extract applies the extraction policy to an archive tree and returns the
// tree rooted at the resulting directory. No data is copied; the returned
// fs.FS shares storage with the input.
func Extract(tree fs.FS, policy ExtractionPolicy) (fs.FS, error) {
	entries, err := fs.ReadDir(tree, ".")
	if err != nil {
		return nil, fmt.Errorf("archive: read root: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyArchive
	}

	if policy == ExtractSingleDiscard && len(entries) == 1 && entries[0].IsDir() {
		sub, err := fs.Sub(tree, entries[0].Name())
		if err != nil {
			return nil, fmt.Errorf("archive: discard top-level directory %q: %w", entries[0].Name(), err)
		}
		return sub, nil
	}

	return tree, nil
}

// CopyTree recursively copies an archive tree into dst on the host
// filesystem, creating directories as needed. Existing files are
// overwritten. The copy is not transactional: an interruption can leave a
// partial destination tree behind.
func CopyTree(tree fs.FS, dst string) error {
	return fs.WalkDir(tree, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("archive: walk %q: %w", path, err)
		}

		target := filepath.Join(dst, filepath.FromSlash(path))

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: create directory %q: %w", target, err)
			}
			return nil
		}

		return copyFile(tree, path, target)
	})
}

func copyFile(tree fs.FS, path, target string) error {
	src, err := tree.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %q: %w", path, err)
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: create %q: %w", target, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("archive: copy %q: %w", path, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("archive: close %q: %w", target, err)
	}
	return nil
}
