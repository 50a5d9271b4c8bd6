// Package patch applies content deltas over base archives. Deltas are
// plain directory trees laid out as <root>/<title id>/<category>/...; when
// a delta exists for a title and category it is overlaid on the base tree,
// otherwise the base passes through untouched.
package patch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/archive"
	"github.com/marmos91/webshim/pkg/content"
)

// Manager implements content.PatchManager over a delta directory.
type Manager struct {
	root string
}

// NewManager creates a patch manager reading deltas from root. An empty
// root disables patching entirely.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Apply overlays the delta registered for (title, category) on base. When
// no delta directory exists, base is returned as-is.
func (m *Manager) Apply(ctx context.Context, title content.TitleID, category content.Category, base fs.FS) (fs.FS, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.root == "" {
		return base, nil
	}

	dir := filepath.Join(m.root, title.String(), category.String())
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return base, nil
	}

	logger.Debug("Applying content delta",
		logger.KeyTitleID, title.String(),
		logger.KeyCategory, category.String(),
		logger.KeyPath, dir)

	return archive.Overlay(base, os.DirFS(dir)), nil
}
