// Package registered implements the installed-content registry: a
// badger-backed index mapping (title id, category) to the on-disk location
// of the archive's filesystem tree.
//
// Two instances back the applet host: one for system contents (queried
// first for the Data category) and one for application contents. Both are
// plain key-value registries; the archive payload itself stays on disk and
// is served as an fs.FS rooted at the registered path.
package registered

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/internal/telemetry"
	"github.com/marmos91/webshim/pkg/content"
)

// keyPrefix namespaces registry entries inside the database:
// "a:<016X title id>:<category>" -> Entry (JSON).
const keyPrefix = "a:"

// Entry describes one registered archive.
type Entry struct {
	Title        content.TitleID  `json:"title_id"`
	Category     content.Category `json:"category"`
	Path         string           `json:"path"`
	RegisteredAt time.Time        `json:"registered_at"`
}

// Store is a badger-backed content registry implementing content.Provider.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the registry database at the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is too chatty for a registry

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registered: open database at %q: %w", dir, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(title content.TitleID, category content.Category) []byte {
	return fmt.Appendf(nil, "%s%s:%d", keyPrefix, title, uint32(category))
}

// Register records the archive tree rooted at path for the given title and
// category, replacing any previous registration. The path must exist and
// be a directory.
func (s *Store) Register(ctx context.Context, title content.TitleID, category content.Category, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("registered: stat archive path %q: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("registered: archive path %q is not a directory", path)
	}

	entry := Entry{
		Title:        title,
		Category:     category,
		Path:         path,
		RegisteredAt: time.Now().UTC(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("registered: encode entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(title, category), value)
	})
	if err != nil {
		return fmt.Errorf("registered: store entry: %w", err)
	}

	logger.Info("Archive registered",
		logger.KeyTitleID, title.String(),
		logger.KeyCategory, category.String(),
		logger.KeyPath, path)
	return nil
}

// Get returns the archive tree for the given title and category, or
// content.ErrNotFound when nothing is registered. A registration whose
// path has disappeared from disk is also reported as not found.
func (s *Store) Get(ctx context.Context, title content.TitleID, category content.Category) (fs.FS, error) {
	ctx, span := telemetry.StartContentSpan(ctx, "get", title.String(),
		telemetry.Category(category.String()))
	defer span.End()

	entry, err := s.lookup(ctx, title, category)
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.StorePath(entry.Path))

	if info, err := os.Stat(entry.Path); err != nil || !info.IsDir() {
		logger.Warn("Registered archive path missing on disk",
			logger.KeyTitleID, title.String(),
			logger.KeyCategory, category.String(),
			logger.KeyPath, entry.Path)
		return nil, fmt.Errorf("%w: %s/%s", content.ErrNotFound, title, category)
	}

	return os.DirFS(entry.Path), nil
}

// Lookup returns the raw registry entry without opening the archive tree.
func (s *Store) Lookup(ctx context.Context, title content.TitleID, category content.Category) (Entry, error) {
	return s.lookup(ctx, title, category)
}

func (s *Store) lookup(ctx context.Context, title content.TitleID, category content.Category) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(title, category))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s/%s", content.ErrNotFound, title, category)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns all registered archives in key order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	ctx, span := telemetry.StartContentSpan(ctx, "list", "")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registered: list entries: %w", err)
	}
	return entries, nil
}

// Unregister removes a registration. Removing a missing entry is not an
// error.
func (s *Store) Unregister(ctx context.Context, title content.TitleID, category content.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(title, category))
	})
}
