package registered

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/webshim/pkg/content"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func writeArchiveDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRegisterAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	dir := writeArchiveDir(t, map[string]string{
		"romfs/html-document/index.html": "<html/>",
	})

	title := content.TitleID(0x0100000000010000)
	if err := store.Register(ctx, title, content.CategoryHtmlDocument, dir); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tree, err := store.Get(ctx, title, content.CategoryHtmlDocument)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	data, err := fs.ReadFile(tree, "romfs/html-document/index.html")
	if err != nil {
		t.Fatalf("read from archive tree: %v", err)
	}
	if string(data) != "<html/>" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), 0x42, content.CategoryData)
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected content.ErrNotFound, got %v", err)
	}
}

func TestGetMissingPathOnDisk(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	dir := writeArchiveDir(t, map[string]string{"a": "x"})
	if err := store.Register(ctx, 7, content.CategoryData, dir); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	_, err := store.Get(ctx, 7, content.CategoryData)
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected content.ErrNotFound for vanished path, got %v", err)
	}
}

func TestRegisterReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := writeArchiveDir(t, map[string]string{"v": "1"})
	second := writeArchiveDir(t, map[string]string{"v": "2"})

	if err := store.Register(ctx, 1, content.CategoryHtmlDocument, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Register(ctx, 1, content.CategoryHtmlDocument, second); err != nil {
		t.Fatal(err)
	}

	entry, err := store.Lookup(ctx, 1, content.CategoryHtmlDocument)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.Path != second {
		t.Errorf("expected replacement path %q, got %q", second, entry.Path)
	}
}

func TestRegisterRejectsFiles(t *testing.T) {
	store := openTestStore(t)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Register(context.Background(), 1, content.CategoryData, file); err == nil {
		t.Fatal("expected registration of a plain file to fail")
	}
}

func TestListAndUnregister(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	dir := writeArchiveDir(t, map[string]string{"a": "x"})
	for _, title := range []content.TitleID{1, 2, 3} {
		if err := store.Register(ctx, title, content.CategoryLegalInformation, dir); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if err := store.Unregister(ctx, 2, content.CategoryLegalInformation); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	entries, err = store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after unregister, got %d", len(entries))
	}

	// Unregistering a missing entry is a no-op.
	if err := store.Unregister(ctx, 99, content.CategoryData); err != nil {
		t.Errorf("Unregister of missing entry failed: %v", err)
	}
}
