package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestExtractSingleDiscard(t *testing.T) {
	tree := fstest.MapFS{
		"romfs/html-document/index.html": &fstest.MapFile{Data: []byte("<html/>")},
		"romfs/html-document/style.css":  &fstest.MapFile{Data: []byte("body{}")},
	}

	extracted, err := Extract(tree, ExtractSingleDiscard)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	data, err := fs.ReadFile(extracted, "html-document/index.html")
	if err != nil {
		t.Fatalf("expected top-level directory to be discarded: %v", err)
	}
	if string(data) != "<html/>" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestExtractSingleDiscardMultipleRoots(t *testing.T) {
	tree := fstest.MapFS{
		"a/file": &fstest.MapFile{Data: []byte("a")},
		"b":      &fstest.MapFile{Data: []byte("b")},
	}

	extracted, err := Extract(tree, ExtractSingleDiscard)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := fs.ReadFile(extracted, "a/file"); err != nil {
		t.Errorf("tree with several roots must stay untouched: %v", err)
	}
}

func TestExtractFull(t *testing.T) {
	tree := fstest.MapFS{
		"romfs/index.html": &fstest.MapFile{Data: []byte("x")},
	}

	extracted, err := Extract(tree, ExtractFull)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := fs.ReadFile(extracted, "romfs/index.html"); err != nil {
		t.Errorf("full extraction must keep the root: %v", err)
	}
}

func TestExtractEmpty(t *testing.T) {
	if _, err := Extract(fstest.MapFS{}, ExtractSingleDiscard); !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("expected ErrEmptyArchive, got %v", err)
	}
}

func TestCopyTree(t *testing.T) {
	tree := fstest.MapFS{
		"index.html":     &fstest.MapFile{Data: []byte("<html/>")},
		"img/logo.png":   &fstest.MapFile{Data: []byte{0x89, 0x50}},
		"img/deep/a.txt": &fstest.MapFile{Data: []byte("a")},
	}

	dst := t.TempDir()
	if err := CopyTree(tree, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}

	for path, want := range map[string]string{
		"index.html":     "<html/>",
		"img/deep/a.txt": "a",
	} {
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(path)))
		if err != nil {
			t.Fatalf("missing copied file %q: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("file %q: got %q, want %q", path, data, want)
		}
	}
}

func TestCopyTreeOverwrites(t *testing.T) {
	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "index.html"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	tree := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("new")}}
	if err := CopyTree(tree, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestOverlayPatchWins(t *testing.T) {
	base := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("base")},
		"keep.txt":   &fstest.MapFile{Data: []byte("keep")},
	}
	patch := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("patched")},
		"extra.txt":  &fstest.MapFile{Data: []byte("extra")},
	}

	merged := Overlay(base, patch)

	for path, want := range map[string]string{
		"index.html": "patched",
		"keep.txt":   "keep",
		"extra.txt":  "extra",
	} {
		data, err := fs.ReadFile(merged, path)
		if err != nil {
			t.Fatalf("read %q: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("file %q: got %q, want %q", path, data, want)
		}
	}

	entries, err := fs.ReadDir(merged, ".")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 merged entries, got %d", len(entries))
	}
}
