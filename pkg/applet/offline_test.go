package applet

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/marmos91/webshim/pkg/archive"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/webarg"
)

// fakeProvider serves fixed trees and counts lookups.
type fakeProvider struct {
	trees map[string]fs.FS
	calls atomic.Int32
}

func providerKey(title content.TitleID, category content.Category) string {
	return title.String() + ":" + category.String()
}

func (p *fakeProvider) Get(_ context.Context, title content.TitleID, category content.Category) (fs.FS, error) {
	p.calls.Add(1)
	tree, ok := p.trees[providerKey(title, category)]
	if !ok {
		return nil, content.ErrNotFound
	}
	return tree, nil
}

type fakePatches struct {
	patch fs.FS
}

func (p *fakePatches) Apply(_ context.Context, _ content.TitleID, _ content.Category, base fs.FS) (fs.FS, error) {
	if p.patch == nil {
		return base, nil
	}
	return archive.Overlay(base, p.patch), nil
}

const testTitle = content.TitleID(0x0100000000010000)

func manualTree() fs.FS {
	return fstest.MapFS{
		"romfs/html-document/index.html":     {Data: []byte("<html>manual</html>")},
		"romfs/html-document/pages/faq.html": {Data: []byte("<html>faq</html>")},
	}
}

func newTestResolver(t *testing.T, contents, system *fakeProvider, patches content.PatchManager) (*Resolver, string) {
	t.Helper()
	if contents == nil {
		contents = &fakeProvider{}
	}
	if system == nil {
		system = &fakeProvider{}
	}
	root := t.TempDir()
	return NewResolver(root, system, contents, patches, nil), root
}

func TestResolveExtractsRegisteredArchive(t *testing.T) {
	contents := &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}
	r, root := newTestResolver(t, contents, nil, nil)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "index.html?lang=en",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !doc.Resolved {
		t.Fatal("document should resolve")
	}
	if doc.CacheHit {
		t.Error("first resolution must not be a cache hit")
	}
	if doc.Source != "registered" {
		t.Errorf("source = %q, want registered", doc.Source)
	}

	wantMain := filepath.Join(root,
		"offline_web_applet_manual", "0100000000010000", "html-document", "index.html")
	if doc.MainFilePath != wantMain {
		t.Errorf("main file = %q, want %q", doc.MainFilePath, wantMain)
	}
	if doc.DocumentPath != wantMain+"?lang=en" {
		t.Errorf("document path = %q, want the query string kept", doc.DocumentPath)
	}

	// The single wrapping directory is discarded during extraction.
	data, err := os.ReadFile(wantMain)
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "<html>manual</html>" {
		t.Errorf("extracted content = %q", data)
	}
}

func TestResolveCacheHitSkipsProviders(t *testing.T) {
	contents := &fakeProvider{}
	r, root := newTestResolver(t, contents, nil, nil)

	// Materialize the main file by hand: its existence alone makes the hit.
	docDir := filepath.Join(root, "offline_web_applet_manual", "0100000000010000", "html-document")
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docDir, "index.html"), []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "index.html?lang=en",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !doc.Resolved || !doc.CacheHit {
		t.Fatalf("want cache hit, got %+v", doc)
	}
	if got := contents.calls.Load(); got != 0 {
		t.Errorf("provider consulted %d times on a cache hit", got)
	}
	if doc.DocumentPath != filepath.Join(docDir, "index.html")+"?lang=en" {
		t.Errorf("document path = %q, want the query string kept", doc.DocumentPath)
	}
}

func TestResolveRefetchesWhenMainFileAbsent(t *testing.T) {
	contents := &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}
	r, root := newTestResolver(t, contents, nil, nil)

	// A cache directory without the requested file is not a hit.
	cacheDir := filepath.Join(root, "offline_web_applet_manual", "0100000000010000")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "pages/faq.html",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if doc.CacheHit {
		t.Error("missing main file must not count as a hit")
	}
	if got := contents.calls.Load(); got != 1 {
		t.Errorf("provider consulted %d times, want 1", got)
	}
	if _, err := os.Stat(doc.MainFilePath); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
}

func TestResolveMissingArchiveIsSoft(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil, nil)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentApplicationLegalInformation,
		Title: testTitle,
		Path:  "legal.html",
	})
	if err != nil {
		t.Fatalf("missing archive must not be an error, got %v", err)
	}
	if doc.Resolved {
		t.Error("document must stay unresolved")
	}
}

func TestResolveSystemDataSynthesized(t *testing.T) {
	r, root := newTestResolver(t, nil, nil, nil)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentSystemDataPage,
		Title: content.TitleID(0x0100000000001000),
		Path:  "index.html",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !doc.Resolved {
		t.Fatal("system data pages always resolve")
	}
	if doc.Source != "synthesized" {
		t.Errorf("source = %q, want synthesized", doc.Source)
	}

	cacheDir := filepath.Join(root, "offline_web_applet_system_data", "0100000000001000")
	if doc.CacheDir != cacheDir {
		t.Errorf("cache dir = %q, want %q", doc.CacheDir, cacheDir)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "index.html")); err != nil {
		t.Errorf("synthesized page missing: %v", err)
	}
}

func TestResolveSystemStorePreferred(t *testing.T) {
	title := content.TitleID(0x0100000000001000)
	system := &fakeProvider{trees: map[string]fs.FS{
		providerKey(title, content.CategoryData): fstest.MapFS{
			"data/index.html": {Data: []byte("real system page")},
		},
	}}
	r, _ := newTestResolver(t, nil, system, nil)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentSystemDataPage,
		Title: title,
		Path:  "index.html",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if doc.Source != "system" {
		t.Errorf("source = %q, want system", doc.Source)
	}
	data, err := os.ReadFile(doc.MainFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "real system page" {
		t.Errorf("content = %q", data)
	}
}

func TestResolveAppliesPatches(t *testing.T) {
	contents := &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}
	patches := &fakePatches{patch: fstest.MapFS{
		"romfs/html-document/index.html": {Data: []byte("<html>patched</html>")},
	}}
	r, _ := newTestResolver(t, contents, nil, patches)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "index.html",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	data, err := os.ReadFile(doc.MainFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<html>patched</html>" {
		t.Errorf("content = %q, want patched overlay", data)
	}
}

func TestResolveConcurrentExtractsOnce(t *testing.T) {
	contents := &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}
	r, _ := newTestResolver(t, contents, nil, nil)

	req := DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "index.html",
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("resolution %d failed: %v", i, err)
		}
	}
	if got := contents.calls.Load(); got != 1 {
		t.Errorf("provider consulted %d times, want 1", got)
	}
}

func TestResolveNeutralizesEscapingPath(t *testing.T) {
	contents := &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}
	r, _ := newTestResolver(t, contents, nil, nil)

	doc, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "../../../index.html",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	rel, relErr := filepath.Rel(doc.CacheDir, doc.MainFilePath)
	if relErr != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 2 && rel[:2] == ".." {
		t.Errorf("main file %q escapes cache dir %q", doc.MainFilePath, doc.CacheDir)
	}
}

func TestResolveEmptyPathRejected(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil, nil)

	_, err := r.Resolve(context.Background(), DocumentRequest{
		Kind:  webarg.DocumentOfflineHtmlPage,
		Title: testTitle,
		Path:  "",
	})
	if !errors.Is(err, ErrUnsafeDocumentPath) {
		t.Fatalf("err = %v, want ErrUnsafeDocumentPath", err)
	}
}

func TestMainPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"index.html", "index.html"},
		{"index.html?lang=en", "index.html"},
		{"index.html?a=1?b=2", "index.html"},
		{"?everything", ""},
	}
	for _, tc := range cases {
		if got := MainPath(tc.in); got != tc.want {
			t.Errorf("MainPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDocumentRequestFromArgs(t *testing.T) {
	proc := StaticProcess(testTitle)

	t.Run("OfflineHtmlPageUsesRunningTitle", func(t *testing.T) {
		_, entries, err := webarg.Decode(webarg.NewBuilder(webarg.ShimOffline).
			DocumentKind(webarg.DocumentOfflineHtmlPage).
			String(webarg.TLVDocumentPath, "index.html").
			Build())
		if err != nil {
			t.Fatal(err)
		}
		req, err := DocumentRequestFromArgs(entries, proc)
		if err != nil {
			t.Fatal(err)
		}
		if req.Title != testTitle {
			t.Errorf("title = %s, want running application", req.Title)
		}
		if req.Category() != content.CategoryHtmlDocument {
			t.Errorf("category = %s", req.Category())
		}
	})

	t.Run("LegalInformationUsesApplicationID", func(t *testing.T) {
		_, entries, err := webarg.Decode(webarg.NewBuilder(webarg.ShimOffline).
			DocumentKind(webarg.DocumentApplicationLegalInformation).
			Uint64(webarg.TLVApplicationID, 0x0100AAAA00000000).
			String(webarg.TLVDocumentPath, "legal.html").
			Build())
		if err != nil {
			t.Fatal(err)
		}
		req, err := DocumentRequestFromArgs(entries, proc)
		if err != nil {
			t.Fatal(err)
		}
		if req.Title != content.TitleID(0x0100AAAA00000000) {
			t.Errorf("title = %s", req.Title)
		}
		if req.Category() != content.CategoryLegalInformation {
			t.Errorf("category = %s", req.Category())
		}
	})

	t.Run("SystemDataPageUsesSystemDataID", func(t *testing.T) {
		_, entries, err := webarg.Decode(webarg.NewBuilder(webarg.ShimOffline).
			DocumentKind(webarg.DocumentSystemDataPage).
			Uint64(webarg.TLVSystemDataID, 0x0100000000001000).
			String(webarg.TLVDocumentPath, "index.html").
			Build())
		if err != nil {
			t.Fatal(err)
		}
		req, err := DocumentRequestFromArgs(entries, proc)
		if err != nil {
			t.Fatal(err)
		}
		if req.Category() != content.CategoryData {
			t.Errorf("category = %s", req.Category())
		}
	})

	t.Run("MissingDocumentKind", func(t *testing.T) {
		_, entries, err := webarg.Decode(webarg.NewBuilder(webarg.ShimOffline).
			String(webarg.TLVDocumentPath, "index.html").
			Build())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DocumentRequestFromArgs(entries, proc); !errors.Is(err, webarg.ErrMissingField) {
			t.Errorf("err = %v, want ErrMissingField", err)
		}
	})

	t.Run("MissingTitleSource", func(t *testing.T) {
		_, entries, err := webarg.Decode(webarg.NewBuilder(webarg.ShimOffline).
			DocumentKind(webarg.DocumentApplicationLegalInformation).
			String(webarg.TLVDocumentPath, "legal.html").
			Build())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DocumentRequestFromArgs(entries, proc); !errors.Is(err, webarg.ErrMissingField) {
			t.Errorf("err = %v, want ErrMissingField", err)
		}
	})
}
