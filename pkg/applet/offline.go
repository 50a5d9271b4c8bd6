package applet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/internal/telemetry"
	"github.com/marmos91/webshim/pkg/archive"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/content/system"
	"github.com/marmos91/webshim/pkg/webarg"
)

// ErrUnsafeDocumentPath rejects guest document paths that would escape the
// extraction cache once joined to it.
var ErrUnsafeDocumentPath = errors.New("applet: document path escapes the cache directory")

// DocumentRequest is the decoded form of an offline invocation's document
// arguments: which archive to open and which file inside it to display.
type DocumentRequest struct {
	Kind  webarg.DocumentKind
	Title content.TitleID

	// Path is the guest-supplied document path, relative to the archive
	// root and possibly carrying a query string.
	Path string
}

// DocumentRequestFromArgs reads the offline variant's required entries from
// a decoded argument table. The title id source depends on the document
// kind: the running application for its own manual, an explicit application
// id for legal information and an explicit data id for system pages.
func DocumentRequestFromArgs(entries webarg.InputTLVMap, proc ProcessContext) (DocumentRequest, error) {
	kind, err := entries.DocumentKind()
	if err != nil {
		return DocumentRequest{}, err
	}

	docPath, err := entries.String(webarg.TLVDocumentPath)
	if err != nil {
		return DocumentRequest{}, err
	}

	var title content.TitleID
	switch kind {
	case webarg.DocumentOfflineHtmlPage:
		title = proc.CurrentTitleID()
	case webarg.DocumentApplicationLegalInformation:
		id, err := entries.Uint64(webarg.TLVApplicationID)
		if err != nil {
			return DocumentRequest{}, err
		}
		title = content.TitleID(id)
	case webarg.DocumentSystemDataPage:
		id, err := entries.Uint64(webarg.TLVSystemDataID)
		if err != nil {
			return DocumentRequest{}, err
		}
		title = content.TitleID(id)
	}

	return DocumentRequest{Kind: kind, Title: title, Path: docPath}, nil
}

// Category maps the document kind to the archive category it is served from.
func (r DocumentRequest) Category() content.Category {
	switch r.Kind {
	case webarg.DocumentOfflineHtmlPage:
		return content.CategoryHtmlDocument
	case webarg.DocumentApplicationLegalInformation:
		return content.CategoryLegalInformation
	default:
		return content.CategoryData
	}
}

// MainPath strips the query string from a document path. The extracted
// tree is addressed by bare file paths, so everything from the first '?'
// on is dropped.
func MainPath(documentPath string) string {
	if i := strings.IndexByte(documentPath, '?'); i >= 0 {
		return documentPath[:i]
	}
	return documentPath
}

// ResolvedDocument is the outcome of an offline resolution. Resolved is
// false when no archive could be located; the invocation still completes,
// the frontend just has nothing to open.
type ResolvedDocument struct {
	Resolved bool

	// CacheDir is the extraction directory for the archive.
	CacheDir string

	// MainFilePath is the absolute local path of the document's main
	// file, query string stripped. Its existence is the cache-validity
	// key.
	MainFilePath string

	// DocumentPath is MainFilePath with the guest's query string kept.
	// This is the form the rendering frontend receives.
	DocumentPath string

	// CacheHit reports whether the main file was already on disk.
	CacheHit bool

	// Source names where the archive came from when extraction ran:
	// "registered", "system" or "synthesized".
	Source string
}

// Resolver locates offline document archives and materializes them into a
// filesystem cache.
//
// Extraction is keyed by cache directory: concurrent resolutions of the
// same title and kind serialize on a per-directory lock, so a partially
// written cache is never observed as a hit by a racing invocation.
type Resolver struct {
	cacheRoot string
	system    content.Provider
	contents  content.Provider
	patches   content.PatchManager
	metrics   Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a resolver rooted at cacheRoot. The system provider
// serves the data category, the contents provider everything else; patches
// may be nil when no patch overlay is configured.
func NewResolver(cacheRoot string, systemStore, contents content.Provider, patches content.PatchManager, m Metrics) *Resolver {
	return &Resolver{
		cacheRoot: cacheRoot,
		system:    systemStore,
		contents:  contents,
		patches:   patches,
		metrics:   orNop(m),
		locks:     make(map[string]*sync.Mutex),
	}
}

// CacheDir returns the extraction directory for a document kind and title:
// <root>/offline_web_applet_<label>/<16 hex digit title id>.
func (r *Resolver) CacheDir(kind webarg.DocumentKind, title content.TitleID) string {
	return filepath.Join(r.cacheRoot,
		"offline_web_applet_"+kind.ResourceLabel(), title.String())
}

// Resolve materializes the archive for req into the cache and returns the
// local path of its main document.
//
// An existing main file is taken as valid and nothing is re-read from
// the providers. A missing archive is not an error: the document
// comes back unresolved and the caller decides how to complete.
func (r *Resolver) Resolve(ctx context.Context, req DocumentRequest) (ResolvedDocument, error) {
	start := time.Now()
	category := req.Category()

	ctx, span := telemetry.StartResolveSpan(ctx, req.Title.String(), category.String())
	defer span.End()

	cacheDir := r.CacheDir(req.Kind, req.Title)

	// The manual archive nests its documents one level down.
	stripped := MainPath(req.Path)
	subPath := stripped
	if req.Kind == webarg.DocumentOfflineHtmlPage {
		subPath = path.Join("html-document", subPath)
	}

	mainFile, err := joinUnderCache(cacheDir, subPath)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return ResolvedDocument{}, err
	}

	// The query string comes back on the path handed to the frontend;
	// only the existence check uses the bare file.
	documentPath := mainFile + req.Path[len(stripped):]

	unlock := r.lockCacheDir(cacheDir)
	defer unlock()

	// The main file's existence is the only cache-validity test: no hash,
	// no freshness check.
	if _, err := os.Stat(mainFile); err == nil {
		logger.InfoCtx(ctx, "Offline document served from cache",
			logger.KeyTitleID, req.Title.String(),
			logger.KeyDocumentKind, req.Kind.String(),
			logger.KeyCacheDir, cacheDir,
			logger.KeyCacheHit, true)
		telemetry.SetAttributes(ctx, telemetry.CacheHit(true))
		r.metrics.ObserveResolution("cache", true, time.Since(start).Seconds())

		return ResolvedDocument{
			Resolved:     true,
			CacheDir:     cacheDir,
			MainFilePath: mainFile,
			DocumentPath: documentPath,
			CacheHit:     true,
			Source:       "cache",
		}, nil
	}

	tree, source, err := r.fetch(ctx, req.Title, category)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			logger.WarnCtx(ctx, "No offline content registered for document",
				logger.KeyTitleID, req.Title.String(),
				logger.KeyCategory, category.String(),
				logger.KeyDocumentKind, req.Kind.String())
			telemetry.SetAttributes(ctx, telemetry.CacheHit(false))
			return ResolvedDocument{}, nil
		}
		telemetry.RecordError(ctx, err)
		return ResolvedDocument{}, err
	}

	if err := r.materialize(ctx, tree, cacheDir); err != nil {
		telemetry.RecordError(ctx, err)
		return ResolvedDocument{}, fmt.Errorf("materializing %s/%s: %w", req.Title, category, err)
	}

	logger.InfoCtx(ctx, "Offline document extracted",
		logger.KeyTitleID, req.Title.String(),
		logger.KeyDocumentKind, req.Kind.String(),
		logger.KeyCacheDir, cacheDir,
		logger.KeySource, source,
		logger.KeyCacheHit, false,
		logger.KeyDurationMs, logger.Duration(start))
	telemetry.SetAttributes(ctx, telemetry.CacheHit(false), telemetry.CacheSource(source))
	r.metrics.ObserveResolution(source, false, time.Since(start).Seconds())

	return ResolvedDocument{
		Resolved:     true,
		CacheDir:     cacheDir,
		MainFilePath: mainFile,
		DocumentPath: documentPath,
		Source:       source,
	}, nil
}

// fetch locates the archive tree for a title and category. The data
// category is special: it is served from the system store and synthesized
// when absent, so system pages always resolve. Other categories come from
// the general provider with the patch overlay applied on top.
func (r *Resolver) fetch(ctx context.Context, title content.TitleID, category content.Category) (fs.FS, string, error) {
	if category == content.CategoryData {
		tree, err := r.system.Get(ctx, title, category)
		if err == nil {
			return tree, "system", nil
		}
		if !errors.Is(err, content.ErrNotFound) {
			return nil, "", err
		}

		logger.DebugCtx(ctx, "System data absent, synthesizing placeholder",
			logger.KeyTitleID, title.String())
		return system.Synthesize(title), "synthesized", nil
	}

	tree, err := r.contents.Get(ctx, title, category)
	if err != nil {
		return nil, "", err
	}

	if r.patches != nil {
		tree, err = r.patches.Apply(ctx, title, category, tree)
		if err != nil {
			return nil, "", err
		}
	}

	return tree, "registered", nil
}

// materialize extracts the tree into the cache directory, discarding a
// single wrapping directory if the archive has one.
func (r *Resolver) materialize(ctx context.Context, tree fs.FS, cacheDir string) error {
	_, span := telemetry.StartCacheSpan(ctx, "extract", telemetry.CacheDir(cacheDir))
	defer span.End()

	extracted, err := archive.Extract(tree, archive.ExtractSingleDiscard)
	if err != nil {
		return err
	}
	return archive.CopyTree(extracted, cacheDir)
}

// lockCacheDir takes the per-directory extraction lock, creating it on
// first use. The returned func releases it.
func (r *Resolver) lockCacheDir(cacheDir string) func() {
	r.mu.Lock()
	lock, ok := r.locks[cacheDir]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[cacheDir] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// joinUnderCache joins a guest-relative path under the cache directory,
// rejecting anything that would climb out of it.
func joinUnderCache(cacheDir, sub string) (string, error) {
	cleaned := path.Clean("/" + filepath.ToSlash(sub))
	if cleaned == "/" {
		return "", fmt.Errorf("%w: empty document path", ErrUnsafeDocumentPath)
	}

	joined := filepath.Join(cacheDir, filepath.FromSlash(cleaned))
	if joined == cacheDir || !strings.HasPrefix(joined, cacheDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeDocumentPath, sub)
	}
	return joined, nil
}
