package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/webshim/internal/bytesize"
	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/applet"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/content/registered"
	"github.com/marmos91/webshim/pkg/webarg"
)

// InvocationHandler runs web applet invocations submitted over HTTP.
type InvocationHandler struct {
	host *applet.Host
}

// NewInvocationHandler creates an invocation handler backed by the host.
func NewInvocationHandler(host *applet.Host) *InvocationHandler {
	return &InvocationHandler{host: host}
}

// invokeRequest is the POST /api/v1/invocations body. The argument blob is
// the raw wire-format buffer, base64-encoded by the JSON codec.
type invokeRequest struct {
	LibraryVersion   uint32 `json:"library_version"`
	ThemeColor       uint32 `json:"theme_color,omitempty"`
	PlayStartupSound bool   `json:"play_startup_sound,omitempty"`
	ArgumentBlob     []byte `json:"argument_blob"`
}

type invokeResponse struct {
	ExitReason string `json:"exit_reason"`
	LastURL    string `json:"last_url,omitempty"`
}

// Invoke handles POST /api/v1/invocations.
func (h *InvocationHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}
	if len(req.ArgumentBlob) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("argument_blob is required"))
		return
	}

	commonArgs := webarg.CommonArguments{
		ArgumentsVersion: 1,
		Size:             webarg.CommonArgumentsSize,
		LibraryVersion:   req.LibraryVersion,
		ThemeColor:       req.ThemeColor,
		PlayStartupSound: req.PlayStartupSound,
		SystemTick:       uint64(time.Now().UnixNano()),
	}

	ret, err := h.host.Invoke(r.Context(), commonArgs, req.ArgumentBlob)
	if err != nil {
		writeJSON(w, statusForError(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(invokeResponse{
		ExitReason: ret.ExitReason.String(),
		LastURL:    ret.LastURL,
	}))
}

// statusForError maps invocation failures to HTTP statuses: argument and
// dispatch problems are the caller's fault, everything else is ours.
func statusForError(err error) int {
	switch {
	case errors.Is(err, webarg.ErrMalformedArgument),
		errors.Is(err, webarg.ErrInvalidShimKind),
		errors.Is(err, webarg.ErrMissingField),
		errors.Is(err, webarg.ErrFieldSize),
		errors.Is(err, applet.ErrUnsafeDocumentPath):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ContentHandler manages the archive registrations behind the offline
// resolver. The system store serves data-category archives, the contents
// store everything else.
type ContentHandler struct {
	system   *registered.Store
	contents *registered.Store
}

// NewContentHandler creates a content handler over the two stores.
func NewContentHandler(system, contents *registered.Store) *ContentHandler {
	return &ContentHandler{system: system, contents: contents}
}

func (h *ContentHandler) store(name string) (*registered.Store, error) {
	switch name {
	case "system":
		return h.system, nil
	case "contents":
		return h.contents, nil
	default:
		return nil, fmt.Errorf("unknown store %q, want system or contents", name)
	}
}

// contentEntry is a registration as rendered to API clients.
type contentEntry struct {
	Store        string    `json:"store"`
	TitleID      string    `json:"title_id"`
	Category     string    `json:"category"`
	Path         string    `json:"path"`
	RegisteredAt time.Time `json:"registered_at"`
}

// List handles GET /api/v1/contents.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	var out []contentEntry
	for _, s := range []struct {
		name  string
		store *registered.Store
	}{{"system", h.system}, {"contents", h.contents}} {
		entries, err := s.store.List(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
			return
		}
		for _, e := range entries {
			out = append(out, contentEntry{
				Store:        s.name,
				TitleID:      e.Title.String(),
				Category:     e.Category.String(),
				Path:         e.Path,
				RegisteredAt: e.RegisteredAt,
			})
		}
	}

	writeJSON(w, http.StatusOK, okResponse(out))
}

// registerRequest is the POST /api/v1/contents body.
type registerRequest struct {
	Store    string `json:"store"`
	TitleID  string `json:"title_id"`
	Category string `json:"category"`
	Path     string `json:"path"`
}

// Register handles POST /api/v1/contents.
func (h *ContentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	store, err := h.store(req.Store)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	title, err := parseTitleID(req.TitleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	category, err := parseCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := store.Register(r.Context(), title, category, req.Path); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	logger.Info("Archive registered via API",
		logger.KeyTitleID, title.String(),
		logger.KeyCategory, category.String(),
		logger.KeyPath, req.Path)

	writeJSON(w, http.StatusCreated, okResponse(contentEntry{
		Store:    req.Store,
		TitleID:  title.String(),
		Category: category.String(),
		Path:     req.Path,
	}))
}

// Unregister handles DELETE /api/v1/contents/{store}/{title}/{category}.
func (h *ContentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(chi.URLParam(r, "store"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	title, err := parseTitleID(chi.URLParam(r, "title"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	category, err := parseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	// Removing a missing entry is not an error, so this only fails on
	// storage problems.
	if err := store.Unregister(r.Context(), title, category); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(nil))
}

func parseTitleID(s string) (content.TitleID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid title id %q: want hex digits", s)
	}
	return content.TitleID(v), nil
}

func parseCategory(s string) (content.Category, error) {
	switch s {
	case "html_document":
		return content.CategoryHtmlDocument, nil
	case "legal_information":
		return content.CategoryLegalInformation, nil
	case "data":
		return content.CategoryData, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

// CacheHandler inspects and clears the offline extraction cache.
type CacheHandler struct {
	root    string
	maxSize bytesize.ByteSize
}

// NewCacheHandler creates a cache handler rooted at the extraction cache.
func NewCacheHandler(root string, maxSize bytesize.ByteSize) *CacheHandler {
	return &CacheHandler{root: root, maxSize: maxSize}
}

// cacheEntry is one extracted document tree.
type cacheEntry struct {
	Kind    string `json:"kind"`
	TitleID string `json:"title_id"`
	Bytes   int64  `json:"bytes"`
}

type cacheStatus struct {
	Root       string       `json:"root"`
	TotalBytes int64        `json:"total_bytes"`
	MaxBytes   uint64       `json:"max_bytes"`
	Entries    []cacheEntry `json:"entries"`
}

// Status handles GET /api/v1/cache.
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.collect()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(status))
}

// Clear handles DELETE /api/v1/cache.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, okResponse(nil))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(h.root, entry.Name())); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
			return
		}
	}

	logger.Info("Offline cache cleared", logger.KeyCacheDir, h.root)
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// collect walks the two-level cache layout: one directory per document
// kind, one title directory underneath.
func (h *CacheHandler) collect() (cacheStatus, error) {
	status := cacheStatus{Root: h.root, MaxBytes: h.maxSize.Uint64(), Entries: []cacheEntry{}}

	kinds, err := os.ReadDir(h.root)
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return status, err
	}

	for _, kind := range kinds {
		if !kind.IsDir() {
			continue
		}
		titles, err := os.ReadDir(filepath.Join(h.root, kind.Name()))
		if err != nil {
			return status, err
		}
		for _, title := range titles {
			if !title.IsDir() {
				continue
			}
			size, err := dirSize(filepath.Join(h.root, kind.Name(), title.Name()))
			if err != nil {
				return status, err
			}
			status.Entries = append(status.Entries, cacheEntry{
				Kind:    kind.Name(),
				TitleID: title.Name(),
				Bytes:   size,
			})
			status.TotalBytes += size
		}
	}

	return status, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
