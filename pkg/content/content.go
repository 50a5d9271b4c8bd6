// Package content defines how the applet host locates content archives.
//
// Archives are looked up by (title id, category). The offline resolver
// queries the system store first for the Data category, with a synthesized
// fallback, and the general provider (followed by the patch manager) for
// everything else. The concrete stores live in the subpackages.
package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// TitleID is the 64-bit identifier of a guest application or system
// content package.
type TitleID uint64

// String formats the title id the way it appears in cache paths and
// content listings: 16 uppercase hex digits, zero padded.
func (t TitleID) String() string {
	return fmt.Sprintf("%016X", uint64(t))
}

// Category distinguishes the archive payload types the web applet consumes.
type Category uint32

const (
	// CategoryHtmlDocument is the bundled manual of an application.
	CategoryHtmlDocument Category = 1

	// CategoryLegalInformation is an application's legal notices bundle.
	CategoryLegalInformation Category = 2

	// CategoryData is generic system data, served from the system store.
	CategoryData Category = 3
)

func (c Category) String() string {
	switch c {
	case CategoryHtmlDocument:
		return "html_document"
	case CategoryLegalInformation:
		return "legal_information"
	case CategoryData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}

// ErrNotFound is returned by providers when no archive is registered for
// the requested title and category. The resolver treats it as a soft
// failure: the document stays unresolved and nothing crashes.
var ErrNotFound = errors.New("content: archive not found")

// Provider locates the archive tree registered for a title and category.
type Provider interface {
	Get(ctx context.Context, title TitleID, category Category) (fs.FS, error)
}

// PatchManager layers content deltas over a base archive before it is
// extracted. Implementations return the base unchanged when no patch
// applies.
type PatchManager interface {
	Apply(ctx context.Context, title TitleID, category Category, base fs.FS) (fs.FS, error)
}
