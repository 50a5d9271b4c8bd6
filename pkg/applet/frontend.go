package applet

import (
	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/webarg"
)

// CompletionFunc is invoked by the rendering frontend when the browser
// surface is dismissed. It may fire on any goroutine, at any time after
// OpenLocalDocument returns; the applet's completion path guards against
// it firing more than once.
type CompletionFunc func(reason webarg.ExitReason, lastURL string)

// Frontend renders the browser surface. It is an external collaborator:
// the applet hands it a resolved document path and defers its own exit to
// the completion callback.
type Frontend interface {
	OpenLocalDocument(path string, onComplete CompletionFunc)
}

// DefaultFrontend is the stub used when no real rendering frontend is
// attached. It completes immediately as if the user closed the window.
type DefaultFrontend struct{}

func (DefaultFrontend) OpenLocalDocument(path string, onComplete CompletionFunc) {
	logger.Warn("(STUBBED) frontend asked to open local document",
		logger.KeyDocumentPath, path)

	onComplete(webarg.ExitWindowClosed, "http://localhost/")
}
