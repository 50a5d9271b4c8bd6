package applet

import "github.com/marmos91/webshim/pkg/content"

// ProcessContext exposes the identity of the application on whose behalf
// the applet was launched. The offline resolver consults it when the
// document kind refers to the running application's own content.
type ProcessContext interface {
	CurrentTitleID() content.TitleID
}

// StaticProcess is a ProcessContext pinned to a fixed title id, used by
// the service configuration and by tests.
type StaticProcess content.TitleID

func (p StaticProcess) CurrentTitleID() content.TitleID {
	return content.TitleID(p)
}
