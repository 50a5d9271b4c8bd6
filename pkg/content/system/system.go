// Package system synthesizes built-in archives for system data titles
// that are absent from the system store. The guest expects Data-category
// lookups to always produce a tree, so a missing registration degrades to
// a generated placeholder bundle instead of a hard failure.
package system

import (
	"fmt"
	"io/fs"
	"testing/fstest"

	"github.com/marmos91/webshim/pkg/content"
)

// Synthesize builds an in-memory archive tree for the given system data
// title. The tree mimics the registered layout: a single top-level
// directory that the single-discard extraction policy strips away.
func Synthesize(title content.TitleID) fs.FS {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>System Data %s</title></head>
<body>
<p>The system data archive %s is not installed. This placeholder was
generated by the applet host.</p>
</body>
</html>
`, title, title)

	return fstest.MapFS{
		"data/index.html": &fstest.MapFile{Data: []byte(page)},
	}
}
