package archive

import (
	"io/fs"
	"sort"
)

// Overlay layers a patch tree over a base tree. Lookups try the patch
// first and fall back to the base; directory listings merge both sides
// with patch entries winning on name collisions. This mirrors how content
// deltas are applied over a base archive before extraction.
func Overlay(base, patch fs.FS) fs.FS {
	return &overlayFS{base: base, patch: patch}
}

type overlayFS struct {
	base  fs.FS
	patch fs.FS
}

func (o *overlayFS) Open(name string) (fs.File, error) {
	if f, err := o.patch.Open(name); err == nil {
		return f, nil
	}
	return o.base.Open(name)
}

func (o *overlayFS) ReadDir(name string) ([]fs.DirEntry, error) {
	baseEntries, baseErr := fs.ReadDir(o.base, name)
	patchEntries, patchErr := fs.ReadDir(o.patch, name)

	if baseErr != nil && patchErr != nil {
		return nil, baseErr
	}

	merged := make(map[string]fs.DirEntry, len(baseEntries)+len(patchEntries))
	for _, e := range baseEntries {
		merged[e.Name()] = e
	}
	for _, e := range patchEntries {
		merged[e.Name()] = e
	}

	out := make([]fs.DirEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}
