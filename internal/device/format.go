package device

import "github.com/osbuild/disklayout/internal/datasizes"

// Format describes the payload occupying a partition as far as sizing is
// concerned. It is an injected capability so that tests and callers supply
// their own implementations instead of this package inspecting live
// filesystems.
type Format interface {
	// MinInstanceSize is the smallest size the existing payload can be
	// shrunk to without losing data. Zero means no constraint.
	MinInstanceSize() datasizes.Size

	// Resizable reports whether the payload supports resizing at all.
	Resizable() bool

	// Exists reports whether the payload is actually present on disk, as
	// opposed to being planned.
	Exists() bool
}

// FormatSpec is a plain value implementation of Format.
type FormatSpec struct {
	MinSize   datasizes.Size
	CanResize bool
	OnDisk    bool
}

func (f FormatSpec) MinInstanceSize() datasizes.Size { return f.MinSize }
func (f FormatSpec) Resizable() bool                 { return f.CanResize }
func (f FormatSpec) Exists() bool                    { return f.OnDisk }
