// Package render decorates listing items for display.
//
// Backends only describe what a child is; the renderer decides how it looks
// to a client: an icon name and human-readable size, time and mode strings.
// A Renderer is attached to a Processor with browsable.WithRenderer.
package render

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittobrowse/pkg/browsable"
)

// Class groups file names by how their content can be shown.
type Class int

const (
	ClassDocument Class = iota
	ClassText
	ClassImage
)

// Icon names understood by the web client.
const (
	IconFolder   = "sap-icon://folder-blank"
	IconDocument = "sap-icon://document"
	IconText     = "sap-icon://document-text"
	IconImage    = "sap-icon://picture"
	IconArchive  = "sap-icon://org-chart"
)

var textExtensions = map[string]bool{
	"c": true, "cpp": true, "cxx": true, "c++": true,
	"h": true, "hpp": true, "hxx": true, "h++": true,
	"py": true, "txt": true, "cmake": true, "dat": true,
	"log": true, "xml": true, "js": true, "json": true,
	"md": true, "yaml": true, "yml": true, "go": true,
}

var imageExtensions = map[string]bool{
	"bmp": true, "gif": true, "jpg": true, "jpeg": true, "png": true, "svg": true,
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// Classify returns the class of a file name based on its extension.
func Classify(name string) Class {
	ext := Extension(name)
	switch {
	case textExtensions[ext]:
		return ClassText
	case imageExtensions[ext]:
		return ClassImage
	default:
		return ClassDocument
	}
}

// ImageMIME returns the MIME type used in image data URIs.
func ImageMIME(name string) string {
	ext := Extension(name)
	switch ext {
	case "jpg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/" + ext
	}
}

// ModTimer is implemented by item details carrying a modification time.
type ModTimer interface {
	ModTime() time.Time
}

// Moder is implemented by item details carrying file mode bits.
type Moder interface {
	Mode() os.FileMode
}

// Linker is implemented by item details that can be symbolic links.
type Linker interface {
	IsLink() bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRelativeTime renders modification times relative to now ("3 hours ago").
func WithRelativeTime(relative bool) Option {
	return func(r *Renderer) {
		r.relative = relative
	}
}

// WithTimeFormat sets the layout of absolute modification times.
func WithTimeFormat(layout string) Option {
	return func(r *Renderer) {
		if layout != "" {
			r.timeFormat = layout
		}
	}
}

// Renderer fills Icon, Title and Attrs of listing items.
//
// Thread safety:
// A Renderer is read-only after construction and safe for concurrent use.
type Renderer struct {
	reg        *browsable.Registry
	relative   bool
	timeFormat string
	now        func() time.Time
}

// New creates a renderer. The registry, when not nil, is used to recognize
// archive-like files that open as containers.
func New(reg *browsable.Registry, opts ...Option) *Renderer {
	r := &Renderer{
		reg:        reg,
		timeFormat: "2006-01-02 15:04",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Func returns the renderer as a browsable.RenderFunc.
func (r *Renderer) Func() browsable.RenderFunc {
	return r.Render
}

// Render decorates one item.
func (r *Renderer) Render(item *browsable.Item) {
	item.Icon = r.icon(item)
	item.Title = item.Name

	if size, ok := item.SizeHint(); ok && !r.isDirectory(item) {
		item.SetAttr("fsize", humanize.IBytes(uint64(size)))
		item.Title = item.Name + " (" + humanize.Comma(size) + " bytes)"
	}

	if mt, ok := item.Detail.(ModTimer); ok && !mt.ModTime().IsZero() {
		if r.relative {
			item.SetAttr("mtime", humanize.RelTime(mt.ModTime(), r.now(), "ago", "from now"))
		} else {
			item.SetAttr("mtime", mt.ModTime().Format(r.timeFormat))
		}
	}

	if m, ok := item.Detail.(Moder); ok {
		item.SetAttr("ftype", fileType(m.Mode()))
		item.SetAttr("mode", m.Mode().String())
	}

	if l, ok := item.Detail.(Linker); ok && l.IsLink() {
		item.SetAttr("link", "true")
	}
}

func (r *Renderer) isDirectory(item *browsable.Item) bool {
	if m, ok := item.Detail.(Moder); ok {
		return m.Mode().IsDir()
	}
	return item.IsFolder() && !r.isArchive(item.Name)
}

func (r *Renderer) isArchive(name string) bool {
	return r.reg != nil && r.reg.HasKind(Extension(name))
}

func (r *Renderer) icon(item *browsable.Item) string {
	if item.IsFolder() {
		if r.isArchive(item.Name) {
			return IconArchive
		}
		return IconFolder
	}

	switch Classify(item.Name) {
	case ClassText:
		return IconText
	case ClassImage:
		return IconImage
	default:
		return IconDocument
	}
}

func fileType(mode os.FileMode) string {
	switch {
	case mode&os.ModeSymlink != 0:
		return "l"
	case mode.IsDir():
		return "d"
	case mode&os.ModeNamedPipe != 0:
		return "p"
	case mode&os.ModeSocket != 0:
		return "s"
	case mode&os.ModeDevice != 0:
		return "b"
	default:
		return "-"
	}
}
