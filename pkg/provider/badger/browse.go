package badger

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/render"
)

// Ref is the value carried by holders produced while browsing the store.
type Ref struct {
	Store  *Store
	Path   string
	Record Record
}

// Register installs the capability factories that specialize records:
//
//   - "folder" records become listable containers
//   - "blob" records whose name has a kind provider are opened through it;
//     when that fails the holder is consumed and the child has no element
//   - any other record becomes a leaf exposing its body as content
//
// Closing the returned provider removes the factories.
func Register(reg *browsable.Registry) *browsable.Provider {
	p := reg.NewProvider("badger")

	p.RegisterCapability(ClassFolder, func(h *browsable.Holder) browsable.Element {
		ref, ok := h.Value().(*Ref)
		if !ok {
			return nil
		}
		return &Folder{store: ref.Store, path: ref.Path, reg: reg}
	})

	p.RegisterCapability(ClassBlob, func(h *browsable.Holder) browsable.Element {
		ref, ok := h.Value().(*Ref)
		if !ok {
			return nil
		}
		kind := render.Extension(ref.Path)
		if !reg.HasKind(kind) {
			return nil
		}

		store, p := ref.Store, ref.Path
		elem := reg.Open(kind, browsable.Locator{
			Name: nameOf(p),
			Path: p,
			Size: ref.Record.Size,
			Open: func() (io.ReadCloser, error) {
				body, err := store.body(p)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(body)), nil
			},
		})
		if elem == nil {
			logger.Error("Failed to open blob %s as %q", ref.Path, kind)
			h.Take()
		}
		return elem
	})

	p.RegisterCapability(browsable.AnyCapability, func(h *browsable.Holder) browsable.Element {
		ref, ok := h.Value().(*Ref)
		if !ok {
			return nil
		}
		return &Leaf{store: ref.Store, path: ref.Path, record: ref.Record}
	})

	return p
}

func nameOf(p string) string {
	_, name := splitPath(p)
	return name
}

// Root returns the top-level container of the store.
func (s *Store) Root(reg *browsable.Registry) browsable.Element {
	return &Folder{store: s, path: "/", reg: reg}
}

// Folder is a container record.
type Folder struct {
	store *Store
	path  string
	reg   *browsable.Registry
}

func (f *Folder) ContentKind() string {
	return ClassFolder
}

func (f *Folder) ChildrenIterator() browsable.LevelIterator {
	return &iterator{folder: f, pos: -1}
}

// Leaf is a record without children. Its body is read on demand.
type Leaf struct {
	store  *Store
	path   string
	record Record
}

func (l *Leaf) ContentKind() string {
	return render.Extension(l.path)
}

func (l *Leaf) ChildrenIterator() browsable.LevelIterator {
	return nil
}

// Record returns the leaf's record metadata (Body is not loaded).
func (l *Leaf) Record() Record {
	return l.record
}

// Content exposes the record body as text or as an image data URI.
func (l *Leaf) Content(kind string) (string, error) {
	name := nameOf(l.path)
	class := render.Classify(name)
	if (kind != "text" || class != render.ClassText) && (kind != "image64" || class != render.ClassImage) {
		return "", &browsable.BrowseError{
			Code:    browsable.ErrUnsupported,
			Message: fmt.Sprintf("content kind %q not available", kind),
			Path:    l.path,
		}
	}

	body, err := l.store.body(l.path)
	if err != nil {
		return "", err
	}
	if kind == "text" {
		return string(body), nil
	}
	return "data:" + render.ImageMIME(name) + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

// iterator walks a snapshot of a container's children taken at Reset. The
// snapshot holds metadata only and stops one past browsable.MaxChildren.
type iterator struct {
	folder  *Folder
	entries []entry
	pos     int
	loaded  bool
	current *entry
}

func (it *iterator) Reset() bool {
	it.pos = -1
	it.current = nil

	entries, err := it.folder.store.list(it.folder.path, browsable.MaxChildren+1)
	if err != nil {
		logger.Error("Failed to list %s: %v", it.folder.path, err)
		it.entries = nil
		it.loaded = false
		return false
	}

	it.entries = entries
	it.loaded = true
	return true
}

func (it *iterator) Next() bool {
	if !it.loaded && !it.Reset() {
		return false
	}

	it.pos++
	if it.pos >= len(it.entries) {
		it.pos = len(it.entries)
		it.current = nil
		return false
	}
	it.current = &it.entries[it.pos]
	return true
}

// Find is a point lookup. The iterator is exhausted afterwards.
func (it *iterator) Find(name string) bool {
	it.current = nil
	if name == "" || strings.Contains(name, "/") {
		return false
	}

	rec, err := it.folder.store.statChild(it.folder.path, name)
	if err != nil {
		if !browsable.IsNotFound(err) {
			logger.Error("Failed to look up %s in %s: %v", name, it.folder.path, err)
		}
		return false
	}

	it.entries = nil
	it.loaded = true
	it.pos = 0
	it.current = &entry{name: name, record: rec}
	return true
}

func (it *iterator) HasItem() bool {
	return it.current != nil
}

func (it *iterator) Name() string {
	if it.current == nil {
		return ""
	}
	return it.current.name
}

func (it *iterator) CanHaveChildren() browsable.ChildKind {
	if it.current == nil {
		return browsable.ChildrenNo
	}
	switch it.current.record.Class {
	case ClassFolder:
		return browsable.ChildrenYes
	case ClassBlob:
		if it.folder.reg != nil && it.folder.reg.HasKind(render.Extension(it.current.name)) {
			return browsable.ChildrenMaybe
		}
	}
	return browsable.ChildrenNo
}

func (it *iterator) CreateItem() *browsable.Item {
	if it.current == nil {
		return nil
	}

	detail := it.current.record
	item := browsable.NewItem(it.current.name, it.CanHaveChildren())
	item.Detail = detail
	item.SetAttr("class", detail.Class)
	return item
}

// Element specializes the current record through the capability table.
func (it *iterator) Element() browsable.Element {
	if it.current == nil || it.folder.reg == nil {
		return nil
	}

	ref := &Ref{
		Store:  it.folder.store,
		Path:   childPath(it.folder.path, it.current.name),
		Record: it.current.record,
	}
	return it.folder.reg.Resolve(browsable.NewHolder(it.current.record.Class, ref))
}
