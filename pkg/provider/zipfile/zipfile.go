// Package zipfile makes zip archives browsable.
//
// Register installs kind providers for ".zip" and ".jar" resources. When a
// backend meets such a file it opens it through the registry and gets back
// a container element listing the archive members. Directories that exist
// only implicitly (as a prefix of member names) are listed too, and
// archives nested inside an archive are opened the same way.
package zipfile

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/render"
)

// Kinds handled by this provider.
const (
	KindZip = "zip"
	KindJar = "jar"
)

// MaxArchiveSize bounds the archive size that is loaded for browsing.
const MaxArchiveSize = 512 << 20

// Register installs the archive kind providers into reg. Closing the
// returned provider removes them.
func Register(reg *browsable.Registry) *browsable.Provider {
	p := reg.NewProvider("zipfile")
	factory := func(loc browsable.Locator) browsable.Element {
		return Open(reg, loc)
	}
	p.RegisterKind(KindZip, factory)
	p.RegisterKind(KindJar, factory)
	return p
}

// Open reads the archive designated by loc and returns its root element,
// or nil if it cannot be read.
func Open(reg *browsable.Registry, loc browsable.Locator) browsable.Element {
	if loc.Open == nil {
		return nil
	}
	if loc.Size > MaxArchiveSize {
		logger.Error("Archive %s too large to browse (%d bytes)", loc.Path, loc.Size)
		return nil
	}

	rc, err := loc.Open()
	if err != nil {
		logger.Error("Failed to open archive %s: %v", loc.Path, err)
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxArchiveSize+1))
	if err != nil {
		logger.Error("Failed to read archive %s: %v", loc.Path, err)
		return nil
	}
	if len(data) > MaxArchiveSize {
		logger.Error("Archive %s too large to browse", loc.Path)
		return nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Error("Failed to read archive %s: %v", loc.Path, err)
		return nil
	}

	a := &archive{path: loc.Path, reg: reg, root: newNode("", true)}
	for _, f := range zr.File {
		a.add(f)
	}

	logger.Debug("Opened archive %s with %d members", loc.Path, len(zr.File))
	return &Folder{archive: a, node: a.root}
}

type archive struct {
	path string
	reg  *browsable.Registry
	root *node
}

type node struct {
	name     string
	dir      bool
	file     *zip.File
	children []*node
	index    map[string]*node
}

func newNode(name string, dir bool) *node {
	n := &node{name: name, dir: dir}
	if dir {
		n.index = make(map[string]*node)
	}
	return n
}

func (n *node) child(name string, dir bool) *node {
	if c, ok := n.index[name]; ok {
		if dir && !c.dir {
			c.dir = true
			c.index = make(map[string]*node)
		}
		return c
	}
	c := newNode(name, dir)
	n.children = append(n.children, c)
	n.index[name] = c
	return c
}

// add inserts a member, creating the implicit directories of its path.
func (a *archive) add(f *zip.File) {
	isDir := strings.HasSuffix(f.Name, "/")

	var segments []string
	for _, s := range strings.Split(f.Name, "/") {
		if s != "" && s != "." && s != ".." {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return
	}

	cur := a.root
	for i, s := range segments {
		last := i == len(segments)-1
		cur = cur.child(s, !last || isDir)
	}
	if !isDir {
		cur.file = f
	}
}

// Member is the item detail of archive members.
type Member struct {
	Size     int64
	Modified time.Time
	Dir      bool
}

// SizeHint implements browsable.SizeHinter.
func (m Member) SizeHint() (int64, bool) {
	return m.Size, !m.Dir
}

func (m Member) ModTime() time.Time {
	return m.Modified
}

func (m Member) Mode() os.FileMode {
	if m.Dir {
		return os.ModeDir | 0755
	}
	return 0644
}

func (n *node) member() Member {
	m := Member{Dir: n.dir}
	if n.file != nil {
		m.Size = int64(n.file.UncompressedSize64)
		m.Modified = n.file.Modified
	}
	return m
}

// Folder is a directory inside an archive (or the archive itself).
type Folder struct {
	archive *archive
	node    *node
}

func (f *Folder) ContentKind() string {
	return "dir"
}

func (f *Folder) ChildrenIterator() browsable.LevelIterator {
	return &iterator{folder: f, pos: -1}
}

// Entry is a file member of an archive. Its node always carries a zip.File.
type Entry struct {
	archive *archive
	node    *node
	path    string
}

func (e *Entry) ContentKind() string {
	return render.Extension(e.node.name)
}

func (e *Entry) ChildrenIterator() browsable.LevelIterator {
	return nil
}

// Content returns text or image members, like regular files.
func (e *Entry) Content(kind string) (string, error) {
	class := render.Classify(e.node.name)
	if (kind == "text" && class == render.ClassText) || (kind == "image64" && class == render.ClassImage) {
		data, err := e.read()
		if err != nil {
			return "", err
		}
		if kind == "text" {
			return string(data), nil
		}
		return "data:" + render.ImageMIME(e.node.name) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	return "", &browsable.BrowseError{
		Code:    browsable.ErrUnsupported,
		Message: fmt.Sprintf("content kind %q not available", kind),
		Path:    e.path,
	}
}

func (e *Entry) read() ([]byte, error) {
	if e.node.file.UncompressedSize64 > MaxArchiveSize {
		return nil, &browsable.BrowseError{Code: browsable.ErrLimitExceeded, Message: "member too large", Path: e.path}
	}

	rc, err := e.node.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", e.path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

type iterator struct {
	folder  *Folder
	pos     int
	current *node
}

func (it *iterator) Reset() bool {
	it.pos = -1
	it.current = nil
	return true
}

func (it *iterator) Next() bool {
	children := it.folder.node.children
	it.pos++
	if it.pos >= len(children) {
		it.pos = len(children)
		it.current = nil
		return false
	}
	it.current = children[it.pos]
	return true
}

// Find uses the member index instead of scanning.
func (it *iterator) Find(name string) bool {
	c, ok := it.folder.node.index[name]
	if !ok {
		it.current = nil
		return false
	}
	it.current = c
	it.pos = len(it.folder.node.children)
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
	switch {
	case it.current == nil:
		return browsable.ChildrenNo
	case it.current.dir:
		return browsable.ChildrenYes
	case it.folder.archive.reg != nil && it.folder.archive.reg.HasKind(render.Extension(it.current.name)):
		return browsable.ChildrenYes
	default:
		return browsable.ChildrenNo
	}
}

func (it *iterator) CreateItem() *browsable.Item {
	if it.current == nil {
		return nil
	}
	item := browsable.NewItem(it.current.name, it.CanHaveChildren())
	item.Detail = it.current.member()
	return item
}

func (it *iterator) Element() browsable.Element {
	c := it.current
	if c == nil {
		return nil
	}

	a := it.folder.archive
	if c.dir {
		return &Folder{archive: a, node: c}
	}

	entry := &Entry{archive: a, node: c, path: a.path + "/" + c.file.Name}

	kind := render.Extension(c.name)
	if a.reg != nil && a.reg.HasKind(kind) {
		f := c.file
		loc := browsable.Locator{
			Name: c.name,
			Path: entry.path,
			Size: int64(f.UncompressedSize64),
			Open: func() (io.ReadCloser, error) {
				return f.Open()
			},
		}
		if elem := a.reg.Open(kind, loc); elem != nil {
			return elem
		}
	}

	return entry
}
