// Package sysfile implements a browsable backend over a go-billy filesystem.
//
// Directories list their entries; files whose extension has a kind provider
// in the registry (archives, for instance) are opened through the registry
// and can be browsed like directories. Production roots use osfs, tests use
// memfs.
package sysfile

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/render"
)

// KindDir is the content kind of directories.
const KindDir = "dir"

// SortMTime orders containers first, then by modification time.
const SortMTime = "mtime"

// MaxContentSize bounds the file content returned by Content.
const MaxContentSize = 16 << 20

// FileInfo is the item detail of filesystem entries.
type FileInfo struct {
	os.FileInfo

	// Link is set when the entry is a symbolic link
	Link bool
}

// SizeHint implements browsable.SizeHinter.
func (fi FileInfo) SizeHint() (int64, bool) {
	return fi.Size(), true
}

// IsLink reports whether the entry is a symbolic link.
func (fi FileInfo) IsLink() bool {
	return fi.Link
}

// Dir is a directory element.
type Dir struct {
	fs   billy.Filesystem
	path string
	reg  *browsable.Registry
}

// NewRoot creates the element for directory p of fs.
func NewRoot(fs billy.Filesystem, p string, reg *browsable.Registry) browsable.Element {
	if p == "" {
		p = "/"
	}
	return &Dir{fs: fs, path: path.Clean(p), reg: reg}
}

// Path returns the directory path inside the filesystem.
func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) ContentKind() string {
	return KindDir
}

func (d *Dir) ChildrenIterator() browsable.LevelIterator {
	return &iterator{dir: d, pos: -1}
}

// File is a plain file element.
type File struct {
	fs   billy.Filesystem
	path string
	info FileInfo
}

func (f *File) ContentKind() string {
	return render.Extension(f.path)
}

func (f *File) ChildrenIterator() browsable.LevelIterator {
	return nil
}

// Info returns the file's stat detail.
func (f *File) Info() FileInfo {
	return f.info
}

// Content returns the file as text ("text") or as a base64 image data URI
// ("image64"), depending on the file class.
func (f *File) Content(kind string) (string, error) {
	name := path.Base(f.path)
	class := render.Classify(name)

	switch {
	case kind == "text" && class == render.ClassText:
		data, err := f.read()
		if err != nil {
			return "", err
		}
		return string(data), nil

	case kind == "image64" && class == render.ClassImage:
		data, err := f.read()
		if err != nil {
			return "", err
		}
		return "data:" + render.ImageMIME(name) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	return "", &browsable.BrowseError{
		Code:    browsable.ErrUnsupported,
		Message: fmt.Sprintf("content kind %q not available", kind),
		Path:    f.path,
	}
}

func (f *File) read() ([]byte, error) {
	if f.info.FileInfo != nil && f.info.Size() > MaxContentSize {
		return nil, &browsable.BrowseError{
			Code:    browsable.ErrLimitExceeded,
			Message: fmt.Sprintf("file larger than %d bytes", MaxContentSize),
			Path:    f.path,
		}
	}

	file, err := f.fs.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

// iterator walks the entries of one directory.
type iterator struct {
	dir     *Dir
	entries []os.FileInfo
	pos     int
	loaded  bool
	current *FileInfo
}

func (it *iterator) Reset() bool {
	it.current = nil
	it.pos = -1

	entries, err := it.dir.fs.ReadDir(it.dir.path)
	if err != nil {
		logger.Error("Failed to read directory %s: %v", it.dir.path, err)
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

	info := it.resolve(it.entries[it.pos])
	it.current = &info
	return true
}

// Find stats the named entry directly instead of scanning the directory.
// After a successful Find the iterator is exhausted: Next returns false
// until Reset.
func (it *iterator) Find(name string) bool {
	it.current = nil
	if name == "" || name == "." || name == ".." || path.Base(name) != name {
		return false
	}

	info, err := it.lstat(it.fullPath(name))
	if err != nil {
		logger.Debug("Entry %s not found in %s: %v", name, it.dir.path, err)
		return false
	}

	resolved := it.resolve(info)
	it.current = &resolved
	it.entries = nil
	it.pos = 0
	it.loaded = true
	return true
}

func (it *iterator) HasItem() bool {
	return it.current != nil
}

func (it *iterator) Name() string {
	if it.current == nil {
		return ""
	}
	return it.current.Name()
}

func (it *iterator) CanHaveChildren() browsable.ChildKind {
	if it.current == nil {
		return browsable.ChildrenNo
	}
	if it.current.IsDir() {
		return browsable.ChildrenYes
	}
	if it.dir.reg != nil && it.dir.reg.HasKind(render.Extension(it.current.Name())) {
		return browsable.ChildrenYes
	}
	return browsable.ChildrenNo
}

func (it *iterator) CreateItem() *browsable.Item {
	if it.current == nil {
		return nil
	}

	item := browsable.NewItem(it.current.Name(), it.CanHaveChildren())
	item.Detail = *it.current
	return item
}

func (it *iterator) Element() browsable.Element {
	if it.current == nil {
		return nil
	}

	full := it.fullPath(it.current.Name())
	if it.current.IsDir() {
		return &Dir{fs: it.dir.fs, path: full, reg: it.dir.reg}
	}

	file := &File{fs: it.dir.fs, path: full, info: *it.current}

	kind := render.Extension(full)
	if it.dir.reg != nil && it.dir.reg.HasKind(kind) {
		fs := it.dir.fs
		loc := browsable.Locator{
			Name: it.current.Name(),
			Path: full,
			Size: it.current.Size(),
			Open: func() (io.ReadCloser, error) {
				return fs.Open(full)
			},
		}
		if elem := it.dir.reg.Open(kind, loc); elem != nil {
			return elem
		}
		logger.Error("No provider could open %s as %q", full, kind)
	}

	return file
}

// Sort implements browsable.Sorter, adding the "mtime" method.
func (it *iterator) Sort(items []*browsable.Item, method string) {
	if method != SortMTime {
		browsable.SortItems(items, method)
		return
	}

	browsable.SortBy(items, func(a, b *browsable.Item) bool {
		return modTime(a).Before(modTime(b))
	})
}

func modTime(item *browsable.Item) time.Time {
	if fi, ok := item.Detail.(FileInfo); ok && fi.FileInfo != nil {
		return fi.ModTime()
	}
	return time.Time{}
}

func (it *iterator) fullPath(name string) string {
	return path.Join(it.dir.path, name)
}

func (it *iterator) lstat(p string) (os.FileInfo, error) {
	if sl, ok := it.dir.fs.(billy.Symlink); ok {
		return sl.Lstat(p)
	}
	return it.dir.fs.Stat(p)
}

// resolve follows symbolic links so that links to directories list as
// containers. Broken links are kept as leaves.
func (it *iterator) resolve(info os.FileInfo) FileInfo {
	if info.Mode()&os.ModeSymlink == 0 {
		return FileInfo{FileInfo: info}
	}

	p := it.fullPath(info.Name())
	target, err := it.dir.fs.Stat(p)
	if err != nil {
		logger.Error("Broken symlink of %s: %v", p, err)
		return FileInfo{FileInfo: info, Link: true}
	}
	return FileInfo{FileInfo: renamed{FileInfo: target, name: info.Name()}, Link: true}
}

// renamed keeps the link's own name on the target's stat.
type renamed struct {
	os.FileInfo
	name string
}

func (r renamed) Name() string {
	return r.name
}
