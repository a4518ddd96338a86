// Package memory provides an in-memory browsable tree.
//
// It is used for the demo root of the service and as a test double: every
// node counts how often its children were enumerated, and enumeration can be
// made to fail to simulate an unreadable backend.
package memory

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"

	"github.com/marmos91/dittobrowse/pkg/browsable"
)

// Node is one node of an in-memory tree.
type Node struct {
	name     string
	dir      bool
	size     int64
	content  string
	children []*Node

	// FailOpen makes Reset fail for this node's iterator
	FailOpen bool

	resets atomic.Int64
	nexts  atomic.Int64
}

// Dir creates a container node.
func Dir(name string, children ...*Node) *Node {
	return &Node{name: name, dir: true, children: children}
}

// File creates a leaf node with the given content.
func File(name string, content string) *Node {
	return &Node{name: name, size: int64(len(content)), content: content}
}

// SizedFile creates a leaf node reporting size without holding content.
func SizedFile(name string, size int64) *Node {
	return &Node{name: name, size: size}
}

// Add appends children and returns the node.
func (n *Node) Add(children ...*Node) *Node {
	n.children = append(n.children, children...)
	return n
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Child returns the first child called name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Lookup walks a slash-delimited path from n.
func (n *Node) Lookup(p string) *Node {
	cur := n
	for _, segment := range browsable.Decompose(p) {
		if cur = cur.Child(segment); cur == nil {
			return nil
		}
	}
	return cur
}

// Resets returns how many times the node's children were (re)opened.
func (n *Node) Resets() int64 {
	return n.resets.Load()
}

// Nexts returns how many times Next was called on the node's iterators.
func (n *Node) Nexts() int64 {
	return n.nexts.Load()
}

// ContentKind implements browsable.Element.
func (n *Node) ContentKind() string {
	if n.dir {
		return "dir"
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(n.name)), ".")
}

// ChildrenIterator implements browsable.Element.
func (n *Node) ChildrenIterator() browsable.LevelIterator {
	if !n.dir {
		return nil
	}
	return &iterator{node: n, pos: -1}
}

// Content implements browsable.ContentProvider.
func (n *Node) Content(kind string) (string, error) {
	if n.dir || kind != "text" {
		return "", &browsable.BrowseError{
			Code:    browsable.ErrUnsupported,
			Message: fmt.Sprintf("content kind %q not available", kind),
			Path:    n.name,
		}
	}
	return n.content, nil
}

// Size is the item detail of memory nodes.
type Size int64

// SizeHint implements browsable.SizeHinter.
func (s Size) SizeHint() (int64, bool) {
	return int64(s), true
}

type iterator struct {
	node   *Node
	pos    int
	opened bool
}

func (it *iterator) Reset() bool {
	it.node.resets.Add(1)
	it.pos = -1
	it.opened = !it.node.FailOpen
	return it.opened
}

func (it *iterator) Next() bool {
	it.node.nexts.Add(1)
	if !it.opened && !it.Reset() {
		return false
	}
	if it.pos+1 >= len(it.node.children) {
		it.pos = len(it.node.children)
		return false
	}
	it.pos++
	return true
}

func (it *iterator) HasItem() bool {
	return it.opened && it.pos >= 0 && it.pos < len(it.node.children)
}

func (it *iterator) current() *Node {
	if !it.HasItem() {
		return nil
	}
	return it.node.children[it.pos]
}

func (it *iterator) Name() string {
	if c := it.current(); c != nil {
		return c.name
	}
	return ""
}

func (it *iterator) CanHaveChildren() browsable.ChildKind {
	if c := it.current(); c != nil && c.dir {
		return browsable.ChildrenYes
	}
	return browsable.ChildrenNo
}

func (it *iterator) CreateItem() *browsable.Item {
	c := it.current()
	if c == nil {
		return nil
	}
	item := browsable.NewItem(c.name, it.CanHaveChildren())
	if !c.dir {
		item.Detail = Size(c.size)
	}
	return item
}

func (it *iterator) Element() browsable.Element {
	if c := it.current(); c != nil {
		return c
	}
	return nil
}
