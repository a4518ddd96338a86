package browsable

// Element is a handle to one node of a browsable tree.
//
// Elements are immutable views and may be shared by several levels and
// sessions. The display name of an element is not stored on it: it is the
// path segment that led to it.
type Element interface {
	// ContentKind returns the discriminator used for provider lookup
	// (for files, the lowercase extension without the dot).
	ContentKind() string

	// ChildrenIterator returns a fresh iterator over the element's children,
	// or nil if the element is a leaf.
	ChildrenIterator() LevelIterator
}

// ContentProvider is implemented by elements that can render their own
// content, e.g. "text" for plain text or "image64" for a base64 data URI.
type ContentProvider interface {
	Content(kind string) (string, error)
}

// ChildKind tells whether a child can itself have children.
type ChildKind int

const (
	// ChildrenNo means the child is a leaf
	ChildrenNo ChildKind = iota

	// ChildrenYes means the child is a container
	ChildrenYes

	// ChildrenMaybe means the backend cannot tell without opening the child
	ChildrenMaybe
)

func (k ChildKind) String() string {
	switch k {
	case ChildrenNo:
		return "no"
	case ChildrenYes:
		return "yes"
	case ChildrenMaybe:
		return "maybe"
	default:
		return "unknown"
	}
}

// SizeHinter is implemented by item details that know their size in bytes.
type SizeHinter interface {
	SizeHint() (int64, bool)
}

// Item is the caller-facing representation of one child in a listing.
//
// Backends fill Name, Children and Detail; presentation (Icon, Title, Attrs)
// is filled by the renderer attached to the Processor.
type Item struct {
	Name     string            `json:"name"`
	Children ChildKind         `json:"nchilds"`
	Icon     string            `json:"icon,omitempty"`
	Title    string            `json:"title,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`

	// Detail holds backend-specific data (file stat, record metadata).
	// It is not serialized; renderers read it through capability interfaces.
	Detail any `json:"-"`
}

// NewItem creates an item with no backend detail.
func NewItem(name string, children ChildKind) *Item {
	return &Item{Name: name, Children: children}
}

// IsFolder reports whether the item may have children.
func (i *Item) IsFolder() bool {
	return i.Children != ChildrenNo
}

// SizeHint forwards to the detail when it implements SizeHinter.
func (i *Item) SizeHint() (int64, bool) {
	if h, ok := i.Detail.(SizeHinter); ok {
		return h.SizeHint()
	}
	return 0, false
}

// SetAttr sets a presentation attribute.
func (i *Item) SetAttr(key, value string) {
	if i.Attrs == nil {
		i.Attrs = make(map[string]string)
	}
	i.Attrs[key] = value
}
