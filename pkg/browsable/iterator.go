package browsable

// LevelIterator is a cursor over the children of one Element.
//
// Every backend implements it. Iterators are short-lived: the engine asks the
// Element for a new one for each enumeration or search and drops it after.
// They are never shared between goroutines.
type LevelIterator interface {
	// Reset (re)opens the enumeration from the beginning. It returns false
	// if the backend cannot be opened; this is reported, not fatal.
	Reset() bool

	// Next advances to the next child. It returns false once exhausted.
	// Backends open lazily on the first Next if Reset was not called.
	Next() bool

	// HasItem reports whether the cursor denotes a valid child.
	HasItem() bool

	// Name returns the display name of the current child.
	Name() string

	// CanHaveChildren tells whether the current child can be a container,
	// so callers can avoid opening it speculatively.
	CanHaveChildren() ChildKind

	// CreateItem builds the listing item for the current child.
	CreateItem() *Item

	// Element returns the full Element for the current child, or nil.
	Element() Element
}

// Finder is implemented by iterators with a faster lookup than a scan.
type Finder interface {
	Find(name string) bool
}

// Sorter is implemented by iterators with backend-specific sort keys.
// Implementations should delegate unknown methods to SortItems. Sort may be
// called on an iterator that was never reset, so it must only look at items.
type Sorter interface {
	Sort(items []*Item, method string)
}

// Find positions it on the child called name. It uses the iterator's own
// Finder when available, otherwise it resets and scans.
func Find(it LevelIterator, name string) bool {
	if f, ok := it.(Finder); ok {
		return f.Find(name)
	}
	return ScanFind(it, name)
}

// ScanFind is the default search: Reset then Next until a child with the
// given name is found.
func ScanFind(it LevelIterator, name string) bool {
	if !it.Reset() {
		return false
	}

	for it.Next() {
		if it.Name() == name {
			return true
		}
	}

	return false
}

// Sort orders items with the iterator's Sorter when available, otherwise
// with SortItems.
func Sort(it LevelIterator, items []*Item, method string) {
	if s, ok := it.(Sorter); ok {
		s.Sort(items, method)
		return
	}
	SortItems(items, method)
}
