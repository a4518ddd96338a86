package browsable

import (
	"github.com/marmos91/dittobrowse/internal/logger"
)

// MaxChildren is the hard ceiling on the number of children materialized
// for one level. Listings that hit it are flagged partial and left unsorted.
const MaxChildren = 10000

// Request asks for one page of a level's children.
type Request struct {
	// Path is the slash-delimited path of the level to list
	Path string `json:"path"`

	// First is the index of the first item to return
	First int `json:"first"`

	// Number is the page size (0 = everything from First)
	Number int `json:"number"`

	// Sort is the sort method ("", "unsorted", "name", "size", backend-specific)
	Sort string `json:"sort"`
}

// Reply carries one page of a listing.
type Reply struct {
	// Path echoes the request path
	Path string `json:"path"`

	// First echoes the request's first index
	First int `json:"first"`

	// Total is the number of children of the level, not the page size
	Total int `json:"nchilds"`

	// Partial is set when the listing was truncated at MaxChildren
	Partial bool `json:"partial,omitempty"`

	// Items is the requested page
	Items []*Item `json:"nodes"`
}

// Observer receives listing events (used for metrics).
type Observer interface {
	// LevelMaterialized is called after a level's children were enumerated.
	LevelMaterialized(path string, count int, partial bool)

	// LevelReused is called when a request is served from a cached listing.
	LevelReused(path string)
}

// RenderFunc decorates a freshly created item (icon, formatted attributes).
type RenderFunc func(item *Item)

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithRenderer attaches a presentation hook applied to every created item.
func WithRenderer(render RenderFunc) ProcessorOption {
	return func(p *Processor) {
		p.render = render
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = o
	}
}

// Processor serves listing requests against one Session.
//
// Thread safety:
// Processor is not safe for concurrent use; it mutates its session.
type Processor struct {
	session  *Session
	render   RenderFunc
	observer Observer
}

// NewProcessor creates a processor driving session.
func NewProcessor(session *Session, opts ...ProcessorOption) *Processor {
	p := &Processor{session: session}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Session returns the driven session.
func (p *Processor) Session() *Session {
	return p.session
}

// Process navigates to req.Path, materializes the level's children if
// needed and returns the requested page.
//
// Returns:
//   - *Reply: the page, with Total set to the full child count
//   - error: ErrInvalidArgument for a negative First, ErrNotFound if the path
//     does not resolve, ErrNotContainer if the target cannot be listed
func (p *Processor) Process(req Request) (*Reply, error) {
	if req.First < 0 {
		return nil, &BrowseError{Code: ErrInvalidArgument, Message: "first index must not be negative", Path: req.Path}
	}

	segments := Decompose(req.Path)
	if !p.session.Navigate(segments) {
		return nil, &BrowseError{Code: ErrNotFound, Message: "path not found", Path: req.Path}
	}

	level := p.session.Current()
	method := normalizeMethod(req.Sort)
	canonical := Join(segments)

	if !level.materialized {
		if err := p.materialize(level, canonical, method); err != nil {
			return nil, err
		}
	} else {
		p.resort(level, method)
		if p.observer != nil {
			p.observer.LevelReused(canonical)
		}
	}

	total := len(level.items)
	first, last := req.First, total
	if first > total {
		first = total
	}
	if req.Number > 0 && req.Number < total-first {
		last = first + req.Number
	}

	reply := &Reply{
		Path:    req.Path,
		First:   req.First,
		Total:   total,
		Partial: level.partial,
		Items:   []*Item{},
	}
	if first < last {
		reply.Items = append(reply.Items, level.items[first:last]...)
	}

	return reply, nil
}

// materialize enumerates the level's children once and caches them.
func (p *Processor) materialize(level *Level, path, method string) error {
	iter := level.Element.ChildrenIterator()
	if iter == nil {
		return &BrowseError{Code: ErrNotContainer, Message: "element has no children", Path: path}
	}

	var order []*Item
	partial := false

	for iter.Next() {
		if len(order) == MaxChildren {
			partial = true
			break
		}

		item := iter.CreateItem()
		if item == nil {
			continue
		}
		if p.render != nil {
			p.render(item)
		}
		order = append(order, item)
	}

	level.order = order
	level.partial = partial
	level.materialized = true

	if partial {
		logger.Warn("Listing of %s truncated at %d children, left unsorted", path, MaxChildren)
		level.items = order
		level.sortMethod = SortUnsorted
	} else {
		level.items = make([]*Item, len(order))
		copy(level.items, order)
		Sort(iter, level.items, method)
		level.sortMethod = method
	}

	if p.observer != nil {
		p.observer.LevelMaterialized(path, len(order), partial)
	}

	return nil
}

// resort re-orders a cached, complete listing when a different sort method
// is requested. The backend is not enumerated again: the iterator used for
// ordering is never reset.
func (p *Processor) resort(level *Level, method string) {
	if level.partial || level.sortMethod == method {
		return
	}

	items := make([]*Item, len(level.order))
	copy(items, level.order)

	// A fresh iterator carries the backend's sort keys without any loaded
	// children; it is dropped as soon as the items are ordered.
	if iter := level.Element.ChildrenIterator(); iter != nil {
		Sort(iter, items, method)
	} else {
		SortItems(items, method)
	}
	level.items = items
	level.sortMethod = method
}
