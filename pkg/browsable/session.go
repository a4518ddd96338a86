package browsable

import (
	"github.com/marmos91/dittobrowse/internal/logger"
)

// Level is one entry of a session's navigation stack.
type Level struct {
	// Segment is the path segment that led here (empty for the root)
	Segment string

	// Element is the node this level lists
	Element Element

	// order is the enumeration order, items the sorted view served to clients.
	// No iterator is kept once the level is materialized.
	order        []*Item
	items        []*Item
	materialized bool
	partial      bool
	sortMethod   string
}

func newLevel(segment string, elem Element) *Level {
	return &Level{Segment: segment, Element: elem}
}

// Materialized reports whether the child list has been loaded.
func (l *Level) Materialized() bool {
	return l.materialized
}

// Partial reports whether materialization stopped at MaxChildren.
func (l *Level) Partial() bool {
	return l.partial
}

// Len returns the number of materialized children.
func (l *Level) Len() int {
	return len(l.items)
}

// drop releases the cached listing.
func (l *Level) drop() {
	l.order = nil
	l.items = nil
	l.materialized = false
	l.partial = false
	l.sortMethod = ""
}

// Session holds the navigation state of one browsing client.
//
// The stack always holds the root level at index 0; the last level is the
// current position. A failed navigation never leaves a partial stack: the
// session is reset to the root.
//
// Thread safety:
// Session is not safe for concurrent use.
type Session struct {
	levels []*Level
}

// NewSession creates a session rooted at root.
func NewSession(root Element) *Session {
	s := &Session{}
	s.SetRoot(root)
	return s
}

// SetRoot clears the stack and pushes a single root level wrapping root.
func (s *Session) SetRoot(root Element) {
	s.levels = []*Level{newLevel("", root)}
}

// Root returns the root element.
func (s *Session) Root() Element {
	return s.levels[0].Element
}

// ResetLevels pops every level above the root. The root's cached listing
// is kept.
func (s *Session) ResetLevels() bool {
	for len(s.levels) > 1 {
		s.pop()
	}

	return len(s.levels) == 1
}

func (s *Session) pop() {
	last := s.levels[len(s.levels)-1]
	last.drop()
	s.levels[len(s.levels)-1] = nil
	s.levels = s.levels[:len(s.levels)-1]
}

// Depth returns the number of levels above the root.
func (s *Session) Depth() int {
	return len(s.levels) - 1
}

// Current returns the level at the current position.
func (s *Session) Current() *Level {
	return s.levels[len(s.levels)-1]
}

// Path returns the segments leading to the current position.
func (s *Session) Path() []string {
	segments := make([]string, 0, len(s.levels)-1)
	for _, l := range s.levels[1:] {
		segments = append(segments, l.Segment)
	}
	return segments
}

// Navigate moves the session to the level designated by segments.
//
// Levels already on the stack that match a prefix of segments are kept
// together with their cached listings; the remaining segments are resolved
// one by one with a fresh iterator on the current top element. If any
// segment is missing or yields no element the session is reset to the root
// and false is returned.
func (s *Session) Navigate(segments []string) bool {
	keep := 0
	for keep < len(segments) && keep+1 < len(s.levels) && s.levels[keep+1].Segment == segments[keep] {
		keep++
	}

	for len(s.levels) > keep+1 {
		s.pop()
	}

	for _, segment := range segments[keep:] {
		top := s.levels[len(s.levels)-1]

		// the search iterator lives only for this step
		iter := top.Element.ChildrenIterator()
		if iter == nil || !Find(iter, segment) {
			logger.Debug("Navigation miss on segment %q of %s", segment, Join(segments))
			s.ResetLevels()
			return false
		}

		child := iter.Element()
		if child == nil {
			logger.Debug("No element for segment %q of %s", segment, Join(segments))
			s.ResetLevels()
			return false
		}

		s.levels = append(s.levels, newLevel(segment, child))
	}

	return true
}

// GetElement navigates to path and returns the element found there, or nil
// if the path does not resolve.
func (s *Session) GetElement(path string) Element {
	if !s.Navigate(Decompose(path)) {
		return nil
	}
	return s.Current().Element
}
