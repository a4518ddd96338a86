// Package browsable implements the hierarchical browsing engine.
//
// A browsable tree is made of Elements. An Element that is a container hands
// out a LevelIterator over its children; backends (filesystems, archives,
// record stores, object stores) implement both interfaces and plug into a
// Registry so that resources of one kind can be reopened as a richer Element
// of another kind (a .zip file inside a directory becomes a sub-tree).
//
// A Session keeps the navigation stack of one browsing client. A Processor
// drives the session for listing requests: it walks to the requested path,
// materializes and sorts the children of that level once, and slices the
// requested page out of the cached list.
//
// Thread safety:
// Registry is safe for concurrent use. Session and Processor are not: all
// requests against one session must be serialized by the caller (see
// pkg/browser, which holds one lock per session).
package browsable
