package badger

import "strings"

// Key Namespace
// =============
//
// Records are stored under their parent path so that listing a container is
// a single prefix scan:
//
//	c:<parentPath>\x00<name>  →  Record metadata (JSON)
//	b:<path>                   →  Record body (raw bytes)
//
// Parent paths are canonical ("/", "/a", "/a/b"). The NUL separator sorts
// before every printable byte, so the children of "/a" never interleave with
// the children of "/a b" or "/ab".
//
// Descendants of a container at path P live under two prefixes:
//   - c:P\x00   direct children
//   - c:P/      deeper levels (omitted for the root, whose deeper levels
//     already share the "c:/" prefix)
//
// Bodies of descendants of P live under b:P/.

const (
	prefixChild = "c:"
	prefixBody  = "b:"
	nameSep     = "\x00"
)

func keyBody(p string) []byte {
	return []byte(prefixBody + p)
}

func keyBodyDescendantPrefix(p string) []byte {
	return []byte(prefixBody + strings.TrimSuffix(p, "/") + "/")
}

func keyRecord(parent, name string) []byte {
	return []byte(prefixChild + parent + nameSep + name)
}

func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + nameSep)
}

func keyDescendantPrefix(p string) []byte {
	return []byte(prefixChild + strings.TrimSuffix(p, "/") + "/")
}

// splitPath splits a canonical path into parent and name.
func splitPath(p string) (parent, name string) {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/", p[i+1:]
	}
	return p[:i], p[i+1:]
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
