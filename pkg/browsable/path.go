package browsable

import "strings"

// Separator is the path separator used by browsing requests.
const Separator = "/"

// Decompose splits a slash-delimited path into its segments.
//
// An empty path or "/" yields no segments (the root). A leading separator is
// skipped, consecutive separators collapse and a trailing separator is ignored.
// This is the only place that interprets path syntax.
func Decompose(path string) []string {
	segments := []string{}

	if path == "" || path == Separator {
		return segments
	}

	previous := 0
	if strings.HasPrefix(path, Separator) {
		previous++
	}

	for {
		current := strings.Index(path[previous:], Separator)
		if current < 0 {
			break
		}
		current += previous
		if current > previous {
			segments = append(segments, path[previous:current])
		}
		previous = current + 1
	}

	if previous < len(path) {
		segments = append(segments, path[previous:])
	}

	return segments
}

// Join is the inverse of Decompose: it builds the canonical absolute path
// for a segment sequence. Empty segments are dropped.
func Join(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteString(Separator)
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return Separator
	}
	return b.String()
}
