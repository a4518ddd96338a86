package browsable

import (
	"sort"
	"strings"
)

// Sort methods understood by SortItems.
const (
	SortDefault  = ""
	SortUnsorted = "unsorted"
	SortName     = "name"
	SortSize     = "size"
)

// SortItems applies the default ordering policy:
//
//   - "" moves containers before leaves, keeping relative order in each group
//   - "unsorted" keeps enumeration order
//   - "size" puts containers first, then orders by SizeHint (missing hints
//     count as zero), then by name
//   - anything else puts containers first, then orders by name
func SortItems(items []*Item, method string) {
	switch method {
	case SortUnsorted:
		return
	case SortDefault:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].IsFolder() && !items[j].IsFolder()
		})
	case SortSize:
		SortBy(items, func(a, b *Item) bool {
			sa, _ := a.SizeHint()
			sb, _ := b.SizeHint()
			return sa < sb
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return FolderFirstByName(items[i], items[j])
		})
	}
}

// SortBy orders containers first, then by less, breaking ties by name.
// Backends use it to implement extra sort methods.
func SortBy(items []*Item, less func(a, b *Item) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.Name < b.Name
	})
}

// FolderFirstByName is the comparison used by name ordering. Backends with
// their own sort keys use it to break ties.
func FolderFirstByName(a, b *Item) bool {
	if a.IsFolder() != b.IsFolder() {
		return a.IsFolder()
	}
	return a.Name < b.Name
}

// normalizeMethod folds letter case so "Size" and "size" behave the same.
func normalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
