package browsable_test

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/browsable/memory"
	"github.com/stretchr/testify/require"
)

func itemNames(items []*browsable.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

type recordingObserver struct {
	materialized []string
	reused       []string
	partial      bool
}

func (o *recordingObserver) LevelMaterialized(path string, count int, partial bool) {
	o.materialized = append(o.materialized, path)
	o.partial = partial
}

func (o *recordingObserver) LevelReused(path string) {
	o.reused = append(o.reused, path)
}

func TestProcess_DefaultSortAndPage(t *testing.T) {
	root := memory.Dir("",
		memory.File("b.txt", "b"),
		memory.Dir("A"),
		memory.File("a.txt", "a"),
	)
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: "/", Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "a.txt", "b.txt"}, itemNames(reply.Items))

	reply, err = p.Process(browsable.Request{Path: "/", First: 1, Number: 1, Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, itemNames(reply.Items))
	require.Equal(t, 3, reply.Total)
	require.Equal(t, 1, reply.First)
	require.Equal(t, "/", reply.Path)
}

func TestProcess_DefaultMethodIsStablePartition(t *testing.T) {
	root := memory.Dir("",
		memory.File("b.txt", "b"),
		memory.Dir("A"),
		memory.File("a.txt", "a"),
	)
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: ""})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "b.txt", "a.txt"}, itemNames(reply.Items))
}

func TestProcess_Pagination(t *testing.T) {
	const n = 7
	root := memory.Dir("")
	for i := 0; i < n; i++ {
		root.Add(memory.File(fmt.Sprintf("f%d", i), ""))
	}
	p := browsable.NewProcessor(browsable.NewSession(root))

	for first := 0; first <= n+2; first++ {
		for number := 0; number <= n+2; number++ {
			reply, err := p.Process(browsable.Request{Path: "/", First: first, Number: number, Sort: "unsorted"})
			require.NoError(t, err)
			require.Equal(t, n, reply.Total)
			require.Equal(t, first, reply.First)

			want := n - first
			if want < 0 {
				want = 0
			}
			if number > 0 && number < want {
				want = number
			}
			require.Len(t, reply.Items, want, "first=%d number=%d", first, number)
			if want > 0 {
				require.Equal(t, fmt.Sprintf("f%d", first), reply.Items[0].Name)
			}
		}
	}
}

func TestProcess_HugePageSize(t *testing.T) {
	root := memory.Dir("",
		memory.File("a", ""),
		memory.File("b", ""),
		memory.File("c", ""),
	)
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: "/", First: 1, Number: math.MaxInt, Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, 3, reply.Total)
	require.Equal(t, []string{"b", "c"}, itemNames(reply.Items))

	reply, err = p.Process(browsable.Request{Path: "/", First: math.MaxInt, Number: math.MaxInt})
	require.NoError(t, err)
	require.Equal(t, math.MaxInt, reply.First)
	require.Empty(t, reply.Items)
}

func TestProcess_CachedListingIsNotReEnumerated(t *testing.T) {
	root := sampleTree()
	observer := &recordingObserver{}
	p := browsable.NewProcessor(browsable.NewSession(root), browsable.WithObserver(observer))

	_, err := p.Process(browsable.Request{Path: "/a/b"})
	require.NoError(t, err)
	nexts := root.Lookup("/a/b").Nexts()
	require.Positive(t, nexts)

	_, err = p.Process(browsable.Request{Path: "/a/b"})
	require.NoError(t, err)
	require.Equal(t, nexts, root.Lookup("/a/b").Nexts())

	require.Equal(t, []string{"/a/b"}, observer.materialized)
	require.Equal(t, []string{"/a/b"}, observer.reused)
}

func TestProcess_RootListingSurvivesNavigation(t *testing.T) {
	root := sampleTree()
	p := browsable.NewProcessor(browsable.NewSession(root))

	_, err := p.Process(browsable.Request{Path: "/"})
	require.NoError(t, err)
	resets := root.Resets()

	_, err = p.Process(browsable.Request{Path: "/"})
	require.NoError(t, err)
	require.Equal(t, resets, root.Resets())
}

func TestProcess_ResortWithoutEnumeration(t *testing.T) {
	root := memory.Dir("",
		memory.SizedFile("big", 300),
		memory.SizedFile("small", 1),
		memory.Dir("dir"),
	)
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: "/", Sort: "unsorted"})
	require.NoError(t, err)
	require.Equal(t, []string{"big", "small", "dir"}, itemNames(reply.Items))
	nexts := root.Nexts()

	reply, err = p.Process(browsable.Request{Path: "/", Sort: "size"})
	require.NoError(t, err)
	require.Equal(t, []string{"dir", "small", "big"}, itemNames(reply.Items))

	reply, err = p.Process(browsable.Request{Path: "/", Sort: "unsorted"})
	require.NoError(t, err)
	require.Equal(t, []string{"big", "small", "dir"}, itemNames(reply.Items))

	require.Equal(t, nexts, root.Nexts())
}

func TestProcess_TruncatesAtMaxChildren(t *testing.T) {
	root := memory.Dir("")
	// reversed names so any sort would visibly reorder them
	for i := browsable.MaxChildren + 5; i > 0; i-- {
		root.Add(memory.File(fmt.Sprintf("f%05d", i), ""))
	}
	root.Add(memory.Dir("folder-at-end"))

	observer := &recordingObserver{}
	p := browsable.NewProcessor(browsable.NewSession(root), browsable.WithObserver(observer))

	reply, err := p.Process(browsable.Request{Path: "/", Number: 2, Sort: "name"})
	require.NoError(t, err)
	require.True(t, reply.Partial)
	require.True(t, observer.partial)
	require.Equal(t, browsable.MaxChildren, reply.Total)
	require.Equal(t, []string{fmt.Sprintf("f%05d", browsable.MaxChildren+5), fmt.Sprintf("f%05d", browsable.MaxChildren+4)}, itemNames(reply.Items))

	reply, err = p.Process(browsable.Request{Path: "/", First: browsable.MaxChildren - 1, Number: 10, Sort: "size"})
	require.NoError(t, err)
	require.Len(t, reply.Items, 1)
	require.Equal(t, "f00006", reply.Items[0].Name)
}

func TestProcess_ExactlyMaxChildrenIsComplete(t *testing.T) {
	root := memory.Dir("")
	for i := 0; i < browsable.MaxChildren; i++ {
		root.Add(memory.File(fmt.Sprintf("f%05d", i), ""))
	}
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: "/", Number: 1})
	require.NoError(t, err)
	require.False(t, reply.Partial)
	require.Equal(t, browsable.MaxChildren, reply.Total)
}

func TestProcess_Errors(t *testing.T) {
	p := browsable.NewProcessor(browsable.NewSession(sampleTree()))

	_, err := p.Process(browsable.Request{Path: "/a/missing"})
	require.Error(t, err)
	require.True(t, browsable.IsNotFound(err))
	require.Equal(t, 0, p.Session().Depth())

	_, err = p.Process(browsable.Request{Path: "/top.txt"})
	code, ok := browsable.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, browsable.ErrNotContainer, code)

	_, err = p.Process(browsable.Request{Path: "/", First: -1})
	code, ok = browsable.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, browsable.ErrInvalidArgument, code)
}

func TestProcess_UnreadableLevelListsNothing(t *testing.T) {
	root := sampleTree()
	root.Lookup("/a/b").FailOpen = true
	p := browsable.NewProcessor(browsable.NewSession(root))

	reply, err := p.Process(browsable.Request{Path: "/a/b"})
	require.NoError(t, err)
	require.Equal(t, 0, reply.Total)
	require.Empty(t, reply.Items)
}

func TestProcess_RendererDecoratesItems(t *testing.T) {
	p := browsable.NewProcessor(browsable.NewSession(sampleTree()), browsable.WithRenderer(func(item *browsable.Item) {
		if item.IsFolder() {
			item.Icon = "folder"
		} else {
			item.Icon = "document"
		}
	}))

	reply, err := p.Process(browsable.Request{Path: "/"})
	require.NoError(t, err)
	require.Equal(t, "folder", reply.Items[0].Icon)
	require.Equal(t, "document", reply.Items[1].Icon)
}

// sortingDir lists fixed names and sorts them in reverse for method "rev".
// Every iterator it hands out is recorded.
type sortingDir struct {
	names     []string
	iterators []*sortingIterator
}

func (d *sortingDir) ContentKind() string { return "dir" }

func (d *sortingDir) ChildrenIterator() browsable.LevelIterator {
	it := &sortingIterator{dir: d, pos: -1}
	d.iterators = append(d.iterators, it)
	return it
}

type sortingIterator struct {
	dir    *sortingDir
	pos    int
	resets int
	nexts  int
	sorted int
}

func (it *sortingIterator) Reset() bool {
	it.resets++
	it.pos = -1
	return true
}

func (it *sortingIterator) Next() bool {
	it.nexts++
	it.pos++
	return it.pos < len(it.dir.names)
}

func (it *sortingIterator) HasItem() bool {
	return it.pos >= 0 && it.pos < len(it.dir.names)
}

func (it *sortingIterator) Name() string {
	if !it.HasItem() {
		return ""
	}
	return it.dir.names[it.pos]
}

func (it *sortingIterator) CanHaveChildren() browsable.ChildKind {
	return browsable.ChildrenNo
}

func (it *sortingIterator) CreateItem() *browsable.Item {
	return browsable.NewItem(it.Name(), browsable.ChildrenNo)
}

func (it *sortingIterator) Element() browsable.Element {
	return nil
}

func (it *sortingIterator) Sort(items []*browsable.Item, method string) {
	it.sorted++
	if method != "rev" {
		browsable.SortItems(items, method)
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Name > items[j].Name
	})
}

func TestProcess_ResortUsesUnloadedIterator(t *testing.T) {
	dir := &sortingDir{names: []string{"b", "a", "c"}}
	p := browsable.NewProcessor(browsable.NewSession(dir))

	reply, err := p.Process(browsable.Request{Path: "/", Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, itemNames(reply.Items))
	require.Len(t, dir.iterators, 1)

	reply, err = p.Process(browsable.Request{Path: "/", Sort: "rev"})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, itemNames(reply.Items))

	require.Len(t, dir.iterators, 2)
	require.Positive(t, dir.iterators[0].nexts)
	require.Zero(t, dir.iterators[1].resets)
	require.Zero(t, dir.iterators[1].nexts)
	require.Equal(t, 1, dir.iterators[1].sorted)
}
