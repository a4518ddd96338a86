package badger

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/zip"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	browsabletest "github.com/marmos91/dittobrowse/pkg/browsable/testing"
	"github.com/marmos91/dittobrowse/pkg/provider/zipfile"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/runs/2024/summary.txt", Record{Class: ClassBlob, Body: []byte("all good")}))
	require.NoError(t, s.Put(ctx, "/runs/2023", Record{Class: ClassFolder}))
	require.NoError(t, s.Put(ctx, "/calib", Record{Class: "calibration", Body: []byte("x")}))
	require.NoError(t, s.Put(ctx, "/notes.txt", Record{Class: ClassBlob, Body: []byte("remember")}))
}

func TestRecordIterator(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	reg := browsable.NewRegistry()
	Register(reg)

	suite := &browsabletest.IteratorTestSuite{
		NewElement: func(t *testing.T) browsable.Element {
			return s.Root(reg)
		},
		Expected:   []string{"runs", "calib", "notes.txt"},
		Containers: []string{"runs"},
	}
	suite.Run(t)
}

func TestPutCreatesAncestors(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	rec, err := s.Get(ctx, "/runs/2024")
	require.NoError(t, err)
	require.Equal(t, ClassFolder, rec.Class)

	rec, err = s.Get(ctx, "runs/2024/summary.txt")
	require.NoError(t, err)
	require.Equal(t, int64(8), rec.Size)
	require.Equal(t, []byte("all good"), rec.Body)

	root, err := s.Get(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, ClassFolder, root.Class)
}

func TestPutErrors(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.Put(ctx, "/", Record{Class: ClassFolder})
	code, _ := browsable.CodeOf(err)
	require.Equal(t, browsable.ErrInvalidArgument, code)

	err = s.Put(ctx, "/notes.txt/inner", Record{Class: ClassBlob})
	code, _ = browsable.CodeOf(err)
	require.Equal(t, browsable.ErrNotContainer, code)

	_, err = s.Get(ctx, "/missing")
	require.True(t, browsable.IsNotFound(err))
}

func TestDeleteRemovesDescendants(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/runs2/keep.txt", Record{Class: ClassBlob}))
	require.NoError(t, s.Delete(ctx, "/runs"))

	_, err := s.Get(ctx, "/runs/2024/summary.txt")
	require.True(t, browsable.IsNotFound(err))
	_, err = s.Get(ctx, "/runs")
	require.True(t, browsable.IsNotFound(err))

	_, err = s.Get(ctx, "/runs2/keep.txt")
	require.NoError(t, err)

	require.True(t, browsable.IsNotFound(s.Delete(ctx, "/runs")))
	code, _ := browsable.CodeOf(s.Delete(ctx, "/"))
	require.Equal(t, browsable.ErrInvalidArgument, code)
}

func TestCapabilitySpecialization(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	reg := browsable.NewRegistry()
	Register(reg)
	session := browsable.NewSession(s.Root(reg))

	_, isFolder := session.GetElement("/runs/2024").(*Folder)
	require.True(t, isFolder)

	leaf, ok := session.GetElement("/calib").(*Leaf)
	require.True(t, ok)
	require.Equal(t, "calibration", leaf.Record().Class)

	text, err := session.GetElement("/runs/2024/summary.txt").(browsable.ContentProvider).Content("text")
	require.NoError(t, err)
	require.Equal(t, "all good", text)
}

func TestCustomCapabilityTakesPrecedence(t *testing.T) {
	s := newStore(t)
	seed(t, s)

	reg := browsable.NewRegistry()
	Register(reg)

	custom := &Folder{}
	reg.NewProvider("calibration").RegisterCapability("calibration", func(h *browsable.Holder) browsable.Element {
		return custom
	})

	require.Same(t, custom, browsable.NewSession(s.Root(reg)).GetElement("/calib"))
}

func archiveBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("inside.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("zipped"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBlobOpensThroughKindProvider(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "/data/bundle.zip", Record{Class: ClassBlob, Body: archiveBytes(t)}))
	require.NoError(t, s.Put(ctx, "/data/broken.zip", Record{Class: ClassBlob, Body: []byte("garbage")}))

	reg := browsable.NewRegistry()
	Register(reg)
	zipfile.Register(reg)

	p := browsable.NewProcessor(browsable.NewSession(s.Root(reg)))
	reply, err := p.Process(browsable.Request{Path: "/data"})
	require.NoError(t, err)
	require.Equal(t, browsable.ChildrenMaybe, reply.Items[0].Children)

	reply, err = p.Process(browsable.Request{Path: "/data/bundle.zip"})
	require.NoError(t, err)
	require.Equal(t, "inside.txt", reply.Items[0].Name)

	// the blob factory consumes the holder, so the leaf fallback is not tried
	_, err = p.Process(browsable.Request{Path: "/data/broken.zip"})
	require.True(t, browsable.IsNotFound(err))
}

func TestItemsCarryRecordDetail(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	mtime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, "/a.txt", Record{Class: ClassBlob, Body: []byte("12345"), Modified: mtime}))

	reg := browsable.NewRegistry()
	Register(reg)

	reply, err := browsable.NewProcessor(browsable.NewSession(s.Root(reg))).Process(browsable.Request{Path: "/"})
	require.NoError(t, err)
	require.Len(t, reply.Items, 1)

	rec, ok := reply.Items[0].Detail.(Record)
	require.True(t, ok)
	require.Nil(t, rec.Body)
	require.True(t, mtime.Equal(rec.ModTime()))
	size, ok := reply.Items[0].SizeHint()
	require.True(t, ok)
	require.Equal(t, int64(5), size)
	require.Equal(t, ClassBlob, reply.Items[0].Attrs["class"])
}

func TestImport(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/src/docs", 0755))
	require.NoError(t, util.WriteFile(fs, "/src/docs/a.txt", []byte("alpha"), 0644))
	require.NoError(t, util.WriteFile(fs, "/src/b.txt", []byte("beta"), 0644))

	s := newStore(t)
	count, err := s.Import(context.Background(), fs, "/src", "/imported")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rec, err := s.Get(context.Background(), "/imported/docs/a.txt")
	require.NoError(t, err)
	require.Equal(t, ClassBlob, rec.Class)
	require.Equal(t, []byte("alpha"), rec.Body)

	rec, err = s.Get(context.Background(), "/imported")
	require.NoError(t, err)
	require.Equal(t, ClassFolder, rec.Class)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Open(ctx, Config{InMemory: true})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path, parent, name string
	}{
		{"/a", "/", "a"},
		{"/a/b", "/a", "b"},
		{"/a/b/c.txt", "/a/b", "c.txt"},
	}
	for _, tt := range tests {
		parent, name := splitPath(tt.path)
		require.Equal(t, tt.parent, parent, tt.path)
		require.Equal(t, tt.name, name, tt.path)
		require.Equal(t, tt.path, childPath(parent, name))
	}
}

func TestListingStopsAfterCap(t *testing.T) {
	s := newStore(t)

	wb := s.db.NewWriteBatch()
	for i := 0; i < browsable.MaxChildren+20; i++ {
		name := fmt.Sprintf("r%05d.txt", i)
		data, err := encodeRecord(Record{Class: ClassBlob, Size: 4})
		require.NoError(t, err)
		require.NoError(t, wb.Set(keyRecord("/", name), data))
		require.NoError(t, wb.Set(keyBody(childPath("/", name)), []byte("body")))
	}
	require.NoError(t, wb.Flush())

	entries, err := s.list("/", browsable.MaxChildren+1)
	require.NoError(t, err)
	require.Len(t, entries, browsable.MaxChildren+1)
	for _, e := range entries {
		require.Nil(t, e.record.Body)
	}

	reg := browsable.NewRegistry()
	Register(reg)
	reply, err := browsable.NewProcessor(browsable.NewSession(s.Root(reg))).Process(browsable.Request{Path: "/", Number: 1})
	require.NoError(t, err)
	require.True(t, reply.Partial)
	require.Equal(t, browsable.MaxChildren, reply.Total)
}

func TestBodyIsStoredApart(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "/a.txt", Record{Class: ClassBlob, Body: []byte("first")}))

	rec, err := s.statChild("/", "a.txt")
	require.NoError(t, err)
	require.Nil(t, rec.Body)
	require.Equal(t, int64(5), rec.Size)

	reg := browsable.NewRegistry()
	Register(reg)
	leaf := browsable.NewSession(s.Root(reg)).GetElement("/a.txt")
	require.NotNil(t, leaf)
	text, err := leaf.(browsable.ContentProvider).Content("text")
	require.NoError(t, err)
	require.Equal(t, "first", text)

	// overwriting without a body drops the old one
	require.NoError(t, s.Put(ctx, "/a.txt", Record{Class: ClassBlob}))
	rec, err = s.Get(ctx, "/a.txt")
	require.NoError(t, err)
	require.Nil(t, rec.Body)

	require.NoError(t, s.Put(ctx, "/d/b.txt", Record{Class: ClassBlob, Body: []byte("nested")}))
	require.NoError(t, s.Delete(ctx, "/d"))
	data, err := s.body("/d/b.txt")
	require.NoError(t, err)
	require.Nil(t, data)
}
