package zipfile

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	browsabletest "github.com/marmos91/dittobrowse/pkg/browsable/testing"
	"github.com/stretchr/testify/require"
)

type member struct {
	name string
	body string
}

func buildArchive(t *testing.T, members ...member) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		hdr := &zip.FileHeader{Name: m.name, Method: zip.Deflate, Modified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
		fw, err := w.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = fw.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func locator(name string, data []byte) browsable.Locator {
	return browsable.Locator{
		Name: name,
		Path: "/" + name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func sampleArchive(t *testing.T) []byte {
	return buildArchive(t,
		member{"readme.txt", "hello"},
		member{"src/", ""},
		member{"src/main.go", "package main"},
		member{"lib/deep/util.c", "int x;"},
		member{"logo.png", "PNG"},
	)
}

func TestArchiveIterator(t *testing.T) {
	data := sampleArchive(t)
	reg := browsable.NewRegistry()
	Register(reg)

	suite := &browsabletest.IteratorTestSuite{
		NewElement: func(t *testing.T) browsable.Element {
			return reg.Open(KindZip, locator("sample.zip", data))
		},
		Expected:   []string{"readme.txt", "src", "lib", "logo.png"},
		Containers: []string{"src", "lib"},
	}
	suite.Run(t)
}

func TestImplicitDirectories(t *testing.T) {
	reg := browsable.NewRegistry()
	root := Open(reg, locator("sample.zip", sampleArchive(t)))
	require.NotNil(t, root)

	session := browsable.NewSession(root)
	elem := session.GetElement("/lib/deep/util.c")
	require.NotNil(t, elem)
	require.Equal(t, "c", elem.ContentKind())

	text, err := elem.(browsable.ContentProvider).Content("text")
	require.NoError(t, err)
	require.Equal(t, "int x;", text)
}

func TestMemberContent(t *testing.T) {
	reg := browsable.NewRegistry()
	session := browsable.NewSession(Open(reg, locator("sample.zip", sampleArchive(t))))

	img, err := session.GetElement("/logo.png").(browsable.ContentProvider).Content("image64")
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,UE5H", img)

	_, err = session.GetElement("/readme.txt").(browsable.ContentProvider).Content("image64")
	code, ok := browsable.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, browsable.ErrUnsupported, code)
}

func TestMemberDetail(t *testing.T) {
	reg := browsable.NewRegistry()
	p := browsable.NewProcessor(browsable.NewSession(Open(reg, locator("sample.zip", sampleArchive(t)))))

	reply, err := p.Process(browsable.Request{Path: "/", Sort: "size"})
	require.NoError(t, err)

	names := make([]string, len(reply.Items))
	for i, item := range reply.Items {
		names[i] = item.Name
	}
	require.Equal(t, []string{"lib", "src", "logo.png", "readme.txt"}, names)

	m, ok := reply.Items[3].Detail.(Member)
	require.True(t, ok)
	require.Equal(t, int64(5), m.Size)
	require.Equal(t, 2024, m.ModTime().Year())
}

func TestNestedArchive(t *testing.T) {
	inner := buildArchive(t, member{"inner.txt", "nested"})
	outer := buildArchive(t, member{"data/inner.zip", string(inner)}, member{"top.txt", "top"})

	reg := browsable.NewRegistry()
	Register(reg)

	session := browsable.NewSession(reg.Open(KindZip, locator("outer.zip", outer)))
	require.True(t, session.Navigate([]string{"data", "inner.zip"}))

	elem := session.GetElement("/data/inner.zip/inner.txt")
	require.NotNil(t, elem)
	text, err := elem.(browsable.ContentProvider).Content("text")
	require.NoError(t, err)
	require.Equal(t, "nested", text)
}

func TestOpenFailures(t *testing.T) {
	reg := browsable.NewRegistry()

	require.Nil(t, Open(reg, browsable.Locator{Path: "/none"}))
	require.Nil(t, Open(reg, locator("bad.zip", []byte("not a zip archive"))))
	require.Nil(t, Open(reg, browsable.Locator{
		Path: "/err.zip",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("boom") },
	}))
	require.Nil(t, Open(reg, browsable.Locator{Path: "/huge.zip", Size: MaxArchiveSize + 1, Open: func() (io.ReadCloser, error) {
		t.Fatal("huge archive must not be opened")
		return nil, nil
	}}))
}

func TestRegisterAndClose(t *testing.T) {
	reg := browsable.NewRegistry()
	p := Register(reg)

	require.True(t, reg.HasKind(KindZip))
	require.True(t, reg.HasKind(KindJar))

	p.Close()
	require.False(t, reg.HasKind(KindZip))
	require.False(t, reg.HasKind(KindJar))
}
