package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zip"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	browsabletest "github.com/marmos91/dittobrowse/pkg/browsable/testing"
	"github.com/marmos91/dittobrowse/pkg/provider/zipfile"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory bucket honoring Prefix, Delimiter and
// continuation tokens. Pages hold at most pageSize entries.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	lists    int
	fail     bool
}

func newFakeClient(objects map[string]string) *fakeClient {
	c := &fakeClient{objects: make(map[string][]byte), pageSize: 2}
	for k, v := range objects {
		c.objects[k] = []byte(v)
	}
	return c
}

func (c *fakeClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lists++
	if c.fail {
		return nil, errors.New("access denied")
	}

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	keys := make([]string, 0, len(c.objects))
	for k := range c.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// entries are object keys or common prefixes, in key order
	var entries []string
	seen := make(map[string]bool)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, cp)
				}
				continue
			}
		}
		entries = append(entries, k)
	}

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := start + c.pageSize
	if end > len(entries) {
		end = len(entries)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(entries))}
	if end < len(entries) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	modified := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range entries[start:end] {
		if seen[e] {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e)})
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(e),
			Size:         aws.Int64(int64(len(c.objects[e]))),
			LastModified: aws.Time(modified),
			ETag:         aws.String(`"etag"`),
		})
	}
	return out, nil
}

func (c *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func sampleClient() *fakeClient {
	return newFakeClient(map[string]string{
		"data/readme.txt":          "hello",
		"data/logs/":               "",
		"data/logs/run1.log":       "line",
		"data/images/a.png":        "PNG",
		"data/images/b.png":        "PNG",
		"data/blob.bin":            "0123456789",
		"other/ignored.txt":        "x",
		"data/images/nested/c.png": "PNG",
	})
}

func newBucket(t *testing.T, client Client, reg *browsable.Registry) *Bucket {
	t.Helper()
	b, err := New(client, Config{Bucket: "test", Prefix: "/data/"}, reg)
	require.NoError(t, err)
	return b
}

func TestBucketIterator(t *testing.T) {
	b := newBucket(t, sampleClient(), browsable.NewRegistry())

	suite := &browsabletest.IteratorTestSuite{
		NewElement: func(t *testing.T) browsable.Element {
			return b.Root()
		},
		Expected:   []string{"readme.txt", "logs", "images", "blob.bin"},
		Containers: []string{"logs", "images"},
	}
	suite.Run(t)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"}, nil)
	require.Error(t, err)

	_, err = New(sampleClient(), Config{}, nil)
	require.Error(t, err)

	b, err := New(sampleClient(), Config{Bucket: "b"}, nil)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, b.timeout)
	require.Equal(t, "", b.prefix)
}

func TestNestedPrefixes(t *testing.T) {
	b := newBucket(t, sampleClient(), nil)
	p := browsable.NewProcessor(browsable.NewSession(b.Root()))

	reply, err := p.Process(browsable.Request{Path: "/images", Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, 3, reply.Total)
	require.Equal(t, "nested", reply.Items[0].Name)
	require.True(t, reply.Items[0].IsFolder())

	info, ok := reply.Items[1].Detail.(ObjectInfo)
	require.True(t, ok)
	require.Equal(t, "data/images/a.png", info.Key)
	require.Equal(t, int64(3), info.Size)
	require.Equal(t, "etag", info.ETag)
	require.Equal(t, 2024, info.ModTime().Year())

	reply, err = p.Process(browsable.Request{Path: "/images/nested"})
	require.NoError(t, err)
	require.Equal(t, 1, reply.Total)
}

func TestFolderMarkerIsNotListed(t *testing.T) {
	b := newBucket(t, sampleClient(), nil)
	p := browsable.NewProcessor(browsable.NewSession(b.Root()))

	reply, err := p.Process(browsable.Request{Path: "/logs"})
	require.NoError(t, err)
	require.Equal(t, 1, reply.Total)
	require.Equal(t, "run1.log", reply.Items[0].Name)
}

func TestObjectContent(t *testing.T) {
	b := newBucket(t, sampleClient(), nil)
	session := browsable.NewSession(b.Root())

	text, err := session.GetElement("/readme.txt").(browsable.ContentProvider).Content("text")
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	img, err := session.GetElement("/images/a.png").(browsable.ContentProvider).Content("image64")
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,UE5H", img)

	_, err = session.GetElement("/blob.bin").(browsable.ContentProvider).Content("text")
	code, _ := browsable.CodeOf(err)
	require.Equal(t, browsable.ErrUnsupported, code)
}

func TestMissingObject(t *testing.T) {
	b := newBucket(t, sampleClient(), nil)

	_, err := b.open("data/none.txt")
	require.True(t, browsable.IsNotFound(err))

	require.Nil(t, browsable.NewSession(b.Root()).GetElement("/none.txt"))
}

func TestListingFailure(t *testing.T) {
	client := sampleClient()
	client.fail = true
	b := newBucket(t, client, nil)

	reply, err := browsable.NewProcessor(browsable.NewSession(b.Root())).Process(browsable.Request{Path: "/"})
	require.NoError(t, err)
	require.Equal(t, 0, reply.Total)
}

func TestListingStopsAfterCap(t *testing.T) {
	objects := make(map[string]string, browsable.MaxChildren+10)
	for i := 0; i < browsable.MaxChildren+10; i++ {
		objects[fmt.Sprintf("k%05d", i)] = ""
	}
	client := newFakeClient(objects)
	client.pageSize = 1000

	b, err := New(client, Config{Bucket: "test"}, nil)
	require.NoError(t, err)

	reply, err := browsable.NewProcessor(browsable.NewSession(b.Root())).Process(browsable.Request{Path: "/", Number: 1})
	require.NoError(t, err)
	require.True(t, reply.Partial)
	require.Equal(t, browsable.MaxChildren, reply.Total)
	require.Equal(t, 11, client.lists)
}

func TestArchiveObject(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("inside.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("zipped"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	client := sampleClient()
	client.objects["data/bundle.zip"] = buf.Bytes()

	reg := browsable.NewRegistry()
	zipfile.Register(reg)
	b := newBucket(t, client, reg)

	reply, err := browsable.NewProcessor(browsable.NewSession(b.Root())).Process(browsable.Request{Path: "/bundle.zip"})
	require.NoError(t, err)
	require.Equal(t, 1, reply.Total)
	require.Equal(t, "inside.txt", reply.Items[0].Name)
}

func TestFindDoesNotPageThroughSiblings(t *testing.T) {
	objects := map[string]string{
		"run/log.txt": "folder",
		"run":         "object",
	}
	for i := 0; i < 500; i++ {
		objects[fmt.Sprintf("run-%03d.txt", i)] = ""
	}
	client := newFakeClient(objects)

	b, err := New(client, Config{Bucket: "test"}, nil)
	require.NoError(t, err)

	it := b.Root().ChildrenIterator()
	require.True(t, it.(browsable.Finder).Find("run"))
	require.Equal(t, browsable.ChildrenYes, it.CanHaveChildren())
	require.Equal(t, 1, client.lists)

	client.lists = 0
	require.True(t, it.(browsable.Finder).Find("run-250.txt"))
	require.Equal(t, browsable.ChildrenNo, it.CanHaveChildren())
	require.Equal(t, 2, client.lists)

	client.lists = 0
	require.False(t, it.(browsable.Finder).Find("run-9"))
	require.Equal(t, 2, client.lists)
}
