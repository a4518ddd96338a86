// Package s3 implements a browsable backend over an S3 bucket.
//
// Object keys are interpreted as slash-delimited paths: a listing with the
// "/" delimiter yields common prefixes (containers) and objects (leaves).
// Objects whose extension has a kind provider are streamed through
// GetObject and opened by that provider.
package s3

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/render"
)

// Client is the subset of *s3.Client used by the backend.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config configures a bucket root.
type Config struct {
	// Bucket is the S3 bucket name
	Bucket string

	// Prefix is an optional key prefix acting as the browsing root
	// Example: "experiments/" lists keys like "experiments/run1/data.zip"
	Prefix string

	// Timeout bounds every S3 call (default: 30s)
	Timeout time.Duration

	// MaxObjectSize bounds the objects read for content (default: 16MB)
	MaxObjectSize int64
}

// Bucket browses one bucket.
//
// Thread Safety:
// Bucket is safe for concurrent use; iterators are not.
type Bucket struct {
	client  Client
	bucket  string
	prefix  string
	timeout time.Duration
	maxSize int64
	reg     *browsable.Registry
}

// New creates a bucket backend.
func New(client Client, cfg Config, reg *browsable.Registry) (*Bucket, error) {
	if client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxSize := cfg.MaxObjectSize
	if maxSize <= 0 {
		maxSize = 16 << 20
	}

	return &Bucket{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  normalizePrefix(cfg.Prefix),
		timeout: timeout,
		maxSize: maxSize,
		reg:     reg,
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Root returns the container for the configured prefix.
func (b *Bucket) Root() browsable.Element {
	return &Folder{bucket: b, prefix: b.prefix}
}

// ObjectInfo is the item detail of objects and prefixes.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	Prefix       bool
}

// SizeHint implements browsable.SizeHinter.
func (o ObjectInfo) SizeHint() (int64, bool) {
	return o.Size, !o.Prefix
}

func (o ObjectInfo) ModTime() time.Time {
	return o.LastModified
}

func objectInfo(obj types.Object) ObjectInfo {
	info := ObjectInfo{Key: aws.ToString(obj.Key), ETag: strings.Trim(aws.ToString(obj.ETag), `"`)}
	if obj.Size != nil {
		info.Size = *obj.Size
	}
	if obj.LastModified != nil {
		info.LastModified = *obj.LastModified
	}
	return info
}

// Folder is a key prefix.
type Folder struct {
	bucket *Bucket
	prefix string
}

func (f *Folder) ContentKind() string {
	return "dir"
}

func (f *Folder) ChildrenIterator() browsable.LevelIterator {
	return &iterator{folder: f, pos: -1}
}

// Object is a leaf object.
type Object struct {
	bucket *Bucket
	info   ObjectInfo
}

func (o *Object) ContentKind() string {
	return render.Extension(o.info.Key)
}

func (o *Object) ChildrenIterator() browsable.LevelIterator {
	return nil
}

// Info returns the object's listing detail.
func (o *Object) Info() ObjectInfo {
	return o.info
}

// Content downloads text or image objects.
func (o *Object) Content(kind string) (string, error) {
	name := path.Base(o.info.Key)
	class := render.Classify(name)

	if (kind != "text" || class != render.ClassText) && (kind != "image64" || class != render.ClassImage) {
		return "", &browsable.BrowseError{
			Code:    browsable.ErrUnsupported,
			Message: fmt.Sprintf("content kind %q not available", kind),
			Path:    o.info.Key,
		}
	}
	if o.info.Size > o.bucket.maxSize {
		return "", &browsable.BrowseError{Code: browsable.ErrLimitExceeded, Message: "object too large", Path: o.info.Key}
	}

	rc, err := o.bucket.open(o.info.Key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, o.bucket.maxSize))
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", o.info.Key, err)
	}

	if kind == "text" {
		return string(data), nil
	}
	return "data:" + render.ImageMIME(name) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// open streams an object. The call timeout covers the whole read and is
// released when the reader is closed.
func (b *Bucket) open(key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, &browsable.BrowseError{Code: browsable.ErrNotFound, Message: "object not found", Path: key}
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &cancelReadCloser{ReadCloser: result.Body, cancel: cancel}, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

type child struct {
	name string
	info ObjectInfo
}

// iterator lists one prefix. The listing is read at Reset, page by page,
// and stops once more children than browsable.MaxChildren were seen.
type iterator struct {
	folder   *Folder
	children []child
	pos      int
	loaded   bool
	current  *child
}

func (it *iterator) Reset() bool {
	it.pos = -1
	it.current = nil

	children, err := it.folder.bucket.list(it.folder.prefix, browsable.MaxChildren+1)
	if err != nil {
		logger.Error("Failed to list s3://%s/%s: %v", it.folder.bucket.bucket, it.folder.prefix, err)
		it.children = nil
		it.loaded = false
		return false
	}

	it.children = children
	it.loaded = true
	return true
}

func (it *iterator) Next() bool {
	if !it.loaded && !it.Reset() {
		return false
	}

	it.pos++
	if it.pos >= len(it.children) {
		it.pos = len(it.children)
		it.current = nil
		return false
	}
	it.current = &it.children[it.pos]
	return true
}

// Find looks the name up with at most two single-key listings, so its cost
// does not depend on how many keys share the name as a leading string.
func (it *iterator) Find(name string) bool {
	it.current = nil
	if name == "" || strings.Contains(name, "/") {
		return false
	}

	c, err := it.folder.bucket.lookup(it.folder.prefix, name)
	if err != nil {
		logger.Error("Failed to look up %s in s3://%s/%s: %v", name, it.folder.bucket.bucket, it.folder.prefix, err)
		return false
	}
	if c == nil {
		return false
	}

	it.children = nil
	it.loaded = true
	it.pos = 0
	it.current = c
	return true
}

func (it *iterator) HasItem() bool {
	return it.current != nil
}

func (it *iterator) Name() string {
	if it.current == nil {
		return ""
	}
	return it.current.name
}

func (it *iterator) CanHaveChildren() browsable.ChildKind {
	switch {
	case it.current == nil:
		return browsable.ChildrenNo
	case it.current.info.Prefix:
		return browsable.ChildrenYes
	case it.folder.bucket.reg != nil && it.folder.bucket.reg.HasKind(render.Extension(it.current.name)):
		return browsable.ChildrenYes
	default:
		return browsable.ChildrenNo
	}
}

func (it *iterator) CreateItem() *browsable.Item {
	if it.current == nil {
		return nil
	}
	item := browsable.NewItem(it.current.name, it.CanHaveChildren())
	item.Detail = it.current.info
	return item
}

func (it *iterator) Element() browsable.Element {
	c := it.current
	if c == nil {
		return nil
	}

	b := it.folder.bucket
	if c.info.Prefix {
		return &Folder{bucket: b, prefix: c.info.Key}
	}

	kind := render.Extension(c.name)
	if b.reg != nil && b.reg.HasKind(kind) {
		key := c.info.Key
		loc := browsable.Locator{
			Name: c.name,
			Path: "s3://" + b.bucket + "/" + key,
			Size: c.info.Size,
			Open: func() (io.ReadCloser, error) {
				return b.open(key)
			},
		}
		if elem := b.reg.Open(kind, loc); elem != nil {
			return elem
		}
	}

	return &Object{bucket: b, info: c.info}
}

// lookup resolves one direct child of prefix. A folder wins over an object
// of the same name, as in listings. Returns nil when neither exists.
func (b *Bucket) lookup(prefix, name string) (*child, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	folderKey := prefix + name + "/"
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(folderKey),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	if len(out.Contents) > 0 || len(out.CommonPrefixes) > 0 {
		return &child{name: name, info: ObjectInfo{Key: folderKey, Prefix: true}}, nil
	}

	// the exact key is the smallest one carrying it as a prefix
	key := prefix + name
	out, err = b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	if len(out.Contents) == 0 || aws.ToString(out.Contents[0].Key) != key {
		return nil, nil
	}
	return &child{name: name, info: objectInfo(out.Contents[0])}, nil
}

// list returns the direct children of prefix, common prefixes first within
// each page. limit 0 means no limit.
func (b *Bucket) list(prefix string, limit int) ([]child, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var children []child
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, cp := range page.CommonPrefixes {
			key := aws.ToString(cp.Prefix)
			name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), "/")
			if name == "" {
				continue
			}
			children = append(children, child{name: name, info: ObjectInfo{Key: key, Prefix: true}})
		}

		for _, obj := range page.Contents {
			info := objectInfo(obj)
			name := strings.TrimPrefix(info.Key, prefix)
			// folder marker objects ("dir/") stand for the prefix itself
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			children = append(children, child{name: name, info: info})
		}

		if limit > 0 && len(children) >= limit {
			children = children[:limit]
			break
		}
	}

	return children, nil
}
