package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/browsable/memory"
	"github.com/marmos91/dittobrowse/pkg/browser"
	badgerProvider "github.com/marmos91/dittobrowse/pkg/provider/badger"
	s3Provider "github.com/marmos91/dittobrowse/pkg/provider/s3"
	"github.com/marmos91/dittobrowse/pkg/provider/sysfile"
	"github.com/marmos91/dittobrowse/pkg/provider/zipfile"
	"github.com/marmos91/dittobrowse/pkg/render"
	"github.com/mitchellh/mapstructure"
)

// Root is a browsing root built from configuration, together with the
// resources it holds open.
type Root struct {
	// Element is the top element handed to every session
	Element browsable.Element

	// Store is set when the root is a badger record store
	Store *badgerProvider.Store

	closers []func() error
}

// Close releases the root's resources in reverse acquisition order.
func (r *Root) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// CreateRegistry creates the provider registry with the resource kinds every
// root supports (archives).
func CreateRegistry() *browsable.Registry {
	reg := browsable.NewRegistry()
	zipfile.Register(reg)
	logger.Debug("Registered resource kinds: %v", reg.Kinds())
	return reg
}

// CreateRoot creates the browsing root based on configuration.
//
// Supported types:
//   - "filesystem": a local directory (pkg/provider/sysfile over go-billy osfs)
//   - "memory": the built-in demo tree
//   - "badger": a BadgerDB record store (pkg/provider/badger)
//   - "s3": an S3 bucket or prefix (pkg/provider/s3)
//
// Returns:
//   - *Root: the root element; Close() must be called when done
//   - error: configuration or initialization error
func CreateRoot(ctx context.Context, cfg *RootConfig, reg *browsable.Registry) (*Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "filesystem":
		return createFilesystemRoot(cfg.Filesystem, reg)
	case "memory":
		return &Root{Element: memory.Demo()}, nil
	case "badger":
		return createBadgerRoot(ctx, cfg.Badger, reg)
	case "s3":
		return createS3Root(ctx, cfg.S3, reg)
	default:
		return nil, fmt.Errorf("unknown root type: %q (supported: filesystem, memory, badger, s3)", cfg.Type)
	}
}

// createFilesystemRoot creates a root over a local directory.
func createFilesystemRoot(options map[string]any, reg *browsable.Registry) (*Root, error) {
	type FilesystemRootConfig struct {
		Path string `mapstructure:"path"`
	}

	var rootCfg FilesystemRootConfig
	if err := mapstructure.Decode(options, &rootCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem root config: %w", err)
	}

	if rootCfg.Path == "" {
		return nil, fmt.Errorf("filesystem root: path is required")
	}

	info, err := os.Stat(rootCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("filesystem root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filesystem root: %s is not a directory", rootCfg.Path)
	}

	logger.Info("Browsing local directory %s", rootCfg.Path)
	return &Root{Element: sysfile.NewRoot(osfs.New(rootCfg.Path), "/", reg)}, nil
}

// createBadgerRoot opens a BadgerDB record store and registers its
// capability factories.
func createBadgerRoot(ctx context.Context, options map[string]any, reg *browsable.Registry) (*Root, error) {
	var storeCfg badgerProvider.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &storeCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger root config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger root: db_path is required")
	}

	store, err := badgerProvider.Open(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger root: %w", err)
	}

	provider := badgerProvider.Register(reg)

	return &Root{
		Element: store.Root(reg),
		Store:   store,
		closers: []func() error{
			store.Close,
			func() error { provider.Close(); return nil },
		},
	}, nil
}

// S3Options are the decoded options of an S3 root.
type S3Options struct {
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxObjectSize   int64         `mapstructure:"max_object_size"`
}

func decodeS3Options(options map[string]any) (*S3Options, error) {
	var opts S3Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode S3 root config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 root: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 root: region is required")
	}

	return &opts, nil
}

// createS3Root creates a root over an S3 bucket.
func createS3Root(ctx context.Context, options map[string]any, reg *browsable.Registry) (*Root, error) {
	opts, err := decodeS3Options(options)
	if err != nil {
		return nil, err
	}

	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	bucket, err := s3Provider.New(client, s3Provider.Config{
		Bucket:        opts.Bucket,
		Prefix:        opts.Prefix,
		Timeout:       opts.Timeout,
		MaxObjectSize: opts.MaxObjectSize,
	}, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 root: %w", err)
	}

	logger.Info("Browsing S3 bucket: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.Prefix)

	return &Root{Element: bucket.Root()}, nil
}

// NewS3Client builds an S3 client from decoded options.
//
// Static credentials are used when both keys are set, otherwise the default
// AWS credential chain applies. A custom endpoint (MinIO, Localstack)
// switches to path-style addressing.
func NewS3Client(ctx context.Context, opts *S3Options) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// CreateRenderer creates the presentation hook from the browse settings.
func CreateRenderer(cfg *BrowseConfig, reg *browsable.Registry) *render.Renderer {
	return render.New(reg,
		render.WithRelativeTime(cfg.RelativeTime),
		render.WithTimeFormat(cfg.TimeFormat),
	)
}

// BrowserConfig converts the browse settings into the service configuration.
func BrowserConfig(cfg *BrowseConfig) browser.Config {
	return browser.Config{
		SessionTTL:   cfg.SessionTTL,
		ReapInterval: cfg.ReapInterval,
		MaxSessions:  cfg.MaxSessions,
	}
}
