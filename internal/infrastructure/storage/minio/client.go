package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// DefaultMaxObjectBytes caps a single artifact download.
const DefaultMaxObjectBytes = 64 << 20

var (
	ErrMinIOClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")
	ErrObjectNotFound    = errors.New(errors.ErrCodeNotFound, "object not found")
)

// MinIOAPI is the subset of *minio.Client used here.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	// Buckets are checked by HealthCheck.
	Buckets        []string
	MaxObjectBytes int64
	ConnectTimeout time.Duration
}

// ConfigFromStorage maps the storage section onto a MinIOConfig. bucket is
// the artifact bucket named in the classifier section.
func ConfigFromStorage(cfg config.MinIOConfig, bucket string) *MinIOConfig {
	c := &MinIOConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
	}
	if bucket != "" {
		c.Buckets = []string{bucket}
	}
	return c
}

// MinIOClient reads and publishes classifier artifacts in object storage.
type MinIOClient struct {
	client MinIOAPI
	config *MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMinIOClient connects and verifies that the configured buckets exist.
func NewMinIOClient(cfg *MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	applyDefaults(cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	c := newClient(client, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func newClient(api MinIOAPI, cfg *MinIOConfig, log logging.Logger) *MinIOClient {
	applyDefaults(cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MinIOClient{client: api, config: cfg, logger: log}
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = config.DefaultMinIORegion
	}
	if cfg.MaxObjectBytes <= 0 {
		cfg.MaxObjectBytes = DefaultMaxObjectBytes
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// GetObjectBytes downloads a whole object. Missing buckets or objects yield
// ErrCodeNotFound; objects larger than MaxObjectBytes are rejected before the
// download starts.
func (c *MinIOClient) GetObjectBytes(ctx context.Context, bucket, object string) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	if bucket == "" || object == "" {
		return nil, errors.New(errors.ErrCodeValidation, "bucket and object are required")
	}

	start := time.Now()
	info, err := c.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return nil, c.mapError(err, bucket, object)
	}
	if info.Size > c.config.MaxObjectBytes {
		return nil, errors.Newf(errors.ErrCodeValidation, "object %s/%s is %d bytes, limit %d",
			bucket, object, info.Size, c.config.MaxObjectBytes)
	}

	obj, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(err, bucket, object)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, c.config.MaxObjectBytes+1))
	if err != nil {
		return nil, c.mapError(err, bucket, object)
	}
	if int64(len(data)) > c.config.MaxObjectBytes {
		return nil, errors.Newf(errors.ErrCodeValidation, "object %s/%s exceeds limit %d",
			bucket, object, c.config.MaxObjectBytes)
	}

	c.logger.Debug("Object downloaded",
		logging.String("bucket", bucket),
		logging.String("object", object),
		logging.Int("bytes", len(data)),
		logging.Duration("duration", time.Since(start)))
	return data, nil
}

func (c *MinIOClient) mapError(err error, bucket, object string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound.WithDetail(bucket + "/" + object).WithCause(err)
	case "AccessDenied":
		return errors.Wrap(err, errors.ErrCodeForbidden, "access denied to "+bucket+"/"+object)
	}
	return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "object storage request failed for "+bucket+"/"+object)
}

// HealthCheck lists buckets and checks that every configured bucket exists.
func (c *MinIOClient) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrMinIOClientClosed
	}
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	for _, b := range c.config.Buckets {
		exists, err := c.client.BucketExists(ctx, b)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check bucket "+b)
		}
		if !exists {
			return errors.New(errors.ErrCodeNotFound, "bucket not found").WithDetail(b)
		}
	}
	return nil
}

func (c *MinIOClient) GetClient() MinIOAPI {
	return c.client
}

func (c *MinIOClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close marks the client closed. minio-go holds no connections that need
// releasing beyond the shared transport.
func (c *MinIOClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
