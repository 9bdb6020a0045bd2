package minio

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ObjectInfo describes one stored artifact.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PutRequest uploads one in-memory object.
type PutRequest struct {
	Bucket      string
	Object      string
	Data        []byte
	ContentType string
	// Metadata is stored as x-amz-meta-* user metadata.
	Metadata map[string]string
}

// EnsureBucket creates bucket if it does not exist.
func (c *MinIOClient) EnsureBucket(ctx context.Context, bucket string) error {
	if c.isClosed() {
		return ErrMinIOClientClosed
	}
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check bucket "+bucket)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to create bucket "+bucket)
	}
	c.logger.Info("Bucket created", logging.String("bucket", bucket))
	return nil
}

// PutObjectBytes uploads req.Data, replacing any existing object.
func (c *MinIOClient) PutObjectBytes(ctx context.Context, req PutRequest) (*ObjectInfo, error) {
	if c.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	if req.Bucket == "" || req.Object == "" {
		return nil, errors.New(errors.ErrCodeValidation, "bucket and object are required")
	}
	if int64(len(req.Data)) > c.config.MaxObjectBytes {
		return nil, errors.Newf(errors.ErrCodeValidation, "object %s/%s is %d bytes, limit %d",
			req.Bucket, req.Object, len(req.Data), c.config.MaxObjectBytes)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	info, err := c.client.PutObject(ctx, req.Bucket, req.Object, bytes.NewReader(req.Data), int64(len(req.Data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: req.Metadata})
	if err != nil {
		return nil, c.mapError(err, req.Bucket, req.Object)
	}

	c.logger.Info("Object uploaded",
		logging.String("bucket", req.Bucket),
		logging.String("object", req.Object),
		logging.Int("bytes", len(req.Data)),
		logging.Duration("duration", time.Since(start)))
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentType,
		LastModified: info.LastModified,
		Metadata:     req.Metadata,
	}, nil
}

// ListObjects lists every object under prefix, sorted by key.
func (c *MinIOClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if c.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	if bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "bucket is required")
	}

	var out []ObjectInfo
	for obj := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, WithMetadata: true}) {
		if obj.Err != nil {
			return nil, c.mapError(obj.Err, bucket, prefix)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
			Metadata:     obj.UserMetadata,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
