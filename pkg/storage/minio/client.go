package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage"
)

const pingTimeout = 5 * time.Second

// Client stores blobs in an S3 compatible bucket through minio-go.
type Client struct {
	api    *minio.Client
	bucket string
}

// NewClient connects to the endpoint and creates the bucket when it is missing.
func NewClient(ctx context.Context, cfg config.StorageConfig, mc config.MinioConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket name is required")
	}
	if mc.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	api, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
		Region: mc.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize minio client: %w", err)
	}

	client := &Client{api: api, bucket: cfg.Bucket}
	if err := client.ensureBucket(ctx, mc.Region); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"bucket": cfg.Bucket, "endpoint": mc.Endpoint}), "minio client initialized")
	}
	return client, nil
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) Name() string { return "minio" }

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio bucket %q not found", c.bucket)
	}
	return nil
}

// Upload stats the key first so an existing object is never overwritten.
func (c *Client) Upload(ctx context.Context, path string, content []byte, contentType string) error {
	object, err := storage.CleanPath(path)
	if err != nil {
		return err
	}

	_, err = c.api.StatObject(ctx, c.bucket, object, minio.StatObjectOptions{})
	switch {
	case err == nil:
		return fmt.Errorf("minio upload %s: %w", object, storage.ErrObjectExists)
	case !isNoSuchKey(err):
		return fmt.Errorf("minio stat %s: %w", object, err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = c.api.PutObject(ctx, c.bucket, object, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio upload %s: %w", object, err)
	}
	return nil
}

func (c *Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	object, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("signed url ttl must be positive")
	}
	u, err := c.api.PresignedGetObject(ctx, c.bucket, object, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}

// IsRemoteURL recognizes presigned GET URLs issued for this endpoint and bucket.
func (c *Client) IsRemoteURL(uri string) bool {
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || parsed.Host == "" {
		return false
	}
	endpoint := c.api.EndpointURL()
	if !strings.EqualFold(parsed.Host, endpoint.Host) || parsed.Scheme != endpoint.Scheme {
		return false
	}
	prefix := "/" + c.bucket + "/"
	if !strings.HasPrefix(parsed.Path, prefix) || len(parsed.Path) == len(prefix) {
		return false
	}
	return parsed.Query().Get("X-Amz-Signature") != ""
}

// Delete removes the object. S3 treats deleting a missing key as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	object, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	if err := c.api.RemoveObject(ctx, c.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("minio delete %s: %w", object, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
