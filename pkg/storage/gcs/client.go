// Package gcs stores item images in a Google Cloud Storage bucket through the
// JSON API and signs V2 read URLs with the service account key.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage"
)

const (
	scope       = "https://www.googleapis.com/auth/devstorage.read_write"
	storageHost = "storage.googleapis.com"
	apiBase     = "https://" + storageHost + "/storage/v1"
	uploadBase  = "https://" + storageHost + "/upload/storage/v1"

	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
)

var errNotReady = errors.New("gcs client not initialized")

type Client struct {
	http   *http.Client
	bucket string
	signer *signer
}

// NewClient authenticates with the configured service account JSON, or with
// application default credentials when none is set. Only service account
// credentials can sign URLs.
func NewClient(ctx context.Context, cfg config.StorageConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	raw, err := credentialsJSON(gcp)
	if err != nil {
		return nil, err
	}

	// Token refreshes outlive the startup context.
	tokenCtx := context.WithoutCancel(ctx)
	var (
		source oauth2.TokenSource
		s      *signer
	)
	if len(raw) > 0 {
		jwtCfg, err := google.JWTConfigFromJSON(raw, scope)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		if s, err = newSigner(jwtCfg.Email, jwtCfg.PrivateKey); err != nil {
			return nil, err
		}
		source = jwtCfg.TokenSource(tokenCtx)
	} else {
		creds, err := google.FindDefaultCredentials(tokenCtx, scope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		source = creds.TokenSource
	}

	c := &Client{
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, source)},
		},
		bucket: cfg.Bucket,
		signer: s,
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"bucket": cfg.Bucket, "signing": s != nil}), "gcs client initialized")
	}
	return c, nil
}

func credentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	if gcp.CredentialsJSON != "" {
		return []byte(gcp.CredentialsJSON), nil
	}
	if gcp.ApplicationCredentials == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(gcp.ApplicationCredentials)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return raw, nil
}

func (c *Client) Name() string { return "gcs" }

// Ping lists at most one object, which needs storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errNotReady
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, c.bucketURL(apiBase, "o", url.Values{"maxResults": {"1"}}), nil, "")
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check", resp)
	}
	return nil
}

// Upload creates the object only if nothing exists at the path yet.
func (c *Client) Upload(ctx context.Context, path string, content []byte, contentType string) error {
	object, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	query := url.Values{
		"uploadType":        {"media"},
		"name":              {object},
		"ifGenerationMatch": {"0"},
	}
	resp, err := c.send(ctx, http.MethodPost, c.bucketURL(uploadBase, "o", query), bytes.NewReader(content), contentType)
	if err != nil {
		return fmt.Errorf("gcs upload %s: %w", object, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusPreconditionFailed:
		return fmt.Errorf("gcs upload %s: %w", object, storage.ErrObjectExists)
	}
	return statusError("gcs upload "+object, resp)
}

// Delete removes the object from the bucket. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	object, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodDelete, c.bucketURL(apiBase, "o/"+url.PathEscape(object), nil), nil, "")
	if err != nil {
		return fmt.Errorf("gcs delete %s: %w", object, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return statusError("gcs delete "+object, resp)
}

// SignedURL returns a V2 signed GET URL for path.
func (c *Client) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	object, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	if c == nil || c.signer == nil {
		return "", errors.New("gcs signing requires service account credentials")
	}
	return c.signer.readURL(c.bucket, object, ttl, time.Now())
}

// IsRemoteURL reports whether uri is a signed read URL for this bucket.
func (c *Client) IsRemoteURL(uri string) bool {
	if c == nil || c.bucket == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || u.Scheme != "https" || !strings.EqualFold(u.Host, storageHost) {
		return false
	}
	object, ok := strings.CutPrefix(u.Path, "/"+c.bucket+"/")
	if !ok || object == "" {
		return false
	}
	q := u.Query()
	return q.Get("Signature") != "" && q.Get("Expires") != ""
}

func (c *Client) bucketURL(base, suffix string, query url.Values) string {
	u := base + "/b/" + url.PathEscape(c.bucket) + "/" + suffix
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) send(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, errNotReady
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("%s failed: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("%s failed: %s", op, resp.Status)
}
