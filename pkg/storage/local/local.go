package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage"
)

var (
	// ErrInvalidSignature is returned by Verify for tampered or unsigned requests.
	ErrInvalidSignature = errors.New("local storage: invalid signature")
	// ErrExpired is returned by Verify once the signed URL is past its expiry.
	ErrExpired = errors.New("local storage: signed url expired")
)

// Query parameters of a signed URL.
const (
	QueryExpires   = "expires"
	QuerySignature = "sig"
)

// Store keeps blobs on the local filesystem and hands out HMAC signed URLs that
// the API serves under /blobs.
type Store struct {
	root    string
	baseURL string
	key     []byte
	now     func() time.Time
}

func New(ctx context.Context, cfg config.LocalStorageConfig, logg *logger.Logger) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("local storage root is required")
	}
	if cfg.SigningKey == "" {
		return nil, errors.New("local storage signing key is required")
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage root %q: %w", cfg.Root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root %q: %w", root, err)
	}

	store := &Store{
		root:    root,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     []byte(cfg.SigningKey),
		now:     time.Now,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "root", root), "local blob store initialized")
	}
	return store, nil
}

func (s *Store) Name() string { return "local" }

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("local storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local storage root %q is not a directory", s.root)
	}
	return nil
}

// Upload writes the object with O_EXCL so an existing file is never replaced.
func (s *Store) Upload(ctx context.Context, path string, content []byte, _ string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("local upload %s: %w", path, storage.ErrObjectExists)
		}
		return fmt.Errorf("create %q: %w", path, err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}

func (s *Store) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	object, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("signed url ttl must be positive")
	}

	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	query := url.Values{}
	query.Set(QueryExpires, expires)
	query.Set(QuerySignature, s.sign(object, expires))
	return s.baseURL + "/" + object + "?" + query.Encode(), nil
}

// Verify checks a signature produced by SignedURL for the object path.
func (s *Store) Verify(path, expires, signature string) error {
	object, err := storage.CleanPath(path)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	want := s.sign(object, expires)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (s *Store) IsRemoteURL(uri string) bool {
	if s.baseURL == "" {
		return false
	}
	trimmed := strings.TrimSpace(uri)
	if !strings.HasPrefix(trimmed, s.baseURL+"/") {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	q := parsed.Query()
	return q.Get(QuerySignature) != "" && q.Get(QueryExpires) != ""
}

// Open returns the stored file for serving.
func (s *Store) Open(path string) (*os.File, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *Store) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	return nil
}

func (s *Store) resolve(path string) (string, error) {
	object, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(object))
	if !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return full, nil
}

func (s *Store) sign(object, expires string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(object))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}
