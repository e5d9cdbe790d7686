package gcs

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// maxSignedTTL is the V2 signing limit.
const maxSignedTTL = 7 * 24 * time.Hour

type signer struct {
	email string
	key   *rsa.PrivateKey
}

func newSigner(email string, pemKey []byte) (*signer, error) {
	if email == "" || len(pemKey) == 0 {
		return nil, errors.New("invalid service account credentials")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &signer{email: email, key: key}, nil
}

// readURL signs "GET\n\n\n<expires>\n/<bucket>/<object>" with RSA-SHA256.
func (s *signer) readURL(bucket, object string, ttl time.Duration, now time.Time) (string, error) {
	if bucket == "" || object == "" {
		return "", errors.New("bucket and object are required")
	}
	if ttl <= 0 || ttl > maxSignedTTL {
		return "", fmt.Errorf("signed url ttl must be within (0, %s]", maxSignedTTL)
	}
	expires := strconv.FormatInt(now.Add(ttl).Unix(), 10)
	resource := "/" + bucket + "/" + escapeObject(object)

	sig, err := jwt.SigningMethodRS256.Sign("GET\n\n\n"+expires+"\n"+resource, s.key)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	query := url.Values{
		"GoogleAccessId": {s.email},
		"Expires":        {expires},
		"Signature":      {base64.StdEncoding.EncodeToString(sig)},
	}
	return "https://" + storageHost + resource + "?" + query.Encode(), nil
}

func escapeObject(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
