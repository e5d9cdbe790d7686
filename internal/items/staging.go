package items

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const defaultExtension = "jpg"

var contentTypes = map[string]string{
	"png":  "image/png",
	"webp": "image/webp",
	"heic": "image/heic",
}

// extensionFor infers the blob extension from the source URI or file name suffix.
func extensionFor(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || len(ext) > 5 {
		return defaultExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExtension
		}
	}
	return ext
}

// contentTypeFor never fails; unknown extensions upload as JPEG.
func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "image/jpeg"
}

func blobPath(ownerID, blobID uuid.UUID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", ownerID, blobID, ext)
}

// stage uploads every new candidate in order and returns the stored paths,
// index aligned with news. The first failure aborts the batch; blobs already
// written stay where they are.
func (s *service) stage(ctx context.Context, tr *tracker, ownerID uuid.UUID, news []acquired) ([]string, *SaveError) {
	tr.startUploads(len(news))
	paths := make([]string, 0, len(news))
	for i, candidate := range news {
		ext := extensionFor(candidate.suffixSource())
		blob := blobPath(ownerID, s.newID(), ext)

		started := s.now()
		err := s.blobs.Upload(ctx, blob, candidate.content, contentTypeFor(ext))
		s.metrics.ObserveUpload(s.now().Sub(started))
		if err != nil {
			return nil, tr.fail(KindUpload, fmt.Errorf("image %d of %d: %w", i+1, len(news), err))
		}
		paths = append(paths, blob)
		tr.uploadedOne()
	}
	return paths, nil
}

func newContents(all []acquired) []acquired {
	out := make([]acquired, 0, len(all))
	for _, candidate := range all {
		if !candidate.remote {
			out = append(out, candidate)
		}
	}
	return out
}
