package items

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Candidate is one image offered to a save. Index 0 of a save is the cover.
// Content is set for inline images; otherwise Source is resolved through the
// blob store or a ContentReader. Name is the client file name of an uploaded
// part and, when set, decides the stored extension instead of Source.
type Candidate struct {
	Source  string
	Name    string
	Content []byte
}

// ContentReader fetches the bytes behind a local image reference.
type ContentReader interface {
	Recognizes(ref string) bool
	ReadContent(ctx context.Context, ref string) ([]byte, error)
}

// acquired is a classified candidate. Remote candidates carry no content.
type acquired struct {
	source  string
	name    string
	content []byte
	remote  bool
}

func (a acquired) suffixSource() string {
	if a.name != "" {
		return a.name
	}
	return a.source
}

type remoteMatcher interface {
	IsRemoteURL(uri string) bool
}

// acquire classifies every candidate and loads the content of new ones. It
// stops at the first candidate that cannot be resolved.
func acquire(ctx context.Context, candidates []Candidate, blobs remoteMatcher, reader ContentReader, maxBytes int64) ([]acquired, *SaveError) {
	out := make([]acquired, 0, len(candidates))
	for i, candidate := range candidates {
		source := strings.TrimSpace(candidate.Source)
		name := strings.TrimSpace(candidate.Name)
		switch {
		case len(candidate.Content) > 0:
			if err := checkImage(candidate.Content, maxBytes); err != nil {
				return nil, validationError("image %d: %v", i+1, err)
			}
			out = append(out, acquired{source: source, name: name, content: candidate.Content})
		case source == "":
			return nil, validationError("image %d: source or content is required", i+1)
		case blobs.IsRemoteURL(source):
			out = append(out, acquired{source: source, remote: true})
		case reader != nil && reader.Recognizes(source):
			content, err := reader.ReadContent(ctx, source)
			if err != nil {
				return nil, validationError("image %d: could not read %s: %v", i+1, source, err)
			}
			if err := checkImage(content, maxBytes); err != nil {
				return nil, validationError("image %d: %v", i+1, err)
			}
			out = append(out, acquired{source: source, name: name, content: content})
		default:
			return nil, validationError("image %d: unsupported image source", i+1)
		}
	}
	return out, nil
}

func checkImage(content []byte, maxBytes int64) error {
	if len(content) == 0 {
		return fmt.Errorf("content is empty")
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return fmt.Errorf("content exceeds %d bytes", maxBytes)
	}
	detected := mimetype.Detect(content)
	if !strings.HasPrefix(detected.String(), "image/") {
		return fmt.Errorf("content is not an image (%s)", detected.String())
	}
	return nil
}

// FileReader reads file:// URIs and absolute paths from disk. When Root is
// set, references must resolve inside it.
type FileReader struct {
	Root     string
	MaxBytes int64
}

func (r FileReader) Recognizes(ref string) bool {
	return strings.HasPrefix(ref, "file://") || filepath.IsAbs(ref)
}

func (r FileReader) ReadContent(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader = f
	if r.MaxBytes > 0 {
		src = io.LimitReader(f, r.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if r.MaxBytes > 0 && int64(len(data)) > r.MaxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", r.MaxBytes)
	}
	return data, nil
}

func (r FileReader) resolve(ref string) (string, error) {
	name := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid file uri: %w", err)
		}
		name = u.Path
	}
	if !filepath.IsAbs(name) {
		return "", fmt.Errorf("path must be absolute")
	}
	name = filepath.Clean(name)
	if r.Root == "" {
		return name, nil
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside %s", root)
	}
	return name, nil
}

// PartReader serves the parts of a multipart request keyed by part name.
type PartReader map[string][]byte

func (p PartReader) Recognizes(ref string) bool {
	_, ok := p[ref]
	return ok
}

func (p PartReader) ReadContent(_ context.Context, ref string) ([]byte, error) {
	content, ok := p[ref]
	if !ok {
		return nil, fmt.Errorf("upload part %q not found", ref)
	}
	return content, nil
}
