package items

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestAcquireClassifiesCandidates(t *testing.T) {
	blobs := &fakeBlobs{}
	remote := remoteBase + "o/a.jpg?Signature=s&Expires=1"
	got, serr := acquire(context.Background(), []Candidate{
		{Source: remote, Content: pngBytes},
		{Source: remote},
		{Source: "part-1"},
	}, blobs, PartReader{"part-1": jpegBytes}, 0)
	if serr != nil {
		t.Fatalf("acquire: %v", serr)
	}
	if got[0].remote || string(got[0].content) != string(pngBytes) {
		t.Fatalf("inline content must win over a remote source")
	}
	if !got[1].remote || got[1].content != nil {
		t.Fatalf("remote source must be classified as existing")
	}
	if got[2].remote || string(got[2].content) != string(jpegBytes) {
		t.Fatalf("part reference must be read")
	}
	if n := len(newContents(got)); n != 2 {
		t.Fatalf("expected 2 new candidates, got %d", n)
	}
}

func TestCheckImage(t *testing.T) {
	cases := []struct {
		name    string
		content []byte
		max     int64
		wantErr string
	}{
		{name: "png", content: pngBytes},
		{name: "jpeg", content: jpegBytes},
		{name: "empty", content: nil, wantErr: "empty"},
		{name: "too large", content: pngBytes, max: 4, wantErr: "exceeds 4 bytes"},
		{name: "text", content: []byte("plain text body"), wantErr: "not an image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkImage(tc.content, tc.max)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFileReader(t *testing.T) {
	root := t.TempDir()
	name := filepath.Join(root, "shirt.png")
	if err := os.WriteFile(name, pngBytes, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "other.png")
	if err := os.WriteFile(outside, pngBytes, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reader := FileReader{Root: root, MaxBytes: 1 << 20}
	for _, ref := range []string{name, "file://" + name} {
		if !reader.Recognizes(ref) {
			t.Fatalf("expected %q recognized", ref)
		}
		data, err := reader.ReadContent(context.Background(), ref)
		if err != nil || string(data) != string(pngBytes) {
			t.Fatalf("read %q: %v", ref, err)
		}
	}

	if reader.Recognizes("shirt.png") {
		t.Fatalf("relative names are not local references")
	}
	if _, err := reader.ReadContent(context.Background(), outside); err == nil || !strings.Contains(err.Error(), "outside") {
		t.Fatalf("expected outside-root rejection, got %v", err)
	}
	small := FileReader{MaxBytes: 4}
	if _, err := small.ReadContent(context.Background(), name); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size rejection, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reader.ReadContent(ctx, name); err == nil {
		t.Fatalf("expected cancelled context to fail")
	}
}

func TestExtensionAndContentType(t *testing.T) {
	cases := []struct {
		source string
		ext    string
		ct     string
	}{
		{source: "front.PNG", ext: "png", ct: "image/png"},
		{source: "file:///photos/look.webp", ext: "webp", ct: "image/webp"},
		{source: "/photos/IMG_0001.HEIC", ext: "heic", ct: "image/heic"},
		{source: "photo1", ext: "jpg", ct: "image/jpeg"},
		{source: "snap.jpeg?size=large", ext: "jpeg", ct: "image/jpeg"},
		{source: "weird.p-g", ext: "jpg", ct: "image/jpeg"},
		{source: "", ext: "jpg", ct: "image/jpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			ext := extensionFor(tc.source)
			if ext != tc.ext {
				t.Fatalf("extensionFor(%q) = %q want %q", tc.source, ext, tc.ext)
			}
			if ct := contentTypeFor(ext); ct != tc.ct {
				t.Fatalf("contentTypeFor(%q) = %q want %q", ext, ct, tc.ct)
			}
		})
	}
}

func TestBlobPath(t *testing.T) {
	owner, blob := uuid.New(), uuid.New()
	if got, want := blobPath(owner, blob, "png"), owner.String()+"/"+blob.String()+".png"; got != want {
		t.Fatalf("blobPath = %q want %q", got, want)
	}
}
