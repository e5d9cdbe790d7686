package items

import (
	"testing"

	"github.com/google/uuid"
)

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"file:///tmp/shirt.PNG":                     "png",
		"https://cdn.test/a/b/boots.webp?size=full": "webp",
		"/photos/coat.heic":                         "heic",
		"/photos/no-extension":                      "jpg",
		"/photos/odd.tar-gz":                        "jpg",
		"/photos/long.extension":                    "jpg",
		"":                                          "jpg",
	}
	for source, want := range cases {
		t.Run(source, func(t *testing.T) {
			if got := extensionFor(source); got != want {
				t.Fatalf("extensionFor(%q) = %q want %q", source, got, want)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"png":  "image/png",
		"WEBP": "image/webp",
		"heic": "image/heic",
		"jpg":  "image/jpeg",
		"gif":  "image/jpeg",
	}
	for ext, want := range cases {
		if got := contentTypeFor(ext); got != want {
			t.Fatalf("contentTypeFor(%q) = %q want %q", ext, got, want)
		}
	}
}

func TestBlobPathIsOwnerScoped(t *testing.T) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	blob := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	want := "11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222.png"
	if got := blobPath(owner, blob, "png"); got != want {
		t.Fatalf("blobPath = %q want %q", got, want)
	}
}

func TestNewContentsSkipsRemote(t *testing.T) {
	all := []acquired{
		{source: "a.jpg", content: jpegBytes},
		{source: remoteBase + "o/b.jpg", remote: true},
		{source: "c.png", content: pngBytes},
	}
	news := newContents(all)
	if len(news) != 2 || news[0].source != "a.jpg" || news[1].source != "c.png" {
		t.Fatalf("unexpected new contents %+v", news)
	}
}
