package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

func TestPromptConfirmer(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "long yes", input: "  YES \n", want: true},
		{name: "no", input: "n\n"},
		{name: "empty line", input: "\n"},
		{name: "eof without newline", input: "y", want: true},
		{name: "nothing", input: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			id := uuid.New()
			ok, err := promptConfirmer{in: strings.NewReader(tc.input), out: &out}.Confirm(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, out.String(), id.String())
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}

func TestSaveInputMakesAbsoluteReferences(t *testing.T) {
	reader := items.FileReader{Root: t.TempDir()}
	input, err := saveInput([]string{"shirt.jpg", "/tmp/back.png"}, metadataFlags{category: "Top", color: "blue"}, reader)
	require.NoError(t, err)

	require.Len(t, input.Images, 2)
	for _, c := range input.Images {
		assert.True(t, filepath.IsAbs(c.Source), c.Source)
		assert.True(t, reader.Recognizes(c.Source))
	}
	assert.Equal(t, "/tmp/back.png", input.Images[1].Source)
	assert.Equal(t, "Top", input.Category)
	assert.Equal(t, "blue", input.Color)
	assert.Empty(t, input.Brand)
	assert.Equal(t, reader, input.Reader)
}

func TestPrintSections(t *testing.T) {
	var out bytes.Buffer
	printSections(&out, nil)
	assert.Equal(t, "wardrobe is empty\n", out.String())

	out.Reset()
	brand := "Acme"
	id := uuid.New()
	printSections(&out, []items.Section{{
		Title: "Shoes",
		Items: []items.ItemSummary{{ID: id, Category: enums.ItemCategoryShoes, Brand: &brand}},
	}})
	assert.Equal(t, "Shoes (1)\n  "+id.String()+"  Acme\n", out.String())
}

func TestRootCommandRequiresEmail(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"list"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestDeleteRejectsBadItemID(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"delete", "not-a-uuid", "--email", "sam@example.com"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid item id")
}

func TestKeptPhotosUsesSignedURLs(t *testing.T) {
	signed := "https://blobs.test/o/a.jpg?Signature=x"
	detail := &items.ItemDetail{Photos: []items.PhotoView{
		{ImagePath: "o/a.jpg", SortOrder: 0, URL: &signed},
		{ImagePath: "o/b.jpg", SortOrder: 1},
	}}

	kept := keptPhotos(detail)
	require.Len(t, kept, 1)
	assert.Equal(t, signed, kept[0].Source)
	assert.Nil(t, kept[0].Content)
	assert.Empty(t, keptPhotos(nil))
}
