package capture

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("fake image"), 0o600))
	return p
}

func TestMIMETypeFor(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.PNG":  "image/png",
		"a.webp": "image/webp",
		"a.jpg":  "image/jpeg",
		"a.jpeg": "image/jpeg",
		"a.heic": "image/jpeg",
		"noext":  "image/jpeg",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, MIMETypeFor(name))
		})
	}
}

func TestNewImageRef(t *testing.T) {
	p := writeImage(t, "front.png")

	ref, err := NewImageRef(p)
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, p, ref.Path)
	assert.Equal(t, "front.png", ref.Name)
	assert.Equal(t, "image/png", ref.MIMEType)
}

func TestNewImageRef_Missing(t *testing.T) {
	_, err := NewImageRef(filepath.Join(t.TempDir(), "nope.jpg"))
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestNewImageRef_Directory(t *testing.T) {
	_, err := NewImageRef(t.TempDir())
	require.ErrorIs(t, err, ErrNotAnImage)
}

func TestNewImageRef_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file modes")
	}
	p := writeImage(t, "locked.jpg")
	require.NoError(t, os.Chmod(p, 0o000))

	_, err := NewImageRef(p)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestImageRef_FileNameFallback(t *testing.T) {
	ref := ImageRef{ID: "abc", Path: "/tmp/blob", MIMEType: "image/webp"}
	assert.Equal(t, "image_abc.webp", ref.FileName())

	ref = ImageRef{Path: "/tmp/blob"}
	name := ref.FileName()
	assert.True(t, strings.HasPrefix(name, "image_"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Equal(t, "image/jpeg", ref.ContentType())
}

func TestBatch_Limit(t *testing.T) {
	b := NewBatch(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(ImageRef{ID: string(rune('a' + i))}))
	}
	assert.True(t, b.Full())

	require.ErrorIs(t, b.Add(ImageRef{ID: "f"}), ErrBatchFull)
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, "e", b.Items()[4].ID)
}

func TestBatch_Remove(t *testing.T) {
	b := NewBatch(5)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, b.Add(ImageRef{ID: id}))
	}

	ref, err := b.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, "b", ref.ID)
	assert.Equal(t, []string{"a", "c"}, ids(b.Items()))

	_, err = b.Remove(2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.Remove(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 2, b.Len())
}

func TestBatch_RemoveIDs(t *testing.T) {
	b := NewBatch(5)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Add(ImageRef{ID: id}))
	}

	assert.Equal(t, 2, b.RemoveIDs([]string{"b", "d", "zz"}))
	assert.Equal(t, []string{"a", "c"}, ids(b.Items()))
}

func TestBatch_ItemsIsACopy(t *testing.T) {
	b := NewBatch(2)
	require.NoError(t, b.Add(ImageRef{ID: "a"}))
	items := b.Items()
	items[0].ID = "mutated"
	assert.Equal(t, "a", b.Items()[0].ID)

	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func ids(refs []ImageRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}
