package upload

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile adapts a bytes.Reader to multipart.File.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func TestAllowed(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"field.jpg", true},
		{"field.JPG", true},
		{"field.jpeg", true},
		{"field.png", true},
		{"field.gif", true},
		{"field.bmp", true},
		{"field.webp", true},
		{"field.tiff", false},
		{"field.exe", false},
		{"field", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.filename))
		})
	}
}

func TestAllowedList(t *testing.T) {
	list := AllowedList()
	assert.Equal(t, []string{"bmp", "gif", "jpeg", "jpg", "png", "webp"}, list)
}

func TestSave(t *testing.T) {
	content := []byte("fake-image-bytes")
	file := memFile{bytes.NewReader(content)}

	path, err := Save(file, "field.png")
	require.NoError(t, err)
	t.Cleanup(func() { Cleanup(path) })

	assert.True(t, strings.HasSuffix(path, ".png"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSave_MissingFilename(t *testing.T) {
	_, err := Save(memFile{bytes.NewReader(nil)}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file provided")
}

func TestSave_DisallowedType(t *testing.T) {
	_, err := Save(memFile{bytes.NewReader(nil)}, "payload.exe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file type not allowed")
	assert.Contains(t, err.Error(), "jpg")
}

func TestCleanup(t *testing.T) {
	file := memFile{bytes.NewReader([]byte("x"))}
	path, err := Save(file, "field.jpg")
	require.NoError(t, err)

	Cleanup(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice must not panic or log an error for a missing file.
	Cleanup(path)
	Cleanup("")
}
