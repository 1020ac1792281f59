package mimetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

func TestDetectBytesMagic(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		ext  string
		want string
	}{
		{"pdf", []byte("%PDF-1.7\n"), ".pdf", "application/pdf"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, ".png", "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, ".jpg", "image/jpeg"},
		{"tiff little endian", []byte{0x49, 0x49, 0x2A, 0x00, 0x08}, ".tiff", "image/tiff"},
		{"tiff big endian", []byte{0x4D, 0x4D, 0x00, 0x2A, 0x08}, ".tif", "image/tiff"},
		{"bmp", []byte("BM66\x00\x00"), ".bmp", "image/bmp"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x56), ".webp", "image/webp"},
		{"docx by extension", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"xlsx by extension", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, ".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"zip without office extension", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, ".zip", "application/zip"},
		{"legacy doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, ".doc", "application/msword"},
		{"legacy xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, ".xls", "application/vnd.ms-excel"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectBytes(tc.data, tc.ext))
		})
	}
}

func TestDetectBytesText(t *testing.T) {
	assert.Equal(t, "application/json", DetectBytes([]byte(`{"a": 1}`), ".json"))
	assert.Equal(t, "application/json", DetectBytes([]byte(`  [1, 2, 3]`), ".txt"))
	assert.Equal(t, "text/xml", DetectBytes([]byte(`<?xml version="1.0"?><a/>`), ".xml"))
	assert.Equal(t, "text/plain", DetectBytes([]byte("hello world\n"), ".txt"))
	assert.Equal(t, "", DetectBytes([]byte{0x00, 0xFF, 0xFE, 0x01}, ".bin"))
}

func TestDetectFileMarkdownOverride(t *testing.T) {
	// Markdown wins on extension even when the content would sniff as JSON.
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte(`{"looks": "like json"}`), 0o644))

	mime, err := DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", mime)
}

func TestDetectFileMissing(t *testing.T) {
	_, err := DetectFile(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsLoadError(err))
}

func TestLookup(t *testing.T) {
	entry, err := Lookup("a.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, KindPDF, entry.Kind)
	assert.Equal(t, "pdf", entry.ConfigKey)

	entry, err = Lookup("a.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, KindImage, entry.Kind)
	assert.Equal(t, "image", entry.ConfigKey)

	entry, err = Lookup("a.xls", "application/vnd.ms-excel")
	require.NoError(t, err)
	assert.Equal(t, KindStructured, entry.Kind)

	_, err = Lookup("a.zip", "application/zip")
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsUnsupportedType(err))
}

func TestRegistryConfigKeysMatchKinds(t *testing.T) {
	for mime, entry := range Registry {
		assert.Equal(t, string(entry.Kind), entry.ConfigKey, "mime %s", mime)
	}
}
