package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffMimeHTTP(t *testing.T) {
	assert.Equal(t, "image/jpeg", SniffMimeHTTP([]byte{0xFF, 0xD8, 0xFF}))
	assert.Equal(t, "image/png", SniffMimeHTTP([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}))
	assert.Equal(t, "application/octet-stream", SniffMimeHTTP([]byte("GIF89a")))
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0x01}
	b64 := base64.StdEncoding.EncodeToString(payload)

	t.Run("plain", func(t *testing.T) {
		b, mime, err := DecodeBase64MaybeDataURL(b64)
		require.NoError(t, err)
		assert.Equal(t, payload, b)
		assert.Empty(t, mime)
	})

	t.Run("data url", func(t *testing.T) {
		b, mime, err := DecodeBase64MaybeDataURL(MakeDataURL("image/png", payload))
		require.NoError(t, err)
		assert.Equal(t, payload, b)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := DecodeBase64MaybeDataURL("%%%")
		assert.Error(t, err)
	})
}

func TestPickMIME(t *testing.T) {
	assert.Equal(t, "image/webp", PickMIME("image/webp", "image/png", nil))
	assert.Equal(t, "image/png", PickMIME("", "image/png", nil))
	assert.Equal(t, "image/jpeg", PickMIME("", "", nil))
	assert.Equal(t, "image/jpeg", PickMIME("", "", []byte{0xFF, 0xD8, 0xFF, 0xE0}))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences(`{"a":1}`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdef", 3))
	assert.Equal(t, "종…", Truncate("종이", 3))
	assert.Len(t, SHA256Hex([]byte("x")), 64)
}
