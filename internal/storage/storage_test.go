package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: uint8(x % 256), G: 40, B: 90, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestSelectCrop(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		wantMode string
		wantW    int
		wantH    int
	}{
		{"Square", 500, 500, "square", 500, 500},
		{"Wide", 2000, 1000, "landscape", 1910, 1000},
		{"Tall", 800, 1000, "portrait", 800, 1000},
		{"Very Tall", 800, 2000, "portrait", 800, 1000},
		{"Degenerate", 0, 10, "free", 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SelectCrop(tt.w, tt.h)
			assert.Equal(t, tt.wantMode, c.Mode)
			assert.Equal(t, tt.wantW, c.W)
			assert.Equal(t, tt.wantH, c.H)
		})
	}

	c := SelectCrop(800, 2000)
	assert.Equal(t, 500, c.Y, "crop is centered")
}

func TestPrepareMaster(t *testing.T) {
	m, err := PrepareMaster(pngBytes(t, 3000, 3000), "image/png")
	require.NoError(t, err)
	assert.Equal(t, MasterMaxSize, m.Width)
	assert.Equal(t, MasterMaxSize, m.Height)
	assert.Equal(t, "image/png", m.MimeType)
	assert.NotEmpty(t, m.JPEG)
	assert.NotEmpty(t, m.WebP)

	_, err = PrepareMaster([]byte("plain text, not an image"), "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = PrepareMaster(pngBytes(t, 10, 10), "image/jpeg")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = PrepareMaster(pngBytes(t, 10, 10), "application/octet-stream")
	assert.NoError(t, err, "non-image declared types defer to sniffing")
}

func TestRenditions(t *testing.T) {
	m, err := PrepareMaster(pngBytes(t, 700, 700), "")
	require.NoError(t, err)

	out, err := Renditions(m.JPEG)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 256, out[0].SizePx)
	assert.Equal(t, 256, out[0].Width)
	assert.Equal(t, 640, out[1].SizePx)
	assert.NotEmpty(t, out[1].WebP)

	_, err = Renditions([]byte("nope"))
	assert.Error(t, err)
}

func TestContentHash(t *testing.T) {
	a := ContentHash(1, []byte("x"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash(1, []byte("x")))
	assert.NotEqual(t, a, ContentHash(2, []byte("x")))
	assert.True(t, IsValidHash(a))
}

func TestBucket(t *testing.T) {
	dir := t.TempDir()
	b := NewBucket(dir)
	hash := ContentHash(1, []byte("data"))

	rel, err := b.Write(hash, "master.jpg", []byte("jpg"))
	require.NoError(t, err)
	assert.Equal(t, hash+"/master.jpg", rel)
	assert.True(t, b.Exists(hash, "master.jpg"))

	data, err := os.ReadFile(filepath.Join(dir, hash, "master.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpg"), data)

	_, err = b.Write("../etc", "master.jpg", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = b.Path(hash, "../../passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = b.Path(hash, "640.webp")
	assert.NoError(t, err)

	require.NoError(t, b.RemoveAll(hash))
	assert.False(t, b.Exists(hash, "master.jpg"))
}

func TestIsValidHash(t *testing.T) {
	assert.False(t, IsValidHash(""))
	assert.False(t, IsValidHash("ABC"))
	assert.False(t, IsValidHash("../x"))
	assert.True(t, IsValidHash("deadbeef"))
}
