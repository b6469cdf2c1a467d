package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNormalize_JPEGToSquarePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(64, 32, color.RGBA{R: 10, G: 200, B: 30, A: 255}), nil))

	out, err := Normalize(buf.Bytes(), 16)
	require.NoError(t, err)

	img, format, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	require.ErrorIs(t, err, ErrUndecodable)

	_, _, err = Decode(nil)
	require.ErrorIs(t, err, ErrUndecodable)
}

func TestCenterSquare(t *testing.T) {
	assert.Equal(t, image.Rect(16, 0, 48, 32), centerSquare(image.Rect(0, 0, 64, 32)))
	assert.Equal(t, image.Rect(0, 5, 10, 15), centerSquare(image.Rect(0, 0, 10, 20)))
	assert.Equal(t, image.Rect(0, 0, 8, 8), centerSquare(image.Rect(0, 0, 8, 8)))
}
