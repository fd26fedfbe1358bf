package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, checker(4, 2))
	assert.Equal(t, "image/png", Sniff(data))

	img, err := Decode(data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(1, 0))
}

func TestDecodeIgnoresWrongMimeType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, checker(2, 2)))
	assert.Equal(t, "image/bmp", Sniff(buf.Bytes()))

	img, err := Decode(buf.Bytes(), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"), "")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Equal(t, "", Sniff([]byte("definitely not an image")))

	_, err = Decode(nil, "image/png")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestToRGBAOffsetsToOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 8))
	src.SetRGBA(5, 5, color.RGBA{G: 255, A: 255})
	out := ToRGBA(src.SubImage(image.Rect(5, 5, 7, 8)))
	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(0, 0))

	origin := image.NewRGBA(image.Rect(0, 0, 1, 1))
	assert.Same(t, origin, ToRGBA(origin))
}

func TestFit(t *testing.T) {
	img := ToRGBA(checker(64, 16))
	assert.Same(t, img, Fit(img, 0))
	assert.Same(t, img, Fit(img, 64))

	small := Fit(img, 32)
	assert.Equal(t, image.Rect(0, 0, 32, 8), small.Bounds())

	tall := Fit(ToRGBA(checker(10, 40)), 20)
	assert.Equal(t, image.Rect(0, 0, 5, 20), tall.Bounds())
}
