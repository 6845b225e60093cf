package model

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered image format (JPEG, PNG, GIF, BMP, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	return img, format, nil
}

// Preprocess converts an image to the format expected by the model. The
// shorter side is resized to size and the centre size×size square is kept,
// giving an RGB tensor in CHW order with values scaled to [0,1]. It matches
// Blob for images that only Go can decode.
func Preprocess(img image.Image, size int) ([]float32, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid model input size %d", size)
	}

	src := img.Bounds()
	if src.Empty() {
		return nil, errors.New("image is empty")
	}

	var resized image.Image
	if src.Dx() < src.Dy() {
		resized = resize.Resize(uint(size), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(size), img, resize.Lanczos3)
	}

	bounds := resized.Bounds()
	x0 := bounds.Min.X + (bounds.Dx()-size)/2
	y0 := bounds.Min.Y + (bounds.Dy()-size)/2
	plane := size * size

	inputData := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(x0+x, y0+y).RGBA()

			pixelIndex := y*size + x
			inputData[pixelIndex] = float32(r) / 65535.0
			inputData[plane+pixelIndex] = float32(g) / 65535.0
			inputData[2*plane+pixelIndex] = float32(b) / 65535.0
		}
	}

	return inputData, nil
}
