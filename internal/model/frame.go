package model

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Frame is an upload decoded exactly once. Mat is always set and is what the
// annotator draws on. Image is only set when OpenCV could not read the file
// and Go's decoders were used instead; the classifier then works from it.
type Frame struct {
	Mat   gocv.Mat
	Image image.Image
}

func (f Frame) Close() error {
	return f.Mat.Close()
}

// LoadFrame reads the image at path as 3-channel BGR. EXIF orientation is
// applied by OpenCV, so classifier and annotator see the same pixels.
func LoadFrame(path string) (Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return Frame{Mat: mat}, nil
	}
	mat.Close()

	f, err := os.Open(path)
	if err != nil {
		return Frame{}, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "decode %s", path)
	}

	mat, err = gocv.ImageToMatRGB(img)
	if err != nil {
		return Frame{}, errors.Wrap(err, "convert decoded image")
	}
	return Frame{Mat: mat, Image: img}, nil
}

// Blob converts a BGR Mat to the model input: RGB, shorter side resized to
// size then centre cropped to size×size, CHW float32 in [0,1].
func Blob(mat gocv.Mat, size int) ([]float32, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid model input size %d", size)
	}
	if mat.Empty() {
		return nil, errors.New("image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, true)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read blob")
	}
	if len(data) != 3*size*size {
		return nil, errors.Errorf("blob has %d values, want %d", len(data), 3*size*size)
	}

	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}
