package model

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var fabricClasses = []string{"defect free", "hole", "horizontal", "lines", "stain", "Vertical"}

func TestRankOrdersDescendingAndTruncates(t *testing.T) {
	scores := []float32{0.0, 0.05, 0.01, 0.02, 0.91, 0.01}

	res := Rank(scores, fabricClasses, 5)
	require.Len(t, res.Predictions, 5)

	var got []string
	for _, p := range res.Predictions {
		got = append(got, p.Class)
	}
	// horizontal (id 2) and Vertical (id 5) tie; the lower id wins.
	assert.Equal(t, []string{"stain", "hole", "lines", "horizontal", "Vertical"}, got)
	assert.Equal(t, 4, res.Predictions[0].ClassID)

	top, ok := res.Top()
	require.True(t, ok)
	assert.Equal(t, "stain", top.Class)
	assert.InDelta(t, 0.91, top.Confidence, 1e-6)
}

func TestRankKeepsAllWhenKIsZero(t *testing.T) {
	res := Rank([]float32{0.2, 0.8}, []string{"a", "b"}, 0)
	require.Len(t, res.Predictions, 2)
	assert.Equal(t, "b", res.Predictions[0].Class)
}

func TestRankNamesScoresMissingFromTable(t *testing.T) {
	res := Rank([]float32{0.1, 0.2, 0.7}, []string{"a", "b"}, 5)
	require.Len(t, res.Predictions, 3)
	assert.Equal(t, "class_2", res.Predictions[0].Class)
	assert.Equal(t, 2, res.Predictions[0].ClassID)
	assert.Equal(t, "b", res.Predictions[1].Class)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})

	var sum float32
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	assert.Empty(t, Softmax(nil))
}

func TestClassName(t *testing.T) {
	res := Classification{Names: fabricClasses}
	assert.Equal(t, "stain", res.ClassName(4))
	assert.Equal(t, "class_42", res.ClassName(42))
}

func TestPreprocessShapeAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	data, err := Preprocess(img, 32)
	require.NoError(t, err)
	require.Len(t, data, 3*32*32)

	plane := 32 * 32
	assert.InDelta(t, 1.0, data[0], 0.02, "red plane should be saturated")
	assert.InDelta(t, 0.0, data[plane], 0.02, "green plane should be empty")
	assert.InDelta(t, 0.0, data[2*plane], 0.02, "blue plane should be empty")

	_, err = Preprocess(img, 0)
	assert.Error(t, err)
}

// stripes builds a wide image: red left quarter, green middle half, blue
// right quarter.
func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{G: 255, A: 255}
			switch {
			case x < w/4:
				c = color.RGBA{R: 255, A: 255}
			case x >= 3*w/4:
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessCropsCentre(t *testing.T) {
	data, err := Preprocess(stripes(80, 40), 20)
	require.NoError(t, err)
	require.Len(t, data, 3*20*20)

	plane := 20 * 20
	centre := 10*20 + 10
	assert.InDelta(t, 0.0, data[centre], 0.05)
	assert.InDelta(t, 1.0, data[plane+centre], 0.05)
	assert.InDelta(t, 0.0, data[2*plane+centre], 0.05)
}

func TestBlobMatchesPreprocess(t *testing.T) {
	img := stripes(80, 40)
	mat, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	defer mat.Close()

	data, err := Blob(mat, 20)
	require.NoError(t, err)
	require.Len(t, data, 3*20*20)

	plane := 20 * 20
	centre := 10*20 + 10
	assert.InDelta(t, 0.0, data[centre], 0.05, "first plane is red after the channel swap")
	assert.InDelta(t, 1.0, data[plane+centre], 0.05)
	assert.InDelta(t, 0.0, data[2*plane+centre], 0.05)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = Blob(empty, 20)
	assert.Error(t, err)
}

func TestLoadFrame(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "swatch.png")
	writeImage(t, pngPath, func(f *os.File) error { return png.Encode(f, stripes(40, 20)) })

	frame, err := LoadFrame(pngPath)
	require.NoError(t, err)
	assert.Equal(t, 20, frame.Mat.Rows())
	assert.Equal(t, 40, frame.Mat.Cols())
	assert.Equal(t, 3, frame.Mat.Channels())
	assert.Nil(t, frame.Image, "OpenCV reads PNG itself")
	require.NoError(t, frame.Close())

	gifPath := filepath.Join(dir, "swatch.gif")
	writeImage(t, gifPath, func(f *os.File) error { return gif.Encode(f, stripes(40, 20), nil) })

	frame, err = LoadFrame(gifPath)
	require.NoError(t, err)
	defer frame.Close()
	assert.Equal(t, 20, frame.Mat.Rows())
	assert.Equal(t, 40, frame.Mat.Cols())
	if frame.Image != nil {
		assert.Equal(t, image.Rect(0, 0, 40, 20), frame.Image.Bounds())
	}

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadFrame(bad)
	assert.Error(t, err)
}

func writeImage(t *testing.T, path string, encode func(*os.File) error) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encode(f))
	require.NoError(t, f.Close())
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"input_shape": [1, 3, 224, 224],
		"output_shape": [1, 6],
		"classes": ["defect free", "hole", "horizontal", "lines", "stain", "Vertical"],
		"image_size": 224
	}`), 0o644))

	meta, err := LoadMetadata(good)
	require.NoError(t, err)
	assert.Equal(t, "input", meta.InputName)
	assert.Equal(t, "output", meta.OutputName)
	assert.Equal(t, 3*224*224, meta.InputSize())

	mismatched := filepath.Join(dir, "mismatched.json")
	require.NoError(t, os.WriteFile(mismatched, []byte(`{
		"input_shape": [1, 3, 64, 64],
		"output_shape": [1, 2],
		"classes": ["a", "b"],
		"image_size": 224
	}`), 0o644))

	_, err = LoadMetadata(mismatched)
	assert.Error(t, err)

	_, err = LoadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
