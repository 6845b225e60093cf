// Package annotate renders classification results: it formats the ranked
// label lines and burns the top-1 label into a copy of the image.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Brownie44l1/fabric-inspector/internal/model"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	ErrEmptyResult = errors.New("classification result has no predictions")
	ErrEmptyImage  = errors.New("image is empty")
)

// Options configures an Annotator. Zero scale, stroke, top-K and colour
// table fall back to the defaults; the anchor is used as given, so start
// from DefaultOptions.
type Options struct {
	// Anchor is the bottom-left corner of the overlay text.
	Anchor    image.Point
	Font      gocv.HersheyFont
	FontScale float64
	Thickness int
	// TopK is the number of label lines produced per image.
	TopK   int
	Colors ColorTable
}

// DefaultOptions draws at (10,30) in Hershey simplex, scale 1, stroke 2.
func DefaultOptions() Options {
	return Options{
		Anchor:    image.Pt(10, 30),
		Font:      gocv.FontHersheySimplex,
		FontScale: 1,
		Thickness: 2,
		TopK:      5,
		Colors:    DefaultColors(),
	}
}

type drawFunc func(img *gocv.Mat, text string, org image.Point, font gocv.HersheyFont,
	scale float64, c color.RGBA, thickness int, lineType gocv.LineType, bottomLeftOrigin bool) error

// Annotator is stateless between calls and safe for concurrent use.
type Annotator struct {
	opts Options
	draw drawFunc
}

func New(opts Options) *Annotator {
	def := DefaultOptions()
	if opts.FontScale <= 0 {
		opts.FontScale = def.FontScale
	}
	if opts.Thickness <= 0 {
		opts.Thickness = def.Thickness
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.Colors == nil {
		opts.Colors = def.Colors
	}
	return &Annotator{opts: opts, draw: gocv.PutTextWithParams}
}

// Annotation is the output of Annotate. Image is a copy of the input that
// the caller owns and must Close.
type Annotation struct {
	Labels  []string
	Overlay string
	Color   color.RGBA
	// Bounds covers every pixel the overlay may have touched.
	Bounds image.Rectangle
	Image  gocv.Mat
}

// FormatLabel renders a class/confidence pair as "<class>: <conf>" with two
// decimals.
func FormatLabel(class string, confidence float32) string {
	return fmt.Sprintf("%s: %.2f", class, confidence)
}

// LabelLines formats the first k predictions, keeping their rank order.
func LabelLines(res model.Classification, k int) []string {
	preds := res.Predictions
	if k > 0 && k < len(preds) {
		preds = preds[:k]
	}

	lines := make([]string, 0, len(preds))
	for _, p := range preds {
		lines = append(lines, FormatLabel(p.Class, p.Confidence))
	}
	return lines
}

// Annotate builds the label lines for res and draws its top-1 label onto a
// clone of img. img itself is left untouched.
func (a *Annotator) Annotate(img gocv.Mat, res model.Classification) (Annotation, error) {
	top, ok := res.Top()
	if !ok {
		return Annotation{}, ErrEmptyResult
	}
	if img.Empty() {
		return Annotation{}, ErrEmptyImage
	}

	labels := LabelLines(res, a.opts.TopK)
	overlay := labels[0]
	c := a.opts.Colors.Lookup(top.Class)

	out := img.Clone()
	err := a.draw(&out, overlay, a.opts.Anchor, a.opts.Font, a.opts.FontScale,
		c, a.opts.Thickness, gocv.LineAA, false)
	if err != nil {
		out.Close()
		return Annotation{}, errors.Wrap(err, "draw overlay")
	}

	return Annotation{
		Labels:  labels,
		Overlay: overlay,
		Color:   c,
		Bounds:  a.OverlayBounds(overlay, image.Rect(0, 0, img.Cols(), img.Rows())),
		Image:   out,
	}, nil
}

// OverlayBounds is the rectangle, clipped to frame, that drawing text at the
// configured anchor can modify. It pads the glyph box by the stroke width to
// cover anti-aliasing.
func (a *Annotator) OverlayBounds(text string, frame image.Rectangle) image.Rectangle {
	size, baseline := gocv.GetTextSizeWithBaseline(text, a.opts.Font, a.opts.FontScale, a.opts.Thickness)
	pad := 2*a.opts.Thickness + 2

	r := image.Rect(
		a.opts.Anchor.X-pad,
		a.opts.Anchor.Y-size.Y-pad,
		a.opts.Anchor.X+size.X+pad,
		a.opts.Anchor.Y+baseline+pad,
	)
	return r.Intersect(frame)
}
