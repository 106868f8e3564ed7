package club

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/swinglab/internal/geom"
)

// letterboxFill is the neutral pad color used by the model's training
// pipeline.
const letterboxFill = 114

// ErrEmptyFrame is returned when a source frame has no pixels.
var ErrEmptyFrame = errors.New("empty source frame")

// Letterbox records how a source frame was fitted into the square model
// input: the uniform scale factor and the padding offsets. It inverts
// model-input coordinates back into source pixels.
type Letterbox struct {
	SrcW, SrcH int
	InputSize  int
	Scale      float64
	PadX, PadY float64
}

// NewLetterbox computes the aspect-preserving fit of a srcW x srcH frame
// into a square input of inputSize pixels.
func NewLetterbox(srcW, srcH, inputSize int) Letterbox {
	scale := float64(inputSize) / float64(srcW)
	if srcH > srcW {
		scale = float64(inputSize) / float64(srcH)
	}

	newW := float64(srcW) * scale
	newH := float64(srcH) * scale

	return Letterbox{
		SrcW:      srcW,
		SrcH:      srcH,
		InputSize: inputSize,
		Scale:     scale,
		PadX:      (float64(inputSize) - newW) / 2,
		PadY:      (float64(inputSize) - newH) / 2,
	}
}

// Apply resizes the source frame into the letterboxed model input. The
// caller owns the returned Mat and must close it.
func (lb Letterbox) Apply(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	newW := int(float64(lb.SrcW)*lb.Scale + 0.5)
	newH := int(float64(lb.SrcH)*lb.Scale + 0.5)

	resized := gocv.NewMat()
	gocv.Resize(src, &resized, image.Point{X: newW, Y: newH}, 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	top := int(lb.PadY)
	bottom := lb.InputSize - newH - top
	left := int(lb.PadX)
	right := lb.InputSize - newW - left

	out := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &out, top, bottom, left, right, gocv.BorderConstant,
		color.RGBA{R: letterboxFill, G: letterboxFill, B: letterboxFill, A: 0})

	return out, nil
}

// ToSource maps a point in model-input coordinates back to source-frame
// pixel coordinates.
func (lb Letterbox) ToSource(p geom.Point) geom.Point {
	return geom.Point{
		X: (p.X - lb.PadX) / lb.Scale,
		Y: (p.Y - lb.PadY) / lb.Scale,
	}
}

// ToInput maps a source-frame pixel into model-input coordinates.
func (lb Letterbox) ToInput(p geom.Point) geom.Point {
	return geom.Point{
		X: p.X*lb.Scale + lb.PadX,
		Y: p.Y*lb.Scale + lb.PadY,
	}
}
