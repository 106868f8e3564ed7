package club

import (
	"math"

	"github.com/ayusman/swinglab/internal/geom"
)

// Tracked object classes, matching the class order the segmentation model
// was trained with.
const (
	ClassHead  = 0
	ClassShaft = 1
	NumClasses = 2
)

// RawOutput is the model output for one frame, normalized to anchor-major
// layout: Predictions holds NumAnchors rows of
// [cx, cy, w, h, class scores..., mask coefficients...] in model-input
// space, and Protos holds MaskDims prototype channels of ProtoSize x
// ProtoSize each.
type RawOutput struct {
	Predictions []float32
	NumAnchors  int
	NumClasses  int
	MaskDims    int
	Protos      []float32
	ProtoSize   int
}

// rowLen returns the stride of one anchor row.
func (r *RawOutput) rowLen() int {
	return 4 + r.NumClasses + r.MaskDims
}

// Detection is the best candidate for one class within a single decode
// pass. The box is [x1, y1, x2, y2] in model-input space.
type Detection struct {
	Class      int
	Score      float64
	Box        [4]float64
	MaskCoeffs []float64
}

// Decoded is the per-frame decoder result: at most one detection per
// tracked class, plus the head mask's foreground pixels in source-frame
// coordinates.
type Decoded struct {
	Head       *Detection
	Shaft      *Detection
	MaskPoints []geom.Point
}

// DecodeOutput scans the raw model output and keeps the single
// highest-confidence detection per tracked class above the confidence
// threshold, then decodes the head detection's segmentation mask. Only the
// best candidate per class is kept: at most one club is expected per frame,
// so classical multi-object NMS is unnecessary here (NMS remains available
// for multi-instance use).
func DecodeOutput(raw *RawOutput, lb Letterbox, p Params) Decoded {
	var dec Decoded
	if raw == nil || raw.NumAnchors == 0 {
		return dec
	}

	stride := raw.rowLen()
	best := make([]*Detection, raw.NumClasses)

	for a := 0; a < raw.NumAnchors; a++ {
		row := raw.Predictions[a*stride : (a+1)*stride]
		for c := 0; c < raw.NumClasses; c++ {
			score := float64(row[4+c])
			if score < p.ConfThreshold {
				continue
			}
			if best[c] != nil && best[c].Score >= score {
				continue
			}
			best[c] = decodeRow(row, c, score, raw)
		}
	}

	if ClassHead < len(best) {
		dec.Head = best[ClassHead]
	}
	if ClassShaft < len(best) {
		dec.Shaft = best[ClassShaft]
	}

	if dec.Head != nil {
		dec.MaskPoints = decodeMask(dec.Head, raw, lb, p)
	}

	return dec
}

// decodeRow converts one anchor row's center/size box into corner form and
// copies out its mask coefficients.
func decodeRow(row []float32, class int, score float64, raw *RawOutput) *Detection {
	cx := float64(row[0])
	cy := float64(row[1])
	w := float64(row[2])
	h := float64(row[3])

	coeffs := make([]float64, raw.MaskDims)
	for k := 0; k < raw.MaskDims; k++ {
		coeffs[k] = float64(row[4+raw.NumClasses+k])
	}

	return &Detection{
		Class:      class,
		Score:      score,
		Box:        [4]float64{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
		MaskCoeffs: coeffs,
	}
}

// decodeMask walks every model-input pixel inside the detection box, takes
// the dot product of the detection's mask coefficients with the prototype
// channels at the corresponding prototype-grid cell, applies a sigmoid and
// threshold, and collects foreground pixels mapped back into source-frame
// coordinates.
func decodeMask(det *Detection, raw *RawOutput, lb Letterbox, p Params) []geom.Point {
	if raw.ProtoSize == 0 || raw.MaskDims == 0 || len(raw.Protos) < raw.MaskDims*raw.ProtoSize*raw.ProtoSize {
		return nil
	}

	ratio := float64(raw.ProtoSize) / float64(lb.InputSize)
	planeSize := raw.ProtoSize * raw.ProtoSize

	x1 := clampInt(int(det.Box[0]), 0, lb.InputSize-1)
	y1 := clampInt(int(det.Box[1]), 0, lb.InputSize-1)
	x2 := clampInt(int(det.Box[2]), 0, lb.InputSize-1)
	y2 := clampInt(int(det.Box[3]), 0, lb.InputSize-1)

	var points []geom.Point
	for y := y1; y <= y2; y++ {
		gy := clampInt(int(float64(y)*ratio), 0, raw.ProtoSize-1)
		for x := x1; x <= x2; x++ {
			gx := clampInt(int(float64(x)*ratio), 0, raw.ProtoSize-1)

			var dot float64
			for k := 0; k < raw.MaskDims; k++ {
				dot += det.MaskCoeffs[k] * float64(raw.Protos[k*planeSize+gy*raw.ProtoSize+gx])
			}

			if sigmoid(dot) > p.MaskThreshold {
				points = append(points, lb.ToSource(geom.Point{X: float64(x), Y: float64(y)}))
			}
		}
	}

	return points
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IoU returns the intersection-over-union of two corner-form boxes.
func IoU(a, b [4]float64) float64 {
	ix1 := math.Max(a[0], b[0])
	iy1 := math.Max(a[1], b[1])
	ix2 := math.Min(a[2], b[2])
	iy2 := math.Min(a[3], b[3])

	iw := math.Max(0, ix2-ix1)
	ih := math.Max(0, iy2-iy1)
	inter := iw * ih

	areaA := math.Max(0, a[2]-a[0]) * math.Max(0, a[3]-a[1])
	areaB := math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS performs greedy box-IoU suppression on a score-descending basis and
// returns the surviving detections. The top-1-per-class policy above does
// not need it; it is kept for multi-instance extensions.
func NMS(dets []*Detection, iouThresh float64) []*Detection {
	if len(dets) == 0 {
		return nil
	}

	sorted := make([]*Detection, len(dets))
	copy(sorted, dets)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Score > sorted[j-1].Score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var kept []*Detection
	suppressed := make([]bool, len(sorted))
	for i, d := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, d)
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && sorted[j].Class == d.Class && IoU(d.Box, sorted[j].Box) > iouThresh {
				suppressed[j] = true
			}
		}
	}

	return kept
}
