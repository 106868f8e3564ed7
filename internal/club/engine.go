package club

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ErrModelUnavailable is returned when the segmentation model cannot be
// loaded. It is a session-level condition: orientation estimation is
// disabled for the whole session and the failure is reported once, not per
// frame.
var ErrModelUnavailable = errors.New("club model unavailable")

// Engine runs detection/segmentation inference on a letterboxed input
// frame. Implementations are consumed as black boxes producing the two raw
// output arrays the decoder understands.
type Engine interface {
	// Infer runs the model on a letterboxed square input Mat.
	Infer(input gocv.Mat) (*RawOutput, error)

	// Close releases any resources held by the engine.
	Close() error
}

// DNNEngine is an Engine backed by the OpenCV DNN module running the
// exported YOLO segmentation model.
type DNNEngine struct {
	net       gocv.Net
	inputSize int
}

// NewDNNEngine loads the ONNX model at the given path. A missing or
// unreadable model yields ErrModelUnavailable.
func NewDNNEngine(modelPath string, inputSize int) (*DNNEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to read %s", ErrModelUnavailable, modelPath)
	}

	return &DNNEngine{net: net, inputSize: inputSize}, nil
}

// Infer runs the network and normalizes its outputs into anchor-major
// layout. The detection head comes out channel-major
// ([1, 4+nc+nm, anchors]); it is transposed here so the decoder can walk
// plain rows.
func (e *DNNEngine) Infer(input gocv.Mat) (*RawOutput, error) {
	blob := gocv.BlobFromImage(input, 1.0/255.0,
		image.Pt(e.inputSize, e.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")

	outs := e.net.ForwardLayers([]string{"output0", "output1"})
	if len(outs) < 2 {
		for i := range outs {
			outs[i].Close()
		}
		return nil, errors.New("model produced fewer than two outputs")
	}
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	predDims := outs[0].Size() // [1, attrs, anchors]
	protoDims := outs[1].Size() // [1, nm, s, s]
	if len(predDims) != 3 || len(protoDims) != 4 {
		return nil, fmt.Errorf("unexpected output shapes %v / %v", predDims, protoDims)
	}

	attrs := predDims[1]
	anchors := predDims[2]
	maskDims := protoDims[1]
	protoSize := protoDims[2]
	numClasses := attrs - 4 - maskDims
	if numClasses < 1 {
		return nil, fmt.Errorf("output attribute count %d too small", attrs)
	}

	predData, err := outs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read prediction tensor: %w", err)
	}
	protoData, err := outs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read prototype tensor: %w", err)
	}

	preds := make([]float32, anchors*attrs)
	for a := 0; a < anchors; a++ {
		for t := 0; t < attrs; t++ {
			preds[a*attrs+t] = predData[t*anchors+a]
		}
	}

	protos := make([]float32, len(protoData))
	copy(protos, protoData)

	return &RawOutput{
		Predictions: preds,
		NumAnchors:  anchors,
		NumClasses:  numClasses,
		MaskDims:    maskDims,
		Protos:      protos,
		ProtoSize:   protoSize,
	}, nil
}

// Close releases the network.
func (e *DNNEngine) Close() error {
	return e.net.Close()
}

// MockEngine is a test implementation of Engine returning pre-configured
// outputs.
type MockEngine struct {
	output *RawOutput
	err    error
}

// NewMockEngine creates a MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// SetOutput sets the raw output that Infer will return.
func (m *MockEngine) SetOutput(out *RawOutput) {
	m.output = out
}

// SetError sets the error that Infer will return.
func (m *MockEngine) SetError(err error) {
	m.err = err
}

// Infer returns the pre-configured output or error.
func (m *MockEngine) Infer(input gocv.Mat) (*RawOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

// Close is a no-op for the mock engine.
func (m *MockEngine) Close() error {
	return nil
}
