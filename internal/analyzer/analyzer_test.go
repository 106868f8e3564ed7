package analyzer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/swinglab/internal/club"
	"github.com/ayusman/swinglab/internal/pose"
	"github.com/ayusman/swinglab/internal/swing"
)

// headMaskOutput builds a raw model output with a single head detection
// whose mask is a horizontal pixel line at input row 100, columns 200-240.
func headMaskOutput(inputSize int) *club.RawOutput {
	protos := make([]float32, inputSize*inputSize)
	for i := range protos {
		protos[i] = -10
	}
	for x := 200; x <= 240; x++ {
		protos[100*inputSize+x] = 10
	}

	return &club.RawOutput{
		// [cx, cy, w, h, headScore, shaftScore, coeff]
		Predictions: []float32{220, 100, 50, 10, 0.9, 0, 1},
		NumAnchors:  1,
		NumClasses:  club.NumClasses,
		MaskDims:    1,
		Protos:      protos,
		ProtoSize:   inputSize,
	}
}

func testSession(engine club.Engine) *Session {
	return NewSession(engine, club.DefaultParams(), swing.DefaultParams())
}

func TestSession_AttachesEstimate(t *testing.T) {
	engine := club.NewMockEngine()
	engine.SetOutput(headMaskOutput(320))

	s := testSession(engine)
	defer s.Close()

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	frame, err := s.ProcessFrame(context.Background(), &mat, 0, pose.AddressLandmarks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if frame.Club == nil {
		t.Fatal("expected a club estimate")
	}
	// The mask line is horizontal and extends right of the hands.
	if math.Abs(frame.Club.Angle) > 2 {
		t.Errorf("expected near-horizontal angle, got %f", frame.Club.Angle)
	}
	if frame.Club.Score != 0.9 {
		t.Errorf("expected detection score 0.9, got %f", frame.Club.Score)
	}
}

func TestSession_NoClubContextNoEstimate(t *testing.T) {
	engine := club.NewMockEngine()
	engine.SetOutput(headMaskOutput(320))

	s := testSession(engine)
	defer s.Close()

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	// Landmarks cut off above the wrists: the invariant forbids attaching
	// an estimate, even with a working model.
	short := pose.AddressLandmarks()[:pose.LeftWrist]

	frame, err := s.ProcessFrame(context.Background(), &mat, 0, short)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Club != nil {
		t.Error("expected no estimate without wrist landmarks")
	}
}

func TestSession_InferenceErrorIsAbsorbed(t *testing.T) {
	engine := club.NewMockEngine()
	engine.SetError(errors.New("inference exploded"))

	s := testSession(engine)
	defer s.Close()

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	// The session loop must survive failing frames and keep ingesting.
	for i := 0; i < 5; i++ {
		frame, err := s.ProcessFrame(context.Background(), &mat, float64(i)*33.3, pose.AddressLandmarks())
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if frame.Club != nil {
			t.Errorf("frame %d: expected gap on inference error", i)
		}
	}

	if len(s.Frames()) != 5 {
		t.Errorf("expected all 5 frames ingested, got %d", len(s.Frames()))
	}
}

func TestSession_DegradedWithoutEngine(t *testing.T) {
	s := testSession(nil)
	defer s.Close()

	if s.Degraded() == nil {
		t.Fatal("expected degraded session without engine")
	}
	if !errors.Is(s.Degraded(), club.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", s.Degraded())
	}

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	frame, err := s.ProcessFrame(context.Background(), &mat, 0, pose.AddressLandmarks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Club != nil {
		t.Error("expected no estimate on a degraded session")
	}
}

func TestSession_CancelBetweenFrames(t *testing.T) {
	s := testSession(nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())

	if _, err := s.ProcessFrame(ctx, nil, 0, pose.AddressLandmarks()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()

	if _, err := s.ProcessFrame(ctx, nil, 33.3, pose.AddressLandmarks()); err == nil {
		t.Fatal("expected cancellation error")
	}

	// The frame ingested before cancellation stays valid.
	if len(s.Frames()) != 1 {
		t.Errorf("expected 1 frame, got %d", len(s.Frames()))
	}
}

func TestSession_ConcurrentProducersLoseNoFrames(t *testing.T) {
	engine := club.NewMockEngine()
	engine.SetOutput(headMaskOutput(320))

	s := testSession(engine)
	defer s.Close()

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	const producers = 8
	const framesPerProducer = 25

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < framesPerProducer; i++ {
				ts := float64(p*framesPerProducer+i) * 33.3
				if _, err := s.ProcessFrame(context.Background(), &mat, ts, pose.AddressLandmarks()); err != nil {
					t.Errorf("producer %d: unexpected error: %v", p, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	// Every append must survive interleaved producers.
	if got := len(s.Frames()); got != producers*framesPerProducer {
		t.Errorf("expected %d frames, got %d", producers*framesPerProducer, got)
	}
}

func TestSession_Finalize(t *testing.T) {
	s := testSession(nil)
	defer s.Close()

	ctx := context.Background()
	for _, f := range pose.SwingCapture(100, 33.3333) {
		if _, err := s.ProcessFrame(ctx, nil, f.TimestampMs, f.Landmarks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	m, err := s.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected metrics")
	}
	if m.Interval.EndMs <= m.Interval.StartMs {
		t.Errorf("degenerate interval %+v", m.Interval)
	}

	// Finalize is pure and repeatable.
	again, err := s.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *again != *m {
		t.Error("repeated finalize produced different metrics")
	}
}

func TestSession_FinalizeInsufficientData(t *testing.T) {
	s := testSession(nil)
	defer s.Close()

	if _, err := s.ProcessFrame(context.Background(), nil, 0, pose.AddressLandmarks()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.Finalize()
	if !errors.Is(err, swing.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSession_SmoothingIsSequential(t *testing.T) {
	// Two frames with the same raw angle: the second estimate must match
	// the first (converged EMA), proving per-frame state is carried in
	// order.
	engine := club.NewMockEngine()
	engine.SetOutput(headMaskOutput(320))

	s := testSession(engine)
	defer s.Close()

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	ctx := context.Background()
	f1, err := s.ProcessFrame(ctx, &mat, 0, pose.AddressLandmarks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := s.ProcessFrame(ctx, &mat, 33.3, pose.AddressLandmarks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f1.Club == nil || f2.Club == nil {
		t.Fatal("expected estimates on both frames")
	}
	if math.Abs(f1.Club.Angle-f2.Club.Angle) > 1e-9 {
		t.Errorf("identical raw input should keep the smoothed angle: %f vs %f", f1.Club.Angle, f2.Club.Angle)
	}
}
