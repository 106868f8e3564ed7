// Package analyzer orchestrates per-session swing analysis: the strictly
// sequential per-frame club pipeline and the whole-capture metric pass.
package analyzer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/swinglab/internal/club"
	"github.com/ayusman/swinglab/internal/geom"
	"github.com/ayusman/swinglab/internal/metrics"
	"github.com/ayusman/swinglab/internal/pose"
	"github.com/ayusman/swinglab/internal/swing"
)

// Factory builds analysis sessions. It loads the club model once per
// session; a model that cannot load degrades the session to "no club
// estimates" instead of failing it.
type Factory struct {
	ModelPath   string
	ClubParams  club.Params
	SwingParams swing.Params
}

// NewSession creates a session with a fresh resolver and its own engine
// handle. Engine initialization failure is a session-level condition: it is
// recorded once on the session and every frame simply emits no estimate.
func (f *Factory) NewSession() *Session {
	s := &Session{
		id:          uuid.New().String(),
		resolver:    club.NewResolver(f.ClubParams),
		clubParams:  f.ClubParams,
		swingParams: f.SwingParams,
	}

	engine, err := club.NewDNNEngine(f.ModelPath, f.ClubParams.InputSize)
	if err != nil {
		log.Printf("club model unavailable, orientation disabled for session %s: %v", s.id, err)
		s.degraded = err
		return s
	}
	s.engine = engine
	return s
}

// Session owns the mutable state of one analysis run: the append-only frame
// sequence, the orientation resolver's smoothing state, and the cached
// engine handle. Frame processing is strictly sequential: an internal
// mutex serializes ProcessFrame, so the smoothing state only ever sees one
// frame at a time even when producers overlap. Ordering across producers
// remains the caller's concern. Each new video gets a new Session.
type Session struct {
	id          string
	engine      club.Engine
	resolver    *club.Resolver
	clubParams  club.Params
	swingParams swing.Params
	degraded    error

	mu     sync.Mutex
	frames []pose.Frame
}

// NewSession creates a session around an existing engine, mainly for tests.
// A nil engine degrades the session.
func NewSession(engine club.Engine, cp club.Params, sp swing.Params) *Session {
	s := &Session{
		id:          uuid.New().String(),
		engine:      engine,
		resolver:    club.NewResolver(cp),
		clubParams:  cp,
		swingParams: sp,
	}
	if engine == nil {
		s.degraded = club.ErrModelUnavailable
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Degraded returns the session-level condition that disabled club
// orientation estimation, or nil. It is the only per-frame failure class
// surfaced to the caller, and it is reported here once rather than on
// every frame.
func (s *Session) Degraded() error {
	return s.degraded
}

// Frames returns the frames accumulated so far. Frames already annotated
// stay valid even if the session is cancelled midway.
func (s *Session) Frames() []pose.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// ProcessFrame appends one pose frame to the session, running the club
// orientation pipeline against the video frame when one is supplied.
// Calls are serialized: overlapping producers each complete a whole frame
// before the next one starts. Processing is cancellable between frames: a
// cancelled context returns before the frame is ingested, leaving prior
// results intact.
//
// mat may be nil when no video pixels are available (pose-only capture);
// the frame is then ingested without an orientation estimate.
func (s *Session) ProcessFrame(ctx context.Context, mat *gocv.Mat, timestampMs float64, landmarks []pose.Landmark) (*pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frame := pose.Frame{
		TimestampMs: timestampMs,
		Landmarks:   landmarks,
	}
	metrics.FramesProcessed.Inc()

	// The estimate-attachment invariant: no wrists and elbows, no club.
	if s.degraded == nil && mat != nil && frame.HasClubContext() {
		frame.Club = s.estimateClub(mat, &frame)
	}
	if frame.Club == nil {
		metrics.EstimateGaps.Inc()
	}

	s.frames = append(s.frames, frame)
	return &s.frames[len(s.frames)-1], nil
}

// estimateClub runs letterbox -> inference -> decode -> resolve for one
// frame. Every failure mode, panics included, is absorbed into "no
// estimate for this frame": a bad frame must never abort the session loop.
func (s *Session) estimateClub(mat *gocv.Mat, frame *pose.Frame) (est *club.Estimate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: club pipeline panic absorbed: %v", s.id, r)
			metrics.InferenceErrors.Inc()
			est = nil
		}
	}()

	lb := club.NewLetterbox(mat.Cols(), mat.Rows(), s.clubParams.InputSize)

	input, err := lb.Apply(*mat)
	if err != nil {
		log.Printf("session %s: letterbox failed: %v", s.id, err)
		metrics.InferenceErrors.Inc()
		return nil
	}
	defer input.Close()

	raw, err := s.engine.Infer(input)
	if err != nil {
		log.Printf("session %s: inference failed: %v", s.id, err)
		metrics.InferenceErrors.Inc()
		return nil
	}

	dec := club.DecodeOutput(raw, lb, s.clubParams)

	mid, ok := frame.HandsMidpoint()
	if !ok {
		return nil
	}
	hands := geom.Point{
		X: mid.X * float64(lb.SrcW),
		Y: mid.Y * float64(lb.SrcH),
	}

	est = s.resolver.Resolve(dec, lb, hands)
	if est != nil {
		path := metrics.PathMask
		if dec.Head == nil || len(dec.MaskPoints) < s.clubParams.MinMaskPoints {
			path = metrics.PathShaft
		}
		metrics.Estimates.WithLabelValues(path).Inc()
	}
	return est
}

// Finalize runs the swing metric analysis over the accumulated frames. It
// may be called repeatedly; the computation is pure.
func (s *Session) Finalize() (*swing.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	m, err := swing.Analyze(s.frames, s.swingParams)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, swing.ErrInsufficientData) {
		return nil, err
	}
	return m, err
}

// Close releases the engine handle and the smoothing state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			log.Printf("session %s: engine close: %v", s.id, err)
		}
		s.engine = nil
	}
	s.resolver.Reset()
}
