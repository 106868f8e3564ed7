// Package api provides HTTP API handlers for the swing analysis service.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/swinglab/internal/analyzer"
	"github.com/ayusman/swinglab/internal/pose"
	"github.com/ayusman/swinglab/internal/store"
	"github.com/ayusman/swinglab/internal/swing"
)

// Broadcaster pushes live per-frame estimates to streaming clients.
type Broadcaster interface {
	BroadcastEstimate(sessionID string, timestampMs, angle, score float64)
}

// SessionHandler handles HTTP requests for analysis sessions. Live
// sessions are held in memory until finalized or deleted; the store keeps
// everything that survives them.
type SessionHandler struct {
	store       *store.Store
	factory     *analyzer.Factory
	broadcaster Broadcaster
	poseSource  pose.Source

	mu   sync.Mutex
	live map[string]*analyzer.Session
}

// NewSessionHandler creates a new SessionHandler. broadcaster may be nil
// when no streaming endpoint is wired.
func NewSessionHandler(s *store.Store, f *analyzer.Factory, b Broadcaster) *SessionHandler {
	return &SessionHandler{
		store:       s,
		factory:     f,
		broadcaster: b,
		live:        make(map[string]*analyzer.Session),
	}
}

// SetPoseSource enables server-side pose detection for frames uploaded
// without landmarks.
func (h *SessionHandler) SetPoseSource(src pose.Source) {
	h.poseSource = src
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
// Expected paths:
//
//	/api/sessions
//	/api/sessions/{id}
//	/api/sessions/{id}/frames
//	/api/sessions/{id}/analyze
//	/api/sessions/{id}/metrics
//	/api/sessions/{id}/estimates
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "frames":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ingestFrames(w, r, id)
	case "analyze":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.analyze(w, r, id)
	case "metrics":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.metrics(w, r, id)
	case "estimates":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.estimates(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// Request and response types

type createSessionRequest struct {
	Name string `json:"name"`
}

type landmarkPayload struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

type framePayload struct {
	TimestampMs float64           `json:"timestamp_ms"`
	Landmarks   []landmarkPayload `json:"landmarks"`
	// ImageJPEG optionally carries the video frame as base64 JPEG; without
	// it the frame is ingested pose-only and gets no club estimate.
	ImageJPEG string `json:"image_jpeg,omitempty"`
}

type ingestFramesRequest struct {
	Frames []framePayload `json:"frames"`
}

type sessionResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	FrameCount int    `json:"frame_count"`
	Degraded   bool   `json:"degraded"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type ingestFramesResponse struct {
	Ingested   int `json:"ingested"`
	Estimated  int `json:"estimated"`
	FrameCount int `json:"frame_count"`
}

type intervalResponse struct {
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
}

type metricsResponse struct {
	SpineAddress float64          `json:"spine_address"`
	SpineImpact  float64          `json:"spine_impact"`
	SpineChange  float64          `json:"spine_change"`
	HeadLateral  float64          `json:"head_lateral"`
	HeadVertical float64          `json:"head_vertical"`
	Interval     intervalResponse `json:"interval"`
}

type estimateResponse struct {
	TimestampMs float64 `json:"timestamp_ms"`
	Angle       float64 `json:"angle"`
	Score       float64 `json:"score"`
}

type listEstimatesResponse struct {
	Estimates []estimateResponse `json:"estimates"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Session to a sessionResponse.
func (h *SessionHandler) toResponse(s *store.Session) sessionResponse {
	h.mu.Lock()
	live, running := h.live[s.ID]
	h.mu.Unlock()

	degraded := s.State == store.StateDegraded
	if running {
		degraded = live.Degraded() != nil
	}

	return sessionResponse{
		ID:         s.ID,
		Name:       s.Name,
		State:      string(s.State),
		FrameCount: s.FrameCount,
		Degraded:   degraded,
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toMetricsResponse(m *swing.Metrics) metricsResponse {
	return metricsResponse{
		SpineAddress: m.Spine.Address,
		SpineImpact:  m.Spine.Impact,
		SpineChange:  m.Spine.Change,
		HeadLateral:  m.Head.Lateral,
		HeadVertical: m.Head.Vertical,
		Interval: intervalResponse{
			StartMs: m.Interval.StartMs,
			EndMs:   m.Interval.EndMs,
		},
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/sessions and returns all sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, h.toResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and returns a single session.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(sess))
}

// create handles POST /api/sessions and opens a new analysis session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	live := h.factory.NewSession()
	sess := &store.Session{
		ID:    live.ID(),
		Name:  req.Name,
		State: store.StateCreated,
	}

	if err := h.store.Sessions().Create(sess); err != nil {
		live.Close()
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.mu.Lock()
	h.live[sess.ID] = live
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, h.toResponse(sess))
}

// delete handles DELETE /api/sessions/{id} and removes a session and its
// results.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	h.mu.Lock()
	if live, ok := h.live[id]; ok {
		live.Close()
		delete(h.live, id)
	}
	h.mu.Unlock()

	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ingestFrames handles POST /api/sessions/{id}/frames and feeds a batch of
// pose frames into the live session. Frames are processed in request order;
// a cancelled request stops between frames and keeps what was ingested.
func (h *SessionHandler) ingestFrames(w http.ResponseWriter, r *http.Request, id string) {
	h.mu.Lock()
	live, ok := h.live[id]
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusConflict, "Session is not accepting frames")
		return
	}

	var req ingestFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Frames) == 0 {
		writeError(w, http.StatusBadRequest, "No frames provided")
		return
	}

	// Decode the whole batch before ingesting anything, so a bad payload
	// rejects the batch without leaving a partial prefix in the session.
	type decodedFrame struct {
		timestampMs float64
		landmarks   []pose.Landmark
		mat         *gocv.Mat
	}

	decoded := make([]decodedFrame, 0, len(req.Frames))
	closeAll := func() {
		for _, df := range decoded {
			if df.mat != nil {
				df.mat.Close()
			}
		}
	}

	for _, fp := range req.Frames {
		landmarks := make([]pose.Landmark, len(fp.Landmarks))
		for i, lp := range fp.Landmarks {
			landmarks[i] = pose.Landmark{X: lp.X, Y: lp.Y, Z: lp.Z, Visibility: lp.Visibility}
		}

		mat, err := decodeFrameImage(fp.ImageJPEG)
		if err != nil {
			closeAll()
			writeError(w, http.StatusBadRequest, "Invalid frame image")
			return
		}

		decoded = append(decoded, decodedFrame{
			timestampMs: fp.TimestampMs,
			landmarks:   landmarks,
			mat:         mat,
		})
	}
	defer closeAll()

	ingested := 0
	estimated := 0
	for i := range decoded {
		df := &decoded[i]

		// Frames uploaded with pixels but no landmarks go through
		// server-side pose detection when a source is configured. A
		// detection failure ingests the frame landmark-less rather than
		// failing the batch.
		if len(df.landmarks) == 0 && df.mat != nil && h.poseSource != nil {
			if detected, err := h.poseSource.Detect(df.mat); err == nil {
				df.landmarks = detected
			}
		}

		frame, err := live.ProcessFrame(r.Context(), df.mat, df.timestampMs, df.landmarks)
		if err != nil {
			// Context cancelled between frames; prior frames stay ingested
			// and the store update below records them.
			break
		}
		ingested++

		if frame.Club != nil {
			estimated++
			if h.broadcaster != nil {
				h.broadcaster.BroadcastEstimate(id, frame.TimestampMs, frame.Club.Angle, frame.Club.Score)
			}
		}
	}

	sess, err := h.store.Sessions().GetByID(id)
	if err == nil {
		sess.State = store.StateAnalyzing
		sess.FrameCount = len(live.Frames())
		if err := h.store.Sessions().Update(sess); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update session")
			return
		}
	}

	writeJSON(w, http.StatusOK, ingestFramesResponse{
		Ingested:   ingested,
		Estimated:  estimated,
		FrameCount: len(live.Frames()),
	})
}

// decodeFrameImage decodes an optional base64 JPEG payload into a Mat.
// Returns nil for an empty payload.
func decodeFrameImage(b64 string) (*gocv.Mat, error) {
	if b64 == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("empty image")
	}
	return &mat, nil
}

// analyze handles POST /api/sessions/{id}/analyze: it finalizes the live
// session, persists the metrics and per-frame estimates, and releases the
// in-memory state.
func (h *SessionHandler) analyze(w http.ResponseWriter, r *http.Request, id string) {
	h.mu.Lock()
	live, ok := h.live[id]
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusConflict, "Session already finalized")
		return
	}

	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	m, err := live.Finalize()
	if err != nil {
		if errors.Is(err, swing.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, "Not enough frames to analyze")
			return
		}
		writeError(w, http.StatusInternalServerError, "Analysis failed")
		return
	}

	if err := h.store.Results().SaveMetrics(id, m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save metrics")
		return
	}

	var estimates []store.FrameEstimate
	for _, f := range live.Frames() {
		if f.Club == nil {
			continue
		}
		estimates = append(estimates, store.FrameEstimate{
			TimestampMs: f.TimestampMs,
			Angle:       f.Club.Angle,
			Score:       f.Club.Score,
		})
	}
	if err := h.store.Results().SaveEstimates(id, estimates); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save estimates")
		return
	}

	sess.State = store.StateDone
	if live.Degraded() != nil {
		sess.State = store.StateDegraded
	}
	sess.FrameCount = len(live.Frames())
	if err := h.store.Sessions().Update(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}

	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
	live.Close()

	writeJSON(w, http.StatusOK, toMetricsResponse(m))
}

// metrics handles GET /api/sessions/{id}/metrics and returns the stored
// swing metrics.
func (h *SessionHandler) metrics(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.store.Results().GetMetrics(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Metrics not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get metrics")
		return
	}

	writeJSON(w, http.StatusOK, toMetricsResponse(m))
}

// estimates handles GET /api/sessions/{id}/estimates and returns the stored
// per-frame club orientation samples.
func (h *SessionHandler) estimates(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	list, err := h.store.Results().ListEstimates(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list estimates")
		return
	}

	response := listEstimatesResponse{
		Estimates: make([]estimateResponse, 0, len(list)),
	}
	for _, e := range list {
		response.Estimates = append(response.Estimates, estimateResponse{
			TimestampMs: e.TimestampMs,
			Angle:       e.Angle,
			Score:       e.Score,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
