package tracking

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/banshee-data/sort/internal/assignment"
	"github.com/banshee-data/sort/internal/config"
	"github.com/banshee-data/sort/internal/monitoring"
)

var (
	// ErrTracksLive is returned by ResetID while tracks still hold IDs from
	// the current sequence.
	ErrTracksLive = errors.New("tracking: cannot reset ID sequence while tracks are live")
	// ErrInvalidConfig is returned by NewTracker for out-of-range parameters.
	ErrInvalidConfig = errors.New("tracking: invalid tracker config")
)

// TrackerConfig holds the parameters fixed at construction.
type TrackerConfig struct {
	// MaxAge is the number of consecutive missed frames a track survives.
	// A track is dropped once CoastCycles exceeds MaxAge.
	MaxAge int
	// IOUThreshold is the minimum overlap for a solver-selected pair to
	// count as a match.
	IOUThreshold float64
	// MinHits is the output gate used by callers of ConfirmedTracks.
	MinHits int
	// Solver names the assignment solver (see assignment.ByName).
	Solver string
	Kalman KalmanConfig
}

// DefaultTrackerConfig returns a TrackerConfig with built-in defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a tuning config,
// falling back to defaults for unset keys.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxAge:       cfg.GetMaxAge(),
		IOUThreshold: cfg.GetIOUThreshold(),
		MinHits:      cfg.GetMinHits(),
		Solver:       cfg.GetSolver(),
		Kalman: KalmanConfig{
			InitPosVar:           cfg.GetInitPosVar(),
			InitVelVar:           cfg.GetInitVelVar(),
			ProcessNoisePos:      cfg.GetProcessNoisePos(),
			ProcessNoiseVel:      cfg.GetProcessNoiseVel(),
			ProcessNoiseSizeVel:  cfg.GetProcessNoiseSizeVel(),
			MeasurementNoisePos:  cfg.GetMeasurementNoisePos(),
			MeasurementNoiseSize: cfg.GetMeasurementNoiseSize(),
		},
	}
}

func (c TrackerConfig) validate() error {
	if c.MaxAge < 0 {
		return fmt.Errorf("%w: max_age must be >= 0, got %d", ErrInvalidConfig, c.MaxAge)
	}
	if math.IsNaN(c.IOUThreshold) || c.IOUThreshold < 0 || c.IOUThreshold > 1 {
		return fmt.Errorf("%w: iou_threshold must be in [0, 1], got %v", ErrInvalidConfig, c.IOUThreshold)
	}
	if c.MinHits < 0 {
		return fmt.Errorf("%w: min_hits must be >= 0, got %d", ErrInvalidConfig, c.MinHits)
	}
	return c.Kalman.validate()
}

func (c KalmanConfig) validate() error {
	variances := []struct {
		name string
		v    float64
	}{
		{"init_pos_var", c.InitPosVar},
		{"init_vel_var", c.InitVelVar},
		{"process_noise_pos", c.ProcessNoisePos},
		{"process_noise_vel", c.ProcessNoiseVel},
		{"process_noise_size_vel", c.ProcessNoiseSizeVel},
		{"measurement_noise_pos", c.MeasurementNoisePos},
		{"measurement_noise_size", c.MeasurementNoiseSize},
	}
	for _, f := range variances {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return fmt.Errorf("%w: %s must be a positive finite variance, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	return nil
}

// DebugCollector interface for tracking algorithm instrumentation.
// Allows decoupling from the debug package to avoid circular dependencies.
type DebugCollector interface {
	IsEnabled() bool
	RecordAssociation(detIdx, trackID int, iou float64, accepted bool)
	RecordPrediction(trackID int, x, y, w, h float64)
	RecordInnovation(trackID int, predicted, measured [4]float64, nis float64)
}

// TrackingMetrics summarises tracker activity since construction or Reset.
type TrackingMetrics struct {
	Frames        int
	ActiveTracks  int
	TracksCreated int
	TracksDeleted int
	Matches       int
	// MeanNIS is the mean normalised innovation squared over all updates.
	// A well-tuned filter averages close to the observation dimension (4).
	MeanNIS float64
}

// Tracker runs SORT over a stream of per-frame detections.
type Tracker struct {
	Config TrackerConfig

	tracks map[int]*Track
	nextID int
	solver assignment.Solver

	frameCount    int
	tracksCreated int
	tracksDeleted int
	matches       int
	nisSum        float64

	// lastAssociations[i] is the track ID detection i of the last frame
	// matched, or -1.
	lastAssociations []int

	// DebugCollector captures algorithm internals (optional).
	DebugCollector DebugCollector

	mu sync.RWMutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSolver overrides the solver named in the config.
func WithSolver(s assignment.Solver) Option {
	return func(t *Tracker) { t.solver = s }
}

// WithDebugCollector attaches a collector for algorithm internals.
func WithDebugCollector(c DebugCollector) Option {
	return func(t *Tracker) { t.DebugCollector = c }
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig, opts ...Option) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		Config: cfg,
		tracks: make(map[int]*Track),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.solver == nil {
		s, err := assignment.ByName(cfg.Solver)
		if err != nil {
			return nil, err
		}
		t.solver = s
	}
	return t, nil
}

// Run processes one frame of detections: predict every track, associate,
// update matched tracks, spawn tracks for unmatched detections and drop
// tracks that have coasted longer than MaxAge.
//
// Invalid detections reject the whole frame before any state changes. A
// solver failure is returned after the predict step; the frame then has
// no updates, spawns or pruning.
func (t *Tracker) Run(dets []Detection) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range dets {
		if err := dets[i].Validate(); err != nil {
			return fmt.Errorf("detection %d: %w", i, err)
		}
	}

	t.frameCount++
	ids := t.sortedIDs()

	for _, id := range ids {
		t.predict(t.tracks[id])
	}

	assoc, err := associate(dets, t.tracks, ids, t.Config.IOUThreshold, t.solver, t.DebugCollector)
	if err != nil {
		t.lastAssociations = nil
		monitoring.Logf("[Tracker] frame %d: association failed: %v", t.frameCount, err)
		return fmt.Errorf("frame %d: %w", t.frameCount, err)
	}
	t.lastAssociations = assoc.DetectionTrack

	for _, id := range slices.Sorted(maps.Keys(assoc.Matched)) {
		t.update(t.tracks[id], assoc.Matched[id])
	}

	for _, det := range assoc.Unmatched {
		if err := t.initTrack(det); err != nil {
			return fmt.Errorf("frame %d: %w", t.frameCount, err)
		}
	}

	t.cleanupStaleTracks()

	monitoring.Debugf("[Tracker] frame %d: %d detections, %d matched, %d spawned, %d live",
		t.frameCount, len(dets), len(assoc.Matched), len(assoc.Unmatched), len(t.tracks))
	return nil
}

func (t *Tracker) sortedIDs() []int {
	return slices.Sorted(maps.Keys(t.tracks))
}

func (t *Tracker) predict(track *Track) {
	track.Predict()

	if t.DebugCollector != nil && t.DebugCollector.IsEnabled() {
		b := track.GetStateAsBbox()
		t.DebugCollector.RecordPrediction(track.ID, b.X, b.Y, b.Width, b.Height)
	}
}

func (t *Tracker) update(track *Track, det Detection) {
	predicted := track.GetStateAsBbox()
	if err := track.Update(det); err != nil {
		// The track coasts this frame and is pruned normally if it keeps failing.
		monitoring.Logf("[Tracker] frame %d: %v", t.frameCount, err)
		return
	}
	t.matches++
	t.nisSum += track.GetNIS()

	if t.DebugCollector != nil && t.DebugCollector.IsEnabled() {
		t.DebugCollector.RecordInnovation(track.ID,
			[4]float64{predicted.X, predicted.Y, predicted.Width, predicted.Height},
			[4]float64{det.X, det.Y, det.Width, det.Height},
			track.GetNIS())
	}
}

func (t *Tracker) initTrack(det Detection) error {
	track := NewTrack(t.Config.Kalman)
	if err := track.Init(det); err != nil {
		return err
	}
	track.ID = t.nextID
	t.nextID++

	t.tracks[track.ID] = track
	t.tracksCreated++
	monitoring.Debugf("[Tracker] frame %d: new track %d at %+v", t.frameCount, track.ID, det.Box)
	return nil
}

// cleanupStaleTracks removes tracks that have coasted longer than MaxAge.
func (t *Tracker) cleanupStaleTracks() {
	toRemove := make([]int, 0)
	for id, track := range t.tracks {
		if track.CoastCycles > t.Config.MaxAge {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		delete(t.tracks, id)
		monitoring.Debugf("[Tracker] frame %d: dropped track %d", t.frameCount, id)
	}
	t.tracksDeleted += len(toRemove)
}

// GetTracks returns a snapshot of every live track keyed by ID.
func (t *Tracker) GetTracks() map[int]TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int]TrackSnapshot, len(t.tracks))
	for id, track := range t.tracks {
		out[id] = track.snapshot()
	}
	return out
}

// GetTrack returns a snapshot of one track.
func (t *Tracker) GetTrack(id int) (TrackSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	track, ok := t.tracks[id]
	if !ok {
		return TrackSnapshot{}, false
	}
	return track.snapshot(), true
}

// GetTrackCount returns the number of live tracks.
func (t *Tracker) GetTrackCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks)
}

// FrameCount returns the number of frames Run has processed.
func (t *Tracker) FrameCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frameCount
}

// ConfirmedTracks returns the tracks worth reporting this frame, sorted by
// ID: those updated this frame whose hit streak reached minHits. During
// the first minHits frames every freshly updated or spawned track passes.
func (t *Tracker) ConfirmedTracks(minHits int) []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	warmup := t.frameCount <= minHits
	out := make([]TrackSnapshot, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		track := t.tracks[id]
		if track.CoastCycles < 1 && (track.HitStreak >= minHits || warmup) {
			out = append(out, track.snapshot())
		}
	}
	return out
}

// GetLastAssociations returns the detection-to-track mapping from the most
// recent Run. Element i is the track ID detection i matched, or -1.
func (t *Tracker) GetLastAssociations() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.lastAssociations == nil {
		return nil
	}
	return slices.Clone(t.lastAssociations)
}

// GetTrackingMetrics returns counters accumulated since construction or Reset.
func (t *Tracker) GetTrackingMetrics() TrackingMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := TrackingMetrics{
		Frames:        t.frameCount,
		ActiveTracks:  len(t.tracks),
		TracksCreated: t.tracksCreated,
		TracksDeleted: t.tracksDeleted,
		Matches:       t.matches,
	}
	if t.matches > 0 {
		m.MeanNIS = t.nisSum / float64(t.matches)
	}
	return m
}

// ResetID restarts the ID sequence at 0. It refuses while tracks are live
// so that IDs stay unique; use Reset to clear everything at once.
func (t *Tracker) ResetID() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.tracks) > 0 {
		return fmt.Errorf("%w: %d live", ErrTracksLive, len(t.tracks))
	}
	t.nextID = 0
	return nil
}

// Reset clears all tracks, counters and the ID sequence.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracks = make(map[int]*Track)
	t.nextID = 0
	t.frameCount = 0
	t.tracksCreated = 0
	t.tracksDeleted = 0
	t.matches = 0
	t.nisSum = 0
	t.lastAssociations = nil
}
