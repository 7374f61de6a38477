package tracking

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sort/internal/kalman"
)

// State layout: [cx, cy, w, h, vcx, vcy, vw, vh]. Observation: [cx, cy, w, h].
const (
	stateDim = 8
	obsDim   = 4
)

// ErrTrackNotInitialised is returned by Update on a track that never had Init.
var ErrTrackNotInitialised = errors.New("tracking: track not initialised")

// KalmanConfig holds the diagonal noise terms of the constant-velocity box model.
type KalmanConfig struct {
	InitPosVar           float64 // initial P for cx, cy, w, h
	InitVelVar           float64 // initial P for all velocities
	ProcessNoisePos      float64 // Q for cx, cy, w, h
	ProcessNoiseVel      float64 // Q for vcx, vcy
	ProcessNoiseSizeVel  float64 // Q for vw, vh
	MeasurementNoisePos  float64 // R for cx, cy
	MeasurementNoiseSize float64 // R for w, h
}

// DefaultKalmanConfig returns the standard SORT noise model.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		InitPosVar:           10,
		InitVelVar:           10000,
		ProcessNoisePos:      1,
		ProcessNoiseVel:      0.01,
		ProcessNoiseSizeVel:  0.0001,
		MeasurementNoisePos:  1,
		MeasurementNoiseSize: 10,
	}
}

// newFilter builds the 8-state constant-velocity filter for cfg.
func (cfg KalmanConfig) newFilter() (*kalman.Filter, error) {
	f := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < obsDim; i++ {
		f.Set(i, i+obsDim, 1)
	}

	h := mat.NewDense(obsDim, stateDim, nil)
	for i := 0; i < obsDim; i++ {
		h.Set(i, i, 1)
	}

	q := mat.NewDiagDense(stateDim, []float64{
		cfg.ProcessNoisePos, cfg.ProcessNoisePos, cfg.ProcessNoisePos, cfg.ProcessNoisePos,
		cfg.ProcessNoiseVel, cfg.ProcessNoiseVel,
		cfg.ProcessNoiseSizeVel, cfg.ProcessNoiseSizeVel,
	})
	r := mat.NewDiagDense(obsDim, []float64{
		cfg.MeasurementNoisePos, cfg.MeasurementNoisePos,
		cfg.MeasurementNoiseSize, cfg.MeasurementNoiseSize,
	})
	p0 := mat.NewDiagDense(stateDim, []float64{
		cfg.InitPosVar, cfg.InitPosVar, cfg.InitPosVar, cfg.InitPosVar,
		cfg.InitVelVar, cfg.InitVelVar, cfg.InitVelVar, cfg.InitVelVar,
	})

	return kalman.NewFilter(f, h, q, r, p0)
}

// Track is a single tracked object: a Kalman filter over the box plus the
// lifecycle counters the tracker uses for pruning and output gating.
type Track struct {
	ID int

	// CoastCycles counts consecutive predicts without a matching update.
	CoastCycles int
	// HitStreak counts consecutive frames with an update; reset to 0 on the
	// first predict after a missed frame.
	HitStreak int
	// Hits is the total number of updates over the track's life.
	Hits int
	// Age is the number of predicts since Init.
	Age int

	ObjType    int
	Confidence float64

	cfg KalmanConfig
	kf  *kalman.Filter
	nis float64
}

// NewTrack returns an uninitialised track using cfg for its filter.
func NewTrack(cfg KalmanConfig) *Track {
	return &Track{cfg: cfg}
}

// Init starts the track at det with zero velocity. Any previous state is
// discarded.
func (t *Track) Init(det Detection) error {
	if err := det.Validate(); err != nil {
		return err
	}
	kf, err := t.cfg.newFilter()
	if err != nil {
		return fmt.Errorf("init track: %w", err)
	}
	x := make([]float64, stateDim)
	copy(x, boxToObservation(det.Box))
	if err := kf.SetState(x); err != nil {
		return fmt.Errorf("init track: %w", err)
	}

	t.kf = kf
	t.nis = 0
	t.CoastCycles = 0
	t.HitStreak = 0
	t.Hits = 0
	t.Age = 0
	t.ObjType = det.ObjType
	t.Confidence = det.Confidence
	return nil
}

// Predict advances the filter one frame.
func (t *Track) Predict() {
	if t.kf == nil {
		return
	}

	// Stop size velocities that would drive width or height non-positive.
	x := t.kf.State()
	if x[2]+x[6] <= 0 {
		t.kf.SetStateAt(6, 0)
	}
	if x[3]+x[7] <= 0 {
		t.kf.SetStateAt(7, 0)
	}

	t.kf.Predict()
	t.Age++

	if t.CoastCycles > 0 {
		t.HitStreak = 0
	}
	t.CoastCycles++
}

// Update corrects the filter with det. On error the track is unchanged.
func (t *Track) Update(det Detection) error {
	if err := det.Validate(); err != nil {
		return err
	}
	if t.kf == nil {
		return ErrTrackNotInitialised
	}

	nis, err := t.kf.Update(boxToObservation(det.Box))
	if err != nil {
		return fmt.Errorf("update track %d: %w", t.ID, err)
	}

	t.nis = nis
	t.CoastCycles = 0
	t.HitStreak++
	t.Hits++
	t.ObjType = det.ObjType
	t.Confidence = det.Confidence
	return nil
}

// GetStateAsBbox returns the current state estimate as a box.
func (t *Track) GetStateAsBbox() Box {
	if t.kf == nil {
		return Box{}
	}
	return observationToBox(t.kf.Project())
}

// GetNIS returns the normalised innovation squared of the last update, or
// 0 before the first update.
func (t *Track) GetNIS() float64 {
	return t.nis
}

// Velocity returns the estimated centre velocity in pixels per frame.
func (t *Track) Velocity() (vx, vy float64) {
	if t.kf == nil {
		return 0, 0
	}
	x := t.kf.State()
	return x[4], x[5]
}

// TrackSnapshot is a copy of a track's externally visible state.
type TrackSnapshot struct {
	ID          int
	Box         Box
	VX, VY      float64
	ObjType     int
	Confidence  float64
	CoastCycles int
	HitStreak   int
	Hits        int
	Age         int
	NIS         float64
}

func (t *Track) snapshot() TrackSnapshot {
	vx, vy := t.Velocity()
	return TrackSnapshot{
		ID:          t.ID,
		Box:         t.GetStateAsBbox(),
		VX:          vx,
		VY:          vy,
		ObjType:     t.ObjType,
		Confidence:  t.Confidence,
		CoastCycles: t.CoastCycles,
		HitStreak:   t.HitStreak,
		Hits:        t.Hits,
		Age:         t.Age,
		NIS:         t.nis,
	}
}
