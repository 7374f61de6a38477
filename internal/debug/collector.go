// Package debug provides instrumentation for the box tracker.
// The DebugCollector captures algorithm internals (association candidates,
// per-track predictions, Kalman innovations) for offline inspection and tuning.
package debug

// Pre-allocation capacities for debug frame slices, sized for a typical
// pedestrian scene of ~10-20 live tracks and a similar number of detections.
const (
	defaultAssociationCapacity = 64
	defaultInnovationCapacity  = 16
	defaultPredictionCapacity  = 16
)

// DebugCollector accumulates debug artifacts during a single frame's processing.
//
// The collector is stateful: call BeginFrame, then Record*() during
// processing, then Emit() at frame completion to extract the artifacts.
// It is not safe for concurrent use; the tracker calls it from Run only.
type DebugCollector struct {
	enabled bool
	current *DebugFrame
}

// Box is an axis-aligned box in pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// DebugFrame contains all debug artifacts for a single frame.
type DebugFrame struct {
	FrameID uint64 `json:"frame"`

	// Association stage: every detection-track pair in the cost matrix
	AssociationCandidates []AssociationRecord `json:"associations"`

	// Kalman update: normalised innovation per matched track
	Innovations []KalmanInnovation `json:"innovations"`

	// Kalman predict: projected box per live track
	StatePredictions []StatePrediction `json:"predictions"`
}

// AssociationRecord captures a single detection-track pairing considered during association.
type AssociationRecord struct {
	DetectionIndex int     `json:"detection"`
	TrackID        int     `json:"track_id"`
	IOU            float64 `json:"iou"`
	Accepted       bool    `json:"accepted"`
}

// KalmanInnovation captures the measurement residual for one update.
type KalmanInnovation struct {
	TrackID   int     `json:"track_id"`
	Predicted Box     `json:"predicted"`
	Measured  Box     `json:"measured"`
	NIS       float64 `json:"nis"`
}

// StatePrediction captures a track's projected box after the predict step.
type StatePrediction struct {
	TrackID int `json:"track_id"`
	Box     Box `json:"box"`
}

// NewDebugCollector creates a collector that's initially disabled.
// Call SetEnabled(true) to begin collecting artifacts.
func NewDebugCollector() *DebugCollector {
	return &DebugCollector{}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record*() calls are no-ops.
func (c *DebugCollector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *DebugCollector) IsEnabled() bool {
	return c.enabled
}

// BeginFrame initialises collection for a new frame.
// Must be called before any Record*() calls.
func (c *DebugCollector) BeginFrame(frameID uint64) {
	if !c.enabled {
		return
	}
	c.current = &DebugFrame{
		FrameID:               frameID,
		AssociationCandidates: make([]AssociationRecord, 0, defaultAssociationCapacity),
		Innovations:           make([]KalmanInnovation, 0, defaultInnovationCapacity),
		StatePredictions:      make([]StatePrediction, 0, defaultPredictionCapacity),
	}
}

// RecordAssociation captures a detection-track pairing evaluation.
func (c *DebugCollector) RecordAssociation(detIdx, trackID int, iou float64, accepted bool) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.AssociationCandidates = append(c.current.AssociationCandidates, AssociationRecord{
		DetectionIndex: detIdx,
		TrackID:        trackID,
		IOU:            iou,
		Accepted:       accepted,
	})
}

// RecordPrediction captures a track's projected box after predict.
func (c *DebugCollector) RecordPrediction(trackID int, x, y, w, h float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.StatePredictions = append(c.current.StatePredictions, StatePrediction{
		TrackID: trackID,
		Box:     Box{X: x, Y: y, Width: w, Height: h},
	})
}

// RecordInnovation captures the predicted and measured boxes of an update
// together with its NIS.
func (c *DebugCollector) RecordInnovation(trackID int, predicted, measured [4]float64, nis float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Innovations = append(c.current.Innovations, KalmanInnovation{
		TrackID:   trackID,
		Predicted: Box{X: predicted[0], Y: predicted[1], Width: predicted[2], Height: predicted[3]},
		Measured:  Box{X: measured[0], Y: measured[1], Width: measured[2], Height: measured[3]},
		NIS:       nis,
	})
}

// Emit returns the accumulated debug frame and prepares for the next frame.
// Returns nil if collection is disabled or no frame was begun.
func (c *DebugCollector) Emit() *DebugFrame {
	if !c.enabled || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil
	return frame
}

// Reset clears any pending artifacts without emitting them.
func (c *DebugCollector) Reset() {
	c.current = nil
}
