package tracking

// TrackerInterface abstracts the tracking implementation so that drivers
// and replay tests can depend on behaviour rather than the concrete type.
type TrackerInterface interface {
	// Run processes one frame of detections.
	Run(dets []Detection) error

	// GetTracks returns a snapshot of every live track keyed by ID.
	GetTracks() map[int]TrackSnapshot

	// GetTrack returns a snapshot of one track and whether it exists.
	GetTrack(id int) (TrackSnapshot, bool)

	// GetTrackCount returns the number of live tracks.
	GetTrackCount() int

	// FrameCount returns the number of frames processed.
	FrameCount() int

	// ConfirmedTracks applies the standard SORT output gate.
	ConfirmedTracks(minHits int) []TrackSnapshot

	// GetLastAssociations returns the detection-to-track mapping from the
	// most recent Run; -1 marks a detection that spawned a track.
	GetLastAssociations() []int

	GetTrackingMetrics() TrackingMetrics

	// ResetID restarts the ID sequence; fails while tracks are live.
	ResetID() error

	// Reset clears all state.
	Reset()
}

// Compile-time check that Tracker implements TrackerInterface.
var _ TrackerInterface = (*Tracker)(nil)
