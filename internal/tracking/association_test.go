package tracking

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sort/internal/assignment"
)

// predictedTracks builds zero-velocity tracks at the given boxes, already
// predicted for the current frame. IDs follow slice order.
func predictedTracks(t *testing.T, boxes ...Box) (map[int]*Track, []int) {
	t.Helper()
	tracks := make(map[int]*Track, len(boxes))
	ids := make([]int, 0, len(boxes))
	for id, b := range boxes {
		trk := newInitialisedTrack(t, Detection{Box: b})
		trk.ID = id
		trk.Predict()
		tracks[id] = trk
		ids = append(ids, id)
	}
	return tracks, ids
}

type failingSolver struct{ err error }

func (s failingSolver) MinCostAssignment([][]float64) ([]int, error) { return nil, s.err }

type fixedSolver struct{ assign []int }

func (s fixedSolver) MinCostAssignment([][]float64) ([]int, error) { return s.assign, nil }

func TestIOUCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ZeroIOUCost, iouCost(0))
	assert.Equal(t, -0.5, iouCost(0.5))
	assert.Equal(t, -1.0, iouCost(1))
	// Any overlap must be cheaper than no overlap.
	assert.Greater(t, ZeroIOUCost, iouCost(1e-9))
}

func TestAssociate_NoTracks(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		NewDetection(0, 0, 10, 10, 0, 1),
		NewDetection(50, 50, 10, 10, 0, 1),
	}
	got, err := AssociateDetectionsToTrackers(dets, map[int]*Track{}, nil, 0.3, nil)
	require.NoError(t, err)

	assert.Empty(t, got.Matched)
	assert.Equal(t, dets, got.Unmatched)
	assert.Equal(t, []int{0, 1}, got.UnmatchedIndices)
	assert.Equal(t, []int{-1, -1}, got.DetectionTrack)
}

func TestAssociate_NoDetections(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10})
	got, err := AssociateDetectionsToTrackers(nil, tracks, ids, 0.3, failingSolver{errors.New("not called")})
	require.NoError(t, err)
	assert.Empty(t, got.Matched)
	assert.Empty(t, got.Unmatched)
}

func TestAssociate_OneToOne(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10}, Box{50, 50, 10, 10})
	dets := []Detection{
		NewDetection(51, 51, 10, 10, 1, 0.8),
		NewDetection(1, 0, 10, 10, 2, 0.9),
	}

	got, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, assignment.Munkres{})
	require.NoError(t, err)

	want := map[int]Detection{0: dets[1], 1: dets[0]}
	if diff := cmp.Diff(want, got.Matched); diff != "" {
		t.Errorf("Matched mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.Unmatched)
	assert.Equal(t, []int{1, 0}, got.DetectionTrack)
}

func TestAssociate_ThresholdRejectsWeakOverlap(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10})
	// IOU = 20 / 180 ≈ 0.11
	dets := []Detection{NewDetection(8, 0, 10, 10, 0, 1)}

	got, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Matched)
	assert.Equal(t, []int{0}, got.UnmatchedIndices)

	// The same pair passes a lower threshold.
	got, err = AssociateDetectionsToTrackers(dets, tracks, ids, 0.1, nil)
	require.NoError(t, err)
	assert.Contains(t, got.Matched, 0)
}

func TestAssociate_MoreDetectionsThanTracks(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10})
	dets := []Detection{
		NewDetection(2, 0, 10, 10, 0, 1), // IOU ≈ 0.67
		NewDetection(0, 0, 10, 10, 0, 1), // IOU = 1
	}

	got, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, dets[1], got.Matched[0])
	assert.Equal(t, []int{0}, got.UnmatchedIndices)
	assert.Equal(t, []int{-1, 0}, got.DetectionTrack)
}

func TestAssociate_ZeroIOUPairIsNotMatched(t *testing.T) {
	t.Parallel()

	// A square problem forces the solver to pair the far detection with
	// the far track even though they do not overlap.
	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10}, Box{200, 200, 10, 10})
	dets := []Detection{
		NewDetection(0, 0, 10, 10, 0, 1),
		NewDetection(100, 100, 10, 10, 0, 1),
	}

	got, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, nil)
	require.NoError(t, err)
	assert.Len(t, got.Matched, 1)
	assert.Contains(t, got.Matched, 0)
	assert.Equal(t, []int{1}, got.UnmatchedIndices)
}

func TestAssociate_SolverErrorPropagates(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10})
	dets := []Detection{NewDetection(0, 0, 10, 10, 0, 1)}
	boom := errors.New("boom")

	_, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, failingSolver{boom})
	assert.ErrorIs(t, err, boom)
}

func TestAssociate_InfeasibleSolverOutput(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t, Box{0, 0, 10, 10})
	dets := []Detection{
		NewDetection(0, 0, 10, 10, 0, 1),
		NewDetection(1, 0, 10, 10, 0, 1),
	}

	// Both detections claim the same track.
	_, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, fixedSolver{[]int{0, 0}})
	assert.ErrorIs(t, err, assignment.ErrInfeasible)
}

func TestAssociate_UnknownTrackID(t *testing.T) {
	t.Parallel()

	tracks, _ := predictedTracks(t, Box{0, 0, 10, 10})
	dets := []Detection{NewDetection(0, 0, 10, 10, 0, 1)}

	_, err := AssociateDetectionsToTrackers(dets, tracks, []int{7}, 0.3, nil)
	assert.Error(t, err)
}

func TestAssociate_SolversAgree(t *testing.T) {
	t.Parallel()

	tracks, ids := predictedTracks(t,
		Box{0, 0, 10, 10},
		Box{8, 0, 10, 10},
		Box{40, 40, 20, 20},
	)
	dets := []Detection{
		NewDetection(45, 42, 20, 20, 0, 1),
		NewDetection(1, 0, 10, 10, 0, 1),
		NewDetection(9, 1, 10, 10, 0, 1),
		NewDetection(300, 300, 5, 5, 0, 1),
	}

	want, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, assignment.Munkres{})
	require.NoError(t, err)
	got, err := AssociateDetectionsToTrackers(dets, tracks, ids, 0.3, assignment.GoHungarian{})
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GoHungarian association differs from Munkres (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{2, 0, 1, -1}, want.DetectionTrack)
}
