package tracking

import (
	"fmt"

	"github.com/banshee-data/sort/internal/assignment"
)

// ZeroIOUCost is the cost assigned to detection-track pairs with no overlap.
// Overlapping pairs cost -IOU, so any overlap is always preferred; the
// solver may still pick a zero-IOU pair to complete a matching, which the
// threshold check then rejects.
const ZeroIOUCost = 1.0

// Association is the outcome of matching one frame's detections to tracks.
// Tracks absent from Matched were not matched this frame.
type Association struct {
	// Matched maps track ID to the detection assigned to it.
	Matched map[int]Detection
	// Unmatched holds detections that will spawn new tracks, in input order.
	Unmatched []Detection
	// UnmatchedIndices are the input indices of Unmatched.
	UnmatchedIndices []int
	// DetectionTrack[i] is the track ID matched to detection i, or -1.
	DetectionTrack []int
}

func newAssociation(numDets int) Association {
	a := Association{
		Matched:        make(map[int]Detection),
		DetectionTrack: make([]int, numDets),
	}
	for i := range a.DetectionTrack {
		a.DetectionTrack[i] = -1
	}
	return a
}

func (a *Association) addUnmatched(i int, det Detection) {
	a.Unmatched = append(a.Unmatched, det)
	a.UnmatchedIndices = append(a.UnmatchedIndices, i)
}

// iouCost converts an overlap score into an assignment cost.
func iouCost(iou float64) float64 {
	if iou != 0 {
		return -iou
	}
	return ZeroIOUCost
}

// AssociateDetectionsToTrackers matches dets against the tracks listed in
// ids (cost-matrix column order) by maximising total IOU with solver. A
// solver-selected pair is only accepted when its IOU reaches iouThreshold.
// Tracks must already be predicted for this frame. A nil solver uses Munkres.
func AssociateDetectionsToTrackers(dets []Detection, tracks map[int]*Track, ids []int, iouThreshold float64, solver assignment.Solver) (Association, error) {
	return associate(dets, tracks, ids, iouThreshold, solver, nil)
}

func associate(dets []Detection, tracks map[int]*Track, ids []int, iouThreshold float64, solver assignment.Solver, dc DebugCollector) (Association, error) {
	result := newAssociation(len(dets))
	if len(ids) == 0 {
		for i, det := range dets {
			result.addUnmatched(i, det)
		}
		return result, nil
	}
	if len(dets) == 0 {
		return result, nil
	}
	if solver == nil {
		solver = assignment.Munkres{}
	}

	predicted := make([]Box, len(ids))
	for j, id := range ids {
		trk, ok := tracks[id]
		if !ok {
			return Association{}, fmt.Errorf("associate: unknown track %d", id)
		}
		predicted[j] = trk.GetStateAsBbox()
	}

	iou := make([][]float64, len(dets))
	cost := make([][]float64, len(dets))
	for i, det := range dets {
		iou[i] = make([]float64, len(ids))
		cost[i] = make([]float64, len(ids))
		for j := range ids {
			iou[i][j] = IOU(det.Box, predicted[j])
			cost[i][j] = iouCost(iou[i][j])
		}
	}

	assign, err := solver.MinCostAssignment(cost)
	if err != nil {
		return Association{}, fmt.Errorf("associate %d detections with %d tracks: %w", len(dets), len(ids), err)
	}
	if err := assignment.Validate(assign, len(dets), len(ids)); err != nil {
		return Association{}, fmt.Errorf("associate: %w", err)
	}

	for i, det := range dets {
		j := assign[i]
		accepted := j >= 0 && iou[i][j] >= iouThreshold
		if accepted {
			result.Matched[ids[j]] = det
			result.DetectionTrack[i] = ids[j]
		} else {
			result.addUnmatched(i, det)
		}

		if dc != nil && dc.IsEnabled() {
			for jj, id := range ids {
				dc.RecordAssociation(i, id, iou[i][jj], accepted && jj == j)
			}
		}
	}
	return result, nil
}
