// Package tracking implements SORT: simple online multi-object tracking of
// 2D bounding boxes.
//
// Responsibilities: per-track constant-velocity Kalman filtering,
// IOU-based association through an assignment.Solver, track lifecycle
// (spawn, coasting, pruning) and ID allocation.
// Key types: Tracker, Track, Detection, TrackSnapshot.
//
// Dependency rule: tracking may depend on kalman, assignment, config and
// monitoring, but never on file formats (mot) or the CLI.
package tracking
