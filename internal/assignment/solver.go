// Package assignment provides minimum-cost bipartite matching over
// rectangular cost matrices.
//
// Consumers depend on the Solver interface only; Munkres is the default
// implementation and GoHungarian wraps a third-party solver. Any correct
// minimum-cost matching satisfies the contract.
package assignment

import (
	"errors"
	"fmt"
	"math"
)

// Forbidden marks a cost cell that must never be selected. Rows whose only
// options are forbidden come back unassigned.
const Forbidden = 1e18

// Solver names accepted by ByName.
const (
	NameMunkres     = "munkres"
	NameGoHungarian = "go-hungarian"
)

var (
	// ErrRaggedMatrix is returned when cost rows differ in length.
	ErrRaggedMatrix = errors.New("assignment: ragged cost matrix")
	// ErrNonFiniteCost is returned when a cost cell is NaN or ±Inf.
	ErrNonFiniteCost = errors.New("assignment: non-finite cost")
	// ErrInfeasible is returned when a solver produces a pairing that is not
	// one-to-one or falls outside the matrix.
	ErrInfeasible = errors.New("assignment: infeasible pairing")
	// ErrUnknownSolver is returned by ByName.
	ErrUnknownSolver = errors.New("assignment: unknown solver")
)

// Solver finds a one-to-one pairing of rows to columns minimising total cost.
//
// MinCostAssignment returns assign where assign[i] is the column chosen for
// row i, or -1 when row i is left unassigned. Rectangular matrices are legal;
// at most min(rows, cols) rows are assigned.
type Solver interface {
	MinCostAssignment(cost [][]float64) ([]int, error)
}

// ByName returns the solver registered under name.
func ByName(name string) (Solver, error) {
	switch name {
	case NameMunkres, "":
		return Munkres{}, nil
	case NameGoHungarian:
		return GoHungarian{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, name)
	}
}

// checkMatrix returns the matrix dimensions after verifying it is
// rectangular and finite.
func checkMatrix(cost [][]float64) (rows, cols int, err error) {
	rows = len(cost)
	if rows == 0 {
		return 0, 0, nil
	}
	cols = len(cost[0])
	for i, row := range cost {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRaggedMatrix, i, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: cost[%d][%d] = %v", ErrNonFiniteCost, i, j, v)
			}
		}
	}
	return rows, cols, nil
}

// unassigned returns a slice of n -1 entries.
func unassigned(n int) []int {
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	return result
}

// Validate checks that assign is a legal pairing for a rows×cols matrix:
// one entry per row, each -1 or a column in range, no column used twice.
func Validate(assign []int, rows, cols int) error {
	if len(assign) != rows {
		return fmt.Errorf("%w: %d assignments for %d rows", ErrInfeasible, len(assign), rows)
	}
	used := make(map[int]int, len(assign))
	for i, j := range assign {
		if j == -1 {
			continue
		}
		if j < 0 || j >= cols {
			return fmt.Errorf("%w: row %d assigned to column %d of %d", ErrInfeasible, i, j, cols)
		}
		if prev, ok := used[j]; ok {
			return fmt.Errorf("%w: column %d assigned to rows %d and %d", ErrInfeasible, j, prev, i)
		}
		used[j] = i
	}
	return nil
}

// TotalCost sums the selected cells of assign.
func TotalCost(cost [][]float64, assign []int) float64 {
	var total float64
	for i, j := range assign {
		if j >= 0 {
			total += cost[i][j]
		}
	}
	return total
}
