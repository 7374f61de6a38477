package assignment

import (
	hungarian "github.com/arthurkushman/go-hungarian"
)

// GoHungarian adapts github.com/arthurkushman/go-hungarian to Solver.
//
// That package only accepts square matrices, so inputs are padded with
// zero-cost dummy cells, and costs are shifted to be non-negative first.
// Shifting every real cell by the same constant keeps the optimal pairing.
type GoHungarian struct{}

// MinCostAssignment implements Solver.
func (GoHungarian) MinCostAssignment(cost [][]float64) ([]int, error) {
	n, m, err := checkMatrix(cost)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if m == 0 {
		return unassigned(n), nil
	}

	dim := n
	if m > dim {
		dim = m
	}

	lowest := 0.0
	for _, row := range cost {
		for _, v := range row {
			if v < lowest {
				lowest = v
			}
		}
	}

	padded := make([][]float64, dim)
	for i := range padded {
		padded[i] = make([]float64, dim)
		if i >= n {
			continue
		}
		for j := 0; j < m; j++ {
			padded[i][j] = cost[i][j] - lowest
		}
	}

	result := unassigned(n)
	for row, cols := range hungarian.SolveMin(padded) {
		if row < 0 || row >= n {
			continue
		}
		for col := range cols {
			if col >= 0 && col < m && cost[row][col] < Forbidden {
				result[row] = col
			}
		}
	}

	if err := Validate(result, n, m); err != nil {
		return nil, err
	}
	return result, nil
}
