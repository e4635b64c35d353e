package anfis

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// buildClassMatrix one-hot encodes y against its sorted set of unique labels.
// Row i of the returned matrix has a single 1 in the column of y[i]'s label.
func buildClassMatrix(y []float64) (*mat.Dense, []float64) {
	labels := uniqueSorted(y)

	col := make(map[float64]int, len(labels))
	for j, v := range labels {
		col[v] = j
	}

	yout := mat.NewDense(len(y), len(labels), nil)
	for i, v := range y {
		yout.Set(i, col[v], 1.0)
	}
	return yout, labels
}

func uniqueSorted(y []float64) []float64 {
	seen := make(map[float64]bool, len(y))
	labels := make([]float64, 0, 8)
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			labels = append(labels, v)
		}
	}
	sort.Float64s(labels)
	return labels
}
