// Package dataset holds the data plumbing around model identification:
// column normalization and scaling with reusable parameters, random
// train/test splitting, and the evaluation metrics reported after a run.
package dataset

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NormParam holds per-column mean and standard deviation from a training
// set, so test data can be normalized with the same transform.
type NormParam struct {
	Mean []float64
	Std  []float64
}

// Normalize returns a column-normalized copy of x (zero mean, unit standard
// deviation per column) along with the parameters used.
func Normalize(x *mat.Dense) (*mat.Dense, NormParam) {
	n, cols := x.Dims()
	p := NormParam{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, n)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		p.Mean[j] = stat.Mean(col, nil)
		p.Std[j] = stat.PopStdDev(col, nil)
	}
	return NormalizeWith(x, p), p
}

// NormalizeWith normalizes x using previously computed parameters.
func NormalizeWith(x *mat.Dense, p NormParam) *mat.Dense {
	n, cols := x.Dims()
	out := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (x.At(i, j)-p.Mean[j])/p.Std[j])
		}
	}
	return out
}

// ScaleParam holds per-column min and max from a training set.
type ScaleParam struct {
	Min []float64
	Max []float64
}

// Scale returns a copy of x with each column scaled into (-1, +1) along with
// the parameters used.
func Scale(x *mat.Dense) (*mat.Dense, ScaleParam) {
	n, cols := x.Dims()
	p := ScaleParam{Min: make([]float64, cols), Max: make([]float64, cols)}
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < n; i++ {
			lo = math.Min(lo, x.At(i, j))
			hi = math.Max(hi, x.At(i, j))
		}
		p.Min[j], p.Max[j] = lo, hi
	}
	return ScaleWith(x, p), p
}

// ScaleWith scales x using previously computed parameters.
func ScaleWith(x *mat.Dense, p ScaleParam) *mat.Dense {
	n, cols := x.Dims()
	out := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, -1.0+2.0*(x.At(i, j)-p.Min[j])/(p.Max[j]-p.Min[j]))
		}
	}
	return out
}

// Split randomly partitions (x, y) into training and test sets, with
// trainFrac of the samples (rounded down) in the training set.
func Split(rng *rand.Rand, x *mat.Dense, y []float64, trainFrac float64) (xtr, xte *mat.Dense, ytr, yte []float64, err error) {
	n, cols := x.Dims()
	if n != len(y) {
		return nil, nil, nil, nil, errors.Errorf("dataset: %v samples but %v labels", n, len(y))
	}
	if trainFrac <= 0 || trainFrac >= 1 {
		return nil, nil, nil, nil, errors.Errorf("dataset: invalid training fraction %v", trainFrac)
	}

	perm := rng.Perm(n)
	ntr := int(trainFrac * float64(n))

	xtr = mat.NewDense(ntr, cols, nil)
	xte = mat.NewDense(n-ntr, cols, nil)
	ytr = make([]float64, ntr)
	yte = make([]float64, n-ntr)
	for i, src := range perm {
		if i < ntr {
			for j := 0; j < cols; j++ {
				xtr.Set(i, j, x.At(src, j))
			}
			ytr[i] = y[src]
		} else {
			for j := 0; j < cols; j++ {
				xte.Set(i-ntr, j, x.At(src, j))
			}
			yte[i-ntr] = y[src]
		}
	}
	return xtr, xte, ytr, yte, nil
}

// Accuracy returns the fraction (in percent) of positions where a and b
// agree exactly.
func Accuracy(a, b []float64) float64 {
	hits := 0
	for i := range a {
		if a[i] == b[i] {
			hits++
		}
	}
	return 100.0 * float64(hits) / float64(len(a))
}

// RMSE returns the root-mean-square error between a and b.
func RMSE(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

// Corr returns the Pearson correlation between a and b.
func Corr(a, b []float64) float64 {
	return stat.Correlation(a, b, nil)
}

// ConfusionMatrix tabulates actual (rows) against predicted (columns) over
// the sorted union of labels appearing in either slice.
func ConfusionMatrix(actual, predicted []float64) (counts [][]int, labels []float64) {
	seen := map[float64]bool{}
	for _, v := range actual {
		seen[v] = true
	}
	for _, v := range predicted {
		seen[v] = true
	}
	labels = make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)

	col := make(map[float64]int, len(labels))
	for j, v := range labels {
		col[v] = j
	}
	counts = make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range actual {
		counts[col[actual[i]]][col[predicted[i]]]++
	}
	return counts, labels
}
