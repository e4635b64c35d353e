package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestNormalize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 200
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 5+2*rng.NormFloat64())
		x.Set(i, 1, -3+0.5*rng.NormFloat64())
	}

	xn, p := Normalize(x)
	col := make([]float64, n)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, xn)
		assert.InDelta(t, 0.0, stat.Mean(col, nil), 1e-9)
		assert.InDelta(t, 1.0, stat.PopStdDev(col, nil), 1e-9)
	}

	// The same transform applied again reproduces the same output.
	assert.True(t, mat.EqualApprox(xn, NormalizeWith(x, p), 1e-12))
}

func TestScale(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{2, 6, 10})
	xs, p := Scale(x)

	assert.Equal(t, -1.0, xs.At(0, 0))
	assert.Equal(t, 0.0, xs.At(1, 0))
	assert.Equal(t, 1.0, xs.At(2, 0))
	assert.Equal(t, []float64{2}, p.Min)
	assert.Equal(t, []float64{10}, p.Max)

	// New data scaled with training parameters can leave (-1, 1).
	xs2 := ScaleWith(mat.NewDense(1, 1, []float64{14}), p)
	assert.Equal(t, 2.0, xs2.At(0, 0))
}

func TestSplit(t *testing.T) {
	n := 40
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		y[i] = float64(i)
	}

	xtr, xte, ytr, yte, err := Split(rand.New(rand.NewSource(3)), x, y, 0.75)
	require.NoError(t, err)
	assert.Equal(t, 30, len(ytr))
	assert.Equal(t, 10, len(yte))

	// Partition: every sample appears exactly once, features follow labels.
	seen := map[float64]bool{}
	for i, v := range ytr {
		assert.Equal(t, v, xtr.At(i, 0))
		seen[v] = true
	}
	for i, v := range yte {
		assert.Equal(t, v, xte.At(i, 0))
		seen[v] = true
	}
	assert.Len(t, seen, n)

	_, _, _, _, err = Split(rand.New(rand.NewSource(3)), x, y, 1.5)
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	assert.Equal(t, 75.0, Accuracy([]float64{1, 0, 1, 1}, []float64{1, 0, 1, 0}))
	assert.InDelta(t, 0.5, RMSE([]float64{1, 2}, []float64{1.5, 2.5}), 1e-12)
	assert.InDelta(t, 1.0, Corr([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
}

func TestConfusionMatrix(t *testing.T) {
	counts, labels := ConfusionMatrix(
		[]float64{0, 0, 1, 1, 1},
		[]float64{0, 1, 1, 1, 0},
	)
	assert.Equal(t, []float64{0, 1}, labels)
	assert.Equal(t, [][]int{
		{1, 1},
		{1, 2},
	}, counts)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	body := "a,b,label\n1.5,2.0,0\n-1.0,0.5,1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	x, y, err := Load(path)
	require.NoError(t, err)

	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1.5, 2.0, -1.0, 0.5}), x))
	assert.Equal(t, []float64{0, 1}, y)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
