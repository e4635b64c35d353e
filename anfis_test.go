package anfis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestBuildCombs(t *testing.T) {
	m, err := New([]int{3, 2}, 2, Classification)
	require.NoError(t, err)
	m.buildCombs()

	// Cartesian product of {0,1,2} x {3,4}, last input varying fastest.
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2}, m.combs[0])
	assert.Equal(t, []int{3, 4, 3, 4, 3, 4}, m.combs[1])
}

func TestLayoutCounts(t *testing.T) {
	m, err := New([]int{3, 2}, 2, Classification)
	require.NoError(t, err)

	assert.Equal(t, 2, m.NInputs())
	assert.Equal(t, 5, m.nPF)
	assert.Equal(t, 6, m.nCF)
	assert.Equal(t, 3*5+3*6*2, m.NVar())
}

func TestExpandInput(t *testing.T) {
	m, err := New([]int{2, 1}, 1, Continuous)
	require.NoError(t, err)

	x := mat.NewDense(2, 2, []float64{
		1, 10,
		2, 20,
	})
	xe := m.expandInput(x)

	want := mat.NewDense(2, 3, []float64{
		1, 1, 10,
		2, 2, 20,
	})
	assert.True(t, mat.Equal(want, xe), "expanded input mismatch:\n%v", mat.Formatted(xe))
}

func TestBuildParamIdempotent(t *testing.T) {
	m, err := New([]int{2, 2}, 2, Classification)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	theta := make([]float64, m.NVar())
	for i := range theta {
		theta[i] = rng.Float64()*4 - 2
	}

	require.NoError(t, m.BuildParam(theta))
	mu1, s1, c1, a1 := m.Params()
	mu1, s1, c1 = append([]float64{}, mu1...), append([]float64{}, s1...), append([]float64{}, c1...)
	var a1c mat.Dense
	a1c.CloneFrom(a1)

	require.NoError(t, m.BuildParam(theta))
	mu2, s2, c2, a2 := m.Params()

	assert.Equal(t, mu1, mu2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
	assert.True(t, mat.Equal(&a1c, a2))
}

func TestBuildParamLengthCheck(t *testing.T) {
	m, err := New([]int{2, 2}, 2, Classification)
	require.NoError(t, err)

	assert.Error(t, m.BuildParam(make([]float64, m.NVar()-1)))
	assert.Error(t, m.BuildParam(nil))
}

// With consequents fixed to the constant hyperplane [1 0 ... 0], every rule
// contributes exactly its normalized firing strength, so each output equals
// the row sum of Wr.  That sum must be 1 wherever the raw firing strengths
// are positive.
func TestNormalizedFiringSumsToOne(t *testing.T) {
	m, err := New([]int{3, 2}, 1, Continuous)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	n := 50
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, rng.Float64()*4-2)
		x.Set(i, 1, rng.Float64()*4-2)
	}

	theta := make([]float64, m.NVar())
	for j := 0; j < m.nPF; j++ {
		theta[j] = rng.Float64()*4 - 2         // mu
		theta[m.nPF+j] = 0.5 + rng.Float64()   // s
		theta[2*m.nPF+j] = 1 + 2*rng.Float64() // c
	}
	for r := 0; r < m.nCF; r++ {
		theta[3*m.nPF+r] = 1.0 // bias row of A; remaining coefficients zero
	}

	require.NoError(t, m.BuildParam(theta))
	m.buildCombs()
	f := m.forward(x, m.expandInput(x))

	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, f.At(i, 0), 1e-9, "sample %v", i)
	}
}

func TestCostShapeChecks(t *testing.T) {
	m, err := New([]int{2, 2}, 2, Classification)
	require.NoError(t, err)
	theta := make([]float64, m.NVar())

	// Wrong column count.
	x := mat.NewDense(4, 3, nil)
	_, err = m.Cost(theta, x, make([]float64, 4))
	assert.Error(t, err)

	// Label count mismatch.
	x = mat.NewDense(4, 2, nil)
	_, err = m.Cost(theta, x, make([]float64, 3))
	assert.Error(t, err)

	// Wrong parameter length.
	_, err = m.Cost(theta[:1], x, make([]float64, 4))
	assert.Error(t, err)
}

func TestStableSigmoid(t *testing.T) {
	naiveSig := func(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }
	naiveLogsig := func(z float64) float64 { return math.Log(1.0 / (1.0 + math.Exp(-z))) }

	for z := -17.9; z < 18.0; z += 0.1 {
		assert.InDelta(t, naiveSig(z), sigmoid(z), 1e-10, "sigmoid(%v)", z)
		assert.InDelta(t, naiveLogsig(z), logsig(z), 1e-10, "logsig(%v)", z)
	}

	for _, z := range []float64{-1e6, -40, -20, 40, 1e6} {
		assert.False(t, math.IsInf(sigmoid(z), 0) || math.IsNaN(sigmoid(z)), "sigmoid(%v)", z)
		assert.False(t, math.IsInf(logsig(z), 0) || math.IsNaN(logsig(z)), "logsig(%v)", z)
	}
	assert.Equal(t, -1e6, logsig(-1e6))
	assert.Equal(t, 0.0, logsig(1e6))
}

func TestBuildClassMatrix(t *testing.T) {
	yout, labels := buildClassMatrix([]float64{2, 0, 1, 0})

	assert.Equal(t, []float64{0, 1, 2}, labels)
	want := mat.NewDense(4, 3, []float64{
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
		1, 0, 0,
	})
	assert.True(t, mat.Equal(want, yout))
}

func TestBounds(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		0, -1,
		5, 1,
		10, 0,
	})
	cfg := DefaultBoundsConfig()
	lb, ub, err := Bounds(x, []int{3, 1}, 2, cfg)
	require.NoError(t, err)

	nPF, nCF := 4, 3
	nVar := 3*nPF + 3*nCF*2
	require.Len(t, lb, nVar)
	require.Len(t, ub, nVar)
	for i := range lb {
		assert.LessOrEqual(t, lb[i], ub[i], "index %v", i)
	}

	// First input: means equidistributed at 0, 5, 10 with 0.1*10 slack.
	assert.InDelta(t, -1.0, lb[0], 1e-12)
	assert.InDelta(t, 1.0, ub[0], 1e-12)
	assert.InDelta(t, 4.0, lb[1], 1e-12)
	assert.InDelta(t, 6.0, ub[1], 1e-12)
	assert.InDelta(t, 9.0, lb[2], 1e-12)
	assert.InDelta(t, 11.0, ub[2], 1e-12)
	// Second input has a single MF: midpoint of [-1, 1].
	assert.InDelta(t, -0.2, lb[3], 1e-12)
	assert.InDelta(t, 0.2, ub[3], 1e-12)

	// Exponent and consequent blocks carry the fixed ranges.
	assert.Equal(t, cfg.CMin, lb[2*nPF])
	assert.Equal(t, cfg.CMax, ub[2*nPF])
	assert.Equal(t, cfg.AMin, lb[nVar-1])
	assert.Equal(t, cfg.AMax, ub[nVar-1])
}

func TestContinuousSingleOutput(t *testing.T) {
	_, err := New([]int{2}, 3, Continuous)
	assert.Error(t, err)
}
