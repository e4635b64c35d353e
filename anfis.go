// Package anfis implements an adaptive neuro-fuzzy inference system (ANFIS)
// whose premise and consequent parameters are identified by an external
// minimizer operating on a flat parameter vector.  The model is a pure
// function of (parameters, inputs); it knows nothing about the optimizer
// driving it.
//
// Premise membership functions are generalized Bell functions
//
//	pf = 1 / (1 + ((x-mu)^2 / s^2)^c)
//
// and consequents are linear hyperplanes over the augmented input [1, X].
package anfis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Problem selects the cost function and prediction behavior of a Model.
type Problem int

const (
	// Continuous fits raw outputs with a half sum-of-squares cost.
	Continuous Problem = iota
	// Classification fits one-hot encoded labels with a cross-entropy style
	// cost built on the stable log-sigmoid.
	Classification
)

// Model holds the layout and (once bound) the parameters of one ANFIS
// instance.  A Model is not safe for concurrent use; the optimizer keeps one
// instance per candidate solution instead of sharing.
type Model struct {
	nMF      []int
	nOutputs int
	problem  Problem

	nInputs int
	nPF     int // total premise MFs across inputs
	nCF     int // total rules (product of per-input MF counts)
	nVar    int

	// combs[i][r] is the premise function index of input i in rule r.
	// Built lazily on first use, immutable afterwards.
	combs [][]int

	// Cached training-set expansion and class encoding, built on the first
	// Cost call and reused for every subsequent epoch.
	xe     *mat.Dense
	yout   *mat.Dense
	labels []float64

	mu, s, c []float64
	a        *mat.Dense // (nInputs+1) x (nCF*nOutputs)
}

// New returns a Model for the given layout.  nMF holds the number of
// membership functions per input, one entry per input feature.
func New(nMF []int, nOutputs int, problem Problem) (*Model, error) {
	if len(nMF) == 0 {
		return nil, errors.New("anfis: empty membership function layout")
	}
	if nOutputs < 1 {
		return nil, errors.Errorf("anfis: invalid output count %v", nOutputs)
	}
	// Targets flow through this API as a flat vector, so continuous models
	// carry exactly one output channel.
	if problem == Continuous && nOutputs != 1 {
		return nil, errors.Errorf("anfis: continuous models support a single output, got %v", nOutputs)
	}

	nPF, nCF := 0, 1
	for i, n := range nMF {
		if n < 1 {
			return nil, errors.Errorf("anfis: input %v has invalid MF count %v", i, n)
		}
		nPF += n
		nCF *= n
	}

	m := &Model{
		nMF:      append([]int{}, nMF...),
		nOutputs: nOutputs,
		problem:  problem,
		nInputs:  len(nMF),
		nPF:      nPF,
		nCF:      nCF,
	}
	m.nVar = 3*nPF + (m.nInputs+1)*nCF*nOutputs
	return m, nil
}

// NVar returns the length of the flat parameter vector the model expects.
func (m *Model) NVar() int { return m.nVar }

// NInputs returns the number of input features.
func (m *Model) NInputs() int { return m.nInputs }

// NOutputs returns the number of output channels.
func (m *Model) NOutputs() int { return m.nOutputs }

// Layout returns the per-input membership function counts.
func (m *Model) Layout() []int { return append([]int{}, m.nMF...) }

// buildCombs enumerates every combination of one premise function per input,
// offsetting indices so they address columns of the expanded input directly.
// For nMF = [3, 2] the rule columns are {0,1,2} x {3,4} with the last input
// varying fastest:
//
//	[[0 0 1 1 2 2]
//	 [3 4 3 4 3 4]]
func (m *Model) buildCombs() {
	m.combs = make([][]int, m.nInputs)
	rep := m.nCF
	off := 0
	for i := 0; i < m.nInputs; i++ {
		m.combs[i] = make([]int, m.nCF)
		rep /= m.nMF[i]
		for r := 0; r < m.nCF; r++ {
			m.combs[i][r] = off + (r/rep)%m.nMF[i]
		}
		off += m.nMF[i]
	}
}

// expandInput replicates each input column once per membership function
// assigned to it so samples align positionally with mu, s, and c.
func (m *Model) expandInput(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	xe := mat.NewDense(n, m.nPF, nil)
	col := 0
	for i := 0; i < m.nInputs; i++ {
		for j := 0; j < m.nMF[i]; j++ {
			for r := 0; r < n; r++ {
				xe.Set(r, col, x.At(r, i))
			}
			col++
		}
	}
	return xe
}

// BuildParam slices theta into the premise parameters mu, s, c and the
// consequent coefficient matrix A.  The layout is fixed: three blocks of
// length nPF followed by (nInputs+1) x (nCF*nOutputs) coefficients in
// row-major order.
func (m *Model) BuildParam(theta []float64) error {
	if len(theta) != m.nVar {
		return errors.Errorf("anfis: parameter vector has length %v, want %v", len(theta), m.nVar)
	}

	i1 := m.nPF
	i2 := 2 * i1
	i3 := 3 * i1

	m.mu = append([]float64{}, theta[:i1]...)
	m.s = append([]float64{}, theta[i1:i2]...)
	m.c = append([]float64{}, theta[i2:i3]...)
	m.a = mat.NewDense(m.nInputs+1, m.nCF*m.nOutputs, append([]float64{}, theta[i3:]...))
	return nil
}

// Params returns the currently bound premise parameters and consequent
// coefficient matrix.  The returned A must not be modified.
func (m *Model) Params() (mu, s, c []float64, a *mat.Dense) {
	return m.mu, m.s, m.c, m.a
}

// forward runs the five inference layers and returns the raw model output,
// one row per sample and one column per output channel.
//
// Samples whose rule firing strengths sum to zero divide by zero in the
// normalization layer and propagate a non-finite output.  This is
// deliberately not guarded: a non-finite cost simply loses against any
// finite personal best in the search.
func (m *Model) forward(x, xe *mat.Dense) *mat.Dense {
	n, _ := x.Dims()

	// Layer 1: premise membership values.
	pf := mat.NewDense(n, m.nPF, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m.nPF; j++ {
			d := (xe.At(i, j) - m.mu[j]) / m.s[j]
			pf.Set(i, j, 1.0/(1.0+math.Pow(d*d, m.c[j])))
		}
	}

	// Layer 2: rule firing strengths.
	w := mat.NewDense(n, m.nCF, nil)
	for i := 0; i < n; i++ {
		for r := 0; r < m.nCF; r++ {
			prod := 1.0
			for k := 0; k < m.nInputs; k++ {
				prod *= pf.At(i, m.combs[k][r])
			}
			w.Set(i, r, prod)
		}
	}

	// Layer 3: normalized firing strengths.
	wr := mat.NewDense(n, m.nCF, nil)
	for i := 0; i < n; i++ {
		sum := 0.0
		for r := 0; r < m.nCF; r++ {
			sum += w.At(i, r)
		}
		for r := 0; r < m.nCF; r++ {
			wr.Set(i, r, w.At(i, r)/sum)
		}
	}

	// Layers 4 and 5: consequent hyperplanes weighted by firing strength,
	// aggregated per output channel.
	x1 := mat.NewDense(n, m.nInputs+1, nil)
	for i := 0; i < n; i++ {
		x1.Set(i, 0, 1.0)
		for j := 0; j < m.nInputs; j++ {
			x1.Set(i, j+1, x.At(i, j))
		}
	}
	var proj mat.Dense
	proj.Mul(x1, m.a) // n x (nCF*nOutputs)

	f := mat.NewDense(n, m.nOutputs, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < m.nOutputs; k++ {
			sum := 0.0
			for r := 0; r < m.nCF; r++ {
				sum += wr.At(i, r) * proj.At(i, k*m.nCF+r)
			}
			f.Set(i, k, sum)
		}
	}
	return f
}

// Cost binds theta, runs the forward pass over the training inputs, and
// returns the scalar cost.  The rule layout, expanded input, and (for
// classification) the one-hot label matrix are built on the first call and
// reused afterwards; every call must use the same training set.
func (m *Model) Cost(theta []float64, x *mat.Dense, y []float64) (float64, error) {
	n, cols := x.Dims()
	if cols != m.nInputs {
		return 0, errors.Errorf("anfis: input has %v columns, model expects %v", cols, m.nInputs)
	}
	if n != len(y) {
		return 0, errors.Errorf("anfis: %v samples but %v labels", n, len(y))
	}

	if m.combs == nil {
		m.buildCombs()
	}
	if m.xe == nil {
		m.xe = m.expandInput(x)
		if m.problem == Classification {
			m.yout, m.labels = buildClassMatrix(y)
			if len(m.labels) != m.nOutputs {
				m.xe = nil
				return 0, errors.Errorf("anfis: %v distinct labels but model has %v outputs", len(m.labels), m.nOutputs)
			}
		}
	}

	if err := m.BuildParam(theta); err != nil {
		return 0, err
	}
	f := m.forward(x, m.xe)

	if m.problem == Classification {
		sum := 0.0
		for i := 0; i < n; i++ {
			for k := 0; k < m.nOutputs; k++ {
				z := f.At(i, k)
				sum += (1.0-m.yout.At(i, k))*z - logsig(z)
			}
		}
		return sum / float64(n), nil
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		d := f.At(i, 0) - y[i]
		sum += d * d
	}
	return sum / 2.0, nil
}

// Predict runs the forward pass on xp and returns the raw model output.
// Parameters must have been bound with BuildParam or Cost first.
func (m *Model) Predict(xp *mat.Dense) (*mat.Dense, error) {
	if m.a == nil {
		return nil, errors.New("anfis: parameters not bound")
	}
	_, cols := xp.Dims()
	if cols != m.nInputs {
		return nil, errors.Errorf("anfis: input has %v columns, model expects %v", cols, m.nInputs)
	}
	if m.combs == nil {
		m.buildCombs()
	}
	return m.forward(xp, m.expandInput(xp)), nil
}

// PredictLabels evaluates xp and maps each sample to the class whose
// activated output channel is largest, breaking ties toward the lower
// channel index.  It is only valid for classification models that have seen
// training labels through Cost.
func (m *Model) PredictLabels(xp *mat.Dense) ([]float64, error) {
	if m.problem != Classification {
		return nil, errors.New("anfis: PredictLabels requires a classification model")
	}
	if m.labels == nil {
		return nil, errors.New("anfis: class list not initialized (no training cost evaluated)")
	}
	f, err := m.Predict(xp)
	if err != nil {
		return nil, err
	}

	n, _ := f.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		best, bestk := math.Inf(-1), 0
		for k := 0; k < m.nOutputs; k++ {
			if a := sigmoid(f.At(i, k)); a > best {
				best, bestk = a, k
			}
		}
		out[i] = m.labels[bestk]
	}
	return out, nil
}
