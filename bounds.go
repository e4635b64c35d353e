package anfis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// BoundsConfig tunes the heuristic search-space construction in Bounds.
type BoundsConfig struct {
	// MuDelta is the fraction of each input's range that premise means may
	// drift from their equidistributed centers.
	MuDelta float64
	// SMid is the premise spread center as a fraction of the per-input step
	// size; STol is the absolute symmetric tolerance around it.
	SMid, STol float64
	// CMin and CMax bound the premise exponents.
	CMin, CMax float64
	// AMin and AMax bound every consequent coefficient.
	AMin, AMax float64
}

// DefaultBoundsConfig returns heuristic values that work well for
// column-normalized inputs.
func DefaultBoundsConfig() BoundsConfig {
	return BoundsConfig{
		MuDelta: 0.1,
		SMid:    0.5, STol: 0.2,
		CMin: 1.0, CMax: 3.0,
		AMin: -10.0, AMax: 10.0,
	}
}

// Bounds derives lower and upper search-space bounds for the flat parameter
// vector of a model with layout nMF from the observed feature ranges in x.
// Premise means are equidistributed across each input's min-max range (the
// midpoint if the input has a single MF) with MuDelta slack on each side;
// spreads are centered on SMid times the step size; exponents and consequent
// coefficients get fixed ranges.
func Bounds(x *mat.Dense, nMF []int, nOutputs int, cfg BoundsConfig) (lb, ub []float64, err error) {
	n, cols := x.Dims()
	if cols != len(nMF) {
		return nil, nil, errors.Errorf("anfis: input has %v columns, layout has %v", cols, len(nMF))
	}
	if n == 0 {
		return nil, nil, errors.New("anfis: empty input dataset")
	}

	nPF, nCF := 0, 1
	for _, m := range nMF {
		nPF += m
		nCF *= m
	}
	nVar := 3*nPF + (len(nMF)+1)*nCF*nOutputs

	lb = make([]float64, nVar)
	ub = make([]float64, nVar)
	i1 := nPF
	i2 := 2 * nPF
	i3 := 3 * nPF

	idx := 0
	for i := 0; i < len(nMF); i++ {
		xmin, xmax := math.Inf(1), math.Inf(-1)
		for r := 0; r < n; r++ {
			v := x.At(r, i)
			xmin = math.Min(xmin, v)
			xmax = math.Max(xmax, v)
		}
		xdelta := xmax - xmin

		var step, start, s float64
		if nMF[i] == 1 {
			start = (xmin + xmax) / 2.0
			s = cfg.SMid
		} else {
			step = xdelta / float64(nMF[i]-1)
			start = xmin
			s = cfg.SMid * step
		}

		for j := 0; j < nMF[i]; j++ {
			mu := start + step*float64(j)
			lb[idx] = mu - cfg.MuDelta*xdelta
			ub[idx] = mu + cfg.MuDelta*xdelta
			lb[i1+idx] = s - cfg.STol
			ub[i1+idx] = s + cfg.STol
			lb[i2+idx] = cfg.CMin
			ub[i2+idx] = cfg.CMax
			idx++
		}
	}

	for k := i3; k < nVar; k++ {
		lb[k] = cfg.AMin
		ub[k] = cfg.AMax
	}
	return lb, ub, nil
}
