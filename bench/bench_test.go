package bench

import (
	"context"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/fuzzkit/anfis/pso"
)

func TestOptima(t *testing.T) {
	// Known minimizer positions evaluate to the stated optimum.
	cases := []struct {
		fn  Func
		pos []float64
		tol float64
	}{
		{Ackley{}, []float64{0, 0}, 1e-9},
		{Schaffer2{}, []float64{0, 0}, 1e-9},
		{Styblinski{NDim: 2}, []float64{-2.903534, -2.903534}, 1e-3},
		{Rosenbrock{NDim: 2}, []float64{1, 1}, 1e-9},
	}
	for _, c := range cases {
		if got := c.fn.Eval(c.pos); math.Abs(got-c.fn.Optimum()) > c.tol {
			t.Errorf("[ERROR] %v at minimizer: got %v, want %v", c.fn.Name(), got, c.fn.Optimum())
		}
	}
}

func TestSolve(t *testing.T) {
	for _, fn := range AllFuncs {
		lb, ub := fn.Bounds()
		o, err := pso.New(lb, ub,
			pso.NPop(40),
			pso.Epochs(300),
			pso.Informants(10),
			pso.Rng(rand.New(rand.NewSource(1))),
		)
		if err != nil {
			t.Fatal(err)
		}
		res, err := o.Minimize(context.Background(), Objective(fn))
		if err != nil {
			t.Errorf("[ERROR:%v] %v", fn.Name(), err)
			continue
		}

		diff := math.Abs(res.BestCost - fn.Optimum())
		thresh := 0.01 * math.Abs(fn.Optimum())
		if thresh < 1.0 {
			thresh = 1.0
		}
		if diff > thresh {
			t.Logf("[warn:%v] best %v is %v above optimum %v", fn.Name(), res.BestCost, diff, fn.Optimum())
		} else {
			t.Logf("[pass:%v] best %v, optimum %v, near-best %v", fn.Name(), res.BestCost, fn.Optimum(), res.NearBest)
		}
		if math.IsNaN(res.BestCost) || math.IsInf(res.BestCost, 0) {
			t.Errorf("[ERROR:%v] non-finite best cost", fn.Name())
		}
	}
}
