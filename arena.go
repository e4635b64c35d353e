package anfis

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Arena binds one Model per candidate solution and adapts a batch of
// parameter vectors to a batch of scalar costs.  Each particle owns its
// model instance, so parameter state is never shared between candidates
// evaluated in the same epoch; only the per-model layout caches persist
// across epochs.
type Arena struct {
	models  []*Model
	x       *mat.Dense
	y       []float64
	workers int
}

// NewArena creates nPop independent models with the given layout, all bound
// to the same fixed training set.
func NewArena(nPop int, nMF []int, nOutputs int, problem Problem, x *mat.Dense, y []float64) (*Arena, error) {
	if nPop < 1 {
		return nil, errors.Errorf("anfis: invalid population size %v", nPop)
	}

	models := make([]*Model, nPop)
	for i := range models {
		m, err := New(nMF, nOutputs, problem)
		if err != nil {
			return nil, err
		}
		models[i] = m
	}
	return &Arena{
		models:  models,
		x:       x,
		y:       y,
		workers: runtime.GOMAXPROCS(0),
	}, nil
}

// Model returns the model owned by particle i.
func (a *Arena) Model(i int) *Model { return a.models[i] }

// Evaluate computes the training cost of every row of pos through the
// corresponding particle's model.  Rows are evaluated in parallel; results
// are fully collected before return, so callers may run their bookkeeping
// immediately.
func (a *Arena) Evaluate(ctx context.Context, pos *mat.Dense) ([]float64, error) {
	n, _ := pos.Dims()
	if n != len(a.models) {
		return nil, errors.Errorf("anfis: %v candidate rows for %v models", n, len(a.models))
	}

	costs := make([]float64, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			theta := append([]float64{}, pos.RawRowView(i)...)
			j, err := a.models[i].Cost(theta, a.x, a.y)
			if err != nil {
				return errors.Wrapf(err, "particle %v", i)
			}
			costs[i] = j
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return costs, nil
}
