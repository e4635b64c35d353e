package anfis

import (
	"context"
	"log/slog"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/fuzzkit/anfis/pso"
)

// FitConfig collects everything a Fit run needs.  Zero values fall back to
// sensible defaults where one exists.
type FitConfig struct {
	NMF      []int
	NOutputs int
	Problem  Problem

	Bounds BoundsConfig

	NPop      int
	Epochs    int
	K         int
	Phi       float64
	VelFact   float64
	Conf      pso.Confinement
	Normalize bool
	Rad       float64

	Rng    *rand.Rand
	Logger *slog.Logger
	Rec    *pso.Recorder
}

// Fit identifies a model on the training set (x, y): it derives heuristic
// search bounds from the feature ranges, runs the particle swarm over an
// arena of per-particle models, and returns the winning particle's model
// with the best parameter vector bound, ready for prediction.
func Fit(ctx context.Context, x *mat.Dense, y []float64, cfg FitConfig) (*Model, *pso.Result, error) {
	if cfg.NPop == 0 {
		cfg.NPop = 40
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 500
	}
	if cfg.Phi == 0 {
		cfg.Phi = 2.05
	}
	if cfg.VelFact == 0 {
		cfg.VelFact = 0.5
	}
	if cfg.Rad == 0 {
		cfg.Rad = 0.1
	}
	if cfg.Bounds == (BoundsConfig{}) {
		cfg.Bounds = DefaultBoundsConfig()
	}

	lb, ub, err := Bounds(x, cfg.NMF, cfg.NOutputs, cfg.Bounds)
	if err != nil {
		return nil, nil, err
	}
	arena, err := NewArena(cfg.NPop, cfg.NMF, cfg.NOutputs, cfg.Problem, x, y)
	if err != nil {
		return nil, nil, err
	}

	opts := []pso.Option{
		pso.NPop(cfg.NPop),
		pso.Epochs(cfg.Epochs),
		pso.Informants(cfg.K),
		pso.Phi(cfg.Phi),
		pso.VelFact(cfg.VelFact),
		pso.Confine(cfg.Conf),
		pso.Radius(cfg.Rad),
	}
	if cfg.Normalize {
		opts = append(opts, pso.Normalized())
	}
	if cfg.Rng != nil {
		opts = append(opts, pso.Rng(cfg.Rng))
	}
	if cfg.Logger != nil {
		opts = append(opts, pso.Logger(cfg.Logger))
	}
	if cfg.Rec != nil {
		opts = append(opts, pso.Record(cfg.Rec))
	}

	opt, err := pso.New(lb, ub, opts...)
	if err != nil {
		return nil, nil, err
	}
	res, err := opt.Minimize(ctx, arena)
	if err != nil {
		return nil, nil, err
	}

	// The winning particle's model last evaluated its final-epoch position,
	// which is not necessarily the best one found; rebind the best vector.
	best := arena.Model(res.BestIndex)
	if err := best.BuildParam(res.BestPos); err != nil {
		return nil, nil, err
	}
	return best, res, nil
}
