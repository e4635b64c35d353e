// Package pso implements a constriction-coefficient particle swarm
// minimizer for box-constrained objectives evaluated a full population at a
// time.  The velocity update follows the SPSO formulation of
//
//	Clerc, M. "Standard Particle Swarm Optimisation" (2012), hal-00764996
//
// with a stochastic hypersphere sample around each particle's gravity point,
// optional informant topologies, and selectable boundary confinement rules.
//
// The optimizer knows nothing about the objective beyond its batch call
// contract: an nPop x nVar candidate matrix in, an nPop cost vector out.
package pso

import (
	"context"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Objective is the batch cost contract.  Evaluate must be pure with respect
// to pos: the same candidate matrix yields the same cost vector.
type Objective interface {
	Evaluate(ctx context.Context, pos *mat.Dense) ([]float64, error)
}

// ObjectiveFunc adapts a plain function to the Objective interface.
type ObjectiveFunc func(ctx context.Context, pos *mat.Dense) ([]float64, error)

func (f ObjectiveFunc) Evaluate(ctx context.Context, pos *mat.Dense) ([]float64, error) {
	return f(ctx, pos)
}

// Confinement selects the velocity correction applied to dimensions whose
// tentative position leaves the open interval (LB, UB).
type Confinement int

const (
	// RandomBack reverses the velocity scaled by an independent uniform
	// draw per dimension.
	RandomBack Confinement = iota
	// Hyperbolic asymptotically rescales the velocity toward the violated
	// boundary.
	Hyperbolic
	// Mixed flips a fair coin per dimension between the two rules above.
	Mixed
)

// Result reports the outcome of a Minimize run.
type Result struct {
	// BestPos is the swarm-best position, in original (de-normalized)
	// coordinates.
	BestPos []float64
	// BestCost is the objective value at BestPos.
	BestCost float64
	// BestIndex is the particle that found BestPos.
	BestIndex int
	// NearBest counts particles whose bounds-normalized distance from the
	// swarm best, scaled by 1/sqrt(nPop), falls under the configured radius.
	NearBest int
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// NPop sets the number of particles.
func NPop(n int) Option { return func(o *Optimizer) { o.npop = n } }

// Epochs sets the fixed iteration count.  There is no early termination.
func Epochs(n int) Option { return func(o *Optimizer) { o.epochs = n } }

// Informants sets the average informant group size K.  K = 0 uses the whole
// swarm as every particle's group.
func Informants(k int) Option { return func(o *Optimizer) { o.k = k } }

// Phi sets the confidence coefficient parameter (must be > 2).
func Phi(phi float64) Option { return func(o *Optimizer) { o.phi = phi } }

// VelFact sets the maximum velocity as a fraction of each dimension's range.
func VelFact(v float64) Option { return func(o *Optimizer) { o.velFact = v } }

// Confine selects the boundary confinement strategy.
func Confine(c Confinement) Option { return func(o *Optimizer) { o.conf = c } }

// IntegerVars declares the given zero-based dimensions integer-constrained.
func IntegerVars(idx ...int) Option {
	return func(o *Optimizer) { o.intVar = append([]int{}, idx...) }
}

// AllInteger declares every dimension integer-constrained.
func AllInteger() Option { return func(o *Optimizer) { o.allInt = true } }

// Normalized makes the optimizer search on [0,1]^nVar internally, mapping to
// the original bounds only for objective calls and the reported result.
func Normalized() Option { return func(o *Optimizer) { o.normalize = true } }

// Radius sets the normalized hypersphere radius used for the convergence
// diagnostic in Result.NearBest.
func Radius(r float64) Option { return func(o *Optimizer) { o.rad = r } }

// Rng injects the random source.  All draws flow through it in a fixed
// particle-major order, so a seeded source makes runs reproducible.
func Rng(rng *rand.Rand) Option { return func(o *Optimizer) { o.rng = rng } }

// Logger sets the logger for per-epoch progress (Debug level).
func Logger(l *slog.Logger) Option { return func(o *Optimizer) { o.log = l } }

// Record attaches a swarm state recorder that is written after every epoch.
func Record(r *Recorder) Option { return func(o *Optimizer) { o.rec = r } }

// Progress registers a callback invoked after every epoch with the current
// swarm-best cost.
func Progress(fn func(epoch int, best float64)) Option {
	return func(o *Optimizer) { o.progress = fn }
}

// Optimizer minimizes an Objective over box bounds.  Construct with New;
// the zero value is not usable.
type Optimizer struct {
	lb, ub []float64

	npop      int
	epochs    int
	k         int
	phi       float64
	velFact   float64
	conf      Confinement
	intVar    []int
	allInt    bool
	normalize bool
	rad       float64

	rng      *rand.Rand
	log      *slog.Logger
	rec      *Recorder
	progress func(int, float64)
}

// New validates bounds and options and returns a ready Optimizer.
func New(lb, ub []float64, opts ...Option) (*Optimizer, error) {
	if len(lb) == 0 || len(lb) != len(ub) {
		return nil, errors.Errorf("pso: bounds have lengths %v and %v", len(lb), len(ub))
	}
	for i := range lb {
		if lb[i] > ub[i] {
			return nil, errors.Errorf("pso: empty search space, LB[%v]=%v > UB[%v]=%v", i, lb[i], i, ub[i])
		}
	}

	o := &Optimizer{
		lb:      append([]float64{}, lb...),
		ub:      append([]float64{}, ub...),
		npop:    40,
		epochs:  500,
		phi:     2.05,
		velFact: 0.5,
		conf:    RandomBack,
		rad:     0.1,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.npop < 1 {
		return nil, errors.Errorf("pso: invalid population size %v", o.npop)
	}
	if o.epochs < 1 {
		return nil, errors.Errorf("pso: invalid epoch count %v", o.epochs)
	}
	if o.phi <= 2 {
		return nil, errors.Errorf("pso: phi must be > 2, got %v", o.phi)
	}
	if o.k < 0 {
		return nil, errors.Errorf("pso: invalid informant count %v", o.k)
	}
	if o.allInt {
		o.intVar = make([]int, len(lb))
		for i := range o.intVar {
			o.intVar[i] = i
		}
	}
	for _, i := range o.intVar {
		if i < 0 || i >= len(lb) {
			return nil, errors.Errorf("pso: integer variable index %v out of range", i)
		}
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(1))
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o, nil
}

// Minimize runs the configured number of epochs and returns the swarm best.
// Cancellation is honored at epoch boundaries only, so the swarm state is
// never left half-updated.
func (o *Optimizer) Minimize(ctx context.Context, f Objective) (*Result, error) {
	r := o.newRun(f)
	if err := r.init(ctx); err != nil {
		return nil, err
	}
	for e := 1; e <= o.epochs; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.epoch(ctx, e); err != nil {
			return nil, err
		}
	}
	return r.result(), nil
}

// run holds the mutable swarm state for one Minimize call.  All particles
// are updated from the swarm/group bests computed at the end of the previous
// epoch; no particle observes a partially-updated epoch.
type run struct {
	o *Optimizer
	f Objective

	nVar   int
	w      float64 // constriction coefficient
	cmax   float64
	velMax []float64
	pInf   float64 // probability a particle informs another

	// Search-space bounds actually iterated on ([0,1] when normalized).
	lb, ub []float64

	pos, vel  *mat.Dense
	bestPos   *mat.Dense
	cost      []float64
	bestCost  []float64
	groupBest *mat.Dense
	bias      []float64 // self-bias factor, 0.75 for a particle that is its own group best
	inform    [][]bool

	swarmBestPos  []float64
	swarmBestCost float64
	swarmBestIdx  int

	normal distuv.Normal

	// scratch
	gr, sphere, dir []float64
	out             [][]bool
	velConf         *mat.Dense
	evalPos         *mat.Dense
}

func (o *Optimizer) newRun(f Objective) *run {
	nVar := len(o.lb)
	r := &run{
		o:    o,
		f:    f,
		nVar: nVar,
		lb:   o.lb,
		ub:   o.ub,
	}
	if o.normalize {
		r.lb = make([]float64, nVar)
		r.ub = make([]float64, nVar)
		for i := range r.ub {
			r.ub[i] = 1
		}
		r.evalPos = mat.NewDense(o.npop, nVar, nil)
	}

	// Constriction-style confidence coefficients, fixed for the whole run.
	r.w = 1.0 / (o.phi - 1.0 + math.Sqrt(o.phi*o.phi-2.0*o.phi))
	r.cmax = r.w * o.phi
	r.pInf = 1.0 - math.Pow(1.0-1.0/float64(o.npop), float64(o.k))

	r.velMax = make([]float64, nVar)
	for i := range r.velMax {
		r.velMax[i] = o.velFact * (r.ub[i] - r.lb[i])
	}

	r.pos = mat.NewDense(o.npop, nVar, nil)
	r.vel = mat.NewDense(o.npop, nVar, nil)
	r.bestPos = mat.NewDense(o.npop, nVar, nil)
	r.groupBest = mat.NewDense(o.npop, nVar, nil)
	r.velConf = mat.NewDense(o.npop, nVar, nil)
	r.cost = make([]float64, o.npop)
	r.bestCost = make([]float64, o.npop)
	r.bias = make([]float64, o.npop)
	r.swarmBestPos = make([]float64, nVar)

	r.gr = make([]float64, nVar)
	r.sphere = make([]float64, nVar)
	r.dir = make([]float64, nVar)
	r.out = make([][]bool, o.npop)
	for i := range r.out {
		r.out[i] = make([]bool, nVar)
	}

	r.normal = distuv.Normal{Mu: 0, Sigma: 1, Src: o.rng}
	return r
}

func (r *run) init(ctx context.Context) error {
	o := r.o

	for i := 0; i < o.npop; i++ {
		for j := 0; j < r.nVar; j++ {
			r.pos.Set(i, j, r.lb[j]+o.rng.Float64()*(r.ub[j]-r.lb[j]))
		}
	}
	r.roundInts(r.pos)

	for i := 0; i < o.npop; i++ {
		for j := 0; j < r.nVar; j++ {
			v := (r.lb[j] - r.pos.At(i, j)) + o.rng.Float64()*(r.ub[j]-r.lb[j])
			r.vel.Set(i, j, clamp(v, -r.velMax[j], r.velMax[j]))
		}
	}

	if err := r.eval(ctx); err != nil {
		return err
	}
	r.bestPos.Copy(r.pos)
	copy(r.bestCost, r.cost)

	// First occurrence wins ties.
	r.swarmBestIdx = argmin(r.bestCost)
	r.swarmBestCost = r.bestCost[r.swarmBestIdx]
	copy(r.swarmBestPos, r.bestPos.RawRowView(r.swarmBestIdx))

	if o.k > 0 {
		r.sampleInformants()
	}
	r.updateGroups()

	if o.rec != nil {
		if err := o.rec.init(r.nVar); err != nil {
			return err
		}
		if err := r.record(0); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) epoch(ctx context.Context, e int) error {
	o := r.o

	// Move every particle toward a random point in the hypersphere around
	// its gravity point.
	for i := 0; i < o.npop; i++ {
		rmax := 0.0
		for j := 0; j < r.nVar; j++ {
			p := r.pos.At(i, j)
			g := p + (1.0/3.0)*r.cmax*(r.bestPos.At(i, j)+r.groupBest.At(i, j)-2.0*p)*r.bias[i]
			r.gr[j] = g
			rmax += (g - p) * (g - p)
		}
		rmax = math.Sqrt(rmax)

		norm := 0.0
		for j := 0; j < r.nVar; j++ {
			r.dir[j] = r.normal.Rand()
			norm += r.dir[j] * r.dir[j]
		}
		norm = math.Sqrt(norm)
		rad := o.rng.Float64() * rmax
		for j := 0; j < r.nVar; j++ {
			r.sphere[j] = r.dir[j] * rad / norm
		}

		for j := 0; j < r.nVar; j++ {
			v := r.w*r.vel.At(i, j) + r.gr[j] + r.sphere[j] - r.pos.At(i, j)
			r.vel.Set(i, j, clamp(v, -r.velMax[j], r.velMax[j]))
		}
	}

	// Flag dimensions whose tentative position escapes the open interval.
	for i := 0; i < o.npop; i++ {
		for j := 0; j < r.nVar; j++ {
			p := r.pos.At(i, j) + r.vel.At(i, j)
			if r.isInt(j) {
				p = math.Round(p)
			}
			r.out[i][j] = !(p > r.lb[j] && p < r.ub[j])
		}
	}

	// Confinement velocities are computed for the whole swarm so random
	// draws are consumed uniformly, then applied only where flagged.
	r.confine()
	for i := 0; i < o.npop; i++ {
		for j := 0; j < r.nVar; j++ {
			v := r.vel.At(i, j)
			if r.out[i][j] {
				v = r.velConf.At(i, j)
				r.vel.Set(i, j, v)
			}
			p := r.pos.At(i, j) + v
			if r.isInt(j) {
				p = math.Round(p)
			}
			p = clamp(p, r.lb[j], r.ub[j])
			if r.isInt(j) {
				p = clamp(p, math.Ceil(r.lb[j]), math.Floor(r.ub[j]))
			}
			r.pos.Set(i, j, p)
		}
	}

	if err := r.eval(ctx); err != nil {
		return err
	}

	for i := 0; i < o.npop; i++ {
		if r.cost[i] < r.bestCost[i] {
			r.bestCost[i] = r.cost[i]
			for j := 0; j < r.nVar; j++ {
				r.bestPos.Set(i, j, r.pos.At(i, j))
			}
		}
	}

	idx := argmin(r.bestCost)
	if r.bestCost[idx] < r.swarmBestCost {
		r.swarmBestIdx = idx
		r.swarmBestCost = r.bestCost[idx]
		copy(r.swarmBestPos, r.bestPos.RawRowView(idx))
	} else if o.k > 0 {
		// Stalled: reshuffle who informs whom to keep exploration alive.
		r.sampleInformants()
	}
	r.updateGroups()

	if o.rec != nil {
		if err := r.record(e); err != nil {
			return err
		}
	}
	if o.progress != nil {
		o.progress(e, r.swarmBestCost)
	}
	o.log.Debug("pso epoch", "epoch", e, "best", r.swarmBestCost, "particle", r.swarmBestIdx)
	return nil
}

// eval invokes the objective on the whole population, de-normalizing
// positions first when the run operates on the unit box.
func (r *run) eval(ctx context.Context) error {
	pos := r.pos
	if r.o.normalize {
		for i := 0; i < r.o.npop; i++ {
			for j := 0; j < r.nVar; j++ {
				r.evalPos.Set(i, j, r.o.lb[j]+r.pos.At(i, j)*(r.o.ub[j]-r.o.lb[j]))
			}
		}
		pos = r.evalPos
	}
	costs, err := r.f.Evaluate(ctx, pos)
	if err != nil {
		return errors.Wrap(err, "pso: objective evaluation failed")
	}
	if len(costs) != r.o.npop {
		return errors.Errorf("pso: objective returned %v costs for %v particles", len(costs), r.o.npop)
	}
	copy(r.cost, costs)
	return nil
}

// sampleInformants draws a fresh directed adjacency with edge probability
// 1-(1-1/nPop)^K and a forced self-loop.
func (r *run) sampleInformants() {
	n := r.o.npop
	if r.inform == nil {
		r.inform = make([][]bool, n)
		for i := range r.inform {
			r.inform[i] = make([]bool, n)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.inform[i][j] = r.o.rng.Float64() < r.pInf
		}
		r.inform[i][i] = true
	}
}

// updateGroups recomputes every particle's group-best reference and the
// self-bias factor applied when a particle is its own group best (0.75
// instead of 1.0, avoiding a zero-attraction stall).
func (r *run) updateGroups() {
	n := r.o.npop
	if r.o.k == 0 {
		for i := 0; i < n; i++ {
			for j := 0; j < r.nVar; j++ {
				r.groupBest.Set(i, j, r.swarmBestPos[j])
			}
			if i == r.swarmBestIdx {
				r.bias[i] = 0.75
			} else {
				r.bias[i] = 1.0
			}
		}
		return
	}

	for i := 0; i < n; i++ {
		best := math.Inf(1)
		bestj := i
		for j := 0; j < n; j++ {
			if r.inform[i][j] && r.bestCost[j] < best {
				best = r.bestCost[j]
				bestj = j
			}
		}
		for j := 0; j < r.nVar; j++ {
			r.groupBest.Set(i, j, r.bestPos.At(bestj, j))
		}
		if bestj == i {
			r.bias[i] = 0.75
		} else {
			r.bias[i] = 1.0
		}
	}
}

// confine fills velConf for the configured strategy.
func (r *run) confine() {
	n := r.o.npop
	switch r.o.conf {
	case RandomBack:
		for i := 0; i < n; i++ {
			for j := 0; j < r.nVar; j++ {
				r.velConf.Set(i, j, -r.o.rng.Float64()*r.vel.At(i, j))
			}
		}
	case Hyperbolic:
		for i := 0; i < n; i++ {
			for j := 0; j < r.nVar; j++ {
				r.velConf.Set(i, j, r.hyperbolic(i, j))
			}
		}
	case Mixed:
		for i := 0; i < n; i++ {
			for j := 0; j < r.nVar; j++ {
				hy := r.hyperbolic(i, j)
				rb := -r.o.rng.Float64() * r.vel.At(i, j)
				if r.o.rng.Float64() >= 0.5 {
					r.velConf.Set(i, j, hy)
				} else {
					r.velConf.Set(i, j, rb)
				}
			}
		}
	}
}

func (r *run) hyperbolic(i, j int) float64 {
	v := r.vel.At(i, j)
	p := r.pos.At(i, j)
	if v > 0 {
		return v / (1.0 + math.Abs(v/(r.ub[j]-p)))
	}
	return v / (1.0 + math.Abs(v/(p-r.lb[j])))
}

// result builds the final Result, including the count of particles whose
// bounds-normalized personal best lies within the configured radius of the
// swarm best.
func (r *run) result() *Result {
	o := r.o
	scale := math.Sqrt(float64(o.npop))

	near := 0
	for i := 0; i < o.npop; i++ {
		d := 0.0
		for j := 0; j < r.nVar; j++ {
			delta := r.bestPos.At(i, j) - r.swarmBestPos[j]
			if !o.normalize {
				delta /= math.Max(o.ub[j]-o.lb[j], 1e-10)
			}
			delta /= scale
			d += delta * delta
		}
		if math.Sqrt(d) < o.rad {
			near++
		}
	}

	best := append([]float64{}, r.swarmBestPos...)
	if o.normalize {
		for j := range best {
			best[j] = o.lb[j] + best[j]*(o.ub[j]-o.lb[j])
		}
	}
	return &Result{
		BestPos:   best,
		BestCost:  r.swarmBestCost,
		BestIndex: r.swarmBestIdx,
		NearBest:  near,
	}
}

func (r *run) record(epoch int) error {
	return r.o.rec.record(epoch, r.pos, r.bestPos, r.cost, r.bestCost, r.swarmBestCost, r.swarmBestPos)
}

func (r *run) roundInts(m *mat.Dense) {
	n, _ := m.Dims()
	for _, j := range r.o.intVar {
		for i := 0; i < n; i++ {
			m.Set(i, j, math.Round(m.At(i, j)))
		}
	}
}

func (r *run) isInt(j int) bool {
	for _, k := range r.o.intVar {
		if k == j {
			return true
		}
	}
	return false
}

func argmin(v []float64) int {
	idx := 0
	for i, x := range v {
		if x < v[idx] {
			idx = i
		}
	}
	return idx
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
