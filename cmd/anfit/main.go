// Command anfit identifies ANFIS models from CSV datasets by particle swarm
// optimization and reports training/test metrics.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/fuzzkit/anfis"
	"github.com/fuzzkit/anfis/bench"
	"github.com/fuzzkit/anfis/dataset"
	"github.com/fuzzkit/anfis/pso"
)

type config struct {
	Data      string  `yaml:"data"`
	Problem   string  `yaml:"problem"` // "classification" or "continuous"
	NMF       []int   `yaml:"n_mf"`
	Split     float64 `yaml:"split"`
	Seed      uint64  `yaml:"seed"`
	HistoryDB string  `yaml:"history_db"`

	PSO struct {
		NPop      int     `yaml:"npop"`
		Epochs    int     `yaml:"epochs"`
		K         int     `yaml:"k"`
		Phi       float64 `yaml:"phi"`
		VelFact   float64 `yaml:"vel_fact"`
		Confine   string  `yaml:"confine"` // "rb", "hy", or "mx"
		Normalize bool    `yaml:"normalize"`
		Rad       float64 `yaml:"rad"`
	} `yaml:"pso"`

	Bounds struct {
		MuDelta float64 `yaml:"mu_delta"`
		SMid    float64 `yaml:"s_mid"`
		STol    float64 `yaml:"s_tol"`
		CMin    float64 `yaml:"c_min"`
		CMax    float64 `yaml:"c_max"`
		AMin    float64 `yaml:"a_min"`
		AMax    float64 `yaml:"a_max"`
	} `yaml:"bounds"`
}

func main() {
	root := &cobra.Command{
		Use:           "anfit",
		Short:         "ANFIS model identification by particle swarm optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(trainCmd(), benchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "anfit:", err)
		os.Exit(1)
	}
}

func trainCmd() *cobra.Command {
	var cfgPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Identify a model from a CSV dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(cfgPath)
			if err != nil {
				return err
			}
			cfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return err
			}
			return train(cmd.Context(), cfg, verbose)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "anfit.yaml", "experiment config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-epoch progress")
	return cmd
}

func defaultConfig() config {
	cfg := config{Split: 0.75, Seed: 1, Problem: "classification"}
	cfg.PSO.NPop = 40
	cfg.PSO.Epochs = 500
	cfg.PSO.K = 10
	cfg.PSO.Phi = 2.05
	cfg.PSO.VelFact = 0.5
	cfg.PSO.Confine = "rb"
	cfg.PSO.Rad = 0.1
	b := anfis.DefaultBoundsConfig()
	cfg.Bounds.MuDelta = b.MuDelta
	cfg.Bounds.SMid = b.SMid
	cfg.Bounds.STol = b.STol
	cfg.Bounds.CMin = b.CMin
	cfg.Bounds.CMax = b.CMax
	cfg.Bounds.AMin = b.AMin
	cfg.Bounds.AMax = b.AMax
	return cfg
}

func train(ctx context.Context, cfg config, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	x, y, err := dataset.Load(cfg.Data)
	if err != nil {
		return err
	}
	nSamples, nInputs := x.Dims()
	if len(cfg.NMF) != nInputs {
		return fmt.Errorf("layout has %v inputs but %v has %v feature columns", len(cfg.NMF), cfg.Data, nInputs)
	}

	problem := anfis.Classification
	nOutputs := countClasses(y)
	if cfg.Problem == "continuous" {
		problem = anfis.Continuous
		nOutputs = 1
	}
	log.Info("dataset loaded", "samples", nSamples, "inputs", nInputs, "outputs", nOutputs, "layout", cfg.NMF)

	rng := rand.New(rand.NewSource(cfg.Seed))
	xtr, xte, ytr, yte, err := dataset.Split(rng, x, y, cfg.Split)
	if err != nil {
		return err
	}

	// Always normalize inputs with the training-set transform.
	xtrN, normParam := dataset.Normalize(xtr)
	xteN := dataset.NormalizeWith(xte, normParam)

	fit := anfis.FitConfig{
		NMF:      cfg.NMF,
		NOutputs: nOutputs,
		Problem:  problem,
		Bounds: anfis.BoundsConfig{
			MuDelta: cfg.Bounds.MuDelta,
			SMid:    cfg.Bounds.SMid, STol: cfg.Bounds.STol,
			CMin: cfg.Bounds.CMin, CMax: cfg.Bounds.CMax,
			AMin: cfg.Bounds.AMin, AMax: cfg.Bounds.AMax,
		},
		NPop:      cfg.PSO.NPop,
		Epochs:    cfg.PSO.Epochs,
		K:         cfg.PSO.K,
		Phi:       cfg.PSO.Phi,
		VelFact:   cfg.PSO.VelFact,
		Normalize: cfg.PSO.Normalize,
		Rad:       cfg.PSO.Rad,
		Rng:       rng,
		Logger:    log,
	}
	switch cfg.PSO.Confine {
	case "rb":
		fit.Conf = pso.RandomBack
	case "hy":
		fit.Conf = pso.Hyperbolic
	case "mx":
		fit.Conf = pso.Mixed
	default:
		return fmt.Errorf("unknown confinement %q", cfg.PSO.Confine)
	}

	if cfg.HistoryDB != "" {
		db, err := sql.Open("sqlite", cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(1)
		fit.Rec = pso.NewRecorder(db)
	}

	start := time.Now()
	model, res, err := anfis.Fit(ctx, xtrN, ytr, fit)
	if err != nil {
		return err
	}
	log.Info("search finished", "cost", res.BestCost, "particle", res.BestIndex,
		"near_best", res.NearBest, "elapsed", time.Since(start).Round(time.Millisecond))

	if problem == anfis.Classification {
		if err := reportClassification("train", model, xtrN, ytr); err != nil {
			return err
		}
		return reportClassification("test", model, xteN, yte)
	}
	if err := reportContinuous("train", model, xtrN, ytr); err != nil {
		return err
	}
	return reportContinuous("test", model, xteN, yte)
}

func reportClassification(name string, model *anfis.Model, x *mat.Dense, y []float64) error {
	pred, err := model.PredictLabels(x)
	if err != nil {
		return err
	}
	counts, labels := dataset.ConfusionMatrix(y, pred)

	fmt.Printf("%v accuracy: %.1f%%\n", name, dataset.Accuracy(y, pred))
	fmt.Printf("%v confusion matrix (rows actual, columns predicted):\n", name)
	fmt.Print("        ")
	for _, l := range labels {
		fmt.Printf("%8v", l)
	}
	fmt.Println()
	for i, l := range labels {
		fmt.Printf("%8v", l)
		for j := range labels {
			fmt.Printf("%8v", counts[i][j])
		}
		fmt.Println()
	}
	return nil
}

func reportContinuous(name string, model *anfis.Model, x *mat.Dense, y []float64) error {
	f, err := model.Predict(x)
	if err != nil {
		return err
	}
	n, _ := f.Dims()
	pred := make([]float64, n)
	for i := 0; i < n; i++ {
		pred[i] = f.At(i, 0)
	}
	fmt.Printf("%v rmse: %.4f  corr: %.4f\n", name, dataset.RMSE(pred, y), dataset.Corr(pred, y))
	return nil
}

func countClasses(y []float64) int {
	seen := map[float64]bool{}
	for _, v := range y {
		seen[v] = true
	}
	return len(seen)
}

func benchCmd() *cobra.Command {
	var npop, epochs, k int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the optimizer against the benchmark suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, fn := range bench.AllFuncs {
				lb, ub := fn.Bounds()
				opt, err := pso.New(lb, ub,
					pso.NPop(npop),
					pso.Epochs(epochs),
					pso.Informants(k),
					pso.Rng(rand.New(rand.NewSource(seed))),
				)
				if err != nil {
					return err
				}
				res, err := opt.Minimize(cmd.Context(), bench.Objective(fn))
				if err != nil {
					return err
				}
				fmt.Printf("%-16v optimum %10.4f  found %10.4f  near-best %v/%v\n",
					fn.Name(), fn.Optimum(), res.BestCost, res.NearBest, npop)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&npop, "npop", 40, "population size")
	cmd.Flags().IntVar(&epochs, "epochs", 500, "epoch count")
	cmd.Flags().IntVar(&k, "informants", 10, "average informant group size (0 = whole swarm)")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}
