package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/maseology/casal"
	"github.com/maseology/casal/config"
	"github.com/maseology/casal/opt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	v  = viper.New()
	lg *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "casal",
	Short: "age-structured population model with instantaneous fishing mortality",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		zc := zap.NewProductionConfig()
		if v.GetBool("verbose") {
			zc = zap.NewDevelopmentConfig()
		}
		var err error
		lg, err = zc.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if lg != nil {
			_ = lg.Sync()
		}
	},
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "load the configuration and build the model without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v.GetString("config"))
		if err != nil {
			return err
		}
		m, err := casal.BuildModel(cfg, lg)
		if err != nil {
			return err
		}
		fmt.Printf(" %s: %d processes in %d time steps, %d observations, %d estimates\n",
			v.GetString("config"), len(cfg.Processes), m.TimeSteps.Len(), len(m.Observations), len(m.Estimates()))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the model once and write reports, scores and the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := config.Load(v.GetString("config"))
		if err != nil {
			return err
		}
		m, err := casal.BuildModel(cfg, lg)
		if err != nil {
			return err
		}
		mt := metrics(m)

		tt := time.Now()
		var r *casal.Result
		if v.GetBool("verbose") {
			r, err = m.RunVerbose(ctx)
		} else {
			r, err = m.Run(ctx)
		}
		if err != nil {
			return err
		}
		lg.Info("run complete", zap.String("run", r.RunID), zap.Float64("objective", r.Objective), zap.Duration("elapsed", time.Since(tt)))

		prfx, err := outPrefix(r.RunID)
		if err != nil {
			return err
		}
		if err := r.SaveGob(prfx + "result.gob"); err != nil {
			return err
		}
		if err := r.WriteReports(prfx, m.Partition.MinAge); err != nil {
			return err
		}
		if err := r.WriteScores(prfx); err != nil {
			return err
		}
		if err := r.WriteDerived(prfx); err != nil {
			return err
		}
		return writeMetrics(mt)
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "evaluate the objective over a Latin hypercube of the estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := config.Load(v.GetString("config"))
		if err != nil {
			return err
		}
		if len(cfg.Estimates) == 0 {
			return fmt.Errorf("sample: %s has no estimates", v.GetString("config"))
		}
		n := v.GetInt("iterations")
		u := opt.LatinHypercube(rand.NewPCG(v.GetUint64("seed"), 0), n, len(cfg.Estimates))

		b, mt, done := batch(cfg, n)
		tt := time.Now()
		smps, err := b.MonteCarlo(ctx, u)
		done()
		if err != nil {
			return err
		}
		lg.Info("sampling complete", zap.Int("n", len(smps)), zap.Duration("elapsed", time.Since(tt)))

		prfx, err := outPrefix("")
		if err != nil {
			return err
		}
		if err := casal.WriteSamples(prfx+"samples.csv", smps); err != nil {
			return err
		}
		return writeMetrics(mt)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "draw simulated observations about the expected values of a model run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := config.Load(v.GetString("config"))
		if err != nil {
			return err
		}
		n := v.GetInt("iterations")
		b, mt, done := batch(cfg, n)
		tt := time.Now()
		reps, err := b.Simulate(ctx, n, v.GetUint64("seed"))
		done()
		if err != nil {
			return err
		}
		lg.Info("simulation complete", zap.Int("n", len(reps)), zap.Duration("elapsed", time.Since(tt)))

		prfx, err := outPrefix("")
		if err != nil {
			return err
		}
		if err := casal.WriteReplicates(prfx+"simulated.csv", reps); err != nil {
			return err
		}
		return writeMetrics(mt)
	},
}

func metrics(m *casal.Model) *casal.Metrics {
	if v.GetString("metrics") == "" {
		return nil
	}
	mt := casal.NewMetrics()
	m.SetMetrics(mt)
	return mt
}

func writeMetrics(mt *casal.Metrics) error {
	if mt == nil {
		return nil
	}
	return mt.WriteToTextfile(v.GetString("metrics"))
}

// batch returns a worker pool over cfg with a progress bar of n iterations;
// call done once the batch returns
func batch(cfg *config.Config, n int) (*casal.Batch, *casal.Metrics, func()) {
	b := &casal.Batch{Config: cfg, Workers: v.GetInt("workers"), Logger: lg}
	var mt *casal.Metrics
	if v.GetString("metrics") != "" {
		mt = casal.NewMetrics()
		b.Metrics = mt
	}
	uiprogress.Start()
	bar := uiprogress.AddBar(n).AppendCompleted().PrependElapsed()
	b.OnDone = func(int) { bar.Incr() }
	return b, mt, uiprogress.Stop
}

// outPrefix makes the output directory and returns the file prefix
func outPrefix(runID string) (string, error) {
	dir := v.GetString("out")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("outPrefix failed: %v", err)
	}
	prfx := strings.TrimSuffix(filepath.Base(v.GetString("config")), filepath.Ext(v.GetString("config"))) + "."
	if runID != "" {
		prfx += runID[:8] + "."
	}
	return filepath.Join(dir, prfx), nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "casal.yaml", "model definition (YAML)")
	pf.StringP("out", "o", "out", "output directory")
	pf.BoolP("verbose", "v", false, "debug logging and a progress bar over years")
	pf.String("metrics", "", "write prometheus metrics to this textfile on completion")
	for _, c := range []*cobra.Command{sampleCmd, simulateCmd} {
		c.Flags().IntP("iterations", "n", 100, "number of iterations")
		c.Flags().Uint64("seed", 1, "random seed")
		c.Flags().IntP("workers", "w", runtime.GOMAXPROCS(0), "number of concurrent models")
	}
	rootCmd.AddCommand(checkCmd, runCmd, sampleCmd, simulateCmd)

	v.SetEnvPrefix("casal")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
