package casal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/maseology/casal/config"
	"github.com/maseology/casal/likelihood"
	"github.com/maseology/casal/opt"
	"go.uber.org/zap"
)

// Sample is one Monte Carlo evaluation
type Sample struct {
	K         int
	U         []float64
	Pars      map[string]float64
	Objective float64
	Penalties map[string]float64
}

// Replicate holds the simulated observations of one simulation run
type Replicate struct {
	K            int
	Seed         uint64
	Objective    float64
	Observations map[string]likelihood.Comparisons
}

type job struct {
	k int
	u []float64
}

type outcome struct {
	k   int
	smp *Sample
	rep *Replicate
	err error
}

// Batch runs many iterations of one configuration on a pool of workers.
// Every worker builds its own Model so no state is shared between goroutines.
type Batch struct {
	Config  *config.Config
	Workers int
	Metrics *Metrics
	Logger  *zap.Logger
	OnDone  func(k int) // called as each iteration completes, e.g. to advance a progress bar
}

func (b *Batch) workers() int {
	if b.Workers < 1 {
		return 1
	}
	return b.Workers
}

// evalstream starts nwrkrs workers reading jobs from rin; the returned
// channel closes once every worker has drained rin
func (b *Batch) evalstream(ctx context.Context, rin <-chan job, eval func(*Model, job) outcome) <-chan outcome {
	rout := make(chan outcome)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		m, err := BuildModel(b.Config, b.Logger)
		if err != nil {
			for j := range rin {
				rout <- outcome{k: j.k, err: err}
			}
			return
		}
		m.SetMetrics(b.Metrics)
		for j := range rin {
			if ctx.Err() != nil {
				rout <- outcome{k: j.k, err: ctx.Err()}
				continue
			}
			rout <- eval(m, j)
		}
	}
	n := b.workers()
	wg.Add(n)
	for i := 0; i < n; i++ {
		go worker()
	}
	go func() {
		wg.Wait()
		close(rout)
	}()
	return rout
}

func (b *Batch) dispatch(ctx context.Context, jobs []job, eval func(*Model, job) outcome) ([]outcome, error) {
	rin := make(chan job, b.workers())
	rout := b.evalstream(ctx, rin, eval)
	go func() {
		defer close(rin)
		for _, j := range jobs {
			select {
			case rin <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	o := make([]outcome, 0, len(jobs))
	for r := range rout {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("iteration %d: %w", r.k, r.err))
			continue
		}
		o = append(o, r)
		if b.OnDone != nil {
			b.OnDone(r.k)
		}
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(o, func(i, j int) bool { return o[i].k < o[j].k })
	return o, nil
}

// MonteCarlo evaluates the objective at every point of u, each mapped onto
// the configured estimates
func (b *Batch) MonteCarlo(ctx context.Context, u [][]float64) ([]Sample, error) {
	jobs := make([]job, len(u))
	for k := range u {
		jobs[k] = job{k: k, u: u[k]}
	}
	o, err := b.dispatch(ctx, jobs, func(m *Model, j job) outcome {
		pars, err := opt.Par(j.u, m.Estimates())
		if err != nil {
			return outcome{k: j.k, err: err}
		}
		if err := m.SetAll(pars); err != nil {
			return outcome{k: j.k, err: err}
		}
		r, err := m.Run(ctx)
		if err != nil {
			return outcome{k: j.k, err: err}
		}
		return outcome{k: j.k, smp: &Sample{K: j.k, U: j.u, Pars: pars, Objective: r.Objective, Penalties: r.Penalties}}
	})
	if err != nil {
		return nil, fmt.Errorf("Batch.MonteCarlo() failed: %w", err)
	}
	smps := make([]Sample, len(o))
	for i, r := range o {
		smps[i] = *r.smp
	}
	return smps, nil
}

// Simulate runs the model n times and replaces the observed values of every
// observation with draws about its expectations. Replicate k draws from a
// PCG seeded with (seed, k), so results do not depend on the worker count.
func (b *Batch) Simulate(ctx context.Context, n int, seed uint64) ([]Replicate, error) {
	jobs := make([]job, n)
	for k := range jobs {
		jobs[k] = job{k: k}
	}
	o, err := b.dispatch(ctx, jobs, func(m *Model, j job) outcome {
		r, err := m.Run(ctx)
		if err != nil {
			return outcome{k: j.k, err: err}
		}
		src := rand.NewPCG(seed, uint64(j.k))
		rep := Replicate{K: j.k, Seed: seed, Objective: r.Objective, Observations: make(map[string]likelihood.Comparisons, len(m.Observations))}
		for _, ob := range m.Observations {
			ob.Simulate(src)
			rep.Observations[ob.Label] = ob.Comparisons()
		}
		return outcome{k: j.k, rep: &rep}
	})
	if err != nil {
		return nil, fmt.Errorf("Batch.Simulate() failed: %w", err)
	}
	reps := make([]Replicate, len(o))
	for i, r := range o {
		reps[i] = *r.rep
	}
	return reps, nil
}
