package observation

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/maseology/casal/likelihood"
	"github.com/maseology/casal/mortality"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"go.uber.org/zap"
)

func (o *RemovalProportions) ledger() mortality.Removals {
	switch o.src {
	case Retained:
		return o.ms.RetainedAt()
	case Discards:
		return o.ms.DiscardsAt()
	}
	return o.ms.CatchAt()
}

// ExecutionTimeStep is the latest time step of the observation's methods
func (o *RemovalProportions) ExecutionTimeStep() int { return o.execStep }

func (o *RemovalProportions) IsYear(year int) bool { return o.years[year] }

// Execute builds the expected values for the year once every method has
// fished, i.e. in the execution time step
func (o *RemovalProportions) Execute(year, timeStep int) error {
	if timeStep != o.execStep || !o.years[year] {
		return nil
	}
	ledger := o.ledger()
	cs := make([]likelihood.Comparison, 0, o.nbins*len(o.categories))
	for ci, label := range o.categories {
		acc := make([]float64, o.nbins)
		for _, c := range strings.Split(label, "+") {
			c = strings.TrimSpace(c)
			for _, m := range o.methods {
				v, ok := ledger.Get(year, m, c)
				if !ok || len(v) == 0 {
					return fmt.Errorf("%w in year %d for method %s applied to category %s; check that the mortality process %s is compatible with the observation %s",
						ErrMissingRemovals, year, m, c, o.process, o.Label)
				}
				if o.ageErr != nil {
					var err error
					if v, err = o.ageErr.Apply(v); err != nil {
						return fmt.Errorf("observation %s: %w", o.Label, err)
					}
				}
				floats.Add(acc, o.collapse(c, v))
			}
		}
		for b, e := range acc {
			k := ci*o.nbins + b
			cp := likelihood.Comparison{
				Category:     label,
				Expected:     e,
				Observed:     o.obs[year][k],
				ProcessError: o.pe[year],
				ErrorValue:   o.ev[year][k],
				Delta:        o.delta,
			}
			if o.agg == ByAge {
				cp.Age = o.minAge + b
			} else {
				cp.Length = o.bins[b]
			}
			cs = append(cs, cp)
		}
	}
	o.comparisons[year] = cs
	o.lg.Debug("expected values saved", zap.Int("year", year), zap.Int("comparisons", len(cs)))
	return nil
}

// collapse maps removals at model age onto the observation bins
func (o *RemovalProportions) collapse(category string, v []float64) []float64 {
	e := make([]float64, o.nbins)
	if o.agg == ByLength {
		var r mat.VecDense
		r.MulVec(o.alp[category].T(), mat.NewVecDense(len(v), v))
		for b := range e {
			e[b] = r.AtVec(b)
		}
		return e
	}
	for k, x := range v {
		age := o.modelMin + k
		switch {
		case age < o.minAge:
		case age <= o.maxAge:
			e[age-o.minAge] = x
		case o.plus:
			e[o.nbins-1] += x
		}
	}
	return e
}

// normalise scales the chosen value of each comparison in every year to
// proportions; a year summing to zero is left at zero
func normalise(c likelihood.Comparisons, observed bool) {
	for _, cs := range c {
		t := 0.
		for _, cp := range cs {
			if observed {
				t += cp.Observed
			} else {
				t += cp.Expected
			}
		}
		for i := range cs {
			switch {
			case t <= 0. && observed:
				cs[i].Observed = 0.
			case t <= 0.:
				cs[i].Expected = 0.
			case observed:
				cs[i].Observed /= t
			default:
				cs[i].Expected /= t
			}
		}
	}
}

// CalculateScore normalises the expectations, scores them and returns the
// summed score over years
func (o *RemovalProportions) CalculateScore() float64 {
	normalise(o.comparisons, false)
	o.lh.GetScores(o.comparisons)
	s := 0.
	for _, y := range o.comparisons.Years() {
		ys := o.lh.InitialScore(o.comparisons, y)
		for _, cp := range o.comparisons[y] {
			ys += cp.Score
		}
		o.scores[y] = ys
		s += ys
	}
	return s
}

// Simulate replaces the observed values with draws about the normalised
// expectations
func (o *RemovalProportions) Simulate(src rand.Source) {
	normalise(o.comparisons, false)
	o.lh.SimulateObserved(o.comparisons, src)
	normalise(o.comparisons, true)
}

func (o *RemovalProportions) Comparisons() likelihood.Comparisons { return o.comparisons }

func (o *RemovalProportions) Scores() map[int]float64 { return o.scores }

func (o *RemovalProportions) Likelihood() string { return o.lh.Type() }

// Reset clears comparisons and scores ahead of a new model iteration
func (o *RemovalProportions) Reset() {
	o.comparisons = make(likelihood.Comparisons)
	o.scores = make(map[int]float64)
}
