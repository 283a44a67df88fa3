// Package derived records quantities calculated from the partition, such as
// spawning biomass, once in each year of a run and in every initialisation
// year.
package derived

import (
	"fmt"
	"math"

	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/selectivity"
)

const (
	Biomass   = "biomass"
	Abundance = "abundance"

	WeightedSum     = "weighted_sum"
	WeightedProduct = "weighted_product"
)

type Settings struct {
	Label, Type      string
	TimeStep         string
	Categories       []string
	Selectivities    []string // one per category, or one for all
	Proportion       float64  // of the way through the mortality of the time step
	ProportionMethod string
}

// Quantity is summed over its categories as selectivity times numbers at
// age, weighted by mean weight for biomass. The partition is read before
// and after the mortality of its time step and the two are blended by the
// time step proportion.
type Quantity struct {
	Label         string
	TimeStepIndex int

	biomass bool
	prop    float64
	method  string
	cats    []*partition.Category
	sels    []selectivity.Selectivity

	cache  float64
	init   []float64
	values map[int]float64
}

type TimeSteps interface {
	GetTimeStepIndex(label string) (int, bool)
}

func New(s Settings, pt *partition.Partition, sels *selectivity.Manager, ts TimeSteps) (*Quantity, error) {
	q := Quantity{Label: s.Label, prop: s.Proportion, method: s.ProportionMethod, values: make(map[int]float64)}
	switch s.Type {
	case Biomass:
		q.biomass = true
	case Abundance:
	default:
		return nil, fmt.Errorf("derived quantity %s: unknown type %s", s.Label, s.Type)
	}
	if q.method == "" {
		q.method = WeightedSum
	}
	if q.method != WeightedSum && q.method != WeightedProduct {
		return nil, fmt.Errorf("derived quantity %s: unknown time_step_proportion_method %s", s.Label, q.method)
	}
	if q.prop < 0. || q.prop > 1. {
		return nil, fmt.Errorf("derived quantity %s: time_step_proportion (%v) must be in [0,1]", s.Label, q.prop)
	}
	var ok bool
	if q.TimeStepIndex, ok = ts.GetTimeStepIndex(s.TimeStep); !ok {
		return nil, fmt.Errorf("derived quantity %s: time step %s was not found", s.Label, s.TimeStep)
	}

	sl := s.Selectivities
	if len(sl) == 1 && len(s.Categories) > 1 {
		sl = make([]string, len(s.Categories))
		for i := range sl {
			sl[i] = s.Selectivities[0]
		}
	}
	if len(sl) != len(s.Categories) {
		return nil, fmt.Errorf("derived quantity %s: %d selectivities for %d categories", s.Label, len(sl), len(s.Categories))
	}
	for i, l := range s.Categories {
		c, ok := pt.Category(l)
		if !ok {
			return nil, fmt.Errorf("derived quantity %s: category %s was not found", s.Label, l)
		}
		sel, ok := sels.Get(sl[i])
		if !ok {
			return nil, fmt.Errorf("derived quantity %s: selectivity %s was not found", s.Label, sl[i])
		}
		q.cats = append(q.cats, c)
		q.sels = append(q.sels, sel)
	}
	return &q, nil
}

func (q *Quantity) sum(timeStep int) (s float64) {
	for i, c := range q.cats {
		for j, n := range c.Data {
			age := c.MinAge + j
			v := n * q.sels[i].GetResult(age)
			if q.biomass {
				v *= c.MeanWeightAt(timeStep, age)
			}
			s += v
		}
	}
	return
}

// PreExecute caches the partition before the mortality of the time step
func (q *Quantity) PreExecute(timeStep int) { q.cache = q.sum(timeStep) }

// Execute records the value of the year once the mortality has run
func (q *Quantity) Execute(year, timeStep int, initialising bool) {
	v := q.cache
	if q.prop > 0. {
		x := q.sum(timeStep)
		switch q.method {
		case WeightedProduct:
			v = math.Pow(q.cache, 1.-q.prop) * math.Pow(x, q.prop)
		default:
			v = q.cache + (x-q.cache)*q.prop
		}
	}
	if initialising {
		q.init = append(q.init, v)
		return
	}
	q.values[year] = v
}

func (q *Quantity) Reset() {
	q.cache = 0.
	q.init = q.init[:0]
	clear(q.values)
}

// Value returns the value of year, reaching back into the initialisation
// years for years before the start year. ok is false when nothing has been
// recorded for year.
func (q *Quantity) Value(year, startYear int) (v float64, ok bool) {
	if v, ok = q.values[year]; ok {
		return
	}
	back := startYear - year
	if back <= 0 || len(q.init) == 0 {
		return 0., false
	}
	if back < len(q.init) {
		return q.init[len(q.init)-back], true
	}
	return q.init[0], true
}

// LastInitialisationValue is the value of the final initialisation year,
// B0 when the quantity is spawning biomass
func (q *Quantity) LastInitialisationValue() float64 {
	if len(q.init) == 0 {
		return 0.
	}
	return q.init[len(q.init)-1]
}

func (q *Quantity) InitialisationValues() []float64 { return q.init }

func (q *Quantity) Values() map[int]float64 { return q.values }
