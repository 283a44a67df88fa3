// Package agelength supplies growth: mean length and weight at age for each
// time step, and the distribution of each age class across length bins.
package agelength

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Normal    = "normal"
	LogNormal = "lognormal"
	None      = "none"
)

var units = map[string]float64{
	"grams":  1e-3,
	"kgs":    1.,
	"tonnes": 1e3,
}

// BaseUnitsMultiplier converts weights expressed in u into the model base units
func BaseUnitsMultiplier(u, base string) (float64, error) {
	fu, ok := units[u]
	if !ok {
		return 0., fmt.Errorf("unknown weight units %s", u)
	}
	fb, ok := units[base]
	if !ok {
		return 0., fmt.Errorf("unknown base weight units %s", base)
	}
	return fu / fb, nil
}

// LengthWeight is the basic allometric relationship w = a*L^b
type LengthWeight struct {
	Label      string
	A, B       float64
	Multiplier float64 // conversion into model base weight units
}

// MeanWeight of an individual of mean length size, corrected for the spread
// of lengths about the mean when a distribution is given
func (lw *LengthWeight) MeanWeight(size float64, distribution string, cv float64) float64 {
	w := lw.A * math.Pow(size, lw.B)
	if distribution == Normal || distribution == LogNormal {
		w *= math.Pow(1.+cv*cv, lw.B*(lw.B-1.)/2.)
	}
	return w * lw.Multiplier
}

// VonBertalanffy growth curve
type VonBertalanffy struct {
	Label               string
	Linf, K, T0         float64
	CVFirst, CVLast     float64
	ByLength            bool
	Distribution        string
	TimeStepProportions []float64 // fraction of a year's growth by each time step
	LengthWeight        *LengthWeight
	minAge, maxAge, nts int
	cvs                 [][]float64 // [time step][age index]
}

func (vb *VonBertalanffy) Build(minAge, maxAge, nTimeSteps int) error {
	if vb.K <= 0. || vb.Linf <= 0. {
		return fmt.Errorf("age_length %s: k and linf must be greater than 0", vb.Label)
	}
	if vb.LengthWeight == nil {
		return fmt.Errorf("age_length %s: no length_weight relationship", vb.Label)
	}
	if vb.Distribution == "" {
		vb.Distribution = Normal
	}
	switch vb.Distribution {
	case Normal, LogNormal, None:
	default:
		return fmt.Errorf("age_length %s: unknown distribution %s", vb.Label, vb.Distribution)
	}
	if len(vb.TimeStepProportions) == 0 {
		vb.TimeStepProportions = make([]float64, nTimeSteps)
	}
	if len(vb.TimeStepProportions) != nTimeSteps {
		return fmt.Errorf("age_length %s: %d time_step_proportions supplied, model has %d time steps", vb.Label, len(vb.TimeStepProportions), nTimeSteps)
	}
	for _, p := range vb.TimeStepProportions {
		if p < 0. || p > 1. {
			return fmt.Errorf("age_length %s: time_step_proportions must be in [0,1]", vb.Label)
		}
	}
	vb.minAge, vb.maxAge, vb.nts = minAge, maxAge, nTimeSteps
	vb.populateCV()
	return nil
}

func (vb *VonBertalanffy) MeanLength(timeStep, age int) float64 {
	p := 0.
	if timeStep < len(vb.TimeStepProportions) {
		p = vb.TimeStepProportions[timeStep]
	}
	l := vb.Linf * (1. - math.Exp(-vb.K*((float64(age)+p)-vb.T0)))
	if l < 0. {
		return 0.
	}
	return l
}

func (vb *VonBertalanffy) populateCV() {
	vb.cvs = make([][]float64, vb.nts)
	for ts := range vb.cvs {
		vb.cvs[ts] = make([]float64, vb.maxAge-vb.minAge+1)
		for i := range vb.cvs[ts] {
			age := vb.minAge + i
			switch {
			case vb.CVLast == 0. || vb.maxAge == vb.minAge:
				vb.cvs[ts][i] = vb.CVFirst
			case vb.ByLength:
				l0, l1 := vb.MeanLength(ts, vb.minAge), vb.MeanLength(ts, vb.maxAge)
				vb.cvs[ts][i] = (vb.MeanLength(ts, age)-l0)*(vb.CVLast-vb.CVFirst)/(l1-l0) + vb.CVFirst
			default:
				vb.cvs[ts][i] = vb.CVFirst + (vb.CVLast-vb.CVFirst)*float64(age-vb.minAge)/float64(vb.maxAge-vb.minAge)
			}
		}
	}
}

func (vb *VonBertalanffy) CV(timeStep, age int) float64 { return vb.cvs[timeStep][age-vb.minAge] }

func (vb *VonBertalanffy) MeanWeight(timeStep, age int) float64 {
	return vb.LengthWeight.MeanWeight(vb.MeanLength(timeStep, age), vb.Distribution, vb.CV(timeStep, age))
}

// MeanWeights returns [time step][age index], the layout partition categories expect
func (vb *VonBertalanffy) MeanWeights() [][]float64 {
	o := make([][]float64, vb.nts)
	for ts := range o {
		o[ts] = make([]float64, vb.maxAge-vb.minAge+1)
		for i := range o[ts] {
			o[ts][i] = vb.MeanWeight(ts, vb.minAge+i)
		}
	}
	return o
}

// Proportions returns, for each age, the proportion of the age class falling
// in each length bin. edges are the lower bin edges; without a plus group the
// final edge closes the last bin.
func (vb *VonBertalanffy) Proportions(timeStep int, edges []float64, plus bool) ([][]float64, error) {
	nb := len(edges)
	if !plus {
		nb--
	}
	if nb < 1 {
		return nil, fmt.Errorf("age_length %s: not enough length bins", vb.Label)
	}
	o := make([][]float64, vb.maxAge-vb.minAge+1)
	cum := make([]float64, len(edges))
	for i := range o {
		age := vb.minAge + i
		mu := vb.MeanLength(timeStep, age)
		cv := vb.CV(timeStep, age)
		sigma := cv * mu
		cdf := func(x float64) float64 { return distuv.Normal{Mu: mu, Sigma: sigma}.CDF(x) }
		if vb.Distribution == LogNormal {
			lvar := math.Log(cv*cv + 1.)
			lmu, lsig := math.Log(mu)-lvar/2., math.Sqrt(lvar)
			cdf = func(x float64) float64 {
				if x <= 0. {
					return 0.
				}
				return distuv.Normal{Mu: lmu, Sigma: lsig}.CDF(math.Log(x))
			}
		}
		if sigma <= 0. || vb.Distribution == None {
			cdf = func(x float64) float64 {
				if x <= mu {
					return 0.
				}
				return 1.
			}
		}
		for j, e := range edges {
			cum[j] = cdf(e)
		}
		o[i] = make([]float64, nb)
		for j := 0; j < len(edges)-1; j++ {
			o[i][j] = cum[j+1] - cum[j]
		}
		if plus {
			o[i][nb-1] = 1. - cum[nb-1]
		}
	}
	return o, nil
}

// AgeWeight is a data table of mean weight at age by year
type AgeWeight struct {
	Label  string
	MinAge int
	Years  map[int][]float64
}

func (aw *AgeWeight) MeanWeightAtAgeByYear(year, age int) float64 {
	v, ok := aw.Years[year]
	if !ok {
		return 0.
	}
	i := age - aw.MinAge
	if i < 0 || i >= len(v) {
		return 0.
	}
	return v[i]
}
