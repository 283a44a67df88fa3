// Package likelihood scores model expectations against observed values and
// simulates observations from expectations.
package likelihood

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Comparison is one (year, category, bin) pairing of expected and observed values
type Comparison struct {
	Category     string
	Age          int     // bin age for age-based observations
	Length       float64 // lower bin edge for length-based observations
	Expected     float64
	Observed     float64
	ProcessError float64
	ErrorValue   float64
	Delta        float64
	Score        float64
}

// Comparisons keyed by year
type Comparisons map[int][]Comparison

func (c Comparisons) Years() []int {
	o := make([]int, 0, len(c))
	for y := range c {
		o = append(o, y)
	}
	sort.Ints(o)
	return o
}

type Likelihood interface {
	Type() string
	AdjustErrorValue(processError, errorValue float64) float64
	GetScores(c Comparisons)
	InitialScore(c Comparisons, year int) float64
	SimulateObserved(c Comparisons, src rand.Source)
}

const (
	TypeMultinomial    = "multinomial"
	TypeLogNormal      = "lognormal"
	TypeBinomialApprox = "binomial_approx"
	TypeNormal         = "normal"
)

func New(typ string) (Likelihood, error) {
	switch typ {
	case TypeMultinomial:
		return Multinomial{}, nil
	case TypeLogNormal:
		return LogNormal{}, nil
	case TypeBinomialApprox:
		return BinomialApprox{}, nil
	case TypeNormal:
		return Normal{}, nil
	}
	return nil, fmt.Errorf("likelihood.New() failed: unknown likelihood type %s", typ)
}

// byCategory returns comparison indices grouped by category in first-seen order
func byCategory(cs []Comparison) ([]string, map[string][]int) {
	var keys []string
	m := make(map[string][]int)
	for i, c := range cs {
		if _, ok := m[c.Category]; !ok {
			keys = append(keys, c.Category)
		}
		m[c.Category] = append(m[c.Category], i)
	}
	return keys, m
}
