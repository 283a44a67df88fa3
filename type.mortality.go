package casal

import (
	"fmt"
	"math"
	"strings"

	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/selectivity"
)

// MortalityConstantRate removes exp(-M*selectivity*ratio) of each age class
// in every time step it runs, initialisation included
type MortalityConstantRate struct {
	Label  string
	M      []float64 // by category
	cats   []*partition.Category
	sels   []selectivity.Selectivity
	ratios map[int]float64 // by time step index
}

// newConstantRate spreads a single m or selectivity over every category.
// Ratios map onto the active time steps in order and default to 1.
func newConstantRate(label string, m []float64, sels []string, ratios []float64, active []int, cats []string, pt *partition.Partition, sm *selectivity.Manager) (*MortalityConstantRate, error) {
	n := len(cats)
	if len(m) == 1 && n > 1 {
		m = repeat(m[0], n)
	}
	if len(sels) == 1 && n > 1 {
		s := make([]string, n)
		for i := range s {
			s[i] = sels[0]
		}
		sels = s
	}
	if len(m) != n {
		return nil, fmt.Errorf("%s: %d m values for %d categories", label, len(m), n)
	}
	if len(sels) != n {
		return nil, fmt.Errorf("%s: %d selectivities for %d categories", label, len(sels), n)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%s: the process is not assigned to any time step", label)
	}
	if len(ratios) == 0 {
		ratios = repeat(1., len(active))
	}
	if len(ratios) != len(active) {
		return nil, fmt.Errorf("%s: %d time_step_ratio values for the %d time steps the process runs in", label, len(ratios), len(active))
	}

	p := MortalityConstantRate{Label: label, M: append([]float64(nil), m...), ratios: make(map[int]float64, len(active))}
	for i, ts := range active {
		if ratios[i] < 0. || ratios[i] > 1. {
			return nil, fmt.Errorf("%s: time_step_ratio (%v) must be in [0,1]", label, ratios[i])
		}
		p.ratios[ts] = ratios[i]
	}
	for i, l := range cats {
		if m[i] < 0. {
			return nil, fmt.Errorf("%s: m (%v) cannot be less than 0", label, m[i])
		}
		c, ok := pt.Category(strings.TrimSpace(l))
		if !ok {
			return nil, fmt.Errorf("%s: category %s was not found", label, l)
		}
		s, ok := sm.Get(sels[i])
		if !ok {
			return nil, fmt.Errorf("%s: selectivity %s was not found", label, sels[i])
		}
		p.cats = append(p.cats, c)
		p.sels = append(p.sels, s)
	}
	return &p, nil
}

func repeat(v float64, n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = v
	}
	return o
}

func (p *MortalityConstantRate) Execute(year, timeStep int, initialising bool) error {
	r := p.ratios[timeStep]
	for i, c := range p.cats {
		for j := range c.Data {
			c.Data[j] *= math.Exp(-p.M[i] * p.sels[i].GetResult(c.MinAge+j) * r)
		}
	}
	return nil
}

func (p *MortalityConstantRate) Reset() {}

// Get and Set address m[<category>]
func (p *MortalityConstantRate) Get(name string) (float64, error) {
	i, err := p.index(name)
	if err != nil {
		return 0., err
	}
	return p.M[i], nil
}

func (p *MortalityConstantRate) Set(name string, v float64) error {
	i, err := p.index(name)
	if err != nil {
		return err
	}
	p.M[i] = v
	return nil
}

func (p *MortalityConstantRate) index(name string) (int, error) {
	for i, c := range p.cats {
		if name == "m["+c.Name+"]" {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown addressable %s", p.Label, name)
}
