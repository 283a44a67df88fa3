// Package penalty turns infeasible requests (catch that could not be taken)
// into objective function costs.
package penalty

import (
	"fmt"
	"math"
	"sort"

	"github.com/maseology/casal/mathx"
)

// Flag is one triggered penalty
type Flag struct {
	Name                string // label(source)
	Requested, Realized float64
	Score               float64
}

// Process penalty: multiplier * (requested - realized)^2, optionally on the log scale
type Process struct {
	Label      string
	Multiplier float64
	LogScale   bool
	flags      []Flag
}

func NewProcess(label string, multiplier float64, logScale bool) (*Process, error) {
	if multiplier < 0. {
		return nil, fmt.Errorf("penalty %s: multiplier (%v) cannot be less than 0", label, multiplier)
	}
	return &Process{Label: label, Multiplier: multiplier, LogScale: logScale}, nil
}

func (p *Process) Trigger(source string, requested, realized float64) {
	var d float64
	if p.LogScale {
		d = math.Log(mathx.ZeroFun(requested)) - math.Log(mathx.ZeroFun(realized))
	} else {
		d = requested - realized
	}
	p.flags = append(p.flags, Flag{
		Name:      p.Label + "(" + source + ")",
		Requested: requested,
		Realized:  realized,
		Score:     d * d * p.Multiplier,
	})
}

func (p *Process) Score() (s float64) {
	for _, f := range p.flags {
		s += f.Score
	}
	return
}

func (p *Process) Count() int { return len(p.flags) }

func (p *Process) Flags() []Flag { return p.flags }

func (p *Process) Reset() { p.flags = p.flags[:0] }

type Manager struct{ m map[string]*Process }

func NewManager() *Manager { return &Manager{m: make(map[string]*Process)} }

func (mg *Manager) Add(p *Process) error {
	if _, ok := mg.m[p.Label]; ok {
		return fmt.Errorf("penalty %s defined more than once", p.Label)
	}
	mg.m[p.Label] = p
	return nil
}

func (mg *Manager) Get(label string) (*Process, bool) {
	p, ok := mg.m[label]
	return p, ok
}

// Score sums every penalty triggered since the last Reset
func (mg *Manager) Score() (s float64) {
	for _, k := range mg.Labels() {
		s += mg.m[k].Score()
	}
	return
}

// Scores returns the summed score per penalty label
func (mg *Manager) Scores() map[string]float64 {
	o := make(map[string]float64, len(mg.m))
	for k, p := range mg.m {
		o[k] = p.Score()
	}
	return o
}

func (mg *Manager) Count() (n int) {
	for _, p := range mg.m {
		n += p.Count()
	}
	return
}

func (mg *Manager) Reset() {
	for _, p := range mg.m {
		p.Reset()
	}
}

func (mg *Manager) Labels() []string {
	o := make([]string, 0, len(mg.m))
	for k := range mg.m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
