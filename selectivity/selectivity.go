// Package selectivity provides age-based ogives returning a value in [0,1]
// for every model age.
package selectivity

import (
	"fmt"
	"math"
	"sort"
)

type Selectivity interface {
	Label() string
	GetResult(age int) float64
}

// cache holds pre-computed values for ages [min, max]; anything outside is 0.
type cache struct {
	label    string
	min, max int
	v        []float64
}

func (c *cache) Label() string { return c.label }

func (c *cache) GetResult(age int) float64 {
	if age < c.min || age > c.max {
		return 0.
	}
	return c.v[age-c.min]
}

func (c *cache) fill(f func(a float64) float64) {
	c.v = make([]float64, c.max-c.min+1)
	for i := range c.v {
		c.v[i] = f(float64(c.min + i))
	}
}

// Constant returns c for every age
func NewConstant(label string, c float64, minAge, maxAge int) Selectivity {
	s := &cache{label: label, min: minAge, max: maxAge}
	s.fill(func(float64) float64 { return c })
	return s
}

// Logistic ogive: alpha/(1+19^((a50-age)/ato95)), truncated to 0 and alpha
// beyond 5 ato95 units from a50.
func NewLogistic(label string, a50, ato95, alpha float64, minAge, maxAge int) (Selectivity, error) {
	if ato95 <= 0. {
		return nil, fmt.Errorf("selectivity %s: ato95 (%v) must be greater than 0", label, ato95)
	}
	if alpha <= 0. {
		return nil, fmt.Errorf("selectivity %s: alpha (%v) must be greater than 0", label, alpha)
	}
	s := &cache{label: label, min: minAge, max: maxAge}
	s.fill(func(a float64) float64 {
		t := (a50 - a) / ato95
		switch {
		case t > 5.:
			return 0.
		case t < -5.:
			return alpha
		}
		return alpha / (1. + math.Pow(19., t))
	})
	return s, nil
}

// DoubleNormal ogive peaking at mu with separate left and right spreads
func NewDoubleNormal(label string, mu, sigmaL, sigmaR, alpha float64, minAge, maxAge int) (Selectivity, error) {
	if sigmaL <= 0. || sigmaR <= 0. {
		return nil, fmt.Errorf("selectivity %s: sigma_l and sigma_r must be greater than 0", label)
	}
	if alpha <= 0. {
		return nil, fmt.Errorf("selectivity %s: alpha (%v) must be greater than 0", label, alpha)
	}
	s := &cache{label: label, min: minAge, max: maxAge}
	s.fill(func(a float64) float64 {
		sg := sigmaR
		if a < mu {
			sg = sigmaL
		}
		z := (a - mu) / sg
		return math.Pow(2., -z*z) * alpha
	})
	return s, nil
}

// AllValues takes one value per model age
func NewAllValues(label string, v []float64, minAge, maxAge int) (Selectivity, error) {
	if len(v) != maxAge-minAge+1 {
		return nil, fmt.Errorf("selectivity %s: %d values supplied, %d ages required", label, len(v), maxAge-minAge+1)
	}
	return &cache{label: label, min: minAge, max: maxAge, v: append([]float64(nil), v...)}, nil
}

// AllValuesBounded takes one value per age from low to high. Younger ages
// are 0 and older ages take the last value.
func NewAllValuesBounded(label string, low, high int, v []float64, minAge, maxAge int) (Selectivity, error) {
	switch {
	case low < minAge || low > maxAge:
		return nil, fmt.Errorf("selectivity %s: l (%d) must be between min_age %d and max_age %d", label, low, minAge, maxAge)
	case high < low || high > maxAge:
		return nil, fmt.Errorf("selectivity %s: h (%d) must be between l (%d) and max_age %d", label, high, low, maxAge)
	case len(v) != high-low+1:
		return nil, fmt.Errorf("selectivity %s: %d values supplied, %d ages from l to h required", label, len(v), high-low+1)
	}
	s := &cache{label: label, min: minAge, max: maxAge}
	s.fill(func(a float64) float64 {
		age := int(a)
		switch {
		case age < low:
			return 0.
		case age > high:
			return v[len(v)-1]
		}
		return v[age-low]
	})
	return s, nil
}

// Manager is the registry of selectivities by label
type Manager struct{ m map[string]Selectivity }

func NewManager() *Manager { return &Manager{m: make(map[string]Selectivity)} }

func (mg *Manager) Add(s Selectivity) error {
	if _, ok := mg.m[s.Label()]; ok {
		return fmt.Errorf("selectivity %s defined more than once", s.Label())
	}
	mg.m[s.Label()] = s
	return nil
}

func (mg *Manager) Get(label string) (Selectivity, bool) {
	s, ok := mg.m[label]
	return s, ok
}

func (mg *Manager) Labels() []string {
	o := make([]string, 0, len(mg.m))
	for k := range mg.m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
