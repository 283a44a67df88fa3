// Package ageing builds age misclassification matrices: row i is the true
// age, column j the age read, each row sums to one.
package ageing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type Error interface {
	Label() string
	MisMatrix() *mat.Dense
	Apply(v []float64) ([]float64, error)
}

type matrix struct {
	label  string
	minAge int
	mis    *mat.Dense
}

func (m *matrix) Label() string { return m.label }

func (m *matrix) MisMatrix() *mat.Dense { return m.mis }

// Apply returns a new vector adjusted[j] = sum_i v[i]*mis[i][j]; v is left unchanged
func (m *matrix) Apply(v []float64) ([]float64, error) {
	n, _ := m.mis.Dims()
	if len(v) != n {
		return nil, fmt.Errorf("ageing.Apply() %s: vector length %d does not match the %d ages of the matrix", m.label, len(v), n)
	}
	var r mat.VecDense
	r.MulVec(m.mis.T(), mat.NewVecDense(n, append([]float64(nil), v...)))
	return r.RawVector().Data, nil
}

// NewNone returns the identity (no ageing error)
func NewNone(label string, minAge, maxAge int) Error {
	n := maxAge - minAge + 1
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1.)
	}
	return &matrix{label: label, minAge: minAge, mis: d}
}

// NewNormal assumes age readings are normally distributed about the true age
// with standard deviation cv*age. Ages below k are read without error.
func NewNormal(label string, cv float64, k, minAge, maxAge int, plusGroup bool) (Error, error) {
	if cv <= 0. {
		return nil, fmt.Errorf("ageing error %s: cv (%v) must be greater than 0", label, cv)
	}
	if k < 0 || k > maxAge {
		return nil, fmt.Errorf("ageing error %s: k (%d) must be between 0 and max_age (%d)", label, k, maxAge)
	}
	n := maxAge - minAge + 1
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		age := float64(minAge + i)
		nd := distuv.Normal{Mu: age, Sigma: age * cv}
		for j := 0; j < n; j++ {
			lo := float64(minAge+j) - .5
			switch {
			case j == 0:
				d.Set(i, j, nd.CDF(lo+1.))
			case j == n-1 && plusGroup:
				d.Set(i, j, 1.-nd.CDF(lo))
			default:
				d.Set(i, j, nd.CDF(lo+1.)-nd.CDF(lo))
			}
		}
	}
	for i := 0; i < k-minAge; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, 0.)
		}
		d.Set(i, i, 1.)
	}
	return &matrix{label: label, minAge: minAge, mis: d}, nil
}

type Manager struct{ m map[string]Error }

func NewManager() *Manager { return &Manager{m: make(map[string]Error)} }

func (mg *Manager) Add(e Error) error {
	if _, ok := mg.m[e.Label()]; ok {
		return fmt.Errorf("ageing error %s defined more than once", e.Label())
	}
	mg.m[e.Label()] = e
	return nil
}

func (mg *Manager) Get(label string) (Error, bool) {
	e, ok := mg.m[label]
	return e, ok
}
