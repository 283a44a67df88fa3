package opt

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/maseology/casal/config"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"
)

func LinearTransform(lo, hi, u float64) float64 { return lo + u*(hi-lo) }

func LogLinearTransform(lo, hi, u float64) float64 {
	return math.Exp(LinearTransform(math.Log(lo), math.Log(hi), u))
}

// Par maps one point of the unit hypercube onto the estimated parameters,
// in log space where the estimate asks for it
func Par(u []float64, est []config.Estimate) (map[string]float64, error) {
	if len(u) != len(est) {
		return nil, fmt.Errorf("opt.Par() failed: %d sample dimensions for %d estimates", len(u), len(est))
	}
	o := make(map[string]float64, len(est))
	for i, e := range est {
		if u[i] < 0. || u[i] > 1. {
			return nil, fmt.Errorf("opt.Par() failed: u[%d] = %v is outside [0,1]", i, u[i])
		}
		if e.LogScale {
			if e.LowerBound <= 0. {
				return nil, fmt.Errorf("opt.Par() failed: %s lower bound must be positive on the log scale", e.Parameter)
			}
			o[e.Parameter] = LogLinearTransform(e.LowerBound, e.UpperBound, u[i])
		} else {
			o[e.Parameter] = LinearTransform(e.LowerBound, e.UpperBound, u[i])
		}
	}
	return o, nil
}

// LatinHypercube returns n stratified samples of the p-dimensional unit hypercube
func LatinHypercube(src rand.Source, n, p int) [][]float64 {
	if n < 1 || p < 1 {
		return nil
	}
	b := mat.NewDense(n, p, nil)
	samplemv.LatinHypercube{Q: distmv.NewUnitUniform(p, src), Src: src}.Sample(b)
	o := make([][]float64, n)
	for k := range o {
		o[k] = mat.Row(nil, k, b)
	}
	return o
}
