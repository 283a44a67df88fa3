package likelihood

import (
	"math"
	"math/rand/v2"

	"github.com/maseology/casal/mathx"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogNormal likelihood; the error value is a CV
type LogNormal struct{}

func (LogNormal) Type() string { return TypeLogNormal }

func (LogNormal) AdjustErrorValue(processError, errorValue float64) float64 {
	if processError > 0. {
		return math.Sqrt(errorValue*errorValue + processError*processError)
	}
	return errorValue
}

func (l LogNormal) GetScores(c Comparisons) {
	for _, cs := range c {
		for i := range cs {
			cv := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			sigma := math.Sqrt(math.Log(1. + cv*cv))
			z := math.Log(mathx.ZeroFun(cs[i].Observed, cs[i].Delta)/mathx.ZeroFun(cs[i].Expected, cs[i].Delta))/sigma + .5*sigma
			cs[i].Score = math.Log(sigma) + .5*z*z
		}
	}
}

func (LogNormal) InitialScore(Comparisons, int) float64 { return 0. }

// SimulateObserved draws from a lognormal with mean = expected and the
// adjusted CV, then rescales each category to proportions.
func (l LogNormal) SimulateObserved(c Comparisons, src rand.Source) {
	for _, y := range c.Years() {
		cs := c[y]
		tot := make(map[string]float64)
		for i := range cs {
			cv := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			if cs[i].Expected <= 0. || cv <= 0. {
				cs[i].Observed = cs[i].Delta
			} else {
				sigma := math.Sqrt(math.Log(1. + cv*cv))
				cs[i].Observed = distuv.LogNormal{Mu: math.Log(cs[i].Expected) - sigma*sigma/2., Sigma: sigma, Src: src}.Rand()
			}
			tot[cs[i].Category] += cs[i].Observed
		}
		for i := range cs {
			if t := tot[cs[i].Category]; t > 0. {
				cs[i].Observed /= t
			}
		}
	}
}
