package likelihood

import (
	"math"
	"math/rand/v2"

	"github.com/maseology/casal/mathx"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal likelihood; the error value is a CV about the expectation
type Normal struct{}

func (Normal) Type() string { return TypeNormal }

func (Normal) AdjustErrorValue(processError, errorValue float64) float64 {
	if processError > 0. {
		return math.Sqrt(mathx.ZeroFun(errorValue*errorValue + processError*processError))
	}
	return errorValue
}

func (l Normal) GetScores(c Comparisons) {
	for _, cs := range c {
		for i := range cs {
			cv := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			sigma := mathx.ZeroFun(cv*cs[i].Expected, cs[i].Delta)
			z := (cs[i].Observed - cs[i].Expected) / sigma
			cs[i].Score = math.Log(sigma) + .5*z*z
		}
	}
}

func (Normal) InitialScore(Comparisons, int) float64 { return 0. }

func (l Normal) SimulateObserved(c Comparisons, src rand.Source) {
	for _, y := range c.Years() {
		cs := c[y]
		for i := range cs {
			cv := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			if cs[i].Expected <= 0. || cv <= 0. {
				cs[i].Observed = 0.
				continue
			}
			cs[i].Observed = distuv.Normal{Mu: cs[i].Expected, Sigma: cs[i].Expected * cv, Src: src}.Rand()
		}
	}
}
