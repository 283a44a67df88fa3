package likelihood

import (
	"math"
	"math/rand/v2"

	"github.com/maseology/casal/mathx"
	"gonum.org/v1/gonum/stat/distuv"
)

// BinomialApprox is the normal approximation to the binomial; the error value is N
type BinomialApprox struct{}

func (BinomialApprox) Type() string { return TypeBinomialApprox }

func (BinomialApprox) AdjustErrorValue(processError, errorValue float64) float64 {
	if errorValue > 0. && processError > 0. {
		return 1. / (1./errorValue + 1./processError)
	}
	return errorValue
}

func (l BinomialApprox) GetScores(c Comparisons) {
	for _, cs := range c {
		for i := range cs {
			n := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			e := cs[i].Expected
			se := math.Sqrt(mathx.ZeroFun(e, cs[i].Delta) * mathx.ZeroFun(1.-e, cs[i].Delta) / n)
			z := (cs[i].Observed - e) / se
			cs[i].Score = math.Log(se) + .5*z*z
		}
	}
}

func (BinomialApprox) InitialScore(Comparisons, int) float64 { return 0. }

func (l BinomialApprox) SimulateObserved(c Comparisons, src rand.Source) {
	for _, y := range c.Years() {
		cs := c[y]
		for i := range cs {
			n := math.Ceil(l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue))
			if cs[i].Expected <= 0. || n <= 0. {
				cs[i].Observed = 0.
				continue
			}
			p := math.Min(cs[i].Expected, 1.)
			cs[i].Observed = distuv.Binomial{N: n, P: p, Src: src}.Rand() / n
		}
	}
}
