package likelihood

import (
	"math"
	"math/rand/v2"

	"github.com/maseology/casal/mathx"
	"gonum.org/v1/gonum/stat/distuv"
)

// Multinomial likelihood; the error value is the effective sample size N
type Multinomial struct{}

func (Multinomial) Type() string { return TypeMultinomial }

func (Multinomial) AdjustErrorValue(processError, errorValue float64) float64 {
	if errorValue > 0. && processError > 0. {
		return 1. / (1./errorValue + 1./processError)
	}
	return errorValue
}

func (l Multinomial) GetScores(c Comparisons) {
	for _, cs := range c {
		for i := range cs {
			n := l.AdjustErrorValue(cs[i].ProcessError, cs[i].ErrorValue)
			cs[i].Score = mathx.LnFactorial(n*cs[i].Observed) - n*cs[i].Observed*math.Log(mathx.ZeroFun(cs[i].Expected, cs[i].Delta))
		}
	}
}

// InitialScore is -ln(N!) once for every category in the year
func (l Multinomial) InitialScore(c Comparisons, year int) (s float64) {
	last := ""
	for i, cp := range c[year] {
		if i > 0 && cp.Category == last {
			continue
		}
		s -= mathx.LnFactorial(l.AdjustErrorValue(cp.ProcessError, cp.ErrorValue))
		last = cp.Category
	}
	return
}

// SimulateObserved draws ceil(N) individuals per category from the expected
// proportions; observed values are the resulting proportions.
func (l Multinomial) SimulateObserved(c Comparisons, src rand.Source) {
	for _, y := range c.Years() {
		cs := c[y]
		keys, m := byCategory(cs)
		for _, k := range keys {
			ii := m[k]
			w, tot := make([]float64, len(ii)), 0.
			for j, i := range ii {
				if cs[i].Expected > 0. {
					w[j] = cs[i].Expected
					tot += w[j]
				}
				cs[i].Observed = 0.
			}
			n := math.Ceil(l.AdjustErrorValue(cs[ii[0]].ProcessError, cs[ii[0]].ErrorValue))
			if tot <= 0. || n <= 0. {
				continue
			}
			cat := distuv.NewCategorical(w, src)
			for s := 0; s < int(n); s++ {
				cs[ii[int(cat.Rand())]].Observed++
			}
			for _, i := range ii {
				cs[i].Observed /= n
			}
		}
	}
}
