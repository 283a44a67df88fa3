package likelihood

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoCategories() Comparisons {
	return Comparisons{2005: {
		{Category: "male", Age: 3, Expected: .5, Observed: .25, ErrorValue: 100., Delta: 1e-11},
		{Category: "male", Age: 4, Expected: .5, Observed: .75, ErrorValue: 100., Delta: 1e-11},
		{Category: "female", Age: 3, Expected: .2, Observed: .3, ErrorValue: 50., Delta: 1e-11},
		{Category: "female", Age: 4, Expected: .8, Observed: .7, ErrorValue: 50., Delta: 1e-11},
	}}
}

func lnf(t float64) float64 {
	v, _ := math.Lgamma(t + 1.)
	return v
}

func TestNew(t *testing.T) {
	for _, typ := range []string{TypeMultinomial, TypeLogNormal, TypeBinomialApprox, TypeNormal} {
		l, err := New(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, l.Type())
	}
	_, err := New("dirichlet")
	assert.Error(t, err)
}

func TestMultinomialScores(t *testing.T) {
	c := twoCategories()
	l := Multinomial{}
	l.GetScores(c)

	cs := c[2005]
	assert.InDelta(t, lnf(25.)-25.*math.Log(.5), cs[0].Score, 1e-9)
	assert.InDelta(t, lnf(75.)-75.*math.Log(.5), cs[1].Score, 1e-9)
	assert.InDelta(t, lnf(15.)-15.*math.Log(.2), cs[2].Score, 1e-9)
	assert.InDelta(t, -lnf(100.)-lnf(50.), l.InitialScore(c, 2005), 1e-9)
	assert.Equal(t, 0., l.InitialScore(c, 1999))
}

func TestMultinomialZeroExpected(t *testing.T) {
	c := Comparisons{2000: {{Category: "a", Expected: 0., Observed: .1, ErrorValue: 10., Delta: 1e-11}}}
	Multinomial{}.GetScores(c)
	s := c[2000][0].Score
	assert.False(t, math.IsInf(s, 0) || math.IsNaN(s))
}

func TestAdjustErrorValue(t *testing.T) {
	assert.InDelta(t, 50., Multinomial{}.AdjustErrorValue(100., 100.), 1e-12)
	assert.Equal(t, 100., Multinomial{}.AdjustErrorValue(0., 100.))
	assert.InDelta(t, 0.5, LogNormal{}.AdjustErrorValue(.3, .4), 1e-12)
	assert.Equal(t, .4, LogNormal{}.AdjustErrorValue(0., .4))
	assert.InDelta(t, 0.5, Normal{}.AdjustErrorValue(.3, .4), 1e-12)
	assert.InDelta(t, 50., BinomialApprox{}.AdjustErrorValue(100., 100.), 1e-12)
}

func TestLogNormalScores(t *testing.T) {
	c := Comparisons{2000: {{Category: "a", Expected: .4, Observed: .5, ErrorValue: .2, Delta: 1e-11}}}
	LogNormal{}.GetScores(c)
	sigma := math.Sqrt(math.Log(1.04))
	z := math.Log(.5/.4)/sigma + .5*sigma
	assert.InDelta(t, math.Log(sigma)+.5*z*z, c[2000][0].Score, 1e-12)
}

func TestBinomialApproxScores(t *testing.T) {
	c := Comparisons{2000: {{Category: "a", Expected: .4, Observed: .5, ErrorValue: 100., Delta: 1e-11}}}
	BinomialApprox{}.GetScores(c)
	se := math.Sqrt(.4 * .6 / 100.)
	z := .1 / se
	assert.InDelta(t, math.Log(se)+.5*z*z, c[2000][0].Score, 1e-12)
}

func TestNormalScores(t *testing.T) {
	c := Comparisons{2000: {{Category: "a", Expected: 10., Observed: 12., ErrorValue: .1, Delta: 1e-11}}}
	Normal{}.GetScores(c)
	assert.InDelta(t, math.Log(1.)+.5*4., c[2000][0].Score, 1e-12)
}

func TestMultinomialSimulate(t *testing.T) {
	c := twoCategories()
	Multinomial{}.SimulateObserved(c, rand.NewPCG(1, 2))

	sums := map[string]float64{}
	for _, cp := range c[2005] {
		assert.GreaterOrEqual(t, cp.Observed, 0.)
		sums[cp.Category] += cp.Observed
	}
	assert.InDelta(t, 1., sums["male"], 1e-12)
	assert.InDelta(t, 1., sums["female"], 1e-12)
}

// manyYears repeats twoCategories over ten years, each year drawing from
// the shared source in turn
func manyYears() Comparisons {
	c := make(Comparisons, 10)
	for y := 2001; y <= 2010; y++ {
		c[y] = twoCategories()[2005]
	}
	return c
}

func TestSimulateDeterministicBySeed(t *testing.T) {
	for _, l := range []Likelihood{Multinomial{}, LogNormal{}, BinomialApprox{}, Normal{}} {
		a, b := twoCategories(), twoCategories()
		l.SimulateObserved(a, rand.NewPCG(7, 11))
		l.SimulateObserved(b, rand.NewPCG(7, 11))
		assert.Equal(t, a, b, l.Type())

		// draws are taken in year order whatever the map order
		for i := 0; i < 5; i++ {
			a, b = manyYears(), manyYears()
			l.SimulateObserved(a, rand.NewPCG(7, 11))
			l.SimulateObserved(b, rand.NewPCG(7, 11))
			require.Equal(t, a, b, l.Type())
		}

		// the first year takes the first draws
		first := Comparisons{2001: twoCategories()[2005]}
		l.SimulateObserved(first, rand.NewPCG(7, 11))
		a = manyYears()
		l.SimulateObserved(a, rand.NewPCG(7, 11))
		assert.Equal(t, first[2001], a[2001], l.Type())
	}
}

func TestSimulateZeroExpected(t *testing.T) {
	c := Comparisons{2000: {
		{Category: "a", Expected: 0., ErrorValue: 10.},
		{Category: "a", Expected: 1., ErrorValue: 10.},
	}}
	BinomialApprox{}.SimulateObserved(c, rand.NewPCG(3, 4))
	assert.Equal(t, 0., c[2000][0].Observed)

	Multinomial{}.SimulateObserved(c, rand.NewPCG(3, 4))
	assert.Equal(t, 0., c[2000][0].Observed)
	assert.Equal(t, 1., c[2000][1].Observed)
}

func TestYears(t *testing.T) {
	c := Comparisons{2003: nil, 2001: nil, 2002: nil}
	assert.Equal(t, []int{2001, 2002, 2003}, c.Years())
}
