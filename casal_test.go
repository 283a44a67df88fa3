package casal

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/maseology/casal/config"
	"github.com/maseology/casal/mortality"
	"github.com/maseology/casal/opt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// Numbers at age 1..30 at the end of 2012 for testdata/regression.yaml, the
// values CASAL2 reports for the same model
var referenceN = []float64{
	0, 4949176.82048178, 4064898.2621518681, 3328684.1087008952, 2706834.6065880726,
	2190888.450324099, 1767721.5580938468, 1425641.5667563954, 1140148.3260357741, 907812.45802352321,
	720031.05614045332, 567731.9296628146, 445605.3260517047, 350563.78174247633, 275339.15723073942,
	215262.40630128933, 167136.53823274924, 129653.50528339949, 101157.68202146454, 79586.351305909513,
	63116.075477451588, 50550.346367653998, 41118.131347039118, 33999.31527315217, 28565.45150964101,
	24327.409298919287, 20914.675439551294, 18089.274781314001, 15700.519200272849, 95507.546634746832,
}

func loadRegression(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("testdata/regression.yaml")
	require.NoError(t, err)
	return cfg
}

func buildRegression(t *testing.T) *Model {
	t.Helper()
	m, err := BuildModel(loadRegression(t), nil)
	require.NoError(t, err)
	return m
}

// withObservation adds a by-age observation of the west fishery, 2005-2012
func withObservation(cfg *config.Config) *config.Config {
	var obs, ev config.Table
	for y := 2005; y <= 2012; y++ {
		row := []string{strconv.Itoa(y)}
		for i := 0; i < 13; i++ {
			row = append(row, "0.0769230769")
		}
		obs = append(obs, row)
		ev = append(ev, []string{strconv.Itoa(y), "50"})
	}
	cfg.AgeingErrors = append(cfg.AgeingErrors, config.AgeingError{Label: "ae", Type: "normal", CV: .1})
	cfg.Observations = append(cfg.Observations, config.Observation{
		Label:       "westAF",
		Type:        "process_removals_by_age",
		Process:     "Mortality",
		Years:       []int{2005, 2006, 2007, 2008, 2009, 2010, 2011, 2012},
		Methods:     []string{"FishingWest"},
		TimeSteps:   []string{"step1"},
		Categories:  []string{"stock"},
		MinAge:      3,
		MaxAge:      15,
		PlusGroup:   true,
		AgeingError: "ae",
		Likelihood:  "multinomial",
		Obs:         obs,
		ErrorValues: ev,
		Delta:       1e-11,
	})
	return cfg
}

func TestRegression(t *testing.T) {
	m := buildRegression(t)
	r, err := m.Run(context.Background())
	require.NoError(t, err)

	n := r.Partition["stock"]
	require.Len(t, n, len(referenceN))
	for i, want := range referenceN {
		assert.InDelta(t, want, n[i], math.Max(math.Abs(want)*1e-9, 1e-6), "age %d", i+1)
	}

	fw := r.Reports["Mortality"]["FishingWest"]
	assert.Len(t, fw["exploitation_rate"], 38)
	assert.Len(t, fw["fishing_pressure"], 38)
	for y, u := range fw["fishing_pressure"] {
		assert.LessOrEqual(t, fw["exploitation_rate"][y], .7+1e-12, "year %d", y)
		assert.GreaterOrEqual(t, u, 0.)
	}
	assert.Len(t, r.Ledger["Mortality"], 38)

	ssb := r.Derived["biomass_t1"]
	assert.Len(t, ssb, 43)
	b0 := m.Derived["biomass_t1"].LastInitialisationValue()
	assert.Len(t, m.Derived["biomass_t1"].InitialisationValues(), 100)
	assert.Greater(t, b0, ssb[2012])

	_, ok := r.Ledger["Mortality"].Get(1974, "FishingWest", "stock")
	assert.False(t, ok)
	rm, ok := r.Ledger["Mortality"].Get(2012, "FishingEest", "stock")
	require.True(t, ok)
	assert.Len(t, rm, 30)
}

func TestRunIsRepeatable(t *testing.T) {
	m := buildRegression(t)
	r1, err := m.Run(context.Background())
	require.NoError(t, err)
	r2, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(r1.Partition, r2.Partition))
	assert.Empty(t, cmp.Diff(r1.Reports, r2.Reports))
	assert.Equal(t, r1.Objective, r2.Objective)
	assert.Equal(t, r1.Penalties, r2.Penalties)
}

func TestRunCancelled(t *testing.T) {
	m := buildRegression(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAddressables(t *testing.T) {
	m := buildRegression(t)
	v, err := m.Get("process[Mortality].m[stock]")
	require.NoError(t, err)
	assert.Equal(t, .0798, v)

	require.NoError(t, m.Set("process[Mortality].m[stock]", .1))
	v, _ = m.Get("process[Mortality].m[stock]")
	assert.Equal(t, .1, v)

	v, err = m.Get("process[Mortality].method_fishingwest[1977]")
	require.NoError(t, err)
	assert.Equal(t, 74000., v)

	require.NoError(t, m.Set("process[Recruitment].r0", 1e6))
	v, _ = m.Get("process[Recruitment].r0")
	assert.Equal(t, 1e6, v)

	v, err = m.Get("process[Recruitment].ycs_values[1990]")
	require.NoError(t, err)
	assert.Equal(t, 1., v)
	require.NoError(t, m.Set("process[Recruitment].steepness", .75))
	v, _ = m.Get("process[Recruitment].steepness")
	assert.Equal(t, .75, v)

	v, err = m.Get("process[M].m[stock]")
	require.NoError(t, err)
	assert.Equal(t, .19, v)

	for _, name := range []string{"m[stock]", "process[Nope].r0", "process[Ageing].r0", "process[Mortality]m", "process[Recruitment].ycs_values[1900]", "process[M].m[immature]"} {
		_, err := m.Get(name)
		assert.Error(t, err, name)
	}
}

func TestObjectiveWithObservation(t *testing.T) {
	m, err := BuildModel(withObservation(loadRegression(t)), nil)
	require.NoError(t, err)
	r, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, r.Scores, "westAF")
	assert.Len(t, r.Scores["westAF"], 8)
	s := 0.
	for _, v := range r.Scores["westAF"] {
		s += v
	}
	for _, v := range r.Penalties {
		s += v
	}
	assert.False(t, math.IsNaN(r.Objective))
	assert.InDelta(t, s, r.Objective, math.Abs(s)*1e-12)
}

func TestBuildModelErrors(t *testing.T) {
	cfg := loadRegression(t)
	cfg.Processes[2].Method[1][2] = "noSuchSel"
	cfg.Selectivities = append(cfg.Selectivities, config.Selectivity{Label: "bad", Type: "logistic", A50: 5, Ato95: 0})
	_, err := BuildModel(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ato95")

	cfg = loadRegression(t)
	cfg.Processes[2].Method[1][2] = "noSuchSel"
	_, err = BuildModel(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mortality.ErrConfig))
	assert.Contains(t, err.Error(), "noSuchSel")
}

func TestGobRoundTrip(t *testing.T) {
	m := buildRegression(t)
	r, err := m.Run(context.Background())
	require.NoError(t, err)

	fp := filepath.Join(t.TempDir(), "run.gob")
	require.NoError(t, r.SaveGob(fp))
	r2, err := LoadGob(fp)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(r, r2, cmpopts.EquateEmpty()))
}

func TestWriters(t *testing.T) {
	m, err := BuildModel(withObservation(loadRegression(t)), nil)
	require.NoError(t, err)
	r, err := m.Run(context.Background())
	require.NoError(t, err)

	prfx := filepath.Join(t.TempDir(), "run.")
	require.NoError(t, r.WriteReports(prfx, m.Partition.MinAge))
	require.NoError(t, r.WriteScores(prfx))

	b, err := os.ReadFile(prfx + "catch_at.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "process,year,fishery,category,age,removals", lines[0])
	assert.Len(t, lines, 1+38*2*30)
	assert.True(t, strings.HasPrefix(lines[1], "Mortality,1975,FishingEest,stock,1,"))

	b, err = os.ReadFile(prfx + "scores.csv")
	require.NoError(t, err)
	assert.Contains(t, string(b), "observation,westAF,2005,")
	assert.Contains(t, string(b), "objective,,,")
}

func TestMonteCarlo(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := loadRegression(t)
	u := opt.LatinHypercube(rand.NewPCG(7, 11), 6, len(cfg.Estimates))
	mt := NewMetrics()
	var done int
	b := Batch{Config: cfg, Workers: 3, Metrics: mt, OnDone: func(int) { done++ }}
	smps, err := b.MonteCarlo(context.Background(), u)
	require.NoError(t, err)
	require.Len(t, smps, 6)
	assert.Equal(t, 6, done)
	for k, s := range smps {
		assert.Equal(t, k, s.K)
		assert.Len(t, s.Pars, 2)
		assert.GreaterOrEqual(t, s.Pars["process[Mortality].m[stock]"], .05)
		assert.LessOrEqual(t, s.Pars["process[Mortality].m[stock]"], .15)
	}

	// a fresh model with the same parameters reproduces the sample
	m, err := BuildModel(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetAll(smps[4].Pars))
	r, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, smps[4].Objective, r.Objective)

	require.NoError(t, mt.WriteToTextfile(filepath.Join(t.TempDir(), "casal.prom")))
}

func TestSimulate(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := withObservation(loadRegression(t))
	b1 := Batch{Config: cfg, Workers: 1}
	b3 := Batch{Config: cfg, Workers: 3}
	r1, err := b1.Simulate(context.Background(), 4, 99)
	require.NoError(t, err)
	r3, err := b3.Simulate(context.Background(), 4, 99)
	require.NoError(t, err)
	require.Len(t, r1, 4)
	assert.Empty(t, cmp.Diff(r1, r3))

	for _, rep := range r1 {
		cs := rep.Observations["westAF"]
		require.Len(t, cs, 8)
		for y, c := range cs {
			s := 0.
			for _, cp := range c {
				s += cp.Observed
			}
			assert.InDelta(t, 1., s, 1e-9, "replicate %d year %d", rep.K, y)
		}
	}
	assert.NotEqual(t, r1[0].Observations["westAF"][2005], r1[1].Observations["westAF"][2005])

	fp := filepath.Join(t.TempDir(), "replicates.csv")
	require.NoError(t, WriteReplicates(fp, r1))
	b, err := os.ReadFile(fp)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Len(t, lines, 1+4*8*13)
	assert.True(t, strings.HasPrefix(lines[1], "0,westAF,2005,stock,3,"))
}

func TestBatchCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := Batch{Config: loadRegression(t), Workers: 2}
	_, err := b.Simulate(ctx, 5, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
