package observation

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/maseology/casal/ageing"
	"github.com/maseology/casal/agelength"
	"github.com/maseology/casal/likelihood"
	"github.com/maseology/casal/mortality"
	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/penalty"
	"github.com/maseology/casal/selectivity"
	"github.com/maseology/casal/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	potYears = []int{2001, 2002, 2003, 2004, 2005}
	potModel = Model{MinAge: 1, MaxAge: 20, StartYear: 2001, FinalYear: 2005}
	potObs   = []string{"2005", "0.0002814574", "0.0095351205", "0.1661896098", "0.2701718827", "0.2214454177", "0.1661869474", "0.1107930285", "0.0553965360", "0", "0", "0", "0", "0"}
)

type potFixture struct {
	pt   *partition.Partition
	ms   *mortality.Instantaneous
	ctx  Context
	pens *penalty.Manager
}

// newPotFixture is a single-category pot fishery taking 8015.123 t of
// retained catch in 2005 from a partition with 100000..10000 fish at ages 1-10
func newPotFixture(t *testing.T) potFixture {
	t.Helper()
	pt, err := partition.New(1, 20, true, "male")
	require.NoError(t, err)
	male, _ := pt.Category("male")
	for i := 0; i < 10; i++ {
		male.Data[i] = float64(100000 - 10000*i)
	}

	m, err := agelength.BaseUnitsMultiplier("kgs", "tonnes")
	require.NoError(t, err)
	vb := &agelength.VonBertalanffy{
		Label:        "asMm0",
		Linf:         55.7,
		K:            0.14,
		T0:           -0.82,
		CVFirst:      0.1,
		CVLast:       0.1,
		ByLength:     true,
		LengthWeight: &agelength.LengthWeight{Label: "Length_Weight", A: 0.007289, B: 3.2055, Multiplier: m},
	}
	require.NoError(t, vb.Build(1, 20, 1))
	male.MeanWeight = vb.MeanWeights()
	male.AgeLength = vb.Label

	sm := selectivity.NewManager()
	require.NoError(t, sm.Add(selectivity.NewConstant("One", 1., 1, 20)))
	require.NoError(t, sm.Add(selectivity.NewConstant("fifty_percent", .5, 1, 20)))
	fsel, err := selectivity.NewLogistic("potFSel_length_male", 4., 1., 1., 1, 20)
	require.NoError(t, err)
	require.NoError(t, sm.Add(fsel))
	rsel, err := selectivity.NewLogistic("potRet_male", 6., 1., 1., 1, 20)
	require.NoError(t, err)
	require.NoError(t, sm.Add(rsel))

	tm, err := timestep.NewManager(timestep.Step{Label: "1", Processes: []string{"mort"}})
	require.NoError(t, err)

	pm := penalty.NewManager()
	pen, err := penalty.NewProcess("CatchMustBeTaken1", 1000., true)
	require.NoError(t, err)
	require.NoError(t, pm.Add(pen))

	ms, err := mortality.NewRetained(mortality.Settings{
		Label:               "mort",
		Categories:          []string{"male"},
		M:                   []float64{0.},
		RelativeMByAge:      []string{"One"},
		TimeStepProportions: []float64{1.},
		Biomass:             true,
		Catches: mortality.Table{
			Columns: []string{"year", "FishingPot"},
			Rows:    [][]string{{"2005", "8015.123"}},
		},
		Method: mortality.Table{
			Columns: []string{"method", "category", "selectivity", "retained_selectivity", "discard_mortality_selectivity", "u_max", "time_step", "penalty"},
			Rows:    [][]string{{"FishingPot", "male", "potFSel_length_male", "potRet_male", "fifty_percent", "0.7", "1", "CatchMustBeTaken1"}},
		},
	}, potYears)
	require.NoError(t, err)
	require.NoError(t, ms.Build(mortality.Context{
		Partition:     pt,
		Selectivities: sm,
		TimeSteps:     tm,
		Penalties:     pm,
		FinalYear:     2005,
	}))

	return potFixture{
		pt:   pt,
		ms:   ms,
		pens: pm,
		ctx: Context{
			Processes:    map[string]Mortality{"mort": ms},
			AgeingErrors: map[string]AgeingError{"no_error": ageing.NewNone("no_error", 1, 20)},
			AgeLengths:   map[string]*agelength.VonBertalanffy{vb.Label: vb},
			Partition:    pt,
			TimeSteps:    tm,
		},
	}
}

func (f potFixture) run(t *testing.T, obs ...*RemovalProportions) {
	t.Helper()
	for _, y := range potYears {
		require.NoError(t, f.ms.Execute(y, 0, false))
		for _, o := range obs {
			require.NoError(t, o.Execute(y, 0))
		}
	}
}

func potSettings() Settings {
	return Settings{
		Label:       "potFishAFtotal",
		Type:        "process_removals_by_age_retained_total",
		Process:     "mort",
		Years:       []int{2005},
		Methods:     []string{"FishingPot"},
		TimeSteps:   []string{"1"},
		Categories:  []string{"male"},
		MinAge:      3,
		MaxAge:      15,
		PlusGroup:   true,
		AgeingError: "no_error",
		Likelihood:  likelihood.TypeMultinomial,
		Obs:         mortality.Table{Rows: [][]string{append([]string(nil), potObs...)}},
		ErrorValues: mortality.Table{Rows: [][]string{{"2005", "651"}}},
		Delta:       1e-11,
	}
}

func TestRetainedTotalScore(t *testing.T) {
	f := newPotFixture(t)
	o, err := New(potSettings(), potModel)
	require.NoError(t, err)
	require.NoError(t, o.Build(f.ctx))
	f.run(t, o)

	fd, _ := f.ms.Fishery("FishingPot")
	assert.InDelta(t, 0.0702179, fd.Exploitation, 1e-7)
	assert.Equal(t, 0, f.pens.Count())

	assert.InDelta(t, 125.51065793918588, o.CalculateScore(), 1e-6)

	cs := o.Comparisons()
	require.Len(t, cs, 1)
	require.Len(t, cs[2005], 13)
	for i, e := range []struct {
		age             int
		expected, score float64
	}{
		{3, 0.0162697, 0.6742716},
		{6, 0.2028094, 1017.516421},
		{9, 0.0813485, 420.485106},
	} {
		cp := cs[2005][e.age-3]
		assert.Equal(t, e.age, cp.Age, i)
		assert.Equal(t, "male", cp.Category)
		assert.InDelta(t, e.expected, cp.Expected, 1e-6)
		assert.InDelta(t, e.score, cp.Score, 1e-4)
	}
	assert.Equal(t, 651., cs[2005][0].ErrorValue)
	assert.InDelta(t, 125.51065793918588, o.Scores()[2005], 1e-6)
}

func TestLedgerIsNotModified(t *testing.T) {
	f := newPotFixture(t)
	ae, err := ageing.NewNormal("normal", .1, 0, 1, 20, true)
	require.NoError(t, err)
	f.ctx.AgeingErrors["normal"] = ae

	s := potSettings()
	s.AgeingError = "normal"
	o, err := New(s, potModel)
	require.NoError(t, err)
	require.NoError(t, o.Build(f.ctx))

	require.NoError(t, f.ms.Execute(2005, 0, false))
	before, ok := f.ms.CatchAt().Get(2005, "FishingPot", "male")
	require.True(t, ok)
	before = append([]float64(nil), before...)

	require.NoError(t, o.Execute(2005, 0))
	after, _ := f.ms.CatchAt().Get(2005, "FishingPot", "male")
	assert.Equal(t, before, after)

	// misreads only leak a little across min_age
	tot := 0.
	for _, cp := range o.Comparisons()[2005] {
		tot += cp.Expected
	}
	inRange := 0.
	for i, v := range after {
		if i+1 >= 3 {
			inRange += v
		}
	}
	assert.InDelta(t, inRange, tot, inRange*.05)
}

func TestMissingRemovals(t *testing.T) {
	f := newPotFixture(t)
	o, err := New(potSettings(), potModel)
	require.NoError(t, err)
	require.NoError(t, o.Build(f.ctx))

	err = o.Execute(2005, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingRemovals))
	assert.Contains(t, err.Error(), "mort")
	assert.Contains(t, err.Error(), "potFishAFtotal")

	assert.NoError(t, o.Execute(2004, 0))
}

func TestBuildChecksProcess(t *testing.T) {
	f := newPotFixture(t)

	s := potSettings()
	s.Years = []int{2004}
	s.Obs.Rows[0][0] = "2004"
	s.ErrorValues = mortality.Table{Rows: [][]string{{"2004", "651"}}}
	o, err := New(s, potModel)
	require.NoError(t, err)
	assert.ErrorContains(t, o.Build(f.ctx), "positive catch")

	s = potSettings()
	s.Methods = []string{"FishingTrawl"}
	o, err = New(s, potModel)
	require.NoError(t, err)
	err = o.Build(f.ctx)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.ErrorContains(t, err, "could not find all these methods")

	s = potSettings()
	s.Process = "other"
	o, _ = New(s, potModel)
	assert.ErrorContains(t, o.Build(f.ctx), "mortality process other was not found")
}

func TestValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		mod func(*Settings)
		msg string
	}{
		"type":          {func(s *Settings) { s.Type = "proportions_at_age" }, "unknown observation type"},
		"min age":       {func(s *Settings) { s.MinAge = 0 }, "less than the model's min_age"},
		"max age":       {func(s *Settings) { s.MaxAge = 21 }, "greater than the model's max_age"},
		"time steps":    {func(s *Settings) { s.TimeSteps = []string{"1", "1"} }, "same number of time step labels"},
		"delta":         {func(s *Settings) { s.Delta = -1 }, "delta"},
		"process error": {func(s *Settings) { s.ProcessErrors = []float64{-1.} }, "cannot be less than 0.0"},
		"year":          {func(s *Settings) { s.Years = []int{2006} }, "outside start_year"},
		"obs count":     {func(s *Settings) { s.Obs = mortality.Table{Rows: [][]string{potObs[:10]}} }, "bins * categories"},
		"obs sum": {func(s *Settings) {
			r := append([]string(nil), potObs...)
			r[13] = "0.1"
			s.Obs = mortality.Table{Rows: [][]string{r}}
		}, "exceeds tolerance"},
		"error values": {func(s *Settings) { s.ErrorValues = mortality.Table{Rows: [][]string{{"2005", "1", "2"}}} }, "bins * categories"},
		"likelihood":    {func(s *Settings) { s.Likelihood = "dirichlet" }, "unknown likelihood"},
	} {
		t.Run(name, func(t *testing.T) {
			s := potSettings()
			tc.mod(&s)
			_, err := New(s, potModel)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestRetainedSource(t *testing.T) {
	f := newPotFixture(t)
	s := potSettings()
	s.Type = "process_removals_by_age_retained"
	total, err := New(potSettings(), potModel)
	require.NoError(t, err)
	ret, err := New(s, potModel)
	require.NoError(t, err)
	require.NoError(t, total.Build(f.ctx))
	require.NoError(t, ret.Build(f.ctx))
	f.run(t, total, ret)

	rt, _ := f.ms.RetainedAt().Get(2005, "FishingPot", "male")
	for _, cp := range ret.Comparisons()[2005] {
		if cp.Age < 15 {
			assert.Equal(t, rt[cp.Age-1], cp.Expected)
		}
	}
	// retention is below one at young ages
	assert.Less(t, ret.Comparisons()[2005][0].Expected, total.Comparisons()[2005][0].Expected)
}

func TestRetainedTypeNeedsRetainedProcess(t *testing.T) {
	f := newPotFixture(t)
	plain, err := mortality.New(mortality.Settings{
		Label:               "plain",
		Categories:          []string{"male"},
		M:                   []float64{0.},
		RelativeMByAge:      []string{"One"},
		TimeStepProportions: []float64{1.},
		Catches:             mortality.Table{Columns: []string{"year", "FishingPot"}, Rows: [][]string{{"2005", "1"}}},
		Method: mortality.Table{
			Columns: []string{"method", "category", "selectivity", "u_max", "time_step", "penalty"},
			Rows:    [][]string{{"FishingPot", "male", "One", "0.7", "1", "none"}},
		},
	}, potYears)
	require.NoError(t, err)
	f.ctx.Processes["plain"] = plain

	s := potSettings()
	s.Process = "plain"
	o, err := New(s, potModel)
	require.NoError(t, err)
	assert.ErrorContains(t, o.Build(f.ctx), mortality.TypeRetained)
}

func TestByLength(t *testing.T) {
	f := newPotFixture(t)
	s := potSettings()
	s.Type = "process_removals_by_length_retained_total"
	s.AgeingError = ""
	s.LengthBins = []float64{0, 20, 30, 40, 50}
	s.Obs = mortality.Table{Rows: [][]string{{"2005", "0.1", "0.2", "0.3", "0.2", "0.2"}}}
	o, err := New(s, potModel)
	require.NoError(t, err)
	require.NoError(t, o.Build(f.ctx))
	f.run(t, o)

	rm, _ := f.ms.CatchAt().Get(2005, "FishingPot", "male")
	want := 0.
	for _, v := range rm {
		want += v
	}
	cs := o.Comparisons()[2005]
	require.Len(t, cs, 5)
	got := 0.
	for _, cp := range cs {
		got += cp.Expected
	}
	assert.InDelta(t, want, got, want*1e-9)
	assert.Equal(t, 30., cs[2].Length)

	score := o.CalculateScore()
	assert.False(t, math.IsNaN(score))
	got = 0.
	for _, cp := range o.Comparisons()[2005] {
		got += cp.Expected
	}
	assert.InDelta(t, 1., got, 1e-12)
}

func TestSimulate(t *testing.T) {
	f := newPotFixture(t)
	o, err := New(potSettings(), potModel)
	require.NoError(t, err)
	require.NoError(t, o.Build(f.ctx))
	f.run(t, o)

	o.Simulate(rand.NewPCG(42, 1))
	tot := 0.
	for _, cp := range o.Comparisons()[2005] {
		assert.GreaterOrEqual(t, cp.Observed, 0.)
		tot += cp.Observed
	}
	assert.InDelta(t, 1., tot, 1e-12)

	o.Reset()
	assert.Empty(t, o.Comparisons())
	assert.Empty(t, o.Scores())
}
