package derived

import (
	"math"
	"testing"

	"github.com/maseology/casal/partition"
	"github.com/maseology/casal/selectivity"
	"github.com/maseology/casal/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, s Settings) (*Quantity, *partition.Category) {
	t.Helper()
	pt, err := partition.New(1, 3, true, "stock")
	require.NoError(t, err)
	c, _ := pt.Category("stock")
	c.MeanWeight = [][]float64{{1., 2., 3.}, {2., 4., 6.}}

	sels := selectivity.NewManager()
	require.NoError(t, sels.Add(selectivity.NewConstant("One", 1., 1, 3)))
	half, err := selectivity.NewAllValuesBounded("Half", 2, 3, []float64{.5, 1.}, 1, 3)
	require.NoError(t, err)
	require.NoError(t, sels.Add(half))

	ts, err := timestep.NewManager(timestep.Step{Label: "step1"}, timestep.Step{Label: "step2"})
	require.NoError(t, err)

	q, err := New(s, pt, sels, ts)
	require.NoError(t, err)
	return q, c
}

func TestBiomass(t *testing.T) {
	q, c := setup(t, Settings{Label: "ssb", Type: Biomass, TimeStep: "step2", Categories: []string{"stock"}, Selectivities: []string{"Half"}, Proportion: 1.})
	assert.Equal(t, 1, q.TimeStepIndex)

	copy(c.Data, []float64{100., 10., 1.})
	q.PreExecute(1)
	copy(c.Data, []float64{50., 8., 2.})
	q.Execute(1990, 1, false)
	// 50*0*2 + 8*.5*4 + 2*1*6
	v, ok := q.Value(1990, 1990)
	require.True(t, ok)
	assert.Equal(t, 28., v)
}

func TestTimeStepProportion(t *testing.T) {
	for _, tt := range []struct {
		name   string
		prop   float64
		method string
		want   float64
	}{
		{"start of step", 0., WeightedSum, 111.},
		{"weighted sum", .25, WeightedSum, 111. + (60.-111.)*.25},
		{"weighted product", .25, WeightedProduct, math.Pow(111., .75) * math.Pow(60., .25)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			q, c := setup(t, Settings{Label: "n", Type: Abundance, TimeStep: "step1", Categories: []string{"stock"}, Selectivities: []string{"One"}, Proportion: tt.prop, ProportionMethod: tt.method})
			copy(c.Data, []float64{100., 10., 1.})
			q.PreExecute(0)
			copy(c.Data, []float64{50., 8., 2.})
			q.Execute(2000, 0, false)
			v, _ := q.Value(2000, 2000)
			assert.InDelta(t, tt.want, v, 1e-12)
		})
	}
}

func TestInitialisationValues(t *testing.T) {
	q, c := setup(t, Settings{Label: "n", Type: Abundance, TimeStep: "step1", Categories: []string{"stock"}, Selectivities: []string{"One"}, Proportion: 1.})
	_, ok := q.Value(1989, 1990)
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		c.Data[0] = float64(i)
		q.PreExecute(0)
		q.Execute(1990, 0, true)
	}
	assert.Equal(t, []float64{1., 2., 3.}, q.InitialisationValues())
	assert.Equal(t, 3., q.LastInitialisationValue())

	v, ok := q.Value(1989, 1990)
	require.True(t, ok)
	assert.Equal(t, 3., v)
	v, _ = q.Value(1988, 1990)
	assert.Equal(t, 2., v)
	v, _ = q.Value(1900, 1990)
	assert.Equal(t, 1., v)
	_, ok = q.Value(1991, 1990)
	assert.False(t, ok)

	q.Reset()
	assert.Empty(t, q.InitialisationValues())
	assert.Zero(t, q.LastInitialisationValue())
}

func TestNewErrors(t *testing.T) {
	pt, err := partition.New(1, 3, true, "stock")
	require.NoError(t, err)
	sels := selectivity.NewManager()
	require.NoError(t, sels.Add(selectivity.NewConstant("One", 1., 1, 3)))
	ts, err := timestep.NewManager(timestep.Step{Label: "step1"})
	require.NoError(t, err)

	base := Settings{Label: "d", Type: Biomass, TimeStep: "step1", Categories: []string{"stock"}, Selectivities: []string{"One"}}
	for _, tt := range []struct {
		name string
		edit func(s *Settings)
	}{
		{"type", func(s *Settings) { s.Type = "catch" }},
		{"time step", func(s *Settings) { s.TimeStep = "step9" }},
		{"category", func(s *Settings) { s.Categories = []string{"immature"} }},
		{"selectivity", func(s *Settings) { s.Selectivities = []string{"Zero"} }},
		{"proportion", func(s *Settings) { s.Proportion = 1.5 }},
		{"method", func(s *Settings) { s.ProportionMethod = "mean" }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.edit(&s)
			_, err := New(s, pt, sels, ts)
			assert.Error(t, err)
		})
	}
}
