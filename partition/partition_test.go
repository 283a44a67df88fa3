package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p, err := New(1, 5, true, "male", "female")
	require.NoError(t, err)
	assert.Equal(t, 5, p.AgeSpread())
	assert.Equal(t, []string{"male", "female"}, p.Labels())
	assert.Equal(t, 1, p.Index("female"))
	assert.Equal(t, -1, p.Index("immature"))
	assert.True(t, p.IsValid("male"))
	assert.False(t, p.IsValid("immature"))

	_, err = New(5, 1, true, "male")
	assert.Error(t, err)
	_, err = New(1, 5, true, "male", "male")
	assert.Error(t, err)
}

func TestCombined(t *testing.T) {
	p, err := New(1, 3, false, "male", "female")
	require.NoError(t, err)
	cs, err := p.Combined("male + female")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "female", cs[1].Name)

	_, err = p.Combined("male+immature")
	assert.Error(t, err)
}

func TestMeanWeightAt(t *testing.T) {
	p, _ := New(2, 4, true, "stock")
	c, _ := p.Category("stock")
	assert.Equal(t, 1., c.MeanWeightAt(0, 3))
	c.MeanWeight = [][]float64{{.5, 1., 1.5}}
	assert.Equal(t, 1., c.MeanWeightAt(0, 3))
	assert.Equal(t, 1.5, c.MeanWeightAt(0, 4))
	assert.Equal(t, 1., c.MeanWeightAt(1, 4))
}

func TestSnapshotRestore(t *testing.T) {
	p, _ := New(1, 3, true, "stock")
	c, _ := p.Category("stock")
	copy(c.Data, []float64{10., 20., 30.})
	assert.Equal(t, 60., c.Total())

	s := p.Snapshot()
	p.Clear()
	assert.Equal(t, 0., c.Total())
	require.NoError(t, p.Restore(s))
	assert.Equal(t, []float64{10., 20., 30.}, c.Data)

	s["stock"][0] = 99.
	assert.Equal(t, 10., c.Data[0])

	assert.Error(t, p.Restore(map[string][]float64{"other": {1.}}))
	assert.Error(t, p.Restore(map[string][]float64{"stock": {1.}}))
}
