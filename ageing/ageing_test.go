package ageing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalMisMatrix(t *testing.T) {
	e, err := NewNormal("normal", 0.1, 0, 3, 8, true)
	require.NoError(t, err)

	m := e.MisMatrix()
	assert.InDelta(t, 0.95221, m.At(0, 0), 1e-5)
	assert.InDelta(t, 0.04779, m.At(0, 1), 1e-5)
	assert.InDelta(t, 0.68269, m.At(2, 2), 1e-5)
	assert.InDelta(t, 0.73401, m.At(5, 5), 1e-5)
	for i := 0; i < 6; i++ {
		s := 0.
		for j := 0; j < 6; j++ {
			s += m.At(i, j)
		}
		assert.InDelta(t, 1., s, 1e-12, "row %d", i)
	}
}

func TestNormalApply(t *testing.T) {
	expected := []float64{10, 20, 30, 20, 15, 5}
	tests := []struct {
		k    int
		plus bool
		want []float64
	}{
		{0, true, []float64{11.675902, 21.097643, 26.756975, 20.097275, 13.015051, 7.357153}},
		{4, true, []float64{12.153806, 20.619743, 26.756972, 20.097275, 13.015051, 7.357153}},
		{0, false, []float64{11.675902, 21.097643, 26.756975, 20.097275, 13.015051, 5.785982}},
		{4, false, []float64{12.153806, 20.619743, 26.756972, 20.097275, 13.015051, 5.785982}},
	}
	for _, tt := range tests {
		e, err := NewNormal("normal", 0.1, tt.k, 3, 8, tt.plus)
		require.NoError(t, err)
		got, err := e.Apply(expected)
		require.NoError(t, err)
		assert.InDeltaSlice(t, tt.want, got, 1e-5, "k=%d plus=%v", tt.k, tt.plus)
	}
	assert.Equal(t, []float64{10, 20, 30, 20, 15, 5}, expected)
}

func TestNone(t *testing.T) {
	e := NewNone("no_error", 1, 4)
	v := []float64{1, 2, 3, 4}
	got, err := e.Apply(v)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	// a vector over different ages is rejected, not read out of range
	_, err = e.Apply([]float64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_error")
	_, err = e.Apply(append(v, 5))
	assert.Error(t, err)

	mg := NewManager()
	require.NoError(t, mg.Add(e))
	assert.Error(t, mg.Add(e))
	ae, ok := mg.Get("no_error")
	assert.True(t, ok)
	assert.Equal(t, "no_error", ae.Label())
}

func TestNormalErrors(t *testing.T) {
	_, err := NewNormal("n", 0., 0, 3, 8, true)
	assert.Error(t, err)
	_, err = NewNormal("n", .1, 9, 3, 8, true)
	assert.Error(t, err)
}
