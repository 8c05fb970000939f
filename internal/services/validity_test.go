package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// r(q1, q2) = 0.8
func correlatedPair() *ScoreMatrix {
	return matrixFromRows([][]float64{
		{1, 2},
		{2, 1},
		{3, 4},
		{4, 3},
		{5, 5},
	})
}

func TestKMO_TwoVariables(t *testing.T) {
	res, err := KMO(correlatedPair())
	require.NoError(t, err)
	// With two variables the partial correlation equals r, so KMO is 0.5.
	assert.InDelta(t, 0.5, res.Overall, 1e-12)
	require.Len(t, res.PerItem, 2)
	assert.InDelta(t, 0.5, res.PerItem[0], 1e-12)
	assert.InDelta(t, 0.5, res.PerItem[1], 1e-12)
}

func TestBartlett_TwoVariables(t *testing.T) {
	res, err := Bartlett(correlatedPair())
	require.NoError(t, err)
	// chi2 = -(n - 1 - (2p+5)/6) * ln(1 - r^2) = -2.5 * ln(0.36)
	assert.InDelta(t, 2.5541281188, res.ChiSquare, 1e-9)
	assert.Equal(t, 1, res.DF)
	assert.InDelta(t, 0.1100064869, res.PValue, 1e-8)
}

func TestBartlett_DegreesOfFreedom(t *testing.T) {
	m := matrixFromRows([][]float64{
		{1, 2, 4, 1},
		{2, 1, 3, 3},
		{3, 4, 1, 2},
		{4, 3, 5, 5},
		{5, 5, 2, 4},
		{2, 3, 3, 1},
	})
	res, err := Bartlett(m)
	require.NoError(t, err)
	assert.Equal(t, 6, res.DF)
	assert.GreaterOrEqual(t, res.ChiSquare, 0.0)
	assert.GreaterOrEqual(t, res.PValue, 0.0)
	assert.LessOrEqual(t, res.PValue, 1.0)

	kmo, err := KMO(m)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, kmo.Overall, 0.0)
	assert.LessOrEqual(t, kmo.Overall, 1.0)
}

func TestValidity_ConstantColumnUnavailable(t *testing.T) {
	m := matrixFromRows([][]float64{
		{1, 3, 2},
		{2, 3, 1},
		{3, 3, 5},
		{4, 3, 4},
	})
	_, err := KMO(m)
	assert.ErrorIs(t, err, ErrMetricUnavailable)
	_, err = Bartlett(m)
	assert.ErrorIs(t, err, ErrMetricUnavailable)
}

func TestPrepareValidityInput(t *testing.T) {
	m := matrixFromRows([][]float64{
		{1, 3, 2},
		{2, 3, Missing},
		{3, 3, 5},
		{4, 3, 4},
	})
	input, dropped, err := PrepareValidityInput(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2"}, dropped)
	assert.Equal(t, []string{"q1", "q3"}, input.Columns)
	assert.Equal(t, 3, input.Samples())

	constant := matrixFromRows([][]float64{
		{1, 3},
		{1, 3},
		{1, 3},
	})
	_, dropped, err = PrepareValidityInput(constant)
	assert.ErrorIs(t, err, ErrMetricUnavailable)
	assert.Equal(t, []string{"q1", "q2"}, dropped)

	short := matrixFromRows([][]float64{
		{1, 3},
		{2, Missing},
		{3, 1},
	})
	_, _, err = PrepareValidityInput(short)
	assert.ErrorIs(t, err, ErrMetricUnavailable)
}
