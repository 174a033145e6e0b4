package services

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_ExcludesOutlier(t *testing.T) {
	band, retained, err := Aggregate([]float64{140, 145, 150, 155, 400})
	require.NoError(t, err)
	require.NotNil(t, band)

	assert.Equal(t, []float64{140, 145, 150, 155}, retained)
	assert.InDelta(t, 145.25, band.P35, 1e-9)
	assert.InDelta(t, 145.25, band.Target(), 1e-9)
	assert.InDelta(t, 147.5, band.P50, 1e-9)
	assert.True(t, band.Monotone())
}

func TestAggregate_Empty(t *testing.T) {
	band, retained, err := Aggregate(nil)
	assert.NoError(t, err)
	assert.Nil(t, band)
	assert.Nil(t, retained)
}

func TestAggregate_SingleValue(t *testing.T) {
	band, _, err := Aggregate([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, 42.0, band.P10)
	assert.Equal(t, 42.0, band.P90)
}

func TestAggregate_RejectsMalformedInput(t *testing.T) {
	for name, totals := range map[string][]float64{
		"nan":      {1, math.NaN()},
		"inf":      {1, math.Inf(1)},
		"negative": {1, -2},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Aggregate(totals)
			var cerr *ComputationError
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	inputs := [][]float64{
		{140, 145, 150, 155, 400},
		{10, 11, 12, 13, 14, 15, 90, 300},
		{5, 5, 5, 5, 50},
		{1, 2, 3},
	}
	for _, in := range inputs {
		first, retained, err := Aggregate(in)
		require.NoError(t, err)

		second, again, err := Aggregate(retained)
		require.NoError(t, err)
		assert.Equal(t, *first, *second)
		assert.Equal(t, retained, again)
	}
}

func TestRemoveOutliers_KeepsMinimumSet(t *testing.T) {
	// Filtering {1,2,3,100} would leave three values, so nothing is dropped.
	assert.Equal(t, []float64{1, 2, 3, 100}, RemoveOutliers([]float64{1, 2, 3, 100}))
}

func TestRemoveOutliers_ZeroMAD(t *testing.T) {
	in := []float64{5, 5, 5, 5, 50}
	assert.Equal(t, in, RemoveOutliers(in))
}

func TestAggregate_BandMonotoneForSyntheticSets(t *testing.T) {
	for seed := 1; seed <= 50; seed++ {
		totals := make([]float64, seed%9+1)
		for i := range totals {
			totals[i] = float64((seed*31+i*17)%97) + 0.37*float64(i)
		}
		band, _, err := Aggregate(totals)
		require.NoError(t, err)
		assert.True(t, band.Monotone(), "band %+v for %v", band, totals)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 40.0, Percentile(sorted, 100))
	assert.InDelta(t, 25.0, Percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 13.0, Percentile(sorted, 10), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 50))
}
