package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Valeamar/tidal2025/models"
)

const (
	// OutlierMADMultiplier is how many MADs from the median a value may sit
	// before it is excluded.
	OutlierMADMultiplier = 3.0
	// MinValuesAfterFiltering is the smallest set outlier removal may leave.
	MinValuesAfterFiltering = 4
)

// Aggregate computes the price band over effective cost totals. It returns
// a nil band when totals is empty, and the retained (outlier-free) values
// in ascending order.
func Aggregate(totals []float64) (*models.PriceBand, []float64, error) {
	if len(totals) == 0 {
		return nil, nil, nil
	}
	for i, v := range totals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, &ComputationError{Stage: "aggregation", Err: fmt.Errorf("value %d is not finite", i)}
		}
		if v < 0 {
			return nil, nil, &ComputationError{Stage: "aggregation", Err: fmt.Errorf("value %d is negative: %.4f", i, v)}
		}
	}

	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)
	retained := RemoveOutliers(sorted)

	band := &models.PriceBand{
		P10: Percentile(retained, 10),
		P25: Percentile(retained, 25),
		P35: Percentile(retained, 35),
		P50: Percentile(retained, 50),
		P90: Percentile(retained, 90),
	}
	if !band.Monotone() {
		return nil, nil, &ComputationError{Stage: "aggregation", Err: errors.New("percentile band is not monotone")}
	}
	return band, retained, nil
}

// RemoveOutliers drops values further than OutlierMADMultiplier MADs from
// the median, repeating until nothing changes. A pass that would leave
// fewer than MinValuesAfterFiltering values is not applied. Input must be
// sorted; the result is sorted.
func RemoveOutliers(sorted []float64) []float64 {
	current := sorted
	for {
		next := madFilter(current)
		if len(next) == len(current) || len(next) < MinValuesAfterFiltering {
			return current
		}
		current = next
	}
}

func madFilter(sorted []float64) []float64 {
	if len(sorted) < MinValuesAfterFiltering {
		return sorted
	}
	med := median(sorted)
	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - med)
	}
	sort.Float64s(deviations)
	mad := median(deviations)
	if mad == 0 {
		return sorted
	}

	limit := OutlierMADMultiplier * mad
	kept := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if math.Abs(v-med) <= limit {
			kept = append(kept, v)
		}
	}
	return kept
}

func median(sorted []float64) float64 {
	return Percentile(sorted, 50)
}

// Percentile interpolates linearly between order statistics at rank
// (n-1)*p/100. Input must be sorted and non-empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	k := float64(n-1) * p / 100
	lo := int(math.Floor(k))
	hi := int(math.Ceil(k))
	if lo == hi {
		return sorted[lo]
	}
	v := sorted[lo] + (sorted[hi]-sorted[lo])*(k-float64(lo))
	// clamp to the segment so float rounding cannot break monotonicity
	return math.Min(math.Max(v, sorted[lo]), sorted[hi])
}
