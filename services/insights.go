package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Valeamar/tidal2025/models"
)

// seasonalMultipliers are relative price levels by month (January first).
var seasonalMultipliers = map[ProductCategory][12]float64{
	CategorySeeds:      {0.95, 0.90, 1.10, 1.20, 1.15, 1.05, 0.95, 0.90, 0.95, 1.00, 0.95, 0.90},
	CategoryFertilizer: {1.05, 1.10, 1.20, 1.25, 1.15, 1.00, 0.95, 0.90, 0.95, 1.00, 1.05, 1.00},
	CategoryPesticides: {1.00, 1.05, 1.15, 1.20, 1.25, 1.10, 1.00, 0.95, 0.95, 1.00, 1.00, 1.00},
}

// SeasonalInsights reports the cheapest month of a product's category from
// a fixed seasonal calendar, and flags the latest quote when it strays far
// from the median of the earlier ones.
type SeasonalInsights struct {
	Now                func() time.Time
	SeasonalConfidence float64
	AnomalyThreshold   float64
	MinAnomalyHistory  int
}

func NewSeasonalInsights() *SeasonalInsights {
	return &SeasonalInsights{
		Now:                time.Now,
		SeasonalConfidence: 0.7,
		AnomalyThreshold:   0.25,
		MinAnomalyHistory:  3,
	}
}

func (s *SeasonalInsights) Insights(ctx context.Context, product models.ProductRequest, quotes []models.PriceQuote) (*models.AnalyticsSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &models.AnalyticsSignal{
		Seasonal: s.seasonal(CategorizeProduct(product.Name), s.Now().Month()),
		Anomaly:  s.anomaly(quotes),
	}, nil
}

func (s *SeasonalInsights) seasonal(category ProductCategory, month time.Month) *models.SeasonalPattern {
	levels, ok := seasonalMultipliers[category]
	if !ok {
		return nil
	}
	best := 0
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[best] {
			best = i
		}
	}
	current := levels[month-1]
	savings := (current - levels[best]) / current * 100
	if savings <= 0 {
		return nil
	}
	return &models.SeasonalPattern{
		BestMonth:      time.Month(best + 1),
		SavingsPercent: math.Round(savings*10) / 10,
		Confidence:     s.SeasonalConfidence,
	}
}

func (s *SeasonalInsights) anomaly(quotes []models.PriceQuote) *models.Anomaly {
	dated := make([]models.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		if !q.ObservedAt.IsZero() && q.Price > 0 {
			dated = append(dated, q)
		}
	}
	if len(dated) < s.MinAnomalyHistory {
		return nil
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].ObservedAt.Before(dated[j].ObservedAt) })

	latest := dated[len(dated)-1]
	earlier := make([]float64, 0, len(dated)-1)
	for _, q := range dated[:len(dated)-1] {
		earlier = append(earlier, q.Price)
	}
	sort.Float64s(earlier)
	med := median(earlier)
	if med <= 0 {
		return nil
	}

	deviation := (latest.Price - med) / med
	if math.Abs(deviation) <= s.AnomalyThreshold {
		return nil
	}
	direction := "above"
	if deviation < 0 {
		direction = "below"
	}
	return &models.Anomaly{
		Description: fmt.Sprintf("Latest quote from %s (%.2f) is %.0f%% %s the recent median of %.2f.",
			latest.SupplierName, latest.Price, math.Abs(deviation)*100, direction, med),
		Confidence: math.Min(0.9, 0.5+0.1*float64(len(earlier)-1)),
	}
}
