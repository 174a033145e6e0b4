package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Valeamar/tidal2025/models"
)

// TrendForecaster fits a least-squares line through the price history and
// projects it Horizon ahead. It reports no forecast when the history is too
// short or too narrow in time.
type TrendForecaster struct {
	MinQuotes  int
	MinSpan    time.Duration
	Horizon    time.Duration
	StableBand float64
}

func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{
		MinQuotes:  6,
		MinSpan:    48 * time.Hour,
		Horizon:    30 * 24 * time.Hour,
		StableBand: 0.03,
	}
}

type pricePoint struct {
	at    time.Time
	price float64
}

func (f *TrendForecaster) Predict(ctx context.Context, productName string, history []models.PriceQuote) (*models.ForecastSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]pricePoint, 0, len(history))
	for _, q := range history {
		if q.ObservedAt.IsZero() || q.Price <= 0 || math.IsInf(q.Price, 0) {
			continue
		}
		points = append(points, pricePoint{at: q.ObservedAt, price: q.Price})
	}
	if len(points) < f.MinQuotes {
		return nil, nil
	}
	sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	first, latest := points[0].at, points[len(points)-1].at
	if latest.Sub(first) < f.MinSpan {
		return nil, nil
	}

	slope, intercept, r2 := fitLine(points, first)
	xLatest := latest.Sub(first).Hours() / 24
	current := intercept + slope*xLatest
	if current <= 0 {
		return nil, nil
	}
	horizonDays := f.Horizon.Hours() / 24
	projected := math.Max(0, intercept+slope*(xLatest+horizonDays))
	change := (projected - current) / current

	signal := &models.ForecastSignal{
		Trend:        models.TrendStable,
		Confidence:   math.Round(r2*1000) / 1000,
		CurrentPrice: roundCents(current),
	}
	target := latest.Add(f.Horizon)
	switch {
	case change < -f.StableBand:
		signal.Trend = models.TrendDeclining
		signal.PredictedLowestPrice = roundCents(projected)
		signal.LowestPriceDate = target
		signal.DeclinePercentage = math.Round(-change*1000) / 10
	case change > f.StableBand:
		signal.Trend = models.TrendRising
		signal.PredictedPeakPrice = roundCents(projected)
		signal.PeakPriceDate = target
	}
	return signal, nil
}

// fitLine regresses price on days since origin and returns slope,
// intercept and the coefficient of determination.
func fitLine(points []pricePoint, origin time.Time) (float64, float64, float64) {
	n := float64(len(points))
	var sx, sy, sxx, sxy float64
	for _, p := range points {
		x := p.at.Sub(origin).Hours() / 24
		sx += x
		sy += p.price
		sxx += x * x
		sxy += x * p.price
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n, 0
	}
	slope := (n*sxy - sx*sy) / den
	intercept := (sy - slope*sx) / n

	mean := sy / n
	var ssTot, ssRes float64
	for _, p := range points {
		x := p.at.Sub(origin).Hours() / 24
		fit := intercept + slope*x
		ssTot += (p.price - mean) * (p.price - mean)
		ssRes += (p.price - fit) * (p.price - fit)
	}
	if ssTot == 0 {
		return slope, intercept, 1
	}
	return slope, intercept, math.Max(0, 1-ssRes/ssTot)
}
