package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// SIGNAL FACTS
// ============================================================================

type TrendFact struct {
	Direction            models.Trend
	Confidence           float64
	CurrentPrice         float64
	PredictedLowestPrice float64
	LowestPriceDate      time.Time
	DeclinePercentage    float64
	PredictedPeakPrice   float64
	PeakPriceDate        time.Time
}

type RiskFact struct {
	Score      float64
	Level      models.RiskLevel
	Confidence float64
}

type SeasonalFact struct {
	BestMonth      time.Month
	SavingsPercent float64
	Confidence     float64
}

type AnomalyFact struct {
	Description string
	Confidence  float64
}

// SupplierFact describes the cheapest supplier of a product. Price, MOQ
// and PriceBreaks are expressed in the product unit.
type SupplierFact struct {
	Name        string
	Price       float64
	MOQ         *float64
	PriceBreaks []models.PriceBreak
}

// SignalFacts is everything the recommendation rules may look at. Nil
// pointers mean the fact is unavailable; rules depending on them must not
// fire.
type SignalFacts struct {
	ProductName       string
	Category          ProductCategory
	Quantity          float64
	Unit              string
	TargetPrice       float64
	Band              *models.PriceBand
	Cheapest          *SupplierFact
	QuoteCount        int
	DistinctSuppliers int

	Trend    *TrendFact
	Risk     *RiskFact
	Seasonal *SeasonalFact
	Anomaly  *AnomalyFact

	// BundlePartners lists other products of the same request whose
	// cheapest supplier is shared with this one.
	BundlePartners []string
}

const (
	limitationForecast  = "forecast signal unavailable"
	limitationSentiment = "sentiment signal unavailable"
	limitationAnalytics = "analytics insights unavailable"
)

// SignalBundle is the raw outcome of the signal fetches for one product.
type SignalBundle struct {
	Forecast     *models.ForecastSignal
	Sentiment    *models.SentimentSignal
	Analytics    *models.AnalyticsSignal
	ForecastErr  error
	SentimentErr error
	AnalyticsErr error
}

// SignalInput is what IntegrateSignals needs from earlier pipeline stages.
type SignalInput struct {
	Product    models.ProductRequest
	Band       *models.PriceBand
	Cheapest   *NormalizedQuote
	QuoteCount int
	Suppliers  int
	Signals    SignalBundle
}

// IntegrateSignals turns optional signals into presence-checked facts. Every
// absent or malformed signal is reported as a data limitation.
func IntegrateSignals(in SignalInput) (SignalFacts, []string) {
	facts := SignalFacts{
		ProductName:       in.Product.Name,
		Category:          CategorizeProduct(in.Product.Name),
		Quantity:          in.Product.Quantity,
		Unit:              in.Product.Unit,
		Band:              in.Band,
		QuoteCount:        in.QuoteCount,
		DistinctSuppliers: in.Suppliers,
	}
	if in.Band != nil {
		facts.TargetPrice = in.Band.Target()
	}
	if in.Cheapest != nil {
		facts.Cheapest = &SupplierFact{
			Name:        in.Cheapest.Quote.SupplierName,
			Price:       in.Cheapest.UnitPrice,
			MOQ:         in.Cheapest.MOQ,
			PriceBreaks: in.Cheapest.PriceBreaks,
		}
	}

	var limitations []string

	if trend, err := trendFact(in.Signals.Forecast, facts.TargetPrice); err == nil && in.Signals.ForecastErr == nil {
		facts.Trend = trend
	} else {
		limitations = append(limitations, unavailable(limitationForecast, firstErr(in.Signals.ForecastErr, err)))
	}

	if risk, err := riskFact(in.Signals.Sentiment); err == nil && in.Signals.SentimentErr == nil {
		facts.Risk = risk
	} else {
		limitations = append(limitations, unavailable(limitationSentiment, firstErr(in.Signals.SentimentErr, err)))
	}

	if in.Signals.AnalyticsErr != nil || in.Signals.Analytics == nil {
		limitations = append(limitations, unavailable(limitationAnalytics, in.Signals.AnalyticsErr))
	} else {
		facts.Seasonal = seasonalFact(in.Signals.Analytics.Seasonal)
		facts.Anomaly = anomalyFact(in.Signals.Analytics.Anomaly)
	}

	return facts, limitations
}

var errSignalMissing = errors.New("no signal")

func trendFact(f *models.ForecastSignal, target float64) (*TrendFact, error) {
	if f == nil {
		return nil, errSignalMissing
	}
	switch f.Trend {
	case models.TrendDeclining, models.TrendRising, models.TrendStable:
	default:
		return nil, fmt.Errorf("malformed trend %q", f.Trend)
	}
	if !validUnit(f.Confidence) {
		return nil, fmt.Errorf("malformed confidence %v", f.Confidence)
	}
	current := f.CurrentPrice
	if current <= 0 {
		current = target
	}
	return &TrendFact{
		Direction:            f.Trend,
		Confidence:           f.Confidence,
		CurrentPrice:         current,
		PredictedLowestPrice: f.PredictedLowestPrice,
		LowestPriceDate:      f.LowestPriceDate,
		DeclinePercentage:    f.DeclinePercentage,
		PredictedPeakPrice:   f.PredictedPeakPrice,
		PeakPriceDate:        f.PeakPriceDate,
	}, nil
}

func riskFact(s *models.SentimentSignal) (*RiskFact, error) {
	if s == nil {
		return nil, errSignalMissing
	}
	if !validUnit(s.SupplyRiskScore) || !validUnit(s.Confidence) {
		return nil, fmt.Errorf("malformed sentiment score")
	}
	switch s.RiskLevel {
	case models.RiskLow, models.RiskMedium, models.RiskHigh, "":
	default:
		return nil, fmt.Errorf("malformed risk level %q", s.RiskLevel)
	}
	return &RiskFact{Score: s.SupplyRiskScore, Level: s.RiskLevel, Confidence: s.Confidence}, nil
}

func seasonalFact(p *models.SeasonalPattern) *SeasonalFact {
	if p == nil || !validUnit(p.Confidence) || p.BestMonth < time.January || p.BestMonth > time.December {
		return nil
	}
	return &SeasonalFact{BestMonth: p.BestMonth, SavingsPercent: p.SavingsPercent, Confidence: p.Confidence}
}

func anomalyFact(a *models.Anomaly) *AnomalyFact {
	if a == nil || !validUnit(a.Confidence) {
		return nil
	}
	return &AnomalyFact{Description: a.Description, Confidence: a.Confidence}
}

func validUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func unavailable(label string, err error) string {
	if err == nil || errors.Is(err, errSignalMissing) {
		return label
	}
	var du *DataUnavailableError
	if errors.As(err, &du) {
		return fmt.Sprintf("%s: %s", label, du.Reason)
	}
	return fmt.Sprintf("%s: %v", label, err)
}

// ============================================================================
// SIGNAL FETCHING
// ============================================================================

// SignalTimeouts bounds each signal call.
type SignalTimeouts struct {
	Forecast  time.Duration
	Sentiment time.Duration
	Analytics time.Duration
}

// SignalFetcher queries the optional signal providers in parallel. A nil
// provider is treated as permanently unavailable.
type SignalFetcher struct {
	Forecast  ForecastProvider
	Sentiment SentimentProvider
	Analytics AnalyticsProvider
	Timeouts  SignalTimeouts
	Retry     RetryPolicy
}

// Fetch never returns an error: failures land in the bundle's error fields.
func (f *SignalFetcher) Fetch(ctx context.Context, product models.ProductRequest, history []models.PriceQuote) SignalBundle {
	var bundle SignalBundle
	var g errgroup.Group

	g.Go(func() error {
		if f.Forecast == nil {
			bundle.ForecastErr = &DataUnavailableError{Source: "forecast", Reason: "no provider configured"}
			return nil
		}
		bundle.Forecast, bundle.ForecastErr = fetchSignal(ctx, f.Timeouts.Forecast, f.Retry, "forecast",
			func(ctx context.Context) (*models.ForecastSignal, error) {
				return f.Forecast.Predict(ctx, product.Name, history)
			})
		return nil
	})
	g.Go(func() error {
		if f.Sentiment == nil {
			bundle.SentimentErr = &DataUnavailableError{Source: "sentiment", Reason: "no provider configured"}
			return nil
		}
		bundle.Sentiment, bundle.SentimentErr = fetchSignal(ctx, f.Timeouts.Sentiment, f.Retry, "sentiment",
			func(ctx context.Context) (*models.SentimentSignal, error) {
				return f.Sentiment.Analyze(ctx, product.Name)
			})
		return nil
	})
	g.Go(func() error {
		if f.Analytics == nil {
			bundle.AnalyticsErr = &DataUnavailableError{Source: "analytics", Reason: "no provider configured"}
			return nil
		}
		bundle.Analytics, bundle.AnalyticsErr = fetchSignal(ctx, f.Timeouts.Analytics, f.Retry, "analytics",
			func(ctx context.Context) (*models.AnalyticsSignal, error) {
				return f.Analytics.Insights(ctx, product, history)
			})
		return nil
	})
	_ = g.Wait()

	return bundle
}

func fetchSignal[T any](ctx context.Context, timeout time.Duration, policy RetryPolicy, source string, call func(ctx context.Context) (*T, error)) (*T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := Retry(ctx, policy, source, call)
	if err != nil {
		var du *DataUnavailableError
		if errors.As(err, &du) && du.Reason == "deadline exceeded" && timeout > 0 {
			du.Reason = fmt.Sprintf("timed out after %s", timeout)
		}
		utils.Log.WithField("source", source).Warnf("[Signals] ⚠️  %v", err)
		return nil, err
	}
	return v, nil
}
