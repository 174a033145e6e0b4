package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forecastFunc func(ctx context.Context, name string, history []models.PriceQuote) (*models.ForecastSignal, error)

func (f forecastFunc) Predict(ctx context.Context, name string, history []models.PriceQuote) (*models.ForecastSignal, error) {
	return f(ctx, name, history)
}

type sentimentFunc func(ctx context.Context, name string) (*models.SentimentSignal, error)

func (f sentimentFunc) Analyze(ctx context.Context, name string) (*models.SentimentSignal, error) {
	return f(ctx, name)
}

type analyticsFunc func(ctx context.Context, p models.ProductRequest, quotes []models.PriceQuote) (*models.AnalyticsSignal, error)

func (f analyticsFunc) Insights(ctx context.Context, p models.ProductRequest, quotes []models.PriceQuote) (*models.AnalyticsSignal, error) {
	return f(ctx, p, quotes)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func cornInput(b SignalBundle) SignalInput {
	band := &models.PriceBand{P10: 140, P25: 142, P35: 145, P50: 147.5, P90: 154}
	return SignalInput{
		Product:    models.ProductRequest{Name: "Corn Seeds", Quantity: 100, Unit: "unit"},
		Band:       band,
		QuoteCount: 4,
		Suppliers:  4,
		Signals:    b,
	}
}

func TestIntegrateSignals_AllAbsent(t *testing.T) {
	facts, limitations := IntegrateSignals(cornInput(SignalBundle{}))

	assert.Nil(t, facts.Trend)
	assert.Nil(t, facts.Risk)
	assert.Nil(t, facts.Seasonal)
	assert.Nil(t, facts.Anomaly)
	assert.Equal(t, 145.0, facts.TargetPrice)
	assert.Equal(t, CategorySeeds, facts.Category)
	assert.Equal(t, []string{
		"forecast signal unavailable",
		"sentiment signal unavailable",
		"analytics insights unavailable",
	}, limitations)
}

func TestIntegrateSignals_Present(t *testing.T) {
	facts, limitations := IntegrateSignals(cornInput(SignalBundle{
		Forecast:  &models.ForecastSignal{Trend: models.TrendDeclining, Confidence: 0.85, PredictedLowestPrice: 120},
		Sentiment: &models.SentimentSignal{SupplyRiskScore: 0.9, RiskLevel: models.RiskHigh, Confidence: 0.7},
		Analytics: &models.AnalyticsSignal{
			Seasonal: &models.SeasonalPattern{BestMonth: time.August, SavingsPercent: 8, Confidence: 0.7},
		},
	}))

	assert.Empty(t, limitations)
	require.NotNil(t, facts.Trend)
	assert.Equal(t, 145.0, facts.Trend.CurrentPrice, "missing current price falls back to target")
	require.NotNil(t, facts.Risk)
	assert.Equal(t, models.RiskHigh, facts.Risk.Level)
	require.NotNil(t, facts.Seasonal)
	assert.Nil(t, facts.Anomaly)
}

func TestIntegrateSignals_MalformedIsUnavailable(t *testing.T) {
	facts, limitations := IntegrateSignals(cornInput(SignalBundle{
		Forecast:  &models.ForecastSignal{Trend: "sideways", Confidence: 0.9},
		Sentiment: &models.SentimentSignal{SupplyRiskScore: 1.5, Confidence: 0.5},
		Analytics: &models.AnalyticsSignal{},
	}))

	assert.Nil(t, facts.Trend)
	assert.Nil(t, facts.Risk)
	assert.Equal(t, []string{
		`forecast signal unavailable: malformed trend "sideways"`,
		"sentiment signal unavailable: malformed sentiment score",
	}, limitations)
}

func TestIntegrateSignals_ErrorReason(t *testing.T) {
	_, limitations := IntegrateSignals(cornInput(SignalBundle{
		SentimentErr: &DataUnavailableError{Source: "sentiment", Reason: "timed out after 3s"},
		Forecast:     &models.ForecastSignal{Trend: models.TrendStable, Confidence: 0.5},
		Analytics:    &models.AnalyticsSignal{},
	}))
	assert.Equal(t, []string{"sentiment signal unavailable: timed out after 3s"}, limitations)
}

func TestSignalFetcher_TimeoutIsAbsent(t *testing.T) {
	f := &SignalFetcher{
		Forecast: forecastFunc(func(ctx context.Context, _ string, _ []models.PriceQuote) (*models.ForecastSignal, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Sentiment: sentimentFunc(func(context.Context, string) (*models.SentimentSignal, error) {
			return &models.SentimentSignal{SupplyRiskScore: 0.2, RiskLevel: models.RiskLow, Confidence: 0.9}, nil
		}),
		Timeouts: SignalTimeouts{Forecast: 20 * time.Millisecond, Sentiment: time.Second},
		Retry:    fastRetry(),
	}

	start := time.Now()
	bundle := f.Fetch(context.Background(), models.ProductRequest{Name: "Corn Seeds"}, nil)
	assert.Less(t, time.Since(start), time.Second)

	assert.Nil(t, bundle.Forecast)
	var du *DataUnavailableError
	require.True(t, errors.As(bundle.ForecastErr, &du))
	assert.Equal(t, "timed out after 20ms", du.Reason)

	assert.NotNil(t, bundle.Sentiment)
	assert.NoError(t, bundle.SentimentErr)

	var missing *DataUnavailableError
	require.True(t, errors.As(bundle.AnalyticsErr, &missing))
	assert.Equal(t, "no provider configured", missing.Reason)
}

func TestSignalFetcher_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	f := &SignalFetcher{
		Sentiment: sentimentFunc(func(context.Context, string) (*models.SentimentSignal, error) {
			if calls.Add(1) < 3 {
				return nil, &ExternalServiceError{Service: "sentiment", StatusCode: 503, Retryable: true, Err: errors.New("busy")}
			}
			return &models.SentimentSignal{SupplyRiskScore: 0.5, RiskLevel: models.RiskMedium, Confidence: 0.6}, nil
		}),
		Timeouts: SignalTimeouts{Sentiment: time.Second},
		Retry:    fastRetry(),
	}

	bundle := f.Fetch(context.Background(), models.ProductRequest{Name: "Urea"}, nil)
	assert.NoError(t, bundle.SentimentErr)
	require.NotNil(t, bundle.Sentiment)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSignalFetcher_PassesHistory(t *testing.T) {
	history := []models.PriceQuote{{SupplierName: "A", Price: 10}}
	var seen int
	f := &SignalFetcher{
		Analytics: analyticsFunc(func(_ context.Context, _ models.ProductRequest, quotes []models.PriceQuote) (*models.AnalyticsSignal, error) {
			seen = len(quotes)
			return &models.AnalyticsSignal{}, nil
		}),
		Retry: fastRetry(),
	}

	bundle := f.Fetch(context.Background(), models.ProductRequest{Name: "Urea"}, history)
	assert.NoError(t, bundle.AnalyticsErr)
	assert.Equal(t, 1, seen)
}
