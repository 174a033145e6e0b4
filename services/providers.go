package services

import (
	"context"

	"github.com/Valeamar/tidal2025/models"
)

// MarketDataProvider returns supplier quotes for a product near a location.
// An empty slice is a valid answer. Currency is returned as quoted.
type MarketDataProvider interface {
	GetQuotes(ctx context.Context, productName string, location models.FarmLocation) ([]models.PriceQuote, error)
}

// ForecastProvider predicts the price trend from historical quotes.
// A nil signal with a nil error means no forecast is available.
type ForecastProvider interface {
	Predict(ctx context.Context, productName string, history []models.PriceQuote) (*models.ForecastSignal, error)
}

// SentimentProvider reads supply-risk sentiment for a product.
// A nil signal with a nil error means no sentiment is available.
type SentimentProvider interface {
	Analyze(ctx context.Context, productName string) (*models.SentimentSignal, error)
}

// AnalyticsProvider reports seasonal patterns and price anomalies.
// A nil signal with a nil error means nothing is known.
type AnalyticsProvider interface {
	Insights(ctx context.Context, product models.ProductRequest, quotes []models.PriceQuote) (*models.AnalyticsSignal, error)
}

// QuoteCache memoizes quote lookups. Concurrent callers of the same key
// share one compute call.
type QuoteCache interface {
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]models.PriceQuote, error)) ([]models.PriceQuote, error)
}
