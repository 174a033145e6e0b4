package models

import "time"

type Trend string

const (
	TrendDeclining Trend = "declining"
	TrendRising    Trend = "rising"
	TrendStable    Trend = "stable"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ForecastSignal is the price outlook returned by a forecast provider.
// CurrentPrice is optional; zero means the caller's target price applies.
type ForecastSignal struct {
	Trend                Trend
	Confidence           float64
	CurrentPrice         float64
	LowestPriceDate      time.Time
	PredictedLowestPrice float64
	DeclinePercentage    float64
	PredictedPeakPrice   float64
	PeakPriceDate        time.Time
}

// SentimentSignal is the supply-risk reading returned by a sentiment provider.
type SentimentSignal struct {
	SupplyRiskScore float64
	RiskLevel       RiskLevel
	Confidence      float64
}

// AnalyticsSignal groups the insights of the analytics provider. Either
// field may be nil when the provider has nothing to report.
type AnalyticsSignal struct {
	Seasonal *SeasonalPattern
	Anomaly  *Anomaly
}

type SeasonalPattern struct {
	BestMonth      time.Month
	SavingsPercent float64
	Confidence     float64
}

type Anomaly struct {
	Description string
	Confidence  float64
}
