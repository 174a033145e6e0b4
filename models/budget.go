package models

import "time"

// Stage is the last pipeline state a product analysis reached.
type Stage string

const (
	StageCreated     Stage = "created"
	StageNormalized  Stage = "normalized"
	StageAggregated  Stage = "aggregated"
	StageScored      Stage = "scored"
	StageSignaled    Stage = "signaled"
	StageRecommended Stage = "recommended"
	StageFinalized   Stage = "finalized"
)

// Tier is a low/target/high cost triple plus the committed total.
type Tier struct {
	Low       float64
	Target    float64
	High      float64
	TotalCost float64
}

// IndividualBudget is the budget of one product line.
type IndividualBudget = Tier

// PortfolioBudget is the per-tier sum of all individual budgets.
type PortfolioBudget = Tier

// DataAvailability flags which inputs contributed to a product result.
type DataAvailability struct {
	PriceData    bool
	SupplierData bool
	Forecast     bool
	Sentiment    bool
	Analytics    bool
}

// ProductBudget is the full per-product analysis outcome.
type ProductBudget struct {
	ProductID        string
	ProductName      string
	Quantity         float64
	Unit             string
	Band             *PriceBand
	TargetPrice      float64
	ConfidenceScore  float64
	QuoteCount       int
	Suppliers        []Supplier
	Recommendations  []Recommendation
	DataLimitations  []string
	IndividualBudget IndividualBudget
	UnitCost         *EffectiveCost
	Availability     DataAvailability
	Stage            Stage
}

// TotalSavings sums the order-level savings of all recommendations.
func (p ProductBudget) TotalSavings() float64 {
	var total float64
	for _, r := range p.Recommendations {
		total += r.OrderSavings(p.Quantity)
	}
	return total
}

// DataQualityReport summarizes how trustworthy the analysis is.
type DataQualityReport struct {
	OverallDataCoverage float64
	ReliableProducts    []string
	LimitedDataProducts []string
	NoDataProducts      []string
}

// AnalysisResult is what the analyzer returns for one request.
type AnalysisResult struct {
	ID          string
	Location    FarmLocation
	Products    []ProductBudget
	Portfolio   PortfolioBudget
	DataQuality DataQualityReport
	GeneratedAt time.Time
}
