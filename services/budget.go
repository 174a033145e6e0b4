package services

import (
	"math"

	"github.com/Valeamar/tidal2025/models"
)

// ============================================================================
// BUDGET AGGREGATION
// ============================================================================

const (
	ReliableConfidence = 0.8
	LimitedConfidence  = 0.4
)

type ReliabilityBucket string

const (
	BucketReliable ReliabilityBucket = "reliable"
	BucketLimited  ReliabilityBucket = "limited"
	BucketNoData   ReliabilityBucket = "no_data"
)

// IndividualBudgetFor prices a quantity at the P10/P35/P90 tiers. Band
// values are delivered prices, so the committed total is quantity × P35.
func IndividualBudgetFor(band *models.PriceBand, quantity float64) models.IndividualBudget {
	if band == nil {
		return models.IndividualBudget{}
	}
	target := band.Target() * quantity
	return models.IndividualBudget{
		Low:       band.P10 * quantity,
		Target:    target,
		High:      band.P90 * quantity,
		TotalCost: target,
	}
}

// BuildPortfolio sums each tier across products independently.
func BuildPortfolio(products []models.ProductBudget) models.PortfolioBudget {
	var total models.PortfolioBudget
	for _, p := range products {
		total.Low += p.IndividualBudget.Low
		total.Target += p.IndividualBudget.Target
		total.High += p.IndividualBudget.High
		total.TotalCost += p.IndividualBudget.TotalCost
	}
	return total
}

// Classify places a product into a reliability bucket.
func Classify(p models.ProductBudget) ReliabilityBucket {
	switch {
	case p.QuoteCount == 0 || p.ConfidenceScore < LimitedConfidence:
		return BucketNoData
	case p.ConfidenceScore >= ReliableConfidence:
		return BucketReliable
	default:
		return BucketLimited
	}
}

// BuildDataQuality reports mean confidence and per-bucket product names.
func BuildDataQuality(products []models.ProductBudget) models.DataQualityReport {
	report := models.DataQualityReport{
		ReliableProducts:    []string{},
		LimitedDataProducts: []string{},
		NoDataProducts:      []string{},
	}
	if len(products) == 0 {
		return report
	}

	var sum float64
	for _, p := range products {
		sum += p.ConfidenceScore
		switch Classify(p) {
		case BucketReliable:
			report.ReliableProducts = append(report.ReliableProducts, p.ProductName)
		case BucketLimited:
			report.LimitedDataProducts = append(report.LimitedDataProducts, p.ProductName)
		default:
			report.NoDataProducts = append(report.NoDataProducts, p.ProductName)
		}
	}
	report.OverallDataCoverage = math.Round(sum/float64(len(products))*1000) / 1000
	return report
}
