package models

type RecommendationType string

const (
	RecommendationBulkDiscount         RecommendationType = "BULK_DISCOUNT"
	RecommendationTiming               RecommendationType = "TIMING"
	RecommendationSubstitute           RecommendationType = "SUBSTITUTE"
	RecommendationGroupPurchase        RecommendationType = "GROUP_PURCHASE"
	RecommendationSeasonalOptimization RecommendationType = "SEASONAL_OPTIMIZATION"
	RecommendationSupplyRisk           RecommendationType = "SUPPLY_RISK"
	RecommendationAnomalyAlert         RecommendationType = "ANOMALY_ALERT"
)

// Recommendation is one optimization hint for a product. PotentialSavings
// is per unit for TIMING and for the whole order otherwise.
type Recommendation struct {
	Type             RecommendationType
	Description      string
	PotentialSavings float64
	ActionRequired   string
	Confidence       float64
}

// Advisory reports whether the recommendation is a warning rather than a saving.
func (r Recommendation) Advisory() bool {
	return r.Type == RecommendationSupplyRisk || r.Type == RecommendationAnomalyAlert
}

// OrderSavings returns the savings of the recommendation for an order of
// quantity units.
func (r Recommendation) OrderSavings(quantity float64) float64 {
	if r.Type == RecommendationTiming {
		return r.PotentialSavings * quantity
	}
	return r.PotentialSavings
}
