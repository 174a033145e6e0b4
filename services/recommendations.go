package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/Valeamar/tidal2025/models"
)

// ============================================================================
// RECOMMENDATION POLICY
// ============================================================================

// RecommendationPolicy holds every rule threshold. Values are fixed per
// engine instance and never derived at runtime.
type RecommendationPolicy struct {
	BulkConfidence              float64
	TimingMinConfidence         float64
	SeasonalMinConfidence       float64
	SeasonalMinSavingsPercent   float64
	SupplyRiskScoreThreshold    float64
	EnableSubstitute            bool
	SubstituteQuantityPerSource float64
	SubstituteMinSuppliers      int
	SubstituteConfidence        float64
	EnableGroupPurchase         bool
	GroupDiscountRate           float64
	GroupPurchaseConfidence     float64
}

func DefaultRecommendationPolicy() RecommendationPolicy {
	return RecommendationPolicy{
		BulkConfidence:              0.9,
		TimingMinConfidence:         0.8,
		SeasonalMinConfidence:       0.7,
		SeasonalMinSavingsPercent:   5,
		SupplyRiskScoreThreshold:    0.7,
		EnableSubstitute:            true,
		SubstituteQuantityPerSource: 500,
		SubstituteMinSuppliers:      2,
		SubstituteConfidence:        0.6,
		EnableGroupPurchase:         true,
		GroupDiscountRate:           0.05,
		GroupPurchaseConfidence:     0.7,
	}
}

// Rule is one predicate+effect pair. Evaluate must be pure.
type Rule struct {
	Name     string
	Type     models.RecommendationType
	Evaluate func(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool)
}

// Rules is the fixed, ordered rule set. Output order follows this list.
var Rules = []Rule{
	{Name: "bulk_discount", Type: models.RecommendationBulkDiscount, Evaluate: bulkDiscountRule},
	{Name: "timing_delay", Type: models.RecommendationTiming, Evaluate: timingDelayRule},
	{Name: "timing_accelerate", Type: models.RecommendationTiming, Evaluate: timingAccelerateRule},
	{Name: "substitute", Type: models.RecommendationSubstitute, Evaluate: substituteRule},
	{Name: "group_purchase", Type: models.RecommendationGroupPurchase, Evaluate: groupPurchaseRule},
	{Name: "seasonal_optimization", Type: models.RecommendationSeasonalOptimization, Evaluate: seasonalRule},
	{Name: "supply_risk", Type: models.RecommendationSupplyRisk, Evaluate: supplyRiskRule},
	{Name: "anomaly_alert", Type: models.RecommendationAnomalyAlert, Evaluate: anomalyRule},
}

// RecommendationEngine applies Rules to signal facts.
type RecommendationEngine struct {
	policy RecommendationPolicy
	rules  []Rule
}

func NewRecommendationEngine(policy RecommendationPolicy) *RecommendationEngine {
	return &RecommendationEngine{policy: policy, rules: Rules}
}

// Recommend evaluates each rule once, in definition order.
func (e *RecommendationEngine) Recommend(facts SignalFacts) []models.Recommendation {
	var out []models.Recommendation
	for _, rule := range e.rules {
		rec, ok := rule.Evaluate(e.policy, facts)
		if !ok {
			continue
		}
		rec.Type = rule.Type
		rec.PotentialSavings = roundCents(math.Max(0, rec.PotentialSavings))
		rec.Confidence = math.Max(0, math.Min(1, rec.Confidence))
		out = append(out, rec)
	}
	return out
}

// ============================================================================
// RULES
// ============================================================================

// bulkDiscountRule fires when the order is below the cheapest supplier's
// MOQ and a price break exists above the current quantity.
func bulkDiscountRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	c := f.Cheapest
	if c == nil || c.MOQ == nil || f.Quantity >= *c.MOQ {
		return models.Recommendation{}, false
	}
	brk, ok := nearestBreakAbove(c.PriceBreaks, f.Quantity)
	if !ok || brk.Price >= c.Price {
		return models.Recommendation{}, false
	}
	delta := c.Price - brk.Price
	return models.Recommendation{
		Description: fmt.Sprintf("%s offers %s at %.2f per %s from %s %s, %.2f below the current price.",
			c.Name, f.ProductName, brk.Price, f.Unit, formatQty(brk.MinQuantity), f.Unit, delta),
		PotentialSavings: delta * f.Quantity,
		ActionRequired: fmt.Sprintf("Increase the order to %s %s (MOQ %s) or pool the order with neighbouring farms.",
			formatQty(brk.MinQuantity), f.Unit, formatQty(*c.MOQ)),
		Confidence: p.BulkConfidence,
	}, true
}

func nearestBreakAbove(breaks []models.PriceBreak, qty float64) (models.PriceBreak, bool) {
	var best models.PriceBreak
	found := false
	for _, b := range breaks {
		if b.MinQuantity <= qty {
			continue
		}
		if !found || b.MinQuantity < best.MinQuantity {
			best, found = b, true
		}
	}
	return best, found
}

func timingDelayRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	t := f.Trend
	if t == nil || t.Direction != models.TrendDeclining || t.Confidence < p.TimingMinConfidence {
		return models.Recommendation{}, false
	}
	if t.PredictedLowestPrice <= 0 || t.PredictedLowestPrice >= t.CurrentPrice {
		return models.Recommendation{}, false
	}
	action := "Delay the purchase until prices bottom out."
	if !t.LowestPriceDate.IsZero() {
		action = fmt.Sprintf("Delay the purchase until around %s.", t.LowestPriceDate.Format("2006-01-02"))
	}
	return models.Recommendation{
		Description: fmt.Sprintf("Prices for %s are forecast to decline from %.2f to %.2f per unit.",
			f.ProductName, t.CurrentPrice, t.PredictedLowestPrice),
		PotentialSavings: t.CurrentPrice - t.PredictedLowestPrice,
		ActionRequired:   action,
		Confidence:       t.Confidence,
	}, true
}

func timingAccelerateRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	t := f.Trend
	if t == nil || t.Direction != models.TrendRising || t.Confidence < p.TimingMinConfidence {
		return models.Recommendation{}, false
	}
	avoided := 0.0
	if t.PredictedPeakPrice > t.CurrentPrice {
		avoided = t.PredictedPeakPrice - t.CurrentPrice
	}
	desc := fmt.Sprintf("Prices for %s are forecast to rise.", f.ProductName)
	if avoided > 0 {
		desc = fmt.Sprintf("Prices for %s are forecast to rise from %.2f to %.2f per unit.",
			f.ProductName, t.CurrentPrice, t.PredictedPeakPrice)
	}
	return models.Recommendation{
		Description:      desc,
		PotentialSavings: avoided,
		ActionRequired:   "Purchase soon to avoid the expected increase.",
		Confidence:       t.Confidence,
	}, true
}

// substituteRule fires when fewer distinct suppliers quoted than the
// quantity warrants: max(SubstituteMinSuppliers, ceil(qty/SubstituteQuantityPerSource)).
func substituteRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	if !p.EnableSubstitute || p.SubstituteQuantityPerSource <= 0 || f.Band == nil {
		return models.Recommendation{}, false
	}
	required := max(p.SubstituteMinSuppliers, int(math.Ceil(f.Quantity/p.SubstituteQuantityPerSource)))
	if f.DistinctSuppliers >= required {
		return models.Recommendation{}, false
	}
	savings := (f.Band.P50 - f.Band.P25) * f.Quantity
	alternatives := "equivalent products"
	if subs := SubstitutesFor(f.ProductName); len(subs) > 0 {
		alternatives = strings.Join(subs, ", ")
	}
	return models.Recommendation{
		Description: fmt.Sprintf("Only %d supplier(s) quoted %s for %s units; consider %s.",
			f.DistinctSuppliers, f.ProductName, formatQty(f.Quantity), alternatives),
		PotentialSavings: savings,
		ActionRequired:   "Request quotes for substitute products from additional suppliers.",
		Confidence:       p.SubstituteConfidence,
	}, true
}

// groupPurchaseRule fires when the cheapest supplier is also the cheapest
// for other products of the same request.
func groupPurchaseRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	if !p.EnableGroupPurchase || len(f.BundlePartners) == 0 || f.Cheapest == nil || f.Band == nil {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		Description: fmt.Sprintf("%s is also the cheapest supplier for %s.",
			f.Cheapest.Name, strings.Join(f.BundlePartners, ", ")),
		PotentialSavings: p.GroupDiscountRate * f.TargetPrice * f.Quantity,
		ActionRequired:   fmt.Sprintf("Bundle these products into a single order with %s and negotiate a volume discount.", f.Cheapest.Name),
		Confidence:       p.GroupPurchaseConfidence,
	}, true
}

func seasonalRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	s := f.Seasonal
	if s == nil || s.Confidence < p.SeasonalMinConfidence || s.SavingsPercent < p.SeasonalMinSavingsPercent {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		Description: fmt.Sprintf("%s is historically cheapest in %s, about %.1f%% below current prices.",
			f.ProductName, s.BestMonth, s.SavingsPercent),
		PotentialSavings: f.TargetPrice * s.SavingsPercent / 100 * f.Quantity,
		ActionRequired:   fmt.Sprintf("Plan the purchase for %s.", s.BestMonth),
		Confidence:       s.Confidence,
	}, true
}

func supplyRiskRule(p RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	r := f.Risk
	if r == nil {
		return models.Recommendation{}, false
	}
	if r.Level != models.RiskMedium && r.Level != models.RiskHigh && r.Score <= p.SupplyRiskScoreThreshold {
		return models.Recommendation{}, false
	}
	level := "elevated"
	if r.Level == models.RiskMedium || r.Level == models.RiskHigh {
		level = string(r.Level)
	}
	return models.Recommendation{
		Description:      fmt.Sprintf("Market sentiment indicates %s supply risk for %s (score %.2f).", level, f.ProductName, r.Score),
		PotentialSavings: 0,
		ActionRequired:   "Secure supply early and confirm availability with more than one supplier.",
		Confidence:       r.Confidence,
	}, true
}

func anomalyRule(_ RecommendationPolicy, f SignalFacts) (models.Recommendation, bool) {
	a := f.Anomaly
	if a == nil {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		Description:      a.Description,
		PotentialSavings: 0,
		ActionRequired:   "Verify current quotes before committing to a purchase.",
		Confidence:       a.Confidence,
	}, true
}

// ============================================================================
// HELPERS
// ============================================================================

var substitutes = []struct {
	key  string
	alts []string
}{
	{"corn seed", []string{"hybrid corn", "gmo corn", "non-gmo corn"}},
	{"nitrogen fertilizer", []string{"urea", "ammonium nitrate", "liquid nitrogen"}},
	{"herbicide", []string{"glyphosate", "2,4-d", "atrazine"}},
}

// SubstitutesFor lists known alternatives for a product name.
func SubstitutesFor(name string) []string {
	lower := strings.ToLower(name)
	for _, s := range substitutes {
		if strings.Contains(lower, s.key) {
			return s.alts
		}
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatQty(q float64) string {
	q = math.Round(q*100) / 100
	if q == math.Trunc(q) {
		return fmt.Sprintf("%.0f", q)
	}
	return fmt.Sprintf("%.2f", q)
}
