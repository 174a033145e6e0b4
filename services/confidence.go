package services

import (
	"math"
	"strings"
	"time"

	"github.com/Valeamar/tidal2025/models"
)

// ConfidencePolicy holds the constants of the confidence score.
type ConfidencePolicy struct {
	QuoteCap           int
	StaleAfter         time.Duration
	DecayWindow        time.Duration
	FreshnessFloor     float64
	UnknownAgeFactor   float64
	DispersionSlope    float64
	DiversityBaseShare float64
}

func DefaultConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{
		QuoteCap:           5,
		StaleAfter:         72 * time.Hour,
		DecayWindow:        168 * time.Hour,
		FreshnessFloor:     0.2,
		UnknownAgeFactor:   0.5,
		DispersionSlope:    2.0,
		DiversityBaseShare: 0.5,
	}
}

// ConfidenceScorer rates how far a product's price band can be trusted.
type ConfidenceScorer struct {
	policy ConfidencePolicy
}

func NewConfidenceScorer(policy ConfidencePolicy) *ConfidenceScorer {
	if policy.QuoteCap < 1 {
		policy.QuoteCap = 1
	}
	return &ConfidenceScorer{policy: policy}
}

// Score combines quote count, freshness, dispersion and supplier diversity
// into a value in [0,1]. No quotes or no band yields exactly 0.
func (s *ConfidenceScorer) Score(quotes []models.PriceQuote, band *models.PriceBand, now time.Time) float64 {
	n := len(quotes)
	if n == 0 || band == nil {
		return 0
	}

	capped := min(n, s.policy.QuoteCap)
	base := float64(capped) / float64(s.policy.QuoteCap)

	score := base *
		s.freshness(quotes, now) *
		s.dispersion(*band) *
		s.diversity(quotes, capped)
	return math.Max(0, math.Min(1, score))
}

func (s *ConfidenceScorer) freshness(quotes []models.PriceQuote, now time.Time) float64 {
	var sum float64
	for _, q := range quotes {
		sum += s.quoteFreshness(q.ObservedAt, now)
	}
	return sum / float64(len(quotes))
}

func (s *ConfidenceScorer) quoteFreshness(observed, now time.Time) float64 {
	if observed.IsZero() {
		return s.policy.UnknownAgeFactor
	}
	age := now.Sub(observed)
	if age <= s.policy.StaleAfter {
		return 1
	}
	if s.policy.DecayWindow <= 0 {
		return s.policy.FreshnessFloor
	}
	decayed := 1 - float64(age-s.policy.StaleAfter)/float64(s.policy.DecayWindow)
	return math.Max(s.policy.FreshnessFloor, decayed)
}

// dispersion falls as the relative spread (P90-P10)/P50 grows.
func (s *ConfidenceScorer) dispersion(band models.PriceBand) float64 {
	if band.P50 <= 0 {
		return 1 / (1 + s.policy.DispersionSlope)
	}
	spread := (band.P90 - band.P10) / band.P50
	return 1 / (1 + s.policy.DispersionSlope*math.Max(0, spread))
}

func (s *ConfidenceScorer) diversity(quotes []models.PriceQuote, capped int) float64 {
	distinct := min(DistinctSuppliers(quotes), s.policy.QuoteCap)
	share := s.policy.DiversityBaseShare
	return share + (1-share)*float64(distinct)/float64(capped)
}

// DistinctSuppliers counts suppliers by case-insensitive name.
func DistinctSuppliers(quotes []models.PriceQuote) int {
	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		seen[strings.ToLower(strings.TrimSpace(q.SupplierName))] = struct{}{}
	}
	return len(seen)
}
