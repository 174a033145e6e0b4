package handlers

import (
	"math"
	"strings"
	"time"

	"github.com/Valeamar/tidal2025/models"
)

// ============================================================================
// REQUEST
// ============================================================================

type FarmLocationDTO struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	County        string `json:"county"`
	ZipCode       string `json:"zip_code"`
	Country       string `json:"country"`
}

type ProductRequestDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Quantity        float64  `json:"quantity"`
	Unit            string   `json:"unit"`
	Specifications  string   `json:"specifications,omitempty"`
	MaxPrice        *float64 `json:"max_price,omitempty"`
	PreferredBrands []string `json:"preferred_brands,omitempty"`
}

type AnalyzeRequest struct {
	FarmLocation FarmLocationDTO     `json:"farm_location"`
	Products     []ProductRequestDTO `json:"products"`
}

func fromAnalyzeRequest(req AnalyzeRequest) ([]models.ProductRequest, models.FarmLocation) {
	products := make([]models.ProductRequest, len(req.Products))
	for i, p := range req.Products {
		products[i] = models.ProductRequest{
			ID:              strings.TrimSpace(p.ID),
			Name:            strings.TrimSpace(p.Name),
			Quantity:        p.Quantity,
			Unit:            strings.TrimSpace(p.Unit),
			Specifications:  p.Specifications,
			MaxPrice:        p.MaxPrice,
			PreferredBrands: p.PreferredBrands,
		}
	}
	loc := req.FarmLocation
	return products, models.FarmLocation{
		StreetAddress: strings.TrimSpace(loc.StreetAddress),
		City:          strings.TrimSpace(loc.City),
		State:         strings.TrimSpace(loc.State),
		County:        strings.TrimSpace(loc.County),
		ZipCode:       strings.TrimSpace(loc.ZipCode),
		Country:       strings.TrimSpace(loc.Country),
	}
}

// ============================================================================
// RESPONSE
// ============================================================================

type PriceBandDTO struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P35 float64 `json:"p35"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

type EffectiveCostDTO struct {
	Base      float64 `json:"base"`
	Logistics float64 `json:"logistics"`
	Taxes     float64 `json:"taxes"`
	Wastage   float64 `json:"wastage"`
	Total     float64 `json:"total"`
}

type SupplierDTO struct {
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	EffectivePrice float64  `json:"effective_price"`
	LeadTimeDays   *int     `json:"lead_time_days,omitempty"`
	Reliability    *float64 `json:"reliability,omitempty"`
	MOQ            *float64 `json:"moq,omitempty"`
	ContactInfo    string   `json:"contact_info,omitempty"`
	State          string   `json:"state,omitempty"`
}

type RecommendationDTO struct {
	Type             string  `json:"type"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	PotentialSavings float64 `json:"potential_savings"`
	OrderSavings     float64 `json:"order_savings"`
	ActionRequired   string  `json:"action_required"`
	Confidence       float64 `json:"confidence"`
	ConfidenceLevel  string  `json:"confidence_level"`
	Priority         string  `json:"priority"`
	Urgency          string  `json:"urgency"`
	Difficulty       string  `json:"implementation_difficulty"`
}

type BudgetDTO struct {
	Low       float64 `json:"low"`
	Target    float64 `json:"target"`
	High      float64 `json:"high"`
	TotalCost float64 `json:"total_cost"`
}

type DataAvailabilityDTO struct {
	PriceData    bool `json:"price_data"`
	SupplierData bool `json:"supplier_data"`
	Forecast     bool `json:"forecast"`
	Sentiment    bool `json:"sentiment"`
	Analytics    bool `json:"analytics"`
}

type ProductAnalysisDTO struct {
	ProductID           string              `json:"product_id"`
	ProductName         string              `json:"product_name"`
	Quantity            float64             `json:"quantity"`
	Unit                string              `json:"unit"`
	PriceBand           *PriceBandDTO       `json:"price_band"`
	TargetPrice         float64             `json:"target_price"`
	ConfidenceScore     float64             `json:"confidence_score"`
	QuoteCount          int                 `json:"quote_count"`
	Suppliers           []SupplierDTO       `json:"suppliers"`
	Recommendations     []RecommendationDTO `json:"recommendations"`
	DataLimitations     []string            `json:"data_limitations"`
	IndividualBudget    BudgetDTO           `json:"individual_budget"`
	UnitCost            *EffectiveCostDTO   `json:"unit_cost,omitempty"`
	TotalSavings        float64             `json:"total_potential_savings"`
	DataAvailability    DataAvailabilityDTO `json:"data_availability"`
	AnalysisStage       string              `json:"analysis_stage"`
	AnalysisFullyFormed bool                `json:"analysis_complete"`
}

type DataQualityDTO struct {
	OverallDataCoverage float64  `json:"overall_data_coverage"`
	ReliableProducts    []string `json:"reliable_products"`
	LimitedDataProducts []string `json:"limited_data_products"`
	NoDataProducts      []string `json:"no_data_products"`
}

type AnalysisResponse struct {
	AnalysisID        string               `json:"analysis_id"`
	FarmLocation      string               `json:"farm_location"`
	ProductAnalyses   []ProductAnalysisDTO `json:"product_analyses"`
	OverallBudget     BudgetDTO            `json:"overall_budget"`
	TotalSavings      float64              `json:"total_potential_savings"`
	DataQualityReport DataQualityDTO       `json:"data_quality_report"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func toAnalysisResponse(r *models.AnalysisResult) AnalysisResponse {
	resp := AnalysisResponse{
		AnalysisID:      r.ID,
		FarmLocation:    r.Location.String(),
		ProductAnalyses: make([]ProductAnalysisDTO, len(r.Products)),
		OverallBudget:   toBudgetDTO(r.Portfolio),
		DataQualityReport: DataQualityDTO{
			OverallDataCoverage: r.DataQuality.OverallDataCoverage,
			ReliableProducts:    nonNil(r.DataQuality.ReliableProducts),
			LimitedDataProducts: nonNil(r.DataQuality.LimitedDataProducts),
			NoDataProducts:      nonNil(r.DataQuality.NoDataProducts),
		},
		GeneratedAt: r.GeneratedAt,
	}
	var savings float64
	for i, p := range r.Products {
		resp.ProductAnalyses[i] = toProductAnalysis(p)
		savings += p.TotalSavings()
	}
	resp.TotalSavings = round2(savings)
	return resp
}

func toProductAnalysis(p models.ProductBudget) ProductAnalysisDTO {
	dto := ProductAnalysisDTO{
		ProductID:        p.ProductID,
		ProductName:      p.ProductName,
		Quantity:         p.Quantity,
		Unit:             p.Unit,
		TargetPrice:      round2(p.TargetPrice),
		ConfidenceScore:  round3(p.ConfidenceScore),
		QuoteCount:       p.QuoteCount,
		Suppliers:        make([]SupplierDTO, len(p.Suppliers)),
		Recommendations:  make([]RecommendationDTO, len(p.Recommendations)),
		DataLimitations:  nonNil(p.DataLimitations),
		IndividualBudget: toBudgetDTO(p.IndividualBudget),
		TotalSavings:     round2(p.TotalSavings()),
		DataAvailability: DataAvailabilityDTO{
			PriceData:    p.Availability.PriceData,
			SupplierData: p.Availability.SupplierData,
			Forecast:     p.Availability.Forecast,
			Sentiment:    p.Availability.Sentiment,
			Analytics:    p.Availability.Analytics,
		},
		AnalysisStage:       string(p.Stage),
		AnalysisFullyFormed: p.Stage == models.StageFinalized,
	}
	if p.Band != nil {
		dto.PriceBand = &PriceBandDTO{
			P10: round2(p.Band.P10),
			P25: round2(p.Band.P25),
			P35: round2(p.Band.P35),
			P50: round2(p.Band.P50),
			P90: round2(p.Band.P90),
		}
	}
	if p.UnitCost != nil {
		dto.UnitCost = &EffectiveCostDTO{
			Base:      round2(p.UnitCost.Base),
			Logistics: round2(p.UnitCost.Logistics),
			Taxes:     round2(p.UnitCost.Taxes),
			Wastage:   round2(p.UnitCost.Wastage),
			Total:     round2(p.UnitCost.Total),
		}
	}
	for i, s := range p.Suppliers {
		dto.Suppliers[i] = SupplierDTO{
			Name:           s.Name,
			Price:          round2(s.BasePrice),
			EffectivePrice: round2(s.EffectivePrice),
			LeadTimeDays:   s.LeadTimeDays,
			Reliability:    s.Reliability,
			MOQ:            s.MOQ,
			ContactInfo:    s.ContactInfo,
			State:          s.State,
		}
	}
	for i, rec := range p.Recommendations {
		dto.Recommendations[i] = toRecommendationDTO(rec, p.Quantity)
	}
	return dto
}

func toBudgetDTO(t models.Tier) BudgetDTO {
	return BudgetDTO{
		Low:       round2(t.Low),
		Target:    round2(t.Target),
		High:      round2(t.High),
		TotalCost: round2(t.TotalCost),
	}
}

// ============================================================================
// RECOMMENDATION FORMATTING
// ============================================================================

var recommendationTitles = map[models.RecommendationType]string{
	models.RecommendationBulkDiscount:         "Bulk Purchase Opportunity",
	models.RecommendationTiming:               "Optimal Purchase Timing",
	models.RecommendationSubstitute:           "Alternative Product Option",
	models.RecommendationGroupPurchase:        "Group Purchase Opportunity",
	models.RecommendationSeasonalOptimization: "Seasonal Price Optimization",
	models.RecommendationSupplyRisk:           "Supply Risk Alert",
	models.RecommendationAnomalyAlert:         "Market Anomaly Alert",
}

func toRecommendationDTO(r models.Recommendation, quantity float64) RecommendationDTO {
	title, ok := recommendationTitles[r.Type]
	if !ok {
		title = "Cost Optimization"
	}
	return RecommendationDTO{
		Type:             string(r.Type),
		Title:            title,
		Description:      r.Description,
		PotentialSavings: round2(r.PotentialSavings),
		OrderSavings:     round2(r.OrderSavings(quantity)),
		ActionRequired:   r.ActionRequired,
		Confidence:       round3(r.Confidence),
		ConfidenceLevel:  confidenceLevel(r.Confidence),
		Priority:         priority(r, quantity),
		Urgency:          urgency(r),
		Difficulty:       difficulty(r.Type),
	}
}

func priority(r models.Recommendation, quantity float64) string {
	savings := r.OrderSavings(quantity)
	switch {
	case savings > 500 || r.Advisory():
		return "high"
	case savings > 100 || r.Confidence > 0.8:
		return "medium"
	default:
		return "low"
	}
}

func confidenceLevel(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

func urgency(r models.Recommendation) string {
	switch {
	case r.Advisory():
		return "urgent"
	case r.Type == models.RecommendationTiming && strings.Contains(strings.ToLower(r.ActionRequired), "soon"):
		return "high"
	default:
		return "normal"
	}
}

func difficulty(t models.RecommendationType) string {
	switch t {
	case models.RecommendationSubstitute, models.RecommendationGroupPurchase:
		return "high"
	case models.RecommendationBulkDiscount, models.RecommendationTiming:
		return "medium"
	default:
		return "low"
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
