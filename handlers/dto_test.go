package handlers

import (
	"encoding/json"
	"testing"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToProductAnalysis_RoundsAndFlags(t *testing.T) {
	lead := 3
	p := models.ProductBudget{
		ProductID:       "p1",
		ProductName:     "Corn Seed",
		Quantity:        40,
		Unit:            "unit",
		Band:            &models.PriceBand{P10: 130.004, P25: 140.126, P35: 145.25, P50: 150, P90: 170.999},
		TargetPrice:     145.25,
		ConfidenceScore: 0.81234,
		QuoteCount:      8,
		Suppliers: []models.Supplier{
			{Name: "AgriCorp", BasePrice: 139.999, EffectivePrice: 146.4444, LeadTimeDays: &lead},
		},
		Recommendations: []models.Recommendation{
			{Type: models.RecommendationBulkDiscount, PotentialSavings: 290.005, Confidence: 0.85},
			{Type: models.RecommendationSupplyRisk, Confidence: 0.5},
		},
		IndividualBudget: models.IndividualBudget{Low: 5600, Target: 5810, High: 6800, TotalCost: 5810},
		Availability:     models.DataAvailability{PriceData: true, SupplierData: true},
		Stage:            models.StageFinalized,
	}

	dto := toProductAnalysis(p)
	require.NotNil(t, dto.PriceBand)
	assert.Equal(t, 130.0, dto.PriceBand.P10)
	assert.Equal(t, 140.13, dto.PriceBand.P25)
	assert.Equal(t, 171.0, dto.PriceBand.P90)
	assert.Equal(t, 0.812, dto.ConfidenceScore)
	assert.Equal(t, 140.0, dto.Suppliers[0].Price)
	assert.Equal(t, 146.44, dto.Suppliers[0].EffectivePrice)
	assert.Equal(t, "finalized", dto.AnalysisStage)
	assert.True(t, dto.AnalysisFullyFormed)
	assert.NotNil(t, dto.DataLimitations)

	bulk := dto.Recommendations[0]
	assert.Equal(t, "BULK_DISCOUNT", bulk.Type)
	assert.Equal(t, "Bulk Purchase Opportunity", bulk.Title)
	assert.Equal(t, "medium", bulk.Priority)
	assert.Equal(t, "high", bulk.ConfidenceLevel)
	assert.Equal(t, "medium", bulk.Difficulty)

	risk := dto.Recommendations[1]
	assert.Equal(t, "high", risk.Priority)
	assert.Equal(t, "urgent", risk.Urgency)
	assert.Equal(t, "low", risk.ConfidenceLevel)
}

func TestToProductAnalysis_NoBandEncodesNull(t *testing.T) {
	dto := toProductAnalysis(models.ProductBudget{ProductName: "Mystery", Stage: models.StageNormalized})
	assert.False(t, dto.AnalysisFullyFormed)

	raw, err := json.Marshal(dto)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["price_band"])
	assert.Equal(t, []any{}, decoded["suppliers"])
	assert.Equal(t, []any{}, decoded["recommendations"])
	assert.Equal(t, []any{}, decoded["data_limitations"])
	assert.NotContains(t, decoded, "unit_cost")
}

func TestToAnalysisResponse_SumsSavings(t *testing.T) {
	result := &models.AnalysisResult{
		ID:       "id",
		Location: models.FarmLocation{City: "Ames", State: "ia"},
		Products: []models.ProductBudget{
			{Recommendations: []models.Recommendation{{PotentialSavings: 10.004}, {PotentialSavings: 5}}},
			{Recommendations: []models.Recommendation{{PotentialSavings: 0.5}}},
		},
		Portfolio: models.PortfolioBudget{Low: 1, Target: 2.005, High: 3, TotalCost: 2.005},
	}

	resp := toAnalysisResponse(result)
	assert.Equal(t, "Ames, IA", resp.FarmLocation)
	assert.Equal(t, 15.5, resp.TotalSavings)
	assert.Len(t, resp.ProductAnalyses, 2)
	assert.NotNil(t, resp.DataQualityReport.NoDataProducts)
}

func TestUrgency_TimingSoon(t *testing.T) {
	r := models.Recommendation{Type: models.RecommendationTiming, ActionRequired: "Buy soon, prices are rising"}
	assert.Equal(t, "high", urgency(r))
	assert.Equal(t, "normal", urgency(models.Recommendation{Type: models.RecommendationTiming, ActionRequired: "Delay purchase"}))
}

func TestToProductAnalysis_TimingSavingsScaleWithQuantity(t *testing.T) {
	p := models.ProductBudget{
		ProductName: "Corn Seed",
		Quantity:    40,
		Unit:        "unit",
		Stage:       models.StageFinalized,
		Recommendations: []models.Recommendation{
			{Type: models.RecommendationTiming, PotentialSavings: 30, ActionRequired: "Delay purchase", Confidence: 0.6},
			{Type: models.RecommendationBulkDiscount, PotentialSavings: 200, Confidence: 0.6},
		},
	}

	assert.Equal(t, 1400.0, p.TotalSavings())

	dto := toProductAnalysis(p)
	assert.Equal(t, 1400.0, dto.TotalSavings)

	timing := dto.Recommendations[0]
	assert.Equal(t, 30.0, timing.PotentialSavings)
	assert.Equal(t, 1200.0, timing.OrderSavings)
	assert.Equal(t, "high", timing.Priority)

	bulk := dto.Recommendations[1]
	assert.Equal(t, 200.0, bulk.PotentialSavings)
	assert.Equal(t, 200.0, bulk.OrderSavings)
	assert.Equal(t, "medium", bulk.Priority)

	resp := toAnalysisResponse(&models.AnalysisResult{Products: []models.ProductBudget{p}})
	assert.Equal(t, 1400.0, resp.TotalSavings)
}
