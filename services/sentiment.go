package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"
)

// ============================================================================
// LLM SENTIMENT PROVIDER
// ============================================================================

// LLMSentimentProvider asks the language model for a supply-risk reading.
// Without an API key it reports no sentiment.
type LLMSentimentProvider struct {
	AI *ClaudeAIService
}

func NewLLMSentimentProvider(ai *ClaudeAIService) *LLMSentimentProvider {
	return &LLMSentimentProvider{AI: ai}
}

const sentimentSystemPrompt = `You are an agricultural commodity analyst.
Assess near-term supply risk for the farm input the user names, based on recent
market news you know about (weather, logistics, trade policy, plant outages).

Respond ONLY with valid JSON (no markdown, no backticks), exact format:
{"supply_risk_score": 0.0, "risk_level": "LOW", "confidence": 0.0}

Rules:
1. supply_risk_score is between 0 and 1
2. risk_level is one of LOW, MEDIUM, HIGH
3. confidence is between 0 and 1 and reflects how much evidence you have`

func (p *LLMSentimentProvider) Analyze(ctx context.Context, productName string) (*models.SentimentSignal, error) {
	if p.AI == nil || !p.AI.Enabled() {
		return nil, nil
	}

	response, err := p.AI.CallClaude(ctx, sentimentSystemPrompt, fmt.Sprintf("Product: %s", productName))
	if err != nil {
		return nil, err
	}

	signal, err := parseSentimentResponse(response)
	if err != nil {
		utils.Log.WithField("product", productName).Warnf("[Sentiment] ❌ %v", err)
		return nil, &DataUnavailableError{Source: "sentiment", Reason: "unparseable model response", Err: err}
	}
	return signal, nil
}

type sentimentResponse struct {
	SupplyRiskScore *float64 `json:"supply_risk_score"`
	RiskLevel       string   `json:"risk_level"`
	Confidence      *float64 `json:"confidence"`
}

func parseSentimentResponse(content string) (*models.SentimentSignal, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp sentimentResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if resp.SupplyRiskScore == nil || resp.Confidence == nil {
		return nil, fmt.Errorf("missing supply_risk_score or confidence")
	}

	level := models.RiskLevel(strings.ToUpper(strings.TrimSpace(resp.RiskLevel)))
	switch level {
	case models.RiskLow, models.RiskMedium, models.RiskHigh:
	default:
		level = riskLevelFor(*resp.SupplyRiskScore)
	}

	return &models.SentimentSignal{
		SupplyRiskScore: clampUnit(*resp.SupplyRiskScore),
		RiskLevel:       level,
		Confidence:      clampUnit(*resp.Confidence),
	}, nil
}

func riskLevelFor(score float64) models.RiskLevel {
	switch {
	case score > 0.7:
		return models.RiskHigh
	case score > 0.4:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
