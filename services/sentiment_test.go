package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claudeServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req ClaudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.System)

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"overloaded"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"content": []map[string]string{{"type": "text", "text": text}},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
}

func TestLLMSentimentProvider_ParsesResponse(t *testing.T) {
	srv := claudeServer(t, http.StatusOK, "```json\n{\"supply_risk_score\": 0.82, \"risk_level\": \"high\", \"confidence\": 0.6}\n```")
	defer srv.Close()

	p := NewLLMSentimentProvider(NewClaudeAIService("test-key", "", srv.URL))
	signal, err := p.Analyze(context.Background(), "Urea")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, 0.82, signal.SupplyRiskScore)
	assert.Equal(t, models.RiskHigh, signal.RiskLevel)
	assert.Equal(t, 0.6, signal.Confidence)
}

func TestLLMSentimentProvider_DisabledWithoutKey(t *testing.T) {
	p := NewLLMSentimentProvider(NewClaudeAIService("", "", ""))
	signal, err := p.Analyze(context.Background(), "Urea")
	assert.NoError(t, err)
	assert.Nil(t, signal)
}

func TestLLMSentimentProvider_ServerErrorIsRetryable(t *testing.T) {
	srv := claudeServer(t, http.StatusServiceUnavailable, "")
	defer srv.Close()

	p := NewLLMSentimentProvider(NewClaudeAIService("test-key", "", srv.URL))
	_, err := p.Analyze(context.Background(), "Urea")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestLLMSentimentProvider_UnparseableResponse(t *testing.T) {
	srv := claudeServer(t, http.StatusOK, "I think the risk is moderate.")
	defer srv.Close()

	p := NewLLMSentimentProvider(NewClaudeAIService("test-key", "", srv.URL))
	_, err := p.Analyze(context.Background(), "Urea")
	var du *DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "unparseable model response", du.Reason)
}

func TestParseSentimentResponse(t *testing.T) {
	signal, err := parseSentimentResponse(`{"supply_risk_score": 1.4, "risk_level": "unknown", "confidence": -1}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, signal.SupplyRiskScore)
	assert.Equal(t, models.RiskHigh, signal.RiskLevel)
	assert.Equal(t, 0.0, signal.Confidence)

	_, err = parseSentimentResponse(`{"risk_level": "LOW"}`)
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0000008*1000+0.000004*100, EstimateCost(1000, 100), 1e-12)
}
