package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Valeamar/tidal2025/utils"
)

// ============================================================================
// CLAUDE AI SERVICE - market sentiment reading for farm inputs
// ============================================================================

const defaultClaudeBaseURL = "https://api.anthropic.com"

type ClaudeAIService struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

type ClaudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []ClaudeMessage `json:"messages"`
}

type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClaudeAIService builds a client. An empty baseURL targets the public API.
func NewClaudeAIService(apiKey, model, baseURL string) *ClaudeAIService {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	return &ClaudeAIService{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  400,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (s *ClaudeAIService) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// CallClaude sends one user prompt with an optional system prompt and
// returns the first text block of the reply.
func (s *ClaudeAIService) CallClaude(ctx context.Context, system, prompt string) (string, error) {
	if !s.Enabled() {
		return "", &DataUnavailableError{Source: "claude", Reason: "ANTHROPIC_API_KEY not set"}
	}

	return s.executeRequest(ctx, ClaudeRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    system,
		Messages:  []ClaudeMessage{{Role: "user", Content: prompt}},
	})
}

// ============================================================================
// HELPER: EXECUTE REQUEST
// ============================================================================

func (s *ClaudeAIService) executeRequest(ctx context.Context, requestBody ClaudeRequest) (string, error) {
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &DataUnavailableError{Source: "claude", Reason: "deadline exceeded", Err: err}
		}
		return "", &ExternalServiceError{Service: "claude", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExternalServiceError{Service: "claude", Retryable: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", &ExternalServiceError{Service: "claude", StatusCode: resp.StatusCode, Retryable: retryable, Err: errors.New(truncate(string(body), 200))}
	}

	var claudeResp ClaudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", &ExternalServiceError{Service: "claude", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if len(claudeResp.Content) == 0 {
		return "", &ExternalServiceError{Service: "claude", Err: errors.New("empty response")}
	}

	utils.Log.Debugf("[Claude AI] Model: %s | Tokens: In %d / Out %d | Cost: $%.5f",
		claudeResp.Model,
		claudeResp.Usage.InputTokens,
		claudeResp.Usage.OutputTokens,
		EstimateCost(claudeResp.Usage.InputTokens, claudeResp.Usage.OutputTokens),
	)

	return claudeResp.Content[0].Text, nil
}

// ============================================================================
// COST ESTIMATION
// ============================================================================

const (
	InputTokenPrice  = 0.0000008 // $0.80 per million
	OutputTokenPrice = 0.000004  // $4 per million
)

func EstimateCost(inputTokens int, outputTokens int) float64 {
	return float64(inputTokens)*InputTokenPrice + float64(outputTokens)*OutputTokenPrice
}
