package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"

	"golang.org/x/time/rate"
)

// ============================================================================
// HTTP MARKET DATA PROVIDER
// ============================================================================

// HTTPMarketDataProvider reads quotes from a JSON quote API:
//
//	GET {baseURL}/v1/quotes?product=...&state=...&city=...
//	-> {"quotes": [{"supplier_name": ..., "price": ..., "unit": ...}]}
type HTTPMarketDataProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPMarketDataProvider builds a client limited to rpm requests per
// minute with the given burst.
func NewHTTPMarketDataProvider(baseURL, apiKey string, rpm, burst int, timeout time.Duration) *HTTPMarketDataProvider {
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &HTTPMarketDataProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

type quoteAPIResponse struct {
	Quotes []quoteRecord `json:"quotes"`
}

func (p *HTTPMarketDataProvider) GetQuotes(ctx context.Context, productName string, location models.FarmLocation) ([]models.PriceQuote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &DataUnavailableError{Source: "market data", Reason: "rate limit wait aborted", Err: err}
	}

	q := url.Values{}
	q.Set("product", productName)
	q.Set("state", location.StateCode())
	if location.City != "" {
		q.Set("city", location.City)
	}
	if location.ZipCode != "" {
		q.Set("zip", location.ZipCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/quotes?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &DataUnavailableError{Source: "market data", Reason: "deadline exceeded", Err: err}
		}
		return nil, &ExternalServiceError{Service: "market data", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ExternalServiceError{Service: "market data", Retryable: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []models.PriceQuote{}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &ExternalServiceError{Service: "market data", StatusCode: resp.StatusCode, Retryable: true, Err: errors.New(truncate(string(body), 200))}
	case resp.StatusCode != http.StatusOK:
		return nil, &ExternalServiceError{Service: "market data", StatusCode: resp.StatusCode, Err: errors.New(truncate(string(body), 200))}
	}

	var parsed quoteAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ExternalServiceError{Service: "market data", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	quotes := fromQuoteRecords(parsed.Quotes)
	utils.Log.WithField("product", productName).Debugf("[MarketData] Received %d quotes", len(quotes))
	return quotes, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ============================================================================
// MOCK MARKET DATA PROVIDER
// ============================================================================

var mockBasePrices = map[string]float64{
	"corn seed":    250.0,
	"soybean seed": 45.0,
	"wheat seed":   12.0,
	"fertilizer":   650.0,
	"nitrogen":     0.85,
	"phosphorus":   1.20,
	"potassium":    0.95,
	"diesel fuel":  3.50,
	"pesticide":    25.0,
	"herbicide":    18.0,
	"fungicide":    32.0,
}

var mockSuppliers = []string{
	"AgriCorp Supply", "FarmTech Solutions", "GreenField Distributors",
	"Midwest Ag Supply", "Prairie Seed Co", "Regional Co-op",
}

// MockMarketDataProvider returns deterministic quotes for demos and local
// development.
type MockMarketDataProvider struct {
	Now func() time.Time
}

func NewMockMarketDataProvider() *MockMarketDataProvider {
	return &MockMarketDataProvider{Now: time.Now}
}

func (p *MockMarketDataProvider) GetQuotes(ctx context.Context, productName string, location models.FarmLocation) ([]models.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.ToLower(strings.TrimSpace(productName))
	base, ok := mockBasePrices[name]
	if !ok {
		base = 100.0
	}

	unit := "lb"
	switch {
	case strings.Contains(name, "seed"):
		unit = "unit"
	case strings.Contains(name, "fuel"):
		unit = "gal"
	}

	now := p.Now()
	quotes := make([]models.PriceQuote, 0, len(mockSuppliers))
	for i, supplier := range mockSuppliers {
		price := math.Round(base*(0.85+float64(i)*0.05)*100) / 100
		lead := 7 + i*2
		reliability := 0.8 + float64(i)*0.03

		q := models.PriceQuote{
			SupplierName:  supplier,
			Price:         price,
			Unit:          unit,
			Currency:      "USD",
			LeadTimeDays:  &lead,
			Reliability:   &reliability,
			ObservedAt:    now.Add(-time.Duration(i) * time.Hour),
			SupplierState: mockSupplierState(i, location),
			ContactInfo:   fmt.Sprintf("contact@%s.com", strings.ToLower(strings.ReplaceAll(supplier, " ", ""))),
		}
		if i < 2 {
			moq := 50
			q.MOQ = &moq
			q.PriceBreaks = []models.PriceBreak{{MinQuantity: 100, Price: math.Round(price*0.95*100) / 100}}
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func mockSupplierState(i int, location models.FarmLocation) string {
	switch {
	case i < 2:
		return location.StateCode()
	case i < 4:
		return "IA"
	default:
		return "CA"
	}
}
