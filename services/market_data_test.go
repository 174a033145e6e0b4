package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMarketDataProvider_GetQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes", r.URL.Path)
		assert.Equal(t, "Corn Seeds", r.URL.Query().Get("product"))
		assert.Equal(t, "IA", r.URL.Query().Get("state"))
		assert.Equal(t, "Ames", r.URL.Query().Get("city"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quotes":[
			{"supplier_name":"AgriCorp Supply","price":150,"unit":"unit","currency":"USD","moq":100,
			 "observed_at":"2025-03-01T10:00:00Z","supplier_state":"IA",
			 "price_breaks":[{"min_quantity":100,"price":145}]},
			{"supplier_name":"FarmTech","price":155,"unit":"unit","observed_at":"2025-03-02T10:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	p := NewHTTPMarketDataProvider(srv.URL, "secret", 600, 5, time.Second)
	quotes, err := p.GetQuotes(context.Background(), "Corn Seeds", iowaFarm)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "AgriCorp Supply", quotes[0].SupplierName)
	assert.Equal(t, 150.0, quotes[0].Price)
	require.NotNil(t, quotes[0].MOQ)
	assert.Equal(t, 100, *quotes[0].MOQ)
	assert.Equal(t, []models.PriceBreak{{MinQuantity: 100, Price: 145}}, quotes[0].PriceBreaks)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), quotes[0].ObservedAt)
	assert.Nil(t, quotes[1].MOQ)
}

func TestHTTPMarketDataProvider_StatusHandling(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{http.StatusNotFound, false, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusBadGateway, true, true},
		{http.StatusUnauthorized, true, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewHTTPMarketDataProvider(srv.URL, "", 600, 5, time.Second)
			quotes, err := p.GetQuotes(context.Background(), "Urea", iowaFarm)
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Empty(t, quotes)
				return
			}
			var ext *ExternalServiceError
			require.True(t, errors.As(err, &ext))
			assert.Equal(t, tt.status, ext.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestHTTPMarketDataProvider_Deadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := NewHTTPMarketDataProvider(srv.URL, "", 600, 5, 5*time.Second)
	_, err := p.GetQuotes(ctx, "Urea", iowaFarm)
	var du *DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "deadline exceeded", du.Reason)
}

func TestMockMarketDataProvider(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p := &MockMarketDataProvider{Now: func() time.Time { return now }}

	quotes, err := p.GetQuotes(context.Background(), "Corn Seed", iowaFarm)
	require.NoError(t, err)
	require.Len(t, quotes, 6)

	assert.Equal(t, 212.5, quotes[0].Price)
	assert.Equal(t, "unit", quotes[0].Unit)
	assert.Equal(t, "IA", quotes[0].SupplierState)
	assert.Equal(t, "CA", quotes[5].SupplierState)
	require.NotNil(t, quotes[0].MOQ)
	assert.Equal(t, 50, *quotes[0].MOQ)
	assert.Nil(t, quotes[2].MOQ)
	assert.Equal(t, now.Add(-3*time.Hour), quotes[3].ObservedAt)

	again, err := p.GetQuotes(context.Background(), "Corn Seed", iowaFarm)
	require.NoError(t, err)
	assert.Equal(t, quotes, again)
}
