package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"

	"golang.org/x/sync/singleflight"
)

// ============================================================================
// POSTGRES QUOTE CACHE
// Shares quote lookups between instances through the market_price_cache table
// ============================================================================

type PostgresQuoteCache struct {
	DB             *sql.DB
	TTL            time.Duration
	ComputeTimeout time.Duration
	group          singleflight.Group
}

func NewPostgresQuoteCache(db *sql.DB, ttl time.Duration) *PostgresQuoteCache {
	return &PostgresQuoteCache{DB: db, TTL: ttl, ComputeTimeout: DefaultComputeTimeout}
}

// quoteRecord is the stored JSON shape of a quote.
type quoteRecord struct {
	SupplierName  string             `json:"supplier_name"`
	Price         float64            `json:"price"`
	Unit          string             `json:"unit"`
	Currency      string             `json:"currency,omitempty"`
	MOQ           *int               `json:"moq,omitempty"`
	LeadTimeDays  *int               `json:"lead_time_days,omitempty"`
	Reliability   *float64           `json:"reliability,omitempty"`
	ObservedAt    time.Time          `json:"observed_at"`
	SupplierState string             `json:"supplier_state,omitempty"`
	ContactInfo   string             `json:"contact_info,omitempty"`
	PriceBreaks   []priceBreakRecord `json:"price_breaks,omitempty"`
}

type priceBreakRecord struct {
	MinQuantity float64 `json:"min_quantity"`
	Price       float64 `json:"price"`
}

func toQuoteRecords(quotes []models.PriceQuote) []quoteRecord {
	out := make([]quoteRecord, 0, len(quotes))
	for _, q := range quotes {
		r := quoteRecord{
			SupplierName:  q.SupplierName,
			Price:         q.Price,
			Unit:          q.Unit,
			Currency:      q.Currency,
			MOQ:           q.MOQ,
			LeadTimeDays:  q.LeadTimeDays,
			Reliability:   q.Reliability,
			ObservedAt:    q.ObservedAt,
			SupplierState: q.SupplierState,
			ContactInfo:   q.ContactInfo,
		}
		for _, b := range q.PriceBreaks {
			r.PriceBreaks = append(r.PriceBreaks, priceBreakRecord(b))
		}
		out = append(out, r)
	}
	return out
}

func fromQuoteRecords(records []quoteRecord) []models.PriceQuote {
	out := make([]models.PriceQuote, 0, len(records))
	for _, r := range records {
		q := models.PriceQuote{
			SupplierName:  r.SupplierName,
			Price:         r.Price,
			Unit:          r.Unit,
			Currency:      r.Currency,
			MOQ:           r.MOQ,
			LeadTimeDays:  r.LeadTimeDays,
			Reliability:   r.Reliability,
			ObservedAt:    r.ObservedAt,
			SupplierState: r.SupplierState,
			ContactInfo:   r.ContactInfo,
		}
		for _, b := range r.PriceBreaks {
			q.PriceBreaks = append(q.PriceBreaks, models.PriceBreak(b))
		}
		out = append(out, q)
	}
	return out
}

func (c *PostgresQuoteCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]models.PriceQuote, error)) ([]models.PriceQuote, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := flightContext(ctx, c.ComputeTimeout)
		defer cancel()

		cached, err := c.load(fctx, key)
		if err == nil {
			utils.Log.WithField("key", key).Debug("[QuoteCache] ✅ Cache HIT")
			return cached, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			utils.Log.WithField("key", key).Warnf("[QuoteCache] ⚠️  Failed to read cache: %v", err)
		}

		quotes, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		if len(quotes) > 0 {
			if err := c.save(fctx, key, quotes); err != nil {
				utils.Log.WithField("key", key).Warnf("[QuoteCache] ⚠️  Failed to save to cache: %v", err)
			}
		}
		return quotes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneQuotes(res.Val.([]models.PriceQuote)), nil
	}
}

func (c *PostgresQuoteCache) load(ctx context.Context, key string) ([]models.PriceQuote, error) {
	var raw []byte
	err := c.DB.QueryRowContext(ctx,
		`SELECT quotes FROM market_price_cache WHERE cache_key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}

	var records []quoteRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cached quotes: %w", err)
	}
	return fromQuoteRecords(records), nil
}

func (c *PostgresQuoteCache) save(ctx context.Context, key string, quotes []models.PriceQuote) error {
	raw, err := json.Marshal(toQuoteRecords(quotes))
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.DB.ExecContext(ctx, `
		INSERT INTO market_price_cache (cache_key, quotes, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET quotes = EXCLUDED.quotes, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		key, string(raw), now, now.Add(c.TTL),
	)
	return err
}

// CleanExpired deletes expired rows.
func (c *PostgresQuoteCache) CleanExpired(ctx context.Context) (int64, error) {
	result, err := c.DB.ExecContext(ctx, `DELETE FROM market_price_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean cache: %w", err)
	}
	rows, _ := result.RowsAffected()
	utils.Log.Infof("[QuoteCache] 🧹 Cleaned %d expired cache entries", rows)
	return rows, nil
}
