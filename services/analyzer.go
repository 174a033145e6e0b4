package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Valeamar/tidal2025/models"
	"github.com/Valeamar/tidal2025/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// PRICE ANALYZER
// Runs one pipeline per product on a bounded pool, then aggregates budgets
// ============================================================================

// AnalyzerConfig bounds the work done for one request.
type AnalyzerConfig struct {
	MaxProducts       int
	MaxWorkers        int
	RequestTimeout    time.Duration
	ProductTimeout    time.Duration
	MarketDataTimeout time.Duration
	SignalTimeouts    SignalTimeouts
	SupplierListSize  int
	Currency          string
	Retry             RetryPolicy
	Confidence        ConfidencePolicy
	Recommendations   RecommendationPolicy
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MaxProducts:       50,
		MaxWorkers:        10,
		RequestTimeout:    30 * time.Second,
		ProductTimeout:    20 * time.Second,
		MarketDataTimeout: 5 * time.Second,
		SignalTimeouts: SignalTimeouts{
			Forecast:  3 * time.Second,
			Sentiment: 3 * time.Second,
			Analytics: 3 * time.Second,
		},
		SupplierListSize: DefaultSupplierListSize,
		Currency:         "USD",
		Retry:            DefaultRetryPolicy(),
		Confidence:       DefaultConfidencePolicy(),
		Recommendations:  DefaultRecommendationPolicy(),
	}
}

// Collaborators are the external data sources of the analyzer. Only Market
// is required.
type Collaborators struct {
	Market    MarketDataProvider
	Forecast  ForecastProvider
	Sentiment SentimentProvider
	Analytics AnalyticsProvider
}

type PriceAnalyzer struct {
	cfg        AnalyzerConfig
	market     MarketDataProvider
	signals    *SignalFetcher
	normalizer *Normalizer
	scorer     *ConfidenceScorer
	engine     *RecommendationEngine
	now        func() time.Time
}

func NewPriceAnalyzer(cfg AnalyzerConfig, c Collaborators) *PriceAnalyzer {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &PriceAnalyzer{
		cfg:    cfg,
		market: c.Market,
		signals: &SignalFetcher{
			Forecast:  c.Forecast,
			Sentiment: c.Sentiment,
			Analytics: c.Analytics,
			Timeouts:  cfg.SignalTimeouts,
			Retry:     cfg.Retry,
		},
		normalizer: NewNormalizer(cfg.Currency),
		scorer:     NewConfidenceScorer(cfg.Confidence),
		engine:     NewRecommendationEngine(cfg.Recommendations),
		now:        time.Now,
	}
}

// Analyze prices every product of the request. Only request-level
// validation errors are returned; product failures and timeouts show up
// as data limitations on the affected products.
func (a *PriceAnalyzer) Analyze(ctx context.Context, products []models.ProductRequest, location models.FarmLocation) (*models.AnalysisResult, error) {
	if err := ValidateRequest(products, a.cfg.MaxProducts); err != nil {
		return nil, err
	}

	start := a.now()
	if a.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
	}

	utils.Log.WithFields(logrus.Fields{
		"products": len(products),
		"location": utils.MaskLocation(location.City, location.State),
	}).Info("[PriceAnalyzer] Starting analysis")

	trackers := make([]*productTracker, len(products))
	for i, p := range products {
		trackers[i] = newProductTracker(p)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(a.cfg.MaxWorkers)
		for i := range products {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				a.runProduct(ctx, products[i], location, trackers[i])
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		utils.Log.Warn("[PriceAnalyzer] ⚠️  Request deadline reached, returning partial results")
	}

	results := make([]models.ProductBudget, len(trackers))
	facts := make([]*SignalFacts, len(trackers))
	for i, t := range trackers {
		t.seal()
		results[i], facts[i] = t.snapshot()
	}

	a.applyBundling(results, facts)

	result := &models.AnalysisResult{
		ID:          uuid.New().String(),
		Location:    location,
		Products:    results,
		Portfolio:   BuildPortfolio(results),
		DataQuality: BuildDataQuality(results),
		GeneratedAt: a.now().UTC(),
	}

	utils.Log.WithFields(logrus.Fields{
		"analysis_id": result.ID,
		"coverage":    result.DataQuality.OverallDataCoverage,
		"duration":    a.now().Sub(start).Round(time.Millisecond),
	}).Info("[PriceAnalyzer] ✅ Analysis complete")

	return result, nil
}

// ============================================================================
// PER-PRODUCT PIPELINE
// ============================================================================

func (a *PriceAnalyzer) runProduct(ctx context.Context, product models.ProductRequest, location models.FarmLocation, t *productTracker) {
	log := utils.Log.WithField("product", product.Name)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[PriceAnalyzer] ❌ panic in pipeline: %v", r)
			t.fail(&ComputationError{Stage: string(t.stage()), Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := ValidateProduct(product); err != nil {
		log.Warnf("[PriceAnalyzer] ⚠️  Invalid product: %v", err)
		t.reject(err)
		return
	}

	if a.cfg.ProductTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.ProductTimeout)
		defer cancel()
	}

	// Created -> Normalized
	quotes, err := a.fetchQuotes(ctx, product, location)
	if ctx.Err() != nil {
		t.timeout()
		return
	}
	var limitations []string
	if err != nil {
		limitations = append(limitations, marketDataLimitation(err, a.cfg.MarketDataTimeout))
	}
	normalized, normLimits := a.normalizer.Normalize(product, location, quotes)
	limitations = append(limitations, normLimits...)
	t.advance(models.StageNormalized, func(pb *models.ProductBudget) {
		pb.DataLimitations = append(pb.DataLimitations, limitations...)
	})

	// Normalized -> Aggregated
	totals := make([]float64, len(normalized))
	for i, q := range normalized {
		totals[i] = q.Cost.Total
	}
	band, retained, err := Aggregate(totals)
	if err != nil {
		log.Errorf("[PriceAnalyzer] ❌ %v", err)
		t.fail(err)
		return
	}
	ranked := RankSuppliers(normalized)
	t.advance(models.StageAggregated, func(pb *models.ProductBudget) {
		pb.QuoteCount = len(normalized)
		pb.Band = band
		pb.Suppliers = TopSuppliers(ranked, a.cfg.SupplierListSize)
		if band == nil {
			pb.DataLimitations = append(pb.DataLimitations, ErrNoPriceData.Error())
			return
		}
		pb.TargetPrice = band.Target()
		pb.IndividualBudget = IndividualBudgetFor(band, product.Quantity)
		pb.UnitCost = MeanUnitCost(normalized, retained)
		if excluded := len(totals) - len(retained); excluded > 0 {
			pb.DataLimitations = append(pb.DataLimitations, fmt.Sprintf("excluded %d outlier quote(s)", excluded))
		}
		if product.MaxPrice != nil && band.Target() > *product.MaxPrice {
			pb.DataLimitations = append(pb.DataLimitations, fmt.Sprintf("target price %.2f exceeds max price %.2f", band.Target(), *product.MaxPrice))
		}
	})

	// Aggregated -> Scored
	usable := make([]models.PriceQuote, len(normalized))
	for i, q := range normalized {
		usable[i] = q.Quote
	}
	score := a.scorer.Score(usable, band, a.now())
	t.advance(models.StageScored, func(pb *models.ProductBudget) {
		pb.ConfidenceScore = score
	})

	// Scored -> Signaled
	bundle := a.signals.Fetch(ctx, product, unitPriceHistory(normalized, product.Unit))
	if ctx.Err() != nil {
		t.timeout()
		return
	}
	var cheapest *NormalizedQuote
	if len(ranked) > 0 {
		cheapest = &ranked[0]
	}
	facts, signalLimits := IntegrateSignals(SignalInput{
		Product:    product,
		Band:       band,
		Cheapest:   cheapest,
		QuoteCount: len(normalized),
		Suppliers:  DistinctSuppliers(usable),
		Signals:    bundle,
	})
	t.advance(models.StageSignaled, func(pb *models.ProductBudget) {
		pb.DataLimitations = append(pb.DataLimitations, signalLimits...)
		pb.Availability = models.DataAvailability{
			PriceData:    band != nil,
			SupplierData: len(ranked) > 0,
			Forecast:     facts.Trend != nil,
			Sentiment:    facts.Risk != nil,
			Analytics:    bundle.Analytics != nil && bundle.AnalyticsErr == nil,
		}
	})
	t.setFacts(facts)

	// Signaled -> Recommended -> Finalized
	recs := a.engine.Recommend(facts)
	t.advance(models.StageRecommended, func(pb *models.ProductBudget) {
		pb.Recommendations = recs
	})
	t.finalize()

	log.WithFields(logrus.Fields{
		"quotes":     len(normalized),
		"confidence": fmt.Sprintf("%.3f", score),
		"recs":       len(recs),
	}).Debug("[PriceAnalyzer] Product finalized")
}

func (a *PriceAnalyzer) fetchQuotes(ctx context.Context, product models.ProductRequest, location models.FarmLocation) ([]models.PriceQuote, error) {
	if a.market == nil {
		return nil, &DataUnavailableError{Source: "market data", Reason: "no provider configured"}
	}
	return Retry(ctx, a.cfg.Retry, "market data", func(ctx context.Context) ([]models.PriceQuote, error) {
		if a.cfg.MarketDataTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.MarketDataTimeout)
			defer cancel()
		}
		return a.market.GetQuotes(ctx, product.Name, location)
	})
}

func marketDataLimitation(err error, timeout time.Duration) string {
	var du *DataUnavailableError
	if errors.As(err, &du) {
		if du.Reason == "deadline exceeded" && timeout > 0 {
			return fmt.Sprintf("market data unavailable: timed out after %s", timeout)
		}
		return fmt.Sprintf("market data unavailable: %s", du.Reason)
	}
	return fmt.Sprintf("market data unavailable: %v", err)
}

// unitPriceHistory restates normalized quotes as history in the product unit.
func unitPriceHistory(quotes []NormalizedQuote, unit string) []models.PriceQuote {
	history := make([]models.PriceQuote, len(quotes))
	for i, q := range quotes {
		h := q.Quote
		h.Price = q.UnitPrice
		h.Unit = unit
		h.PriceBreaks = q.PriceBreaks
		history[i] = h
	}
	return history
}

// ============================================================================
// CROSS-PRODUCT BUNDLING
// ============================================================================

// applyBundling fills BundlePartners for finalized products that share a
// cheapest supplier and re-runs their rules.
func (a *PriceAnalyzer) applyBundling(results []models.ProductBudget, facts []*SignalFacts) {
	bySupplier := make(map[string][]int)
	var order []string
	for i, f := range facts {
		if f == nil || f.Cheapest == nil || results[i].Stage != models.StageFinalized {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(f.Cheapest.Name))
		if _, ok := bySupplier[key]; !ok {
			order = append(order, key)
		}
		bySupplier[key] = append(bySupplier[key], i)
	}

	for _, key := range order {
		group := bySupplier[key]
		if len(group) < 2 {
			continue
		}
		for _, i := range group {
			partners := make([]string, 0, len(group)-1)
			for _, j := range group {
				if j != i {
					partners = append(partners, results[j].ProductName)
				}
			}
			f := *facts[i]
			f.BundlePartners = partners
			results[i].Recommendations = a.engine.Recommend(f)
		}
	}
}

// ============================================================================
// PRODUCT TRACKER
// ============================================================================

// productTracker holds the latest snapshot of one product pipeline. Once
// done (finalized, failed or sealed) further updates are ignored.
type productTracker struct {
	mu     sync.Mutex
	budget models.ProductBudget
	facts  *SignalFacts
	done   bool
}

func newProductTracker(p models.ProductRequest) *productTracker {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	return &productTracker{budget: models.ProductBudget{
		ProductID:   id,
		ProductName: p.Name,
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		Stage:       models.StageCreated,
	}}
}

func (t *productTracker) advance(stage models.Stage, fn func(pb *models.ProductBudget)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	fn(&t.budget)
	t.budget.Stage = stage
}

func (t *productTracker) setFacts(f SignalFacts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.facts = &f
	}
}

func (t *productTracker) stage() models.Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget.Stage
}

func (t *productTracker) finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.budget.Stage = models.StageFinalized
	t.done = true
}

// reject ends the pipeline at Created for an invalid product.
func (t *productTracker) reject(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.budget.ConfidenceScore = 0
	t.budget.DataLimitations = append(t.budget.DataLimitations, "invalid product request: "+err.Error())
	t.done = true
}

// fail replaces the result with an empty budget carrying the error.
func (t *productTracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	limitation := "computation failed: " + err.Error()
	var cerr *ComputationError
	if errors.As(err, &cerr) {
		limitation = cerr.Error()
	}
	t.budget = models.ProductBudget{
		ProductID:       t.budget.ProductID,
		ProductName:     t.budget.ProductName,
		Quantity:        t.budget.Quantity,
		Unit:            t.budget.Unit,
		Stage:           t.budget.Stage,
		DataLimitations: []string{limitation},
	}
	t.facts = nil
	t.done = true
}

func (t *productTracker) timeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markIncomplete()
}

// seal is called when results are collected; unfinished pipelines are
// frozen with a deadline limitation.
func (t *productTracker) seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markIncomplete()
}

func (t *productTracker) markIncomplete() {
	if t.done {
		return
	}
	t.budget.DataLimitations = append(t.budget.DataLimitations,
		fmt.Sprintf("analysis incomplete: deadline exceeded at stage %s", t.budget.Stage))
	t.facts = nil
	t.done = true
}

func (t *productTracker) snapshot() (models.ProductBudget, *SignalFacts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pb := t.budget
	pb.Suppliers = append([]models.Supplier{}, t.budget.Suppliers...)
	pb.Recommendations = append([]models.Recommendation{}, t.budget.Recommendations...)
	pb.DataLimitations = append([]string{}, t.budget.DataLimitations...)
	if t.budget.Band != nil {
		band := *t.budget.Band
		pb.Band = &band
	}
	var facts *SignalFacts
	if t.facts != nil {
		f := *t.facts
		facts = &f
	}
	return pb, facts
}
