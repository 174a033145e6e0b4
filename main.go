package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/Valeamar/tidal2025/config"
	"github.com/Valeamar/tidal2025/handlers"
	"github.com/Valeamar/tidal2025/middleware"
	"github.com/Valeamar/tidal2025/routes"
	"github.com/Valeamar/tidal2025/services"
	"github.com/Valeamar/tidal2025/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Log.Fatalf("Failed to load configuration: %v", err)
	}

	utils.IsProduction = cfg.IsProduction()
	if err := utils.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		utils.Log.Warnf("⚠️  Logger setup failed, keeping defaults: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = config.InitDB(cfg.DatabaseURL)
		if err != nil {
			utils.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		utils.Log.Info("✅ Database connected successfully")

		if err := config.RunMigrations(db); err != nil {
			utils.Log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		utils.Log.Warn("⚠️  DATABASE_URL not set, using in-memory cache and session store")
	}

	cache, sessions := buildStores(db, cfg)
	go scheduleCacheCleaning(cache, sessions, cfg.Cache)

	analyzer := services.NewPriceAnalyzer(cfg.AnalyzerConfig(), buildCollaborators(cfg, cache))
	analysisHandler := handlers.NewAnalysisHandler(analyzer, sessions)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	allowedOrigins := []string{cfg.FrontendURL}
	utils.Log.Info("🌍 CORS: Allowing origins:")
	for _, origin := range allowedOrigins {
		utils.Log.Infof("   - %s", origin)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger())

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	go limiter.Run(time.Minute, nil)
	router.Use(limiter.Middleware())

	v1 := router.Group("/api/v1")
	routes.SetupAnalysisRoutes(v1, analysisHandler)
	routes.SetupHealthRoutes(router, utils.GetEnvMode())

	utils.LogStartup("tidal2025", routes.Version, cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		utils.Log.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}
}

// cleanableCache is implemented by both quote caches.
type cleanableCache interface {
	services.QuoteCache
	CleanExpired(ctx context.Context) (int64, error)
}

// memoryCacheCleaner adapts MemoryQuoteCache to cleanableCache.
type memoryCacheCleaner struct {
	*services.MemoryQuoteCache
}

func (m memoryCacheCleaner) CleanExpired(context.Context) (int64, error) {
	return int64(m.MemoryQuoteCache.CleanExpired()), nil
}

func buildStores(db *sql.DB, cfg config.Config) (cleanableCache, services.SessionStore) {
	if db == nil {
		return memoryCacheCleaner{services.NewMemoryQuoteCache(cfg.Cache.QuoteTTL)}, services.NewMemorySessionStore()
	}
	return services.NewPostgresQuoteCache(db, cfg.Cache.QuoteTTL), services.NewPostgresSessionStore(db)
}

func buildCollaborators(cfg config.Config, cache services.QuoteCache) services.Collaborators {
	var market services.MarketDataProvider
	if cfg.UseMockData {
		utils.Log.Info("🧪 Using mock market data")
		market = services.NewMockMarketDataProvider()
	} else {
		utils.Log.Infof("📡 Using market data API at %s", cfg.MarketData.BaseURL)
		md := cfg.MarketData
		market = services.NewHTTPMarketDataProvider(md.BaseURL, md.APIKey, md.RequestsPerMinute, md.Burst, md.HTTPTimeout)
	}

	ai := services.NewClaudeAIService(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	if !ai.Enabled() {
		utils.Log.Warn("⚠️  ANTHROPIC_API_KEY not set, sentiment signals disabled")
	}

	return services.Collaborators{
		Market:    services.NewCachedMarketData(market, cache),
		Forecast:  services.NewTrendForecaster(),
		Sentiment: services.NewLLMSentimentProvider(ai),
		Analytics: services.NewSeasonalInsights(),
	}
}

func scheduleCacheCleaning(cache cleanableCache, sessions services.SessionStore, cfg config.CacheConfig) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	cleanExpired(cache, sessions, cfg.SessionRetention)
	for range ticker.C {
		cleanExpired(cache, sessions, cfg.SessionRetention)
	}
}

func cleanExpired(cache cleanableCache, sessions services.SessionStore, retention time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := cache.CleanExpired(ctx)
	if err != nil {
		utils.Log.Errorf("❌ Cache cleanup failed: %v", err)
	} else if rows > 0 {
		utils.Log.Infof("🧹 Cleaned %d expired cache entries", rows)
	}

	if retention <= 0 {
		return
	}
	removed, err := sessions.CleanOlderThan(ctx, retention)
	if err != nil {
		utils.Log.Errorf("❌ Session cleanup failed: %v", err)
	} else if removed > 0 {
		utils.Log.Infof("🧹 Removed %d old analysis sessions", removed)
	}
}
