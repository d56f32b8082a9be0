package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocks-simulator/auth"
	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/handlers"
	"stocks-simulator/ledger"
	"stocks-simulator/middleware"
	"stocks-simulator/quote"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()

	// Initialize PostgreSQL and Redis connections.
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get database instance")
	}
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate models")
	}

	rdb, err := config.InitRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()

	var provider quote.Provider
	switch cfg.QuoteProvider {
	case "fixed":
		provider = demoQuotes()
	default:
		provider = quote.NewAlphaVantage(cfg.AlphaVantageKey, cfg.QuoteTimeout, logger.With().Str("component", "alphavantage").Logger())
	}
	provider = quote.NewCached(provider, rdb, cfg.QuoteCacheTTL, logger.With().Str("component", "quote-cache").Logger())

	l := ledger.New(db, provider, cfg.StartingCash, logger.With().Str("component", "ledger").Logger())
	sessions := auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL, rdb)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.New(l, sessions, logger.With().Str("component", "http").Logger()).
		SecureCookies(os.Getenv("SECURE_COOKIES") == "true").
		Routes(router, middleware.NewRateLimiter(cfg.LoginRatePerMinute).Middleware())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("serve")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// demoQuotes serves a handful of static prices for offline development.
func demoQuotes() quote.Fixed {
	q := quote.Fixed{}
	q.Set("AAPL", "Apple Inc", decimal.RequireFromString("189.84"))
	q.Set("MSFT", "Microsoft Corporation", decimal.RequireFromString("415.26"))
	q.Set("NFLX", "Netflix Inc", decimal.RequireFromString("628.15"))
	q.Set("IBM", "International Business Machines Corp", decimal.RequireFromString("182.53"))
	return q
}
