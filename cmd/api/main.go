package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"swiftapply/internal/ai"
	"swiftapply/internal/http/handlers"
	httpapi "swiftapply/internal/http/httpapi"
	"swiftapply/internal/infra"
	"swiftapply/internal/infra/geoip"
	"swiftapply/internal/middleware"
	"swiftapply/internal/pipeline"
	"swiftapply/internal/quota"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	plans := quota.NewPostgresPlans(runner)
	var counters quota.CounterStore = quota.NewPostgresCounters(runner)
	if cfg.QuotaStore == "redis" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		counters = quota.NewRedisCounters(rdb, logger)
	}
	ledger := quota.NewLedger(plans, counters, logger)

	country, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var lookup middleware.CountryLookup
	if country != nil {
		lookup = country.CountryCode
	}

	completer, err := newCompleter(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure completion client")
	}

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		SQL:      runner,
		Ledger:   ledger,
		Pipeline: pipeline.NewOrchestrator(completer, logger, cfg.StageTimeout),
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != os.ErrClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newCompleter wires the generation backend: DeepSeek primary with OpenAI
// as a pre-stream fallback when both keys are configured, either one alone
// otherwise.
func newCompleter(cfg *infra.Config, logger infra.Logger) (ai.Completer, error) {
	var fallback ai.Completer
	if cfg.OpenAIAPIKey != "" {
		openai, err := ai.NewClient(ai.Options{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, err
		}
		fallback = openai
	}

	if cfg.DeepSeekAPIKey == "" {
		if fallback != nil {
			logger.Warn().Msg("no DEEPSEEK_API_KEY, using OpenAI as primary backend")
			return fallback, nil
		}
		return ai.NewClient(ai.Options{}) // fails with a descriptive error
	}

	return ai.NewClient(ai.Options{
		APIKey:   cfg.DeepSeekAPIKey,
		Model:    cfg.DeepSeekModel,
		BaseURL:  cfg.DeepSeekBaseURL,
		Fallback: fallback,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("primary completion backend unavailable, using fallback")
		},
	})
}
