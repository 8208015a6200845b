package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wolfman30/appointment-assistant/cmd/mainconfig"
	"github.com/wolfman30/appointment-assistant/internal/api/router"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
	"github.com/wolfman30/appointment-assistant/internal/assistant"
	"github.com/wolfman30/appointment-assistant/internal/booking"
	appconfig "github.com/wolfman30/appointment-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/appointment-assistant/internal/http/middleware"
	"github.com/wolfman30/appointment-assistant/internal/observability/metrics"
	"github.com/wolfman30/appointment-assistant/internal/webchat"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"llm_fallback_provider", cfg.LLMFallbackProvider,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildServer wires every component from cfg. The cleanup func releases
// provider and store clients.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	llm, closeLLM, err := mainconfig.NewLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	store, redisClient := mainconfig.NewTrackerStore(cfg)
	var healthCheck func(context.Context) error
	if redisClient != nil {
		healthCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	assistantMetrics := metrics.NewAssistantMetrics(registry)

	genOpts := []appointments.GeneratorOption{appointments.WithMaxSlots(cfg.MaxOfferedSlots)}
	if cfg.StrictBackfill {
		genOpts = append(genOpts, appointments.WithStrictBackfill())
	}
	finder := appointments.NewFinder(
		appointments.NewNormalizer(time.Now, cfg.Location()),
		appointments.NewGenerator(genOpts...),
	)

	agent := assistant.NewAgent(llm, finder,
		assistant.WithMaxTokens(cfg.LLMMaxTokens),
		assistant.WithTemperature(cfg.LLMTemperature),
		assistant.WithTimeout(cfg.LLMTimeout),
		assistant.WithDisplaySlots(cfg.DisplaySlots),
		assistant.WithLogger(logger.WithComponent("agent")),
		assistant.WithMetrics(assistantMetrics),
	)
	confirmer := booking.NewMockConfirmer(logger.WithComponent("booking"))
	service := assistant.NewService(assistant.NewBookingAction(agent), store, confirmer, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	sweepDone := make(chan struct{})
	go limiter.Run(sweepDone)

	handler := router.New(&router.Config{
		Logger:             logger,
		AssistantHandler:   assistant.NewHandler(service, finder, confirmer, logger),
		WebChat:            webchat.NewHandler(service, logger),
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:           registry,
		HealthCheck:        healthCheck,
	})

	// Turns can wait on two LLM calls, so the write timeout covers both.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanup := func() {
		close(sweepDone)
		closeLLM()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}
	return srv, cleanup, nil
}
