package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/agritool/internal/accounts"
	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/ai"
	"github.com/dvloznov/agritool/internal/api/handlers"
	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/config"
	"github.com/dvloznov/agritool/internal/geo"
	"github.com/dvloznov/agritool/internal/jobs/inmemory"
	"github.com/dvloznov/agritool/internal/ledger"
	"github.com/dvloznov/agritool/internal/logger"
	"github.com/dvloznov/agritool/internal/profiles"
	"github.com/dvloznov/agritool/internal/session"
	"github.com/dvloznov/agritool/internal/speech"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/dvloznov/agritool/internal/weather"
	"github.com/rs/zerolog"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx := logger.WithContext(context.Background(), log)

	// Record storage
	blobs, closeBlobs, err := blob.Open(ctx, cfg.Storage.Backend, cfg.Storage.Dir, cfg.Storage.Bucket, cfg.Storage.Prefix)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open record storage")
	}
	defer closeBlobs()

	if cfg.Gemini.APIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}
	genaiClient, err := ai.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	model := ai.NewGemini(genaiClient, cfg.Gemini.Model, cfg.GetModelTimeout())

	var locator geo.Locator
	if cfg.Geo.Enabled {
		locator = geo.NewIPInfo(cfg.Geo.BaseURL, cfg.GetGeoTimeout())
	}
	if cfg.Weather.APIKey == "" {
		log.Warn().Msg("No WeatherAPI key configured - weather advisories will fail")
	}

	transcriber := speech.NewGeminiTranscriber(genaiClient, cfg.Gemini.STTModel, speech.Limits{
		ListenTimeout: cfg.GetListenTimeout(),
		PhraseLimit:   cfg.GetPhraseLimit(),
		MaxBytes:      cfg.Speech.MaxAudioBytes,
	}, log)
	audioCache := speech.NewCache(blobs, speech.NewGeminiSynthesizer(genaiClient, cfg.Gemini.TTSModel, cfg.Gemini.Voice))

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, cfg.Jobs.MaxRetries, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Start job consumer in background
	go func() {
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting speech synthesis workers")
		if err := jobQueue.Start(workerCtx, audioCache.HandleJob); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	sessions := session.NewStore(cfg.GetSessionTTL())
	go sweepSessions(workerCtx, sessions, cfg.GetSessionTTL(), log)

	mux, err := handlers.NewMux(handlers.Services{
		Accounts:      accounts.NewStore(blobs),
		Profiles:      profiles.NewStore(blobs),
		Ledger:        ledger.New(blobs),
		Router:        tools.NewRouter(model, log),
		Advisor:       advisory.NewAdvisor(model, log),
		Weather:       weather.NewClient(cfg.Weather.APIKey, cfg.Weather.BaseURL, cfg.Weather.ForecastDays, cfg.GetWeatherTimeout()),
		Geo:           locator,
		Transcriber:   transcriber,
		Audio:         audioCache,
		Publisher:     jobQueue,
		Jobs:          jobStore,
		MaxAudioBytes: cfg.Speech.MaxAudioBytes,
		Log:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register routes")
	}

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.Server.CORSOrigins...),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
		middleware.Session(sessions, middleware.CookieOptions{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.GetSessionTTL(),
			Secure: cfg.Session.Secure,
		}),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Storage.Backend).Msg("Starting AgriTool API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// sweepSessions drops expired sessions until ctx is done.
func sweepSessions(ctx context.Context, store *session.Store, ttl time.Duration, log zerolog.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(ctx); n > 0 {
				log.Debug().Int("removed", n).Msg("Swept expired sessions")
			}
		}
	}
}
