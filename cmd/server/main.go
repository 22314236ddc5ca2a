package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cipherparty/internal/ai"
	"cipherparty/internal/config"
	"cipherparty/internal/game"
	"cipherparty/internal/lobby"
	"cipherparty/internal/logger"
	"cipherparty/internal/orchestrator"
	"cipherparty/internal/server"
	"cipherparty/internal/session"
	"cipherparty/internal/storage"
	"cipherparty/internal/words"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	catalogue, err := loadCatalogue(cfg.WordsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.WordsFile).Msg("load word catalogue")
	}
	supply, err := words.NewSupply(catalogue)
	if err != nil {
		log.Fatal().Err(err).Msg("word supply")
	}
	log.Info().Int("words", len(supply.Catalogue())).Int("max_distance", cfg.FuzzyMaxDistance).Msg("word catalogue loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	rooms := session.NewManager(store, session.WithLogger(log))
	if err := rooms.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("restore rooms")
	}
	go rooms.CleanupLoop(ctx, cfg.RoomSweepInterval, cfg.RoomIdleTimeout)

	var analyzer ai.Analyzer = ai.Unavailable{}
	if cfg.AIEndpoint != "" {
		analyzer = ai.NewHTTPAnalyzer(cfg.AIEndpoint, &http.Client{Timeout: cfg.AITimeout})
	} else {
		log.Warn().Msg("AI_ENDPOINT not set, every AI turn uses the fallback")
	}
	orch := orchestrator.New(
		rooms,
		game.NewEngine(supply, cfg.FuzzyMaxDistance),
		analyzer,
		ai.NewFallback(supply.Catalogue(), nil),
		orchestrator.WithLogger(log),
		orchestrator.WithAITimeout(cfg.AITimeout),
	)
	defer orch.Close()
	go orch.TimerLoop(ctx, cfg.TimerTickInterval)

	lb := lobby.NewBroadcaster(rooms, log)
	go lb.Run(ctx)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.New(orch, rooms, lb,
			server.WithLogger(log),
			server.WithAllowedOrigins(cfg.AllowedOrigins),
		),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("shut down")
}

func loadCatalogue(path string) ([]string, error) {
	if path == "" {
		return words.Default(), nil
	}
	return words.Load(path)
}
