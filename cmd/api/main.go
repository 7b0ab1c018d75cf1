package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Linexox/Banxious/internal/config"
	"github.com/Linexox/Banxious/internal/handler"
	"github.com/Linexox/Banxious/internal/knowledge"
	"github.com/Linexox/Banxious/internal/provider"
	cardservice "github.com/Linexox/Banxious/internal/service/card"
	chatservice "github.com/Linexox/Banxious/internal/service/chat"
	"github.com/Linexox/Banxious/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close error")
		}
	}()

	gateway, err := provider.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize LLM gateway")
	}
	log.Info().Str("provider", string(cfg.LLM.Provider)).Msg("LLM gateway initialized")

	kb := knowledge.New(knowledge.Seed())

	cardSvc := cardservice.NewService(st, st, gateway, cfg.Card.HistoryLimit)
	cardWorker := cardservice.NewWorker(cardSvc, cfg.Card.QueueSize)
	cardWorker.Start(ctx)

	assembler := chatservice.NewAssembler(st, kb, cfg.Chat.HistoryLimit)
	chatSvc := chatservice.NewService(st, gateway, assembler, cardWorker)

	router := handler.NewRouter(chatSvc, cardSvc)

	startServer(ctx, cfg.Server, router)
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("Banxious backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
