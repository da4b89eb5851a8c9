package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/storyproof/lead-relay/internal/config"
	"github.com/storyproof/lead-relay/internal/logger"
	"github.com/storyproof/lead-relay/internal/providers/graph"
	"github.com/storyproof/lead-relay/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "relay-server").Logger()

	provider, err := graph.NewClient(cfg.Graph, cfg.Mail.SenderMailbox, log.With().Str("component", "graph-client").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise graph client")
	}

	handler, err := relay.NewHandler(provider, cfg.Relay, cfg.Mail.NotifyAddress, log.With().Str("component", "relay-handler").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise relay handler")
	}

	// Method routing lives inside the handler so CORS and 405 behaviour stay
	// uniform; the router only provides the mount point.
	router := mux.NewRouter()
	router.PathPrefix("/").Handler(handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Int("port", cfg.App.Port).
		Str("allowed_origin", cfg.Relay.AllowedOrigin).
		Str("notify_address", cfg.Mail.NotifyAddress).
		Msg("relay server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func fail(stage string, err error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Fatal().Err(err).Str("stage", stage).Msg("relay server init failed")
}
