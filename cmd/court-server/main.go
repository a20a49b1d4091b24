package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/config"
	"court-rotation/internal/logging"
	"court-rotation/internal/mq"
	"court-rotation/internal/rotation"
	"court-rotation/internal/store"
	httptransport "court-rotation/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	opts := rotation.Options{
		RefreshInterval:  cfg.Server.RefreshInterval,
		WaitListDebounce: cfg.Server.WaitListDebounce,
		Location:         cfg.Location,
	}
	if cfg.Server.AMQPURL != "" {
		pub, err := mq.NewPublisher(cfg.Server.AMQPURL, cfg.Server.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp publisher init failed")
		}
		defer pub.Close()
		opts.Sinks = append(opts.Sinks, pub)
		log.Info().Str("exchange", cfg.Server.AMQPExchange).Msg("publishing session events")
	}

	sessions := appsession.NewService(st, opts)
	defer sessions.Close()

	r := httptransport.NewRouter(st, cfg.Server, sessions)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}
}
