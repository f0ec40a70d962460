package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jukkahell/spotify-queue-sub000/internal/api"
	"github.com/jukkahell/spotify-queue-sub000/internal/config"
	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
	"github.com/jukkahell/spotify-queue-sub000/internal/spotify"
)

func main() {
	cfg := config.FromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "queue-service").Logger()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	if err := queue.AutoMigrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	transport := spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, rdb, log)
	events := queue.NewEvents(rdb, log)
	store := queue.NewPGStore(pool)
	svc := queue.NewService(store, transport, events, log)

	// Self-healing restart: re-check every session persisted as playing.
	if err := svc.Scheduler().Recover(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler recovery")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(svc, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("queue-service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	svc.Scheduler().Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
