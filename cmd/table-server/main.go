package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holdem-server/internal/config"
	"holdem-server/internal/logging"
	"holdem-server/internal/recovery"
	"holdem-server/internal/store"
	"holdem-server/internal/tablegateway"
	httptransport "holdem-server/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		blobs  recovery.BlobStore
		pinger httptransport.Pinger
		st     *store.Store
	)
	if cfg.Server.DurableStorage() {
		st, err = store.New(cfg.Server.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		blobs = st
		pinger = st
	} else {
		log.Warn().Msg("POSTGRES_DSN not set; table state is kept in memory only")
	}

	pub := tablegateway.NewTopicPublisher(cfg.Server.EventBufferSize)
	coord := tablegateway.NewCoordinator(
		recovery.New(blobs),
		tablegateway.ConfigFromServer(cfg.Server),
		tablegateway.WithPublisher(pub),
	)
	defer coord.Close()

	if st != nil && cfg.Server.PreloadWindow > 0 {
		ids, err := st.ListTableIDs(ctx, time.Now().Add(-cfg.Server.PreloadWindow), 500)
		if err != nil {
			log.Warn().Err(err).Msg("list recent tables failed")
		} else {
			n := coord.Preload(ctx, ids)
			log.Info().Int("tables", n).Dur("window", cfg.Server.PreloadWindow).Msg("recent tables restored")
		}
	}
	coord.StartJanitor(ctx, cfg.Server.JanitorInterval)

	r := httptransport.NewRouter(cfg.Server, coord, pub, pinger)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Bool("durable", cfg.Server.DurableStorage()).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
