package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/api/radios"
	"github.com/Vasu1712/scenyx-radio/internal/config"
	"github.com/Vasu1712/scenyx-radio/internal/metrics"
	"github.com/Vasu1712/scenyx-radio/internal/middleware"
	"github.com/Vasu1712/scenyx-radio/internal/radio"
	"github.com/Vasu1712/scenyx-radio/internal/resolver"
	"github.com/Vasu1712/scenyx-radio/internal/stream"
	"github.com/Vasu1712/scenyx-radio/internal/ws"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	log := newLogger(cfg.Logging)
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub(m, log)

	piped := resolver.NewPiped(resolver.PipedConfig{
		Mirrors: cfg.Resolver.PipedMirrors,
		Timeout: cfg.ResolverTimeout(),
	}, log)
	yt := &resolver.YouTube{Piped: piped}
	spotify := resolver.NewSpotify(yt, cfg.ResolverTimeout())
	spotify.OEmbedURL = cfg.Resolver.SpotifyOEmbed

	var res resolver.Resolver = &resolver.Router{YouTube: yt, Spotify: spotify}
	if cfg.Valkey.Address != "" {
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Valkey.Address}})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Valkey.Address).Msg("valkey unavailable, resolving without cache")
		} else {
			defer client.Close()
			cached := resolver.NewCached(res, resolver.NewValkeyCache(client, cfg.ValkeyTTL()), log)
			cached.Timeout = cfg.ResolverTimeout()
			res = cached
			log.Info().Str("addr", cfg.Valkey.Address).Msg("resolver cache enabled")
		}
	}

	encoder := stream.NewFFmpegEncoder(stream.FFmpegConfig{
		Path:        cfg.Stream.FFmpegPath,
		BitrateKbps: cfg.Stream.BitrateKbps,
		ChunkSize:   cfg.Stream.ChunkSize,
	}, piped, log)

	registry := radio.NewRegistry(radio.Options{
		Encoder:        encoder,
		Observer:       hub,
		Rooms:          hub,
		ConsumerBuffer: cfg.Stream.ConsumerBuffer,
		EndDelay:       cfg.EndDelay(),
		Defaults:       cfg.Stations.Defaults,
		Metrics:        m,
		Log:            log,
	})

	handler := &radios.RadioHandler{
		Registry:       registry,
		Hub:            hub,
		Resolver:       res,
		Metrics:        m,
		Log:            log.With().Str("component", "api").Logger(),
		AllowedOrigin:  cfg.CORS.AllowedOrigin,
		ResolveTimeout: cfg.ResolverTimeout(),
	}

	r := mux.NewRouter()
	radios.RegisterRadioRoutes(r, handler)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.CORS(cfg.CORS.AllowedOrigin)(middleware.RequestLogger(log)(r)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Strs("stations", cfg.Stations.Defaults).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		// Stopping the registry first ends every stream response and refuses
		// new attaches, so srv.Shutdown is not held open by listeners.
		registry.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var log zerolog.Logger
	if cfg.JSON {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	return log.Level(level).With().Timestamp().Logger()
}
