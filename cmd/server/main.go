package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-relay/internal/delivery"
	"live-relay/internal/live"
	"live-relay/internal/loadmon"
	"live-relay/internal/platform/config"
	"live-relay/internal/platform/logger"
	"live-relay/internal/platform/metrics"
	"live-relay/internal/segcache"
	"live-relay/internal/upstream"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	var autoDJ upstream.StatusSource
	if cfg.AutoDJStatusURL != "" {
		autoDJ = &upstream.AutoDJSource{URL: cfg.AutoDJStatusURL}
	}
	var relays []upstream.StatusSource
	if cfg.RelayAPIURL != "" {
		relays = append(relays, &upstream.RelaySource{APIURL: cfg.RelayAPIURL, Path: cfg.RelayPath, Title: cfg.RelayTitle})
	}
	if cfg.HLSPlaylistPath != "" {
		relays = append(relays, &upstream.PlaylistSource{Path: cfg.HLSPlaylistPath, MaxAge: cfg.HLSPlaylistMaxAge, Title: cfg.RelayTitle})
	}
	prober := upstream.NewProber(autoDJ, relays, cfg.UpstreamTimeout, log, met)

	var reader loadmon.Reader = loadmon.NopReader{}
	if pr, err := loadmon.NewProcReader(cfg.ProcPath); err != nil {
		log.Warn("host load unavailable, reporting normal load", "proc_path", cfg.ProcPath, "error", err)
	} else {
		reader = pr
	}
	load := loadmon.New(reader, log, loadmon.Options{
		Interval:     cfg.LoadSampleInterval,
		CPUThreshold: cfg.LoadCPUThreshold,
		MemThreshold: cfg.LoadMemThreshold,
	})

	cache := segcache.New(cfg.SegmentCacheTTL, cfg.SegmentCacheMaxEntries)
	hls := upstream.NewHLSClient(cfg.HLSBaseURL, cfg.UpstreamTimeout)
	svc := delivery.NewService(prober, hls, cache, load, cfg.HLSDefaultQuality, log, met)
	h := delivery.NewHandler(svc, log, cfg.SegmentCacheTTL)

	hub := live.NewHub(log, met, live.RegistryOptions{})
	watcher := live.NewWatcher(prober, hub, cfg.StatusPollInterval, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/internal/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetSessions(hub.Registry().Count()) }).ServeHTTP(w, r)
	})
	h.Routes(r)
	r.Get("/ws", hub.ServeWS(live.NewUpgrader(cfg.AllowedOrigins)))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go watcher.Run(ctx)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"rtmp_port", cfg.RTMPPort,
		"hls_port", cfg.HLSPort,
		"hls_base_url", cfg.HLSBaseURL,
		"autodj", autoDJ != nil,
		"relay_sources", len(relays),
		"segment_cache_ttl", cfg.SegmentCacheTTL,
		"segment_cache_max_entries", cfg.SegmentCacheMaxEntries,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
