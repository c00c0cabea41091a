// Command encodex-server serves the encodex HTTP and WebSocket API.
//
// Usage:
//
//	encodex-server [--config path/to/config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/config"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/metrics"
	"github.com/snehjoshi/encodex/internal/scheduler"
	"github.com/snehjoshi/encodex/internal/session"
	transphttp "github.com/snehjoshi/encodex/internal/transport/http"
	transportws "github.com/snehjoshi/encodex/internal/transport/websocket"
)

// Idle decoder sessions are dropped after sessionIdle; the sweep runs every
// sessionSweep.
const (
	sessionIdle  = 30 * time.Minute
	sessionSweep = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "encodex: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Log.Level))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 3. Open the self-destruct ledger ─────────────────────────────────────
	l, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	retention, _ := cfg.Ledger.RetentionDuration()
	pruneEvery, _ := cfg.Ledger.PruneEvery()
	go ledger.RunPruner(ctx, l, retention, pruneEvery)

	slog.Info("encodex starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"ledger", cfg.Ledger.Backend,
		"strict", cfg.SelfDestruct.Strict,
		"countdown_ms", cfg.SelfDestruct.CountdownMs,
	)

	// ── 4. Build the codec ───────────────────────────────────────────────────
	enc := codec.NewEncoder(l, cfg.Share.BaseURL)
	dec := codec.NewDecoder(l,
		codec.WithCountdown(cfg.SelfDestruct.Countdown()),
		codec.WithStrict(cfg.SelfDestruct.Strict),
	)

	// ── 5. Sessions and the countdown scheduler ──────────────────────────────
	sessions := session.NewStore()
	go sweepSessions(ctx, sessions)

	metricsReg := &metrics.Registry{}
	sched := scheduler.New()
	live := transportws.NewHandler(dec, sched, metricsReg)
	sched.Start(ctx, live.Fire)

	metricsReg.Gauge("encodex_sessions", "Decoder sessions currently tracked",
		func() int64 { return int64(sessions.Len()) })
	metricsReg.Gauge("encodex_pending_countdowns", "Self-destruct countdowns waiting to fire",
		func() int64 { return int64(sched.Len()) })
	metricsReg.Gauge("encodex_ws_connections", "Open WebSocket connections",
		func() int64 { return int64(live.Conns()) })

	// ── 6. Start HTTP / WebSocket transport ──────────────────────────────────
	srv := transphttp.New(cfg, transphttp.Deps{
		Encoder:  enc,
		Decoder:  dec,
		Sessions: sessions,
		Live:     live,
		Metrics:  metricsReg,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("encodex ready", "addr", addr)
		if err := srv.ListenAndServe(addr); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		} else {
			serveErr <- nil
		}
	}()

	// ── 7. Start dedicated Prometheus metrics listener ───────────────────────
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			slog.Info("metrics server listening", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metricsReg.Handler()); err != nil {
				slog.Warn("metrics server error", "err", err)
			}
		}()
	}

	// ── 8. Graceful shutdown on SIGINT / SIGTERM ─────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	stop()
	sched.Stop()
	if err := l.Close(); err != nil {
		slog.Warn("ledger close error", "err", err)
	}

	slog.Info("encodex stopped")
	return nil
}

func sweepSessions(ctx context.Context, sessions *session.Store) {
	t := time.NewTicker(sessionSweep)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sessions.Evict(sessionIdle); n > 0 {
				slog.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}
